package assets

import (
	"fmt"
	"time"
)

// Status is the resolution state of a slot.
type Status int

const (
	StatusUnresolved Status = iota
	StatusResolved
	StatusFetchFailed
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusFetchFailed:
		return "fetch_failed"
	default:
		return "unresolved"
	}
}

// MarshalText renders the status as its string form in JSON payloads.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses the string form produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unresolved", "":
		*s = StatusUnresolved
	case "resolved":
		*s = StatusResolved
	case "fetch_failed":
		*s = StatusFetchFailed
	default:
		return fmt.Errorf("assets: unknown status %q", text)
	}
	return nil
}

// Source records where resolved image data came from.
type Source int

const (
	SourceNone Source = iota
	SourceUploaded
	SourceFetched
)

func (s Source) String() string {
	switch s {
	case SourceUploaded:
		return "uploaded"
	case SourceFetched:
		return "fetched"
	default:
		return ""
	}
}

// MarshalText renders the source as its string form in JSON payloads.
func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses the string form produced by MarshalText.
func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "":
		*s = SourceNone
	case "uploaded":
		*s = SourceUploaded
	case "fetched":
		*s = SourceFetched
	default:
		return fmt.Errorf("assets: unknown source %q", text)
	}
	return nil
}

// AssetState is the current state of one slot. Data is shared with the store and must be
// treated as read-only.
type AssetState struct {
	Slot        string
	Status      Status
	Source      Source
	Data        []byte
	ContentType string
	Format      string
	Width       int
	Height      int
	// Reason explains a FetchFailed state.
	Reason string
	// Revision changes on every transition into Resolved or FetchFailed.
	Revision  string
	UpdatedAt time.Time
}

// IsResolved reports whether the slot currently has image data.
func (s AssetState) IsResolved() bool { return s.Status == StatusResolved }

// IsFailed reports whether the last fetch for the slot failed.
func (s AssetState) IsFailed() bool { return s.Status == StatusFetchFailed }

func (s AssetState) String() string {
	switch s.Status {
	case StatusResolved:
		return fmt.Sprintf("%s: resolved(%s, %d bytes)", s.Slot, s.Source, len(s.Data))
	case StatusFetchFailed:
		return fmt.Sprintf("%s: fetch_failed(%s)", s.Slot, s.Reason)
	default:
		return fmt.Sprintf("%s: unresolved", s.Slot)
	}
}

func unresolvedState(key string) AssetState {
	return AssetState{Slot: key, Status: StatusUnresolved}
}

func resolvedState(key string, data []byte, info ImageInfo, source Source, revision string, now time.Time) AssetState {
	return AssetState{
		Slot:        key,
		Status:      StatusResolved,
		Source:      source,
		Data:        data,
		ContentType: info.ContentType,
		Format:      info.Format,
		Width:       info.Width,
		Height:      info.Height,
		Revision:    revision,
		UpdatedAt:   now,
	}
}

func failedState(key, reason, revision string, now time.Time) AssetState {
	return AssetState{
		Slot:      key,
		Status:    StatusFetchFailed,
		Reason:    reason,
		Revision:  revision,
		UpdatedAt: now,
	}
}
