package assets

import (
	"errors"
	"fmt"
	"strings"
)

// Slot is one fixed image position in the presentation layout.
type Slot struct {
	Key            string `yaml:"key" json:"key"`
	Title          string `yaml:"title" json:"title"`
	Help           string `yaml:"help" json:"help,omitempty"`
	Page           string `yaml:"page" json:"page"`
	RemoteFilename string `yaml:"remote_filename" json:"remote_filename,omitempty"`
}

// Registry enumerates every valid slot in a fixed order. It is immutable after construction
// and safe for concurrent use.
type Registry struct {
	slots []Slot
	index map[string]int
	pages []string
}

// NewRegistry validates the slot set and freezes it. Order is preserved as given.
func NewRegistry(slots ...Slot) (*Registry, error) {
	if len(slots) == 0 {
		return nil, errors.New("assets: registry requires at least one slot")
	}

	reg := &Registry{
		slots: make([]Slot, 0, len(slots)),
		index: make(map[string]int, len(slots)),
	}
	seenPages := make(map[string]struct{})
	for i, slot := range slots {
		slot.Key = strings.TrimSpace(slot.Key)
		if slot.Key == "" {
			return nil, fmt.Errorf("assets: slot %d has an empty key", i)
		}
		if _, dup := reg.index[slot.Key]; dup {
			return nil, fmt.Errorf("assets: duplicate slot key %q", slot.Key)
		}
		slot.Title = strings.TrimSpace(slot.Title)
		if slot.Title == "" {
			slot.Title = slot.Key
		}
		slot.Page = strings.TrimSpace(slot.Page)
		slot.RemoteFilename = strings.TrimSpace(slot.RemoteFilename)
		if slot.RemoteFilename == "" {
			slot.RemoteFilename = slot.Key + ".png"
		}
		slot.Help = strings.TrimSpace(slot.Help)

		reg.index[slot.Key] = len(reg.slots)
		reg.slots = append(reg.slots, slot)
		if slot.Page != "" {
			if _, ok := seenPages[slot.Page]; !ok {
				seenPages[slot.Page] = struct{}{}
				reg.pages = append(reg.pages, slot.Page)
			}
		}
	}
	return reg, nil
}

// AllSlots returns the slots in registry order. The slice is a copy.
func (r *Registry) AllSlots() []Slot {
	out := make([]Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

// Lookup returns the slot registered under key or an *UnknownSlotError.
func (r *Registry) Lookup(key string) (Slot, error) {
	i, ok := r.index[strings.TrimSpace(key)]
	if !ok {
		return Slot{}, &UnknownSlotError{Key: key}
	}
	return r.slots[i], nil
}

// Len reports the number of registered slots.
func (r *Registry) Len() int { return len(r.slots) }

// Keys returns slot keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.slots))
	for i, slot := range r.slots {
		keys[i] = slot.Key
	}
	return keys
}

// SlotsForPage returns the slots targeting page, in registry order.
func (r *Registry) SlotsForPage(page string) []Slot {
	var out []Slot
	for _, slot := range r.slots {
		if slot.Page == page {
			out = append(out, slot)
		}
	}
	return out
}

// Pages lists the distinct page keys in order of first appearance.
func (r *Registry) Pages() []string {
	out := make([]string, len(r.pages))
	copy(out, r.pages)
	return out
}
