package assets

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSlot matches any *UnknownSlotError.
	ErrUnknownSlot = errors.New("assets: unknown slot")
	// ErrInvalidImage matches any *InvalidImageError.
	ErrInvalidImage = errors.New("assets: invalid image")
	// ErrImageTooLarge is wrapped by InvalidImageError when a payload exceeds the size limit.
	ErrImageTooLarge = errors.New("assets: image exceeds size limit")
)

// UnknownSlotError reports a slot key outside the registered set. It signals a
// programming or configuration mistake rather than a runtime condition.
type UnknownSlotError struct {
	Key string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("assets: unknown slot %q", e.Key)
}

// Is lets errors.Is(err, ErrUnknownSlot) match.
func (e *UnknownSlotError) Is(target error) bool { return target == ErrUnknownSlot }

// InvalidImageError reports an upload payload that was rejected. The slot keeps its previous state.
type InvalidImageError struct {
	Reason string
	Err    error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assets: invalid image: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("assets: invalid image: %s", e.Reason)
}

// Unwrap exposes the underlying decode or size error.
func (e *InvalidImageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidImage) match.
func (e *InvalidImageError) Is(target error) bool { return target == ErrInvalidImage }
