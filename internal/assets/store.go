package assets

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Store resolves slots to image data. Implementations are safe for concurrent use.
//
// Resolve and Invalidate only fail with *UnknownSlotError. Backend failures are reported as
// AssetState values so callers can keep rendering the remaining slots.
type Store interface {
	// Upload replaces the slot's state with the given image, overriding any fetched value.
	Upload(ctx context.Context, key string, data []byte) (AssetState, error)
	// Resolve returns the slot's current state, fetching it first if the backend requires.
	Resolve(ctx context.Context, key string) (AssetState, error)
	// Invalidate clears the slot's state so the next Resolve starts fresh.
	Invalidate(ctx context.Context, key string) error
	// Snapshot returns the state of every slot in registry order without fetching.
	Snapshot(ctx context.Context) []AssetState
}

// Option customises a store.
type Option func(*options)

type options struct {
	maxBytes     int64
	fetchTimeout time.Duration
	failureTTL   time.Duration
	clock        func() time.Time
	revision     func() string
	logger       *zap.Logger
}

const defaultFetchTimeout = 10 * time.Second

func newOptions(opts []Option) options {
	o := options{
		maxBytes:     DefaultMaxImageBytes,
		fetchTimeout: defaultFetchTimeout,
		clock:        time.Now,
		revision:     func() string { return ulid.Make().String() },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) now() time.Time { return o.clock().UTC() }

// WithMaxImageBytes caps upload and fetched payload sizes.
func WithMaxImageBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

// WithFetchTimeout bounds each remote fetch. Defaults to 10 seconds.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// WithFailureTTL lets cached fetch failures expire so the next Resolve retries. Zero, the
// default, keeps failures until Invalidate.
func WithFailureTTL(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.failureTTL = d
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger used for fetch and upload events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func copyBytes(data []byte) []byte {
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp
}

// ingestUpload validates and copies an upload into a Resolved state.
func ingestUpload(reg *Registry, o options, key string, data []byte) (AssetState, error) {
	slot, err := reg.Lookup(key)
	if err != nil {
		return AssetState{}, err
	}
	info, err := DecodeImage(data, o.maxBytes)
	if err != nil {
		return AssetState{}, err
	}
	return resolvedState(slot.Key, copyBytes(data), info, SourceUploaded, o.revision(), o.now()), nil
}
