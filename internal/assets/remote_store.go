package assets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/Amrut-Prajapati/ReUpyog/internal/assets")

// Fetcher retrieves the raw bytes published for a slot.
type Fetcher interface {
	Fetch(ctx context.Context, slot Slot) ([]byte, error)
}

// FetcherFunc adapts an ordinary function to Fetcher.
type FetcherFunc func(ctx context.Context, slot Slot) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, slot Slot) ([]byte, error) { return f(ctx, slot) }

// RemoteStore resolves slots by fetching them once and caching the outcome, success or
// failure. Cached failures are served until Invalidate, or until the failure TTL elapses
// when one is configured. Uploads take precedence over fetched values.
type RemoteStore struct {
	registry *Registry
	fetcher  Fetcher
	opts     options
	group    singleflight.Group

	mu          sync.Mutex
	states      map[string]AssetState
	generations map[string]uint64
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore builds a fetch-with-cache store. fetcher must not be nil.
func NewRemoteStore(reg *Registry, fetcher Fetcher, opts ...Option) (*RemoteStore, error) {
	if reg == nil {
		return nil, errors.New("assets: registry is required")
	}
	if fetcher == nil {
		return nil, errors.New("assets: fetcher is required")
	}
	return &RemoteStore{
		registry:    reg,
		fetcher:     fetcher,
		opts:        newOptions(opts),
		states:      make(map[string]AssetState),
		generations: make(map[string]uint64),
	}, nil
}

// Upload stores data as the slot's image. A fetch still in flight for the slot is discarded.
func (s *RemoteStore) Upload(_ context.Context, key string, data []byte) (AssetState, error) {
	state, err := ingestUpload(s.registry, s.opts, key, data)
	if err != nil {
		return AssetState{}, err
	}
	s.mu.Lock()
	s.generations[state.Slot]++
	s.states[state.Slot] = state
	s.mu.Unlock()
	return state, nil
}

// Resolve returns the cached state or performs one fetch. Concurrent callers for the same
// uncached slot share a single fetch. If ctx ends first the caller gets an uncached
// FetchFailed state while the shared fetch completes in the background.
func (s *RemoteStore) Resolve(ctx context.Context, key string) (AssetState, error) {
	slot, err := s.registry.Lookup(key)
	if err != nil {
		return AssetState{}, err
	}

	s.mu.Lock()
	if state, ok := s.states[slot.Key]; ok && !s.expired(state) {
		s.mu.Unlock()
		return state, nil
	}
	gen := s.generations[slot.Key]
	s.mu.Unlock()

	flight := slot.Key + "#" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		return s.fetchAndStore(fetchCtx, slot, gen), nil
	})

	select {
	case res := <-ch:
		return res.Val.(AssetState), nil
	case <-ctx.Done():
		return failedState(slot.Key, fmt.Sprintf("fetch abandoned: %v", ctx.Err()), "", s.opts.now()), nil
	}
}

// Invalidate forgets the slot's cached state, including an upload. A fetch in flight is
// discarded and the next Resolve fetches again.
func (s *RemoteStore) Invalidate(_ context.Context, key string) error {
	slot, err := s.registry.Lookup(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.generations[slot.Key]++
	delete(s.states, slot.Key)
	s.mu.Unlock()
	return nil
}

// Snapshot returns cached states in registry order; uncached slots are Unresolved.
func (s *RemoteStore) Snapshot(_ context.Context) []AssetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AssetState, 0, s.registry.Len())
	for _, slot := range s.registry.slots {
		if state, ok := s.states[slot.Key]; ok && !s.expired(state) {
			out = append(out, state)
			continue
		}
		out = append(out, unresolvedState(slot.Key))
	}
	return out
}

// expired reports whether a cached failure has outlived the failure TTL. Callers hold s.mu.
func (s *RemoteStore) expired(state AssetState) bool {
	if state.Status != StatusFetchFailed || s.opts.failureTTL <= 0 {
		return false
	}
	return !s.opts.now().Before(state.UpdatedAt.Add(s.opts.failureTTL))
}

func (s *RemoteStore) fetchAndStore(ctx context.Context, slot Slot, gen uint64) AssetState {
	state := s.fetch(ctx, slot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[slot.Key] != gen {
		// Uploaded or invalidated while we were fetching.
		if current, ok := s.states[slot.Key]; ok {
			return current
		}
		return state
	}
	s.states[slot.Key] = state
	return state
}

func (s *RemoteStore) fetch(ctx context.Context, slot Slot) AssetState {
	ctx, cancel := context.WithTimeout(ctx, s.opts.fetchTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "assets.fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("assets.slot", slot.Key),
		attribute.String("assets.remote_filename", slot.RemoteFilename),
	)

	logger := s.opts.logger.With(zap.String("slot", slot.Key), zap.String("remote_filename", slot.RemoteFilename))
	start := time.Now()

	data, err := s.fetcher.Fetch(ctx, slot)
	if err != nil {
		return s.fail(span, logger, slot, err.Error(), start)
	}
	info, err := DecodeImage(data, s.opts.maxBytes)
	if err != nil {
		return s.fail(span, logger, slot, err.Error(), start)
	}

	state := resolvedState(slot.Key, data, info, SourceFetched, s.opts.revision(), s.opts.now())
	span.SetAttributes(attribute.Int("assets.bytes", len(data)))
	logger.Info("asset fetched",
		zap.String("format", info.Format),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return state
}

func (s *RemoteStore) fail(span trace.Span, logger *zap.Logger, slot Slot, reason string, start time.Time) AssetState {
	span.SetStatus(codes.Error, reason)
	logger.Warn("asset fetch failed",
		zap.String("reason", reason),
		zap.Duration("duration", time.Since(start)),
	)
	return failedState(slot.Key, reason, s.opts.revision(), s.opts.now())
}
