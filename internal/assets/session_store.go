package assets

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// SessionStore keeps uploaded images for a single presentation session in memory.
// Resolve never has side effects: a slot is Unresolved until something is uploaded to it.
type SessionStore struct {
	registry *Registry
	opts     options

	mu     sync.RWMutex
	states map[string]AssetState
}

var _ Store = (*SessionStore)(nil)

// NewSessionStore returns an empty upload table over reg.
func NewSessionStore(reg *Registry, opts ...Option) *SessionStore {
	return &SessionStore{
		registry: reg,
		opts:     newOptions(opts),
		states:   make(map[string]AssetState),
	}
}

// Upload validates data and stores it as the slot's image, replacing any previous upload.
func (s *SessionStore) Upload(ctx context.Context, key string, data []byte) (AssetState, error) {
	state, err := ingestUpload(s.registry, s.opts, key, data)
	if err != nil {
		return AssetState{}, err
	}

	s.mu.Lock()
	s.states[state.Slot] = state
	s.mu.Unlock()

	s.opts.logger.Debug("asset uploaded",
		zap.String("slot", state.Slot),
		zap.String("format", state.Format),
		zap.Int("bytes", len(state.Data)),
	)
	return state, nil
}

// Resolve returns the slot's current upload, or Unresolved.
func (s *SessionStore) Resolve(_ context.Context, key string) (AssetState, error) {
	slot, err := s.registry.Lookup(key)
	if err != nil {
		return AssetState{}, err
	}
	s.mu.RLock()
	state, ok := s.states[slot.Key]
	s.mu.RUnlock()
	if !ok {
		return unresolvedState(slot.Key), nil
	}
	return state, nil
}

// Invalidate drops the slot's upload.
func (s *SessionStore) Invalidate(_ context.Context, key string) error {
	slot, err := s.registry.Lookup(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.states, slot.Key)
	s.mu.Unlock()
	return nil
}

// Snapshot returns every slot's state in registry order.
func (s *SessionStore) Snapshot(_ context.Context) []AssetState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AssetState, 0, s.registry.Len())
	for _, slot := range s.registry.slots {
		if state, ok := s.states[slot.Key]; ok {
			out = append(out, state)
			continue
		}
		out = append(out, unresolvedState(slot.Key))
	}
	return out
}
