package assets

import "context"

// OverlayStore layers one session's uploads over a shared store, typically the process-wide
// RemoteStore. Uploads stay private to the session and win over the shared value.
type OverlayStore struct {
	uploads *SessionStore
	shared  Store
}

var _ Store = (*OverlayStore)(nil)

// NewOverlayStore combines a session upload table with a shared fallback.
func NewOverlayStore(uploads *SessionStore, shared Store) *OverlayStore {
	return &OverlayStore{uploads: uploads, shared: shared}
}

// Upload stores data in the session layer only.
func (o *OverlayStore) Upload(ctx context.Context, key string, data []byte) (AssetState, error) {
	return o.uploads.Upload(ctx, key, data)
}

// Resolve prefers the session's upload and falls back to the shared store.
func (o *OverlayStore) Resolve(ctx context.Context, key string) (AssetState, error) {
	state, err := o.uploads.Resolve(ctx, key)
	if err != nil {
		return AssetState{}, err
	}
	if state.IsResolved() {
		return state, nil
	}
	return o.shared.Resolve(ctx, key)
}

// Invalidate clears the session's upload and the shared cached value.
func (o *OverlayStore) Invalidate(ctx context.Context, key string) error {
	if err := o.uploads.Invalidate(ctx, key); err != nil {
		return err
	}
	return o.shared.Invalidate(ctx, key)
}

// Snapshot merges both layers without fetching.
func (o *OverlayStore) Snapshot(ctx context.Context) []AssetState {
	local := o.uploads.Snapshot(ctx)
	shared := o.shared.Snapshot(ctx)
	for i := range local {
		if !local[i].IsResolved() && i < len(shared) {
			local[i] = shared[i]
		}
	}
	return local
}
