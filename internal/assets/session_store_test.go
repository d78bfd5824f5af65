package assets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStoreUploadResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(testRegistry(t, "logo", "architecture"), WithClock(func() time.Time { return now }))

	state, err := store.Resolve(ctx, "logo")
	require.NoError(t, err)
	require.Equal(t, StatusUnresolved, state.Status)

	data := pngBytes(t, 2, 2)
	uploaded, err := store.Upload(ctx, "logo", data)
	require.NoError(t, err)
	require.Equal(t, StatusResolved, uploaded.Status)
	require.Equal(t, SourceUploaded, uploaded.Source)
	require.Equal(t, "image/png", uploaded.ContentType)
	require.Equal(t, now, uploaded.UpdatedAt)
	require.NotEmpty(t, uploaded.Revision)

	// The store keeps its own copy.
	data[0] = 0
	resolved, err := store.Resolve(ctx, "logo")
	require.NoError(t, err)
	require.True(t, resolved.IsResolved())
	require.Equal(t, byte(0x89), resolved.Data[0])

	other, err := store.Resolve(ctx, "architecture")
	require.NoError(t, err)
	require.Equal(t, StatusUnresolved, other.Status)
}

func TestSessionStoreOverwriteAndInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore(testRegistry(t, "logo"))

	first, err := store.Upload(ctx, "logo", pngBytes(t, 2, 2))
	require.NoError(t, err)
	second, err := store.Upload(ctx, "logo", jpegBytes(t, 4, 4))
	require.NoError(t, err)
	require.NotEqual(t, first.Revision, second.Revision)

	state, err := store.Resolve(ctx, "logo")
	require.NoError(t, err)
	require.Equal(t, "jpeg", state.Format)

	require.NoError(t, store.Invalidate(ctx, "logo"))
	state, err = store.Resolve(ctx, "logo")
	require.NoError(t, err)
	require.Equal(t, StatusUnresolved, state.Status)
}

func TestSessionStoreRejectsInvalidUpload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore(testRegistry(t, "logo"))
	_, err := store.Upload(ctx, "logo", pngBytes(t, 2, 2))
	require.NoError(t, err)

	_, err = store.Upload(ctx, "logo", []byte("not an image"))
	require.ErrorIs(t, err, ErrInvalidImage)

	state, err := store.Resolve(ctx, "logo")
	require.NoError(t, err)
	require.True(t, state.IsResolved(), "previous upload must survive a rejected one")
}

func TestSessionStoreUnknownSlot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore(testRegistry(t, "logo"))

	_, err := store.Upload(ctx, "hero_banner", pngBytes(t, 1, 1))
	require.True(t, errors.Is(err, ErrUnknownSlot))
	_, err = store.Resolve(ctx, "hero_banner")
	require.True(t, errors.Is(err, ErrUnknownSlot))
	require.True(t, errors.Is(store.Invalidate(ctx, "hero_banner"), ErrUnknownSlot))
}

func TestSessionStoreSnapshotOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore(testRegistry(t, "a", "b", "c"))
	_, err := store.Upload(ctx, "b", pngBytes(t, 1, 1))
	require.NoError(t, err)

	snap := store.Snapshot(ctx)
	require.Len(t, snap, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{snap[0].Slot, snap[1].Slot, snap[2].Slot})
	require.Equal(t, []Status{StatusUnresolved, StatusResolved, StatusUnresolved}, []Status{snap[0].Status, snap[1].Status, snap[2].Status})
}
