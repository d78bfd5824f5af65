package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerProgressBounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := testRegistry(t, "a", "b", "c")
	store := NewSessionStore(reg)
	tracker := NewTracker(reg, store)

	require.Equal(t, 0.0, tracker.Progress(ctx))
	require.False(t, tracker.IsComplete(ctx))

	for _, key := range reg.Keys() {
		_, err := store.Upload(ctx, key, pngBytes(t, 1, 1))
		require.NoError(t, err)
	}
	require.Equal(t, 1.0, tracker.Progress(ctx))
	require.True(t, tracker.IsComplete(ctx))
}

func TestTrackerHalfResolved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := testRegistry(t, "logo", "hero_banner")
	store := NewSessionStore(reg)
	tracker := NewTracker(reg, store)

	_, err := store.Upload(ctx, "logo", pngBytes(t, 1, 1))
	require.NoError(t, err)

	require.Equal(t, 0.5, tracker.Progress(ctx))
	logo, err := store.Resolve(ctx, "logo")
	require.NoError(t, err)
	require.Equal(t, StatusResolved, logo.Status)
	banner, err := store.Resolve(ctx, "hero_banner")
	require.NoError(t, err)
	require.Equal(t, StatusUnresolved, banner.Status)
}

func TestTrackerCountsFetchedAndIgnoresFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, err := NewRegistry(
		Slot{Key: "logo", Page: "overview"},
		Slot{Key: "architecture", Page: "overview"},
		Slot{Key: "confusion_matrix", Page: "results"},
	)
	require.NoError(t, err)

	img := pngBytes(t, 1, 1)
	store, err := NewRemoteStore(reg, FetcherFunc(func(_ context.Context, slot Slot) ([]byte, error) {
		if slot.Key == "architecture" {
			return nil, errors.New("not published")
		}
		return img, nil
	}))
	require.NoError(t, err)
	tracker := NewTracker(reg, store)

	resolved, total := tracker.Counts(ctx)
	require.Equal(t, 2, resolved)
	require.Equal(t, 3, total)

	resolved, total = tracker.PageCounts(ctx, "overview")
	require.Equal(t, 1, resolved)
	require.Equal(t, 2, total)

	resolved, total = tracker.PageCounts(ctx, "missing")
	require.Zero(t, resolved)
	require.Zero(t, total)
	require.Zero(t, Ratio(resolved, total))
}
