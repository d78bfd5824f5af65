package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryDefaultsAndOrder(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		Slot{Key: " logo ", Page: "overview"},
		Slot{Key: "results", Title: "Results", Page: "results", RemoteFilename: "final results.jpg"},
		Slot{Key: "architecture", Page: "overview"},
	)
	require.NoError(t, err)

	require.Equal(t, 3, reg.Len())
	require.Equal(t, []string{"logo", "results", "architecture"}, reg.Keys())
	require.Equal(t, []string{"overview", "results"}, reg.Pages())

	logo, err := reg.Lookup("logo")
	require.NoError(t, err)
	require.Equal(t, "logo", logo.Title)
	require.Equal(t, "logo.png", logo.RemoteFilename)

	overview := reg.SlotsForPage("overview")
	require.Len(t, overview, 2)
	require.Equal(t, "architecture", overview[1].Key)
	require.Empty(t, reg.SlotsForPage("missing"))
}

func TestNewRegistryRejectsBadSets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		slots []Slot
		want  string
	}{
		{name: "empty", want: "at least one slot"},
		{name: "blank key", slots: []Slot{{Key: "  "}}, want: "empty key"},
		{name: "duplicate", slots: []Slot{{Key: "logo"}, {Key: "logo"}}, want: "duplicate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.slots...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "logo")
	_, err := reg.Lookup("hero_banner")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownSlot))

	var unknown *UnknownSlotError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "hero_banner", unknown.Key)
}

func TestAllSlotsReturnsCopy(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "logo", "architecture")
	slots := reg.AllSlots()
	slots[0].Key = "mutated"
	require.Equal(t, "logo", reg.AllSlots()[0].Key)
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	reg, err := DefaultRegistry()
	require.NoError(t, err)
	require.Equal(t, 10, reg.Len())
	require.Equal(t, []string{"overview", "dataset", "technical", "results", "applications"}, reg.Pages())
	for _, slot := range reg.AllSlots() {
		require.NotEmpty(t, slot.Help, slot.Key)
		require.NotEmpty(t, slot.RemoteFilename, slot.Key)
	}
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		reg, err := LoadManifest(strings.NewReader("slots:\n  - key: logo\n    title: Logo\n  - key: hero_banner\n"))
		require.NoError(t, err)
		require.Equal(t, []string{"logo", "hero_banner"}, reg.Keys())
	})
	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadManifest(strings.NewReader("slots:\n  - key: logo\n    colour: red\n"))
		require.Error(t, err)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := LoadManifest(strings.NewReader(""))
		require.EqualError(t, err, "assets: manifest is empty")
	})
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "slots.yaml")
		require.NoError(t, os.WriteFile(path, []byte("slots:\n  - key: banner\n"), 0o600))
		reg, err := LoadManifestFile(path)
		require.NoError(t, err)
		require.Equal(t, 1, reg.Len())
	})
}
