package favorites

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarli/jambox/internal/domain/track"
)

const (
	alice = snowflake.ID(1)
	bob   = snowflake.ID(2)
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "favorites.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fav(title string) track.Track {
	return track.Track{
		Title:       title,
		URL:         "https://example.com/" + title,
		DurationSec: 120,
		Kind:        track.KindWebVideo,
	}
}

func TestStoreAddAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos, err := s.Add(ctx, alice, fav("first"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = s.Add(ctx, alice, fav("second"))
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	list, err := s.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	assert.Equal(t, alice, list[0].RequestedBy)
	assert.Equal(t, 120, list[0].DurationSec)
}

func TestStoreIsolatesUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, alice, fav("mine"))
	require.NoError(t, err)

	list, err := s.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)

	pos, err := s.Add(ctx, bob, fav("yours"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos, "positions are per user")
}

func TestStoreRemoveCompactsPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := s.Add(ctx, alice, fav(title))
		require.NoError(t, err)
	}

	require.NoError(t, s.Remove(ctx, alice, 2))

	list, err := s.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Title)
	assert.Equal(t, "c", list[1].Title)

	got, err := s.Get(ctx, alice, 2)
	require.NoError(t, err)
	assert.Equal(t, "c", got.Title, "positions compacted after removal")
}

func TestStoreKeepsSourceKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := track.Track{
		Title:       "field recording",
		URL:         "https://example.com/field.mp3",
		DurationSec: 90,
		Kind:        track.KindFile,
	}
	_, err := s.Add(ctx, alice, file)
	require.NoError(t, err)
	_, err = s.Add(ctx, alice, track.Track{
		Title:       "live set",
		URL:         "https://soundcloud.com/live-set",
		DurationSec: 3600,
		Kind:        track.KindAudioHost,
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, track.KindFile, got.Kind, "file tracks keep their pass-through path")

	list, err := s.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, track.KindFile, list[0].Kind)
	assert.Equal(t, track.KindAudioHost, list[1].Kind)
}

func TestStoreRemoveMissing(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Remove(context.Background(), alice, 1), ErrNotFound)
}

func TestStoreGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, alice, fav("a"))
	require.NoError(t, err)

	got, err := s.Get(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Title)

	_, err = s.Get(ctx, alice, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreAddValidates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add(context.Background(), alice, track.Track{URL: "https://x"})
	assert.Error(t, err, "untitled track rejected")
}
