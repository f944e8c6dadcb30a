package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarli/jambox/internal/app/player"
	"github.com/mcarli/jambox/internal/domain/track"
)

type nullConn struct{}

func (nullConn) Play(context.Context, string, float64) (<-chan player.PlayResult, error) {
	return make(chan player.PlayResult, 1), nil
}
func (nullConn) Stop()             {}
func (nullConn) Pause() error      { return nil }
func (nullConn) Resume() error     { return nil }
func (nullConn) SetVolume(float64) {}
func (nullConn) Disconnect()       {}

type nullSink struct{}

func (nullSink) Connect(context.Context, snowflake.ID, snowflake.ID) (player.Connection, error) {
	return nullConn{}, nil
}

type nullResolver struct{}

func (nullResolver) ResolveStream(_ context.Context, t *track.Track) (string, error) {
	return t.URL, nil
}

type stubFavorites struct {
	tracks []track.Track
}

func (s *stubFavorites) List(context.Context, snowflake.ID) ([]track.Track, error) {
	return s.tracks, nil
}

func (s *stubFavorites) Get(_ context.Context, _ snowflake.ID, position int) (track.Track, error) {
	return s.tracks[position-1], nil
}

func newTestRegistry(favs Favorites) *Registry {
	return New(nullSink{}, nullResolver{}, player.Config{MaxHistory: 10}, favs)
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Shutdown()

	a := r.GetOrCreate(1)
	b := r.GetOrCreate(1)
	assert.Same(t, a, b)

	c := r.GetOrCreate(2)
	assert.NotSame(t, a, c, "sessions are per guild")
}

func TestGetOrCreateReplacesClosedSession(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Shutdown()

	a := r.GetOrCreate(1)
	a.Close()

	b := r.GetOrCreate(1)
	assert.NotSame(t, a, b)
	assert.False(t, b.Closed())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Shutdown()

	const n = 16
	sessions := make([]*player.Session, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			sessions[i] = r.GetOrCreate(1)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i], "one session per guild")
	}
}

func TestGet(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Shutdown()

	_, err := r.Get(1)
	assert.ErrorIs(t, err, ErrNoSession)

	created := r.GetOrCreate(1)
	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Same(t, created, got)

	created.Close()
	_, err = r.Get(1)
	assert.ErrorIs(t, err, ErrNoSession, "closed session is not returned")
}

func TestDestroy(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Shutdown()

	s := r.GetOrCreate(1)
	r.Destroy(1)
	assert.True(t, s.Closed())

	_, err := r.Get(1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestShutdownClosesAll(t *testing.T) {
	r := newTestRegistry(nil)

	a := r.GetOrCreate(1)
	b := r.GetOrCreate(2)
	r.Shutdown()

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestPlayFavoritesWholeList(t *testing.T) {
	favs := &stubFavorites{tracks: []track.Track{
		{Title: "a", URL: "u1", Kind: track.KindWebVideo},
		{Title: "b", URL: "u2", Kind: track.KindWebVideo},
	}}
	r := newTestRegistry(favs)
	defer r.Shutdown()

	n, err := r.PlayFavorites(context.Background(), 1, 2, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Snapshot().QueueLength)
}

func TestPlayFavoritesSingle(t *testing.T) {
	favs := &stubFavorites{tracks: []track.Track{
		{Title: "a", URL: "u1", Kind: track.KindWebVideo},
		{Title: "b", URL: "u2", Kind: track.KindWebVideo},
	}}
	r := newTestRegistry(favs)
	defer r.Shutdown()

	n, err := r.PlayFavorites(context.Background(), 1, 2, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "b", s.Snapshot().Current.Title)
}

func TestPlayFavoritesEmptyList(t *testing.T) {
	r := newTestRegistry(&stubFavorites{})
	defer r.Shutdown()

	n, err := r.PlayFavorites(context.Background(), 1, 2, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = r.Get(1)
	assert.ErrorIs(t, err, ErrNoSession, "no session created for nothing")
}

func TestPlayFavoritesUnconfigured(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Shutdown()

	_, err := r.PlayFavorites(context.Background(), 1, 2, 3, 0)
	assert.Error(t, err)
}
