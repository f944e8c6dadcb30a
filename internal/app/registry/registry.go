// Package registry maps guilds to their playback sessions.
package registry

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/app/player"
	"github.com/mcarli/jambox/internal/domain/track"
)

// ErrNoSession means the guild has no live session.
var ErrNoSession = errors.New("no session for guild")

// Favorites lists a user's saved tracks for favorites playback.
type Favorites interface {
	List(ctx context.Context, userID snowflake.ID) ([]track.Track, error)
	Get(ctx context.Context, userID snowflake.ID, position int) (track.Track, error)
}

// Registry owns one session per guild. Sessions are created on first use
// and replaced transparently once closed.
type Registry struct {
	sink      player.Sink
	resolver  player.StreamResolver
	cfg       player.Config
	favorites Favorites

	mu       sync.Mutex
	sessions map[snowflake.ID]*player.Session
}

func New(sink player.Sink, res player.StreamResolver, cfg player.Config, favorites Favorites) *Registry {
	return &Registry{
		sink:      sink,
		resolver:  res,
		cfg:       cfg,
		favorites: favorites,
		sessions:  make(map[snowflake.ID]*player.Session),
	}
}

// GetOrCreate returns the guild's session, creating one when none exists
// or the previous one was closed.
func (r *Registry) GetOrCreate(guildID snowflake.ID) *player.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok && !s.Closed() {
		return s
	}
	s := player.NewSession(guildID, r.sink, r.resolver, r.cfg)
	r.sessions[guildID] = s
	zlog.Info().Msgf("registry: created session for guild %s", guildID)
	return s
}

// Get returns the guild's live session.
func (r *Registry) Get(guildID snowflake.ID) (*player.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	if !ok || s.Closed() {
		return nil, errors.Wrapf(ErrNoSession, "guild %s", guildID)
	}
	return s, nil
}

// Destroy closes and removes the guild's session.
func (r *Registry) Destroy(guildID snowflake.ID) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()
	if ok && !s.Closed() {
		s.Close()
		zlog.Info().Msgf("registry: destroyed session for guild %s", guildID)
	}
}

// Shutdown closes every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*player.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[snowflake.ID]*player.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		if !s.Closed() {
			s.Close()
		}
	}
	zlog.Info().Msgf("registry: shut down %d sessions", len(sessions))
}

// PlayFavorites queues a user's saved tracks on the guild's session,
// either the whole list or the single entry at the 1-based position, and
// starts playback on the given channel. Returns how many tracks were
// queued.
func (r *Registry) PlayFavorites(ctx context.Context, guildID, channelID, userID snowflake.ID, position int) (int, error) {
	if r.favorites == nil {
		return 0, errors.New("favorites are not configured")
	}

	var queued []*track.Track
	if position > 0 {
		t, err := r.favorites.Get(ctx, userID, position)
		if err != nil {
			return 0, err
		}
		queued = []*track.Track{&t}
	} else {
		list, err := r.favorites.List(ctx, userID)
		if err != nil {
			return 0, err
		}
		if len(list) == 0 {
			return 0, nil
		}
		queued = make([]*track.Track, len(list))
		for i := range list {
			queued[i] = &list[i]
		}
	}

	s := r.GetOrCreate(guildID)
	s.Add(queued...)
	if err := s.Play(ctx, channelID); err != nil && !errors.Is(err, player.ErrNothingToPlay) {
		return len(queued), err
	}
	return len(queued), nil
}
