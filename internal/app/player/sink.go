package player

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/mcarli/jambox/internal/domain/track"
)

// PlayResult is the single completion signal emitted for one playback
// attempt. Forbidden marks a blocked-stream transport error; the session
// must not auto-advance past the current track for that cycle.
type PlayResult struct {
	Err       error
	Forbidden bool
}

// Connection is an active output binding for one guild.
type Connection interface {
	// Play starts the given stream and returns a channel that delivers
	// exactly one PlayResult when the attempt finishes or fails.
	Play(ctx context.Context, locator string, volume float64) (<-chan PlayResult, error)
	// Stop aborts the in-flight attempt; its PlayResult is still delivered.
	Stop()
	Pause() error
	Resume() error
	SetVolume(volume float64)
	Disconnect()
}

// Sink binds to a voice channel and plays resolved streams.
type Sink interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error)
}

// StreamResolver produces a playable locator for the current track.
// For catalog and mix tracks it substitutes metadata in place before
// returning the locator, preserving the track's queue slot.
type StreamResolver interface {
	ResolveStream(ctx context.Context, t *track.Track) (string, error)
}
