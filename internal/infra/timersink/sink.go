// Package timersink is an output sink that simulates playback on wall
// clock time. Every track "plays" for a fixed configurable duration and
// then completes, which is enough to drive the whole queue machinery
// without a real voice transport. It backs the REPL frontend and tests.
package timersink

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/app/player"
)

// Sink creates timer-backed connections.
type Sink struct {
	trackDuration time.Duration
}

// New creates a sink whose tracks complete after d of simulated playback.
func New(d time.Duration) *Sink {
	if d <= 0 {
		d = time.Second
	}
	return &Sink{trackDuration: d}
}

// Connect binds a new simulated connection.
func (s *Sink) Connect(_ context.Context, guildID, channelID snowflake.ID) (player.Connection, error) {
	zlog.Debug().Msgf("timersink: bound guild %s to channel %s", guildID, channelID)
	return &Connection{trackDuration: s.trackDuration}, nil
}

// Connection simulates one bound output stream.
type Connection struct {
	trackDuration time.Duration

	mu          sync.Mutex
	results     chan player.PlayResult
	timerCancel func()
	startedAt   time.Time
	remaining   time.Duration
	paused      bool
	volume      float64
	closed      bool
}

// Play starts the simulated stream and returns its completion channel.
func (c *Connection) Play(_ context.Context, locator string, volume float64) (<-chan player.PlayResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("connection is closed")
	}
	c.cancelTimerLocked()

	zlog.Debug().Msgf("timersink: playing %s for %s", locator, c.trackDuration)
	results := make(chan player.PlayResult, 1)
	c.results = results
	c.volume = volume
	c.paused = false
	c.remaining = c.trackDuration
	c.startedAt = time.Now()
	c.timerCancel = c.startTimer(c.trackDuration, func() {
		c.deliver(results, player.PlayResult{})
	})
	return results, nil
}

// Stop ends the current stream immediately. The completion signal is
// delivered as if the track finished.
func (c *Connection) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	if c.results != nil {
		c.deliver(c.results, player.PlayResult{})
	}
}

// Pause freezes the simulated clock.
func (c *Connection) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.results == nil {
		return errors.New("nothing to pause")
	}
	c.cancelTimerLocked()
	elapsed := time.Since(c.startedAt)
	if elapsed < c.remaining {
		c.remaining -= elapsed
	} else {
		c.remaining = 0
	}
	c.paused = true
	return nil
}

// Resume continues from where Pause left off.
func (c *Connection) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return errors.New("not paused")
	}
	c.paused = false
	c.startedAt = time.Now()
	results := c.results
	c.timerCancel = c.startTimer(c.remaining, func() {
		c.deliver(results, player.PlayResult{})
	})
	return nil
}

// SetVolume records the volume. Simulated audio has nothing to attenuate.
func (c *Connection) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
}

// Disconnect tears the connection down.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.closed = true
}

func (c *Connection) cancelTimerLocked() {
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
}

// deliver sends the completion signal at most once per stream.
func (c *Connection) deliver(ch chan player.PlayResult, res player.PlayResult) {
	select {
	case ch <- res:
	default:
	}
}

// startTimer fires callback after the duration elapses on the wall clock.
// A coarse ticker is polled instead of a monotonic timer so a suspended
// host does not stretch simulated playback.
func (c *Connection) startTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	endTime := time.Now().Round(0).Add(duration)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if time.Now().Round(0).After(endTime) {
					callback()
					return
				}
			}
		}
	}()
	return cancel
}
