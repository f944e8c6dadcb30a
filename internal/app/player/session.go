package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/app/resolver"
	"github.com/mcarli/jambox/internal/domain/track"
)

// Errors
var (
	ErrNothingToPlay = errors.New("nothing to play")
	ErrNoTrack       = errors.New("no track playing")
	ErrNotPlaying    = errors.New("not playing")
	ErrNotPaused     = errors.New("not paused")
	ErrInvalidCount  = errors.New("count must be at least 1")
	ErrInvalidIndex  = errors.New("index out of range")
	ErrSessionClosed = errors.New("session is closed")
)

// Config holds session configuration.
type Config struct {
	MaxHistory     int           // Played tracks retained before eviction
	ResolveRetries int           // Extra attempts for rate-limited resolution
	RetryDelay     time.Duration // Base delay between resolution retries
	Volume         float64       // Initial volume
}

// Snapshot is the read-only view exposed after every state-affecting
// mutation. Current is a copy of the current track, nil when the remaining
// view is empty.
type Snapshot struct {
	Current           *track.Track
	QueueLength       int
	RemainingDuration time.Duration
	Loop              LoopMode
	State             State
	Paused            bool
	Generation        uint64
}

// Session owns one guild's queue, pointer, loop mode and output binding.
// All mutations and the advance transition run serialized on a single
// goroutine; while a resolution is in flight, later commands queue behind
// it. Asynchronous sink completions re-enter through the same command
// queue, tagged with the generation they were issued under so results that
// outlive a reset are discarded.
type Session struct {
	guildID snowflake.ID

	sink     Sink
	resolver StreamResolver
	cfg      Config

	cmds      chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Owned by the session goroutine.
	q         *queue
	loop      LoopMode
	volume    float64
	goNext    bool
	state     State
	conn      Connection
	channelID snowflake.ID
	rng       *rand.Rand

	// Generation guard. genCancel is callable from any goroutine so Reset
	// can abort an in-flight resolution before its command runs.
	gen       uint64
	genMu     sync.Mutex
	genCtx    context.Context
	genCancel context.CancelFunc
	id        string

	snapMu sync.RWMutex
	snap   Snapshot

	events chan Event
}

// NewSession creates and starts a session for one guild.
func NewSession(guildID snowflake.ID, sink Sink, res StreamResolver, cfg Config) *Session {
	if cfg.MaxHistory < 0 {
		cfg.MaxHistory = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 1.0
	}
	ctx, cancel := context.WithCancel(context.Background())
	genCtx, genCancel := context.WithCancel(ctx)
	s := &Session{
		guildID:   guildID,
		sink:      sink,
		resolver:  res,
		cfg:       cfg,
		cmds:      make(chan func()),
		ctx:       ctx,
		cancel:    cancel,
		q:         newQueue(cfg.MaxHistory),
		volume:    cfg.Volume,
		goNext:    true,
		state:     StateIdle,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		genCtx:    genCtx,
		genCancel: genCancel,
		id:        uuid.New().String(),
		events:    make(chan Event, 16),
	}
	s.refreshSnapshot()
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

// do executes fn on the session goroutine and waits for its result.
func (s *Session) do(fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case s.cmds <- func() { errCh <- fn() }:
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
	select {
	case err := <-errCh:
		return err
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() snowflake.ID { return s.guildID }

// ID returns the identity token of the current session incarnation.
// Reset issues a fresh one.
func (s *Session) ID() string {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.id
}

// Events returns the session event channel. Events are dropped rather than
// blocking the session when the consumer lags.
func (s *Session) Events() <-chan Event { return s.events }

// Snapshot returns the read-only state view. It never queues behind an
// in-flight resolution.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// Tracks returns value copies of the remaining queue view, current first.
func (s *Session) Tracks() []track.Track {
	var out []track.Track
	_ = s.do(func() error {
		out = s.q.snapshotTracks()
		return nil
	})
	return out
}

// Add appends tracks to the queue tail and returns the new queue length.
func (s *Session) Add(ts ...*track.Track) int {
	n := 0
	_ = s.do(func() error {
		n = s.q.push(ts...)
		s.refreshSnapshot()
		return nil
	})
	return n
}

// Play binds the output sink to the given channel if needed and starts the
// current track. It is a no-op while something is already playing.
func (s *Session) Play(ctx context.Context, channelID snowflake.ID) error {
	return s.do(func() error {
		s.channelID = channelID
		return s.requestPlay(ctx)
	})
}

// Skip jumps forward n tracks; n=1 skips only the current one.
func (s *Session) Skip(n int) error {
	return s.do(func() error {
		if n < 1 {
			return ErrInvalidCount
		}
		if s.q.current() == nil {
			return ErrNothingToPlay
		}
		s.q.skip(n)
		s.forceAdvance()
		return nil
	})
}

// Back rewinds n tracks. Under loop-all the rewind is served from the queue
// tail instead of history. The forced advance is suppressed so the pointer
// is not moved twice.
func (s *Session) Back(n int) error {
	return s.do(func() error {
		if n < 1 {
			return ErrInvalidCount
		}
		if s.loop == LoopAll {
			s.q.rotateTail(n)
		} else {
			s.q.back(n)
		}
		s.goNext = false
		s.forceAdvance()
		return nil
	})
}

// Remove drops howMany entries starting index positions after the current
// track. Index zero is the current track and behaves as Skip(howMany).
func (s *Session) Remove(index, howMany int) error {
	if index == 0 {
		return s.Skip(howMany)
	}
	return s.do(func() error {
		if index < 0 {
			return ErrInvalidIndex
		}
		if howMany < 1 {
			return ErrInvalidCount
		}
		if s.q.removeAfter(index, howMany) == 0 {
			return ErrInvalidIndex
		}
		s.refreshSnapshot()
		return nil
	})
}

// Shuffle randomly permutes the unplayed tracks after the current one.
func (s *Session) Shuffle() {
	_ = s.do(func() error {
		s.q.shuffle(s.rng)
		s.refreshSnapshot()
		return nil
	})
}

// CycleLoop advances the loop mode none -> one -> all -> none and returns
// the new mode.
func (s *Session) CycleLoop() LoopMode {
	var m LoopMode
	_ = s.do(func() error {
		s.loop = s.loop.Next()
		m = s.loop
		s.refreshSnapshot()
		return nil
	})
	return m
}

// SetVolume updates the session volume and applies it to the live stream.
func (s *Session) SetVolume(v float64) error {
	return s.do(func() error {
		if v < 0 {
			return errors.Newf("invalid volume %v", v)
		}
		s.volume = v
		if s.conn != nil {
			s.conn.SetVolume(v)
		}
		s.refreshSnapshot()
		return nil
	})
}

// Pause pauses the current playback.
func (s *Session) Pause() error {
	return s.do(func() error {
		if s.q.current() == nil {
			return ErrNoTrack
		}
		if s.state != StatePlaying {
			return ErrNotPlaying
		}
		if err := s.conn.Pause(); err != nil {
			return errors.Wrap(err, "pause")
		}
		s.setState(StatePaused)
		return nil
	})
}

// Resume resumes paused playback.
func (s *Session) Resume() error {
	return s.do(func() error {
		if s.state != StatePaused {
			return ErrNotPaused
		}
		if err := s.conn.Resume(); err != nil {
			return errors.Wrap(err, "resume")
		}
		s.setState(StatePlaying)
		return nil
	})
}

// Reset disconnects the output, clears the queue and issues a fresh
// generation. Safe to call in any state; an in-flight resolution is
// cancelled and its result discarded.
func (s *Session) Reset() error {
	s.genMu.Lock()
	s.genCancel()
	s.genMu.Unlock()
	return s.do(func() error {
		s.resetLocked()
		return nil
	})
}

// Close stops the session for good. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.do(func() error {
			s.disconnectLocked()
			return nil
		})
		s.cancel()
		s.wg.Wait()
		close(s.events)
	})
}

// Closed reports whether the session has been shut down.
func (s *Session) Closed() bool {
	return s.ctx.Err() != nil
}

func (s *Session) resetLocked() {
	s.disconnectLocked()
	s.q.clear()
	s.loop = LoopNone
	s.volume = s.cfg.Volume
	s.goNext = true
	s.setState(StateIdle)

	s.genMu.Lock()
	s.gen++
	s.genCtx, s.genCancel = context.WithCancel(s.ctx)
	s.id = uuid.New().String()
	s.genMu.Unlock()
	s.refreshSnapshot()
}

func (s *Session) disconnectLocked() {
	if s.conn != nil {
		s.conn.Stop()
		s.conn.Disconnect()
		s.conn = nil
	}
}

// requestPlay runs on the session goroutine.
func (s *Session) requestPlay(ctx context.Context) error {
	if s.state == StatePlaying || s.state == StateConnecting {
		s.refreshSnapshot()
		return nil
	}
	if s.state == StatePaused {
		return ErrNotPlaying
	}
	if s.q.current() == nil {
		s.toIdle()
		return ErrNothingToPlay
	}
	if s.conn == nil {
		s.setState(StateConnecting)
		conn, err := s.sink.Connect(ctx, s.guildID, s.channelID)
		if err != nil {
			s.setState(StateStalled)
			return errors.Wrap(err, "output binding failed")
		}
		s.conn = conn
	}
	s.playCurrent()
	if s.state == StateIdle {
		return ErrNothingToPlay
	}
	return nil
}

// playCurrent resolves and starts the track at the pointer, discarding
// unresolvable tracks and moving on until something plays or the queue is
// exhausted.
func (s *Session) playCurrent() {
	genCtx, gen := s.generation()
	for {
		if genCtx.Err() != nil {
			return // reset raced; the new generation owns the state
		}
		cur := s.q.current()
		if cur == nil {
			s.toIdle()
			return
		}
		locator, err := s.resolveWithRetry(genCtx, cur)
		if err != nil {
			if genCtx.Err() != nil {
				return
			}
			zlog.Warn().Msgf("player: discarding %q after resolution failure: %v", cur.Title, err)
			s.q.discardCurrent()
			s.emit(Event{Type: EventTrackDiscarded, Track: copyTrack(cur), State: s.state})
			continue
		}
		ch, err := s.conn.Play(genCtx, locator, s.volume)
		if err != nil {
			zlog.Warn().Msgf("player: stream start failed for %q: %v", cur.Title, err)
			s.q.discardCurrent()
			s.emit(Event{Type: EventTrackDiscarded, Track: copyTrack(cur), State: s.state})
			continue
		}
		s.setState(StatePlaying)
		s.emit(Event{Type: EventTrackStarted, Track: copyTrack(cur), State: s.state})
		s.refreshSnapshot()
		s.watch(gen, ch)
		return
	}
}

// resolveWithRetry retries rate-limited resolutions a bounded number of
// times; permanent failures surface immediately.
func (s *Session) resolveWithRetry(ctx context.Context, t *track.Track) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		locator, err := s.resolver.ResolveStream(ctx, t)
		if err == nil {
			return locator, nil
		}
		lastErr = err
		if !errors.Is(err, resolver.ErrRateLimited) || attempt >= s.cfg.ResolveRetries {
			break
		}
		select {
		case <-time.After(s.cfg.RetryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// watch forwards the sink's single completion signal back into the command
// queue, tagged with the generation of the attempt.
func (s *Session) watch(gen uint64, ch <-chan PlayResult) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case res := <-ch:
			select {
			case s.cmds <- func() { s.advance(gen, res) }:
			case <-s.ctx.Done():
			}
		case <-s.ctx.Done():
		}
	}()
}

// advance is the transition fired on track completion or fatal stream
// error. It applies the loop/skip policy, then starts the new current
// track or goes idle.
func (s *Session) advance(gen uint64, res PlayResult) {
	if genCtx, curGen := s.generation(); genCtx.Err() != nil || gen != curGen {
		return // stale: the session was reset after this attempt started
	}
	if res.Err != nil {
		zlog.Warn().Msgf("player: guild %s stream ended with error: %v", s.guildID, res.Err)
	}
	if res.Forbidden {
		// One-shot: do not advance past a blocked track this cycle.
		s.goNext = false
	}
	cur := s.q.current()
	if cur != nil && cur.Kind != track.KindWebMix && s.goNext {
		switch s.loop {
		case LoopAll:
			s.q.requeueCurrent()
		case LoopNone:
			s.q.advance()
		case LoopOne:
			// Replay the same track.
		}
	}
	s.goNext = true
	if cur != nil {
		s.emit(Event{Type: EventTrackEnded, Track: copyTrack(cur), State: s.state})
	}
	if s.conn == nil {
		// Nothing bound (synthesized advance while idle): pointer policy
		// applies but playback stays down until the next Play.
		s.toIdle()
		return
	}
	s.setState(StateConnecting)
	s.playCurrent()
}

// forceAdvance stops the live stream so the completion signal drives the
// normal advance path, or synthesizes the transition when nothing is
// playing.
func (s *Session) forceAdvance() {
	if s.conn != nil && (s.state == StatePlaying || s.state == StatePaused) {
		if s.state == StatePaused {
			_ = s.conn.Resume()
			s.state = StatePlaying
		}
		s.conn.Stop()
		return
	}
	s.advance(s.currentGen(), PlayResult{})
}

func (s *Session) toIdle() {
	s.setState(StateIdle)
	s.emit(Event{Type: EventQueueEmpty, State: s.state})
	s.refreshSnapshot()
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.emit(Event{Type: EventStateChanged, State: st})
	s.refreshSnapshot()
}

func (s *Session) generation() (context.Context, uint64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.genCtx, s.gen
}

func (s *Session) currentGen() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gen
}

// emit sends an event without blocking the session.
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}

func (s *Session) refreshSnapshot() {
	snap := Snapshot{
		Current:           copyTrack(s.q.current()),
		QueueLength:       s.q.remaining(),
		RemainingDuration: time.Duration(s.q.remainingSeconds()) * time.Second,
		Loop:              s.loop,
		State:             s.state,
		Paused:            s.state == StatePaused,
		Generation:        s.currentGen(),
	}
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}

func copyTrack(t *track.Track) *track.Track {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Mix = nil
	return &cp
}
