// Package main provides the jambox REPL entry point. It drives one local
// playback session through the timer-backed output sink, which makes the
// whole queue engine usable (and debuggable) without a chat frontend.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/app/player"
	"github.com/mcarli/jambox/internal/app/registry"
	"github.com/mcarli/jambox/internal/app/resolver"
	"github.com/mcarli/jambox/internal/domain/track"
	"github.com/mcarli/jambox/internal/infra/config"
	"github.com/mcarli/jambox/internal/infra/favorites"
	"github.com/mcarli/jambox/internal/infra/logger"
	"github.com/mcarli/jambox/internal/infra/source"
	"github.com/mcarli/jambox/internal/infra/timersink"
)

var (
	app        = kingpin.New("jamboxd", "jambox playback queue engine")
	configPath = app.Flag("config", "Path to config file").Default("config/jambox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	userID     = app.Flag("user", "Requesting user id").Default("1").Uint64()
)

// The REPL drives a single local guild.
const (
	localGuild   = snowflake.ID(1)
	localChannel = snowflake.ID(1)
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	level := cfg.Log.Level
	if *verbose {
		level = "debug"
	}
	logger.Init(level, cfg.Log.Pretty)

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("jamboxd error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := source.NewResolverFromConfig(ctx, cfg)
	if err != nil {
		return err
	}

	var favs *favorites.Store
	if !cfg.Favorites.Disabled {
		favs, err = favorites.Open(cfg.Favorites.Path)
		if err != nil {
			return err
		}
		defer favs.Close()
	}

	sink := timersink.New(time.Duration(cfg.Player.TimerTrackSec) * time.Second)
	playerCfg := player.Config{
		MaxHistory:     cfg.Player.MaxHistory,
		ResolveRetries: cfg.Player.ResolveRetries,
		RetryDelay:     cfg.Player.RetryDelay(),
		Volume:         cfg.Player.Volume,
	}

	var favsDep registry.Favorites
	if favs != nil {
		favsDep = favs
	}
	reg := registry.New(sink, res, playerCfg, favsDep)
	defer reg.Shutdown()

	session := reg.GetOrCreate(localGuild)
	go printEvents(session)

	zlog.Info().Msg("jamboxd ready, type 'help' for commands")
	r := &repl{reg: reg, res: res, favs: favs, userID: snowflake.ID(*userID)}
	return r.loop(ctx)
}

// printEvents mirrors session events onto the log.
func printEvents(s *player.Session) {
	for e := range s.Events() {
		switch e.Type {
		case player.EventTrackStarted:
			zlog.Info().Msgf("now playing: %s [%s]", e.Track.Title, e.Track.DurationText)
		case player.EventTrackDiscarded:
			zlog.Warn().Msgf("dropped unplayable track: %s", e.Track.Title)
		case player.EventQueueEmpty:
			zlog.Info().Msg("queue finished")
		}
	}
}

type repl struct {
	reg    *registry.Registry
	res    *resolver.Resolver
	favs   *favorites.Store
	userID snowflake.ID
}

func (r *repl) loop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.dispatch(ctx, strings.TrimSpace(line))
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *repl) dispatch(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	s := r.reg.GetOrCreate(localGuild)

	switch cmd {
	case "help":
		printHelp()

	case "add", "p", "play":
		if rest == "" {
			return false, s.Play(ctx, localChannel)
		}
		added, err := r.res.Resolve(ctx, rest, r.userID)
		if err != nil {
			return false, err
		}
		s.Add(added.Tracks...)
		if added.Set != nil {
			fmt.Printf("queued %d tracks from %s [%s]\n",
				added.Added, added.Set.Title, track.FormatSeconds(added.TotalDurationSec))
		} else if added.Added == 1 {
			fmt.Printf("queued %s [%s]\n", added.Tracks[0].Title, added.Tracks[0].DurationText)
		}
		if err := s.Play(ctx, localChannel); err != nil && !errors.Is(err, player.ErrNothingToPlay) {
			return false, err
		}

	case "skip", "s":
		return false, s.Skip(parseCount(rest))

	case "back", "b":
		return false, s.Back(parseCount(rest))

	case "remove", "rm":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return false, player.ErrInvalidIndex
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return false, err
		}
		howMany := 1
		if len(fields) > 1 {
			if howMany, err = strconv.Atoi(fields[1]); err != nil {
				return false, err
			}
		}
		return false, s.Remove(index, howMany)

	case "shuffle":
		s.Shuffle()

	case "loop", "l":
		fmt.Printf("loop: %s\n", s.CycleLoop())

	case "vol", "v":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return false, err
		}
		return false, s.SetVolume(v)

	case "pause":
		return false, s.Pause()

	case "resume":
		return false, s.Resume()

	case "queue", "q":
		printQueue(s)

	case "fav":
		return false, r.favCommand(ctx, rest)

	case "stop", "reset":
		return false, s.Reset()

	case "quit", "exit":
		return true, nil

	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
	return false, nil
}

// favCommand handles "fav" (play all), "fav <n>" (play one),
// "fav add" (save current) and "fav rm <n>".
func (r *repl) favCommand(ctx context.Context, rest string) error {
	if r.favs == nil {
		return errors.New("favorites are disabled")
	}
	fields := strings.Fields(rest)
	switch {
	case len(fields) == 0:
		n, err := r.reg.PlayFavorites(ctx, localGuild, localChannel, r.userID, 0)
		if err != nil {
			return err
		}
		fmt.Printf("queued %d favorites\n", n)

	case fields[0] == "add":
		cur := r.reg.GetOrCreate(localGuild).Snapshot().Current
		if cur == nil {
			return player.ErrNoTrack
		}
		pos, err := r.favs.Add(ctx, r.userID, *cur)
		if err != nil {
			return err
		}
		fmt.Printf("saved %s as favorite #%d\n", cur.Title, pos)

	case fields[0] == "rm" && len(fields) > 1:
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		return r.favs.Remove(ctx, r.userID, pos)

	default:
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			return err
		}
		if _, err := r.reg.PlayFavorites(ctx, localGuild, localChannel, r.userID, pos); err != nil {
			return err
		}
	}
	return nil
}

func printQueue(s *player.Session) {
	snap := s.Snapshot()
	tracks := s.Tracks()
	if len(tracks) == 0 {
		fmt.Println("queue is empty")
		return
	}
	for i, t := range tracks {
		marker := "  "
		if i == 0 {
			marker = "> "
		}
		fmt.Printf("%s%2d. %s [%s]\n", marker, i+1, t.Title, t.DurationText)
	}
	fmt.Printf("%d tracks, %s remaining, loop=%s, state=%s\n",
		snap.QueueLength,
		track.FormatSeconds(int(snap.RemainingDuration.Seconds())),
		snap.Loop, snap.State)
}

func parseCount(rest string) int {
	if rest == "" {
		return 1
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func printHelp() {
	fmt.Print(`commands:
  add <url|query>   resolve and queue (aliases: p, play)
  play              start playback of the queued tracks
  skip [n]          skip the current track (or n tracks)
  back [n]          go back one track (or n tracks)
  remove <i> [n]    remove n tracks starting at queue index i
  shuffle           shuffle the unplayed tracks
  loop              cycle loop mode (none / one / all)
  vol <v>           set volume (0..2)
  pause / resume    pause or resume playback
  queue             show the queue
  fav [n|add|rm n]  play favorites, save current, or remove one
  stop              reset the session
  quit              exit
`)
}
