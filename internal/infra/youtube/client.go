// Package youtube resolves video metadata, playlists, mixes and stream
// locators through yt-dlp, with lightweight search going through the site's
// public search endpoints.
package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/lrstanley/go-ytdlp"
	"github.com/mitchellh/mapstructure"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcarli/jambox/internal/app/resolver"
	"github.com/mcarli/jambox/internal/domain/track"
)

type Config struct {
	MaxPlaylistItems int     `yaml:"max_playlist_items" mapstructure:"max_playlist_items" default:"50" validate:"min=1,max=500"`
	MixBatchSize     int     `yaml:"mix_batch_size" mapstructure:"mix_batch_size" default:"25" validate:"min=1,max=100"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second" default:"4" validate:"gt=0"`
	Proxy            string  `yaml:"proxy" mapstructure:"proxy"`
	StreamFormat     string  `yaml:"stream_format" mapstructure:"stream_format" default:"bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best"`
}

// Client implements metadata resolution and search against the video site.
// All yt-dlp invocations share one rate limiter.
type Client struct {
	config  *Config
	limiter *rate.Limiter
}

// New creates a client from raw provider settings.
func New(settings map[string]any) (*Client, error) {
	var config Config
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("youtube client config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &Client{
		config:  &config,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), 1),
	}, nil
}

func (c *Client) newCommand() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if c.config.Proxy != "" {
		cmd.Proxy(c.config.Proxy)
	}
	return cmd
}

func baseArgs() []string {
	return []string{
		"--no-check-certificates",
		"--socket-timeout", "30",
		"--retries", "3",
	}
}

// Video fetches single-video metadata without downloading anything.
func (c *Client) Video(ctx context.Context, url string) (*track.Track, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	args := append(baseArgs(), "--no-playlist", "--skip-download", url)
	res, err := c.newCommand().
		Print("%(title)s\t%(duration)s\t%(thumbnail)s").
		Run(ctx, args...)
	if err != nil {
		return nil, classifyErr(err, res)
	}
	fields := strings.Split(firstLine(res.Stdout), "\t")
	if len(fields) < 3 || fields[0] == "" || fields[0] == "NA" {
		return nil, errors.Wrapf(resolver.ErrBadMetadata, "unparsable metadata for %s", url)
	}
	t := &track.Track{
		Title:     fields[0],
		URL:       url,
		Kind:      track.KindWebVideo,
		Thumbnail: fields[2],
	}
	t.SetDuration(parseSeconds(fields[1]))
	return t, nil
}

// Playlist fetches a playlist's entries via a flat extraction, capped at
// max_playlist_items. Entries without a usable duration are skipped.
func (c *Client) Playlist(ctx context.Context, listID string) (resolver.SetInfo, []*track.Track, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return resolver.SetInfo{}, nil, err
	}
	url := "https://www.youtube.com/playlist?list=" + listID
	args := append(baseArgs(), url)
	res, err := c.newCommand().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(duration)s\t%(playlist_title)s\t%(thumbnail)s").
		PlaylistItems(fmt.Sprintf("1-%d", c.config.MaxPlaylistItems)).
		Run(ctx, args...)
	if err != nil {
		return resolver.SetInfo{}, nil, classifyErr(err, res)
	}

	info := resolver.SetInfo{URL: url}
	var tracks []*track.Track
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 5 || fields[1] == "" || fields[1] == "NA" {
			continue
		}
		secs := parseSeconds(fields[2])
		if secs == 0 {
			continue // unplayable or still-processing entry
		}
		if info.Title == "" && fields[3] != "NA" {
			info.Title = fields[3]
		}
		if info.Thumbnail == "" && fields[4] != "NA" {
			info.Thumbnail = fields[4]
		}
		t := &track.Track{
			Title:     fields[1],
			URL:       fields[0],
			Kind:      track.KindWebVideo,
			Thumbnail: fields[4],
		}
		t.SetDuration(secs)
		tracks = append(tracks, t)
	}
	if len(tracks) == 0 {
		return resolver.SetInfo{}, nil, errors.Wrapf(resolver.ErrNotFound, "playlist %s has no playable entries", listID)
	}
	return info, tracks, nil
}

// StreamLocator resolves the direct audio URL for the given page.
func (c *Client) StreamLocator(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	args := append(baseArgs(),
		"--no-playlist",
		"-f", c.config.StreamFormat,
		"--skip-download",
		url,
	)
	res, err := c.newCommand().
		Print("%(url)s").
		Run(ctx, args...)
	if err != nil {
		return "", classifyErr(err, res)
	}
	locator := firstLine(res.Stdout)
	if locator == "" || locator == "NA" {
		return "", errors.Wrapf(resolver.ErrUnavailable, "no audio stream for %s", url)
	}
	return locator, nil
}

// MixBatch fetches the next window of a mix continuation seeded by the
// given video.
func (c *Client) MixBatch(ctx context.Context, seedID, mixID string) ([]track.MixEntry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := "https://www.youtube.com/watch?v=" + seedID + "&list=" + mixID
	args := append(baseArgs(), url)
	res, err := c.newCommand().
		FlatPlaylist().
		Print("%(id)s\t%(title)s\t%(thumbnail)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", c.config.MixBatchSize)).
		Run(ctx, args...)
	if err != nil {
		return nil, classifyErr(err, res)
	}
	var batch []track.MixEntry
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 4 || fields[0] == "" || fields[0] == "NA" {
			continue
		}
		batch = append(batch, track.MixEntry{
			ID:           fields[0],
			Title:        fields[1],
			Thumbnail:    fields[2],
			DurationText: track.FormatSeconds(parseSeconds(fields[3])),
		})
	}
	if len(batch) == 0 {
		return nil, errors.Wrapf(resolver.ErrNotFound, "mix %s yielded no entries", mixID)
	}
	return batch, nil
}

// SearchFirst returns the watch URL of the first general search result.
func (c *Client) SearchFirst(ctx context.Context, query string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	r, err := ytsearch.NewClient(nil).Search(ctx, query)
	if err != nil {
		return "", classifyErr(err, nil)
	}
	for _, v := range r.Results {
		if v.VideoID != "" {
			return "https://www.youtube.com/watch?v=" + v.VideoID, nil
		}
	}
	return "", errors.Wrapf(resolver.ErrNotFound, "no search result for %q", query)
}

// MusicSearchFirst returns the watch URL of the first music-index result.
// The music index gives better matches for "artist - title" shaped queries.
func (c *Client) MusicSearchFirst(_ context.Context, query string) (string, error) {
	r, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return "", classifyErr(err, nil)
	}
	for _, v := range r.Tracks {
		if v.VideoID != "" {
			return "https://www.youtube.com/watch?v=" + v.VideoID, nil
		}
	}
	return "", errors.Wrapf(resolver.ErrNotFound, "no music result for %q", query)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// parseSeconds parses yt-dlp's duration output, which may be a plain or
// fractional second count.
func parseSeconds(s string) int {
	d, err := time.ParseDuration(strings.TrimSpace(s) + "s")
	if err != nil {
		return 0
	}
	return int(d.Seconds())
}

// classifyErr maps extraction failures onto the resolver failure classes.
func classifyErr(err error, res *ytdlp.Result) error {
	msg := strings.ToLower(err.Error())
	if res != nil && res.Stderr != "" {
		msg += " " + strings.ToLower(res.Stderr)
	}
	switch {
	case strings.Contains(msg, "http error 410") ||
		strings.Contains(msg, "video unavailable") ||
		strings.Contains(msg, "no longer available") ||
		strings.Contains(msg, "private video"):
		return errors.Wrap(resolver.ErrUnavailable, err.Error())
	case strings.Contains(msg, "http error 429") ||
		strings.Contains(msg, "rate-limited") ||
		strings.Contains(msg, "too many requests"):
		return errors.Wrap(resolver.ErrRateLimited, err.Error())
	case strings.Contains(msg, "http error 404") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not found"):
		return errors.Wrap(resolver.ErrNotFound, err.Error())
	default:
		return err
	}
}
