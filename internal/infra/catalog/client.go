// Package catalog provides a read-only client for the streaming-catalog
// API. Catalog references contribute metadata-only tracks that are
// substituted with playable videos at the moment they become current.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mcarli/jambox/internal/app/resolver"
	"github.com/mcarli/jambox/internal/domain/track"
)

type Config struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret" validate:"required"`
	Market       string `yaml:"market" mapstructure:"market" default:"US"`
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries" default:"3" validate:"min=1,max=10"`
}

// Client is the catalog API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// New creates a catalog client from raw provider settings, using the
// client-credentials flow. Only public catalog metadata is read, so no user
// grant is involved.
func New(ctx context.Context, settings map[string]any) (*Client, error) {
	var config Config
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	creds := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := creds.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "catalog token exchange failed")
	}
	httpClient := spotifyauth.New().Client(ctx, token)
	zlog.Debug().Msgf("catalog client ready, market=%s", config.Market)

	return &Client{
		client:     spotify.New(httpClient),
		market:     config.Market,
		maxRetries: config.MaxRetries,
		retryDelay: time.Second,
	}, nil
}

// Track retrieves one catalog track by id as a metadata-only queue entry.
func (c *Client) Track(ctx context.Context, id string) (*track.Track, error) {
	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, classifyErr(errors.Wrap(err, "failed to get catalog track"))
	}
	return c.convertFull(result), nil
}

// Set retrieves every track of a playlist or album, paging through the
// whole container.
func (c *Client) Set(ctx context.Context, id string, album bool) (resolver.SetInfo, []*track.Track, error) {
	if album {
		return c.albumSet(ctx, id)
	}
	return c.playlistSet(ctx, id)
}

func (c *Client) playlistSet(ctx context.Context, id string) (resolver.SetInfo, []*track.Track, error) {
	var meta *spotify.FullPlaylist
	err := c.retry(func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("name,images,external_urls"))
		if err != nil {
			return err
		}
		meta = p
		return nil
	})
	if err != nil {
		return resolver.SetInfo{}, nil, classifyErr(errors.Wrap(err, "failed to get playlist"))
	}

	info := resolver.SetInfo{
		Title: meta.Name,
		URL:   fmt.Sprintf("https://open.spotify.com/playlist/%s", id),
	}
	if len(meta.Images) > 0 {
		info.Thumbnail = meta.Images[0].URL
	}

	var tracks []*track.Track
	offset := 0
	const limit = 100
	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return resolver.SetInfo{}, nil, classifyErr(errors.Wrap(err, "failed to get playlist items"))
		}
		for _, item := range page.Items {
			// Episodes have no track payload and are skipped.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, c.convertFull(item.Track.Track))
			}
		}
		if len(page.Items) < limit {
			break
		}
		offset += limit
	}
	if len(tracks) == 0 {
		return resolver.SetInfo{}, nil, errors.Wrapf(resolver.ErrNotFound, "playlist %s has no tracks", id)
	}
	return info, tracks, nil
}

func (c *Client) albumSet(ctx context.Context, id string) (resolver.SetInfo, []*track.Track, error) {
	var meta *spotify.FullAlbum
	err := c.retry(func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		meta = a
		return nil
	})
	if err != nil {
		return resolver.SetInfo{}, nil, classifyErr(errors.Wrap(err, "failed to get album"))
	}

	info := resolver.SetInfo{
		Title: meta.Name,
		URL:   fmt.Sprintf("https://open.spotify.com/album/%s", id),
	}
	if len(meta.Images) > 0 {
		info.Thumbnail = meta.Images[0].URL
	}

	var tracks []*track.Track
	offset := 0
	const limit = 50
	for {
		var page *spotify.SimpleTrackPage
		err := c.retry(func() error {
			p, err := c.client.GetAlbumTracks(ctx, spotify.ID(id),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return resolver.SetInfo{}, nil, classifyErr(errors.Wrap(err, "failed to get album tracks"))
		}
		for i := range page.Tracks {
			tracks = append(tracks, c.convertSimple(&page.Tracks[i], info.Thumbnail))
		}
		if len(page.Tracks) < limit {
			break
		}
		offset += limit
	}
	if len(tracks) == 0 {
		return resolver.SetInfo{}, nil, errors.Wrapf(resolver.ErrNotFound, "album %s has no tracks", id)
	}
	return info, tracks, nil
}

// convertFull maps a catalog track onto the domain entity. The display
// title carries the artists so the play-time substitution search has
// something to match on.
func (c *Client) convertFull(t *spotify.FullTrack) *track.Track {
	out := &track.Track{
		Title:     displayTitle(artistNames(t.Artists), t.Name),
		URL:       fmt.Sprintf("https://open.spotify.com/track/%s", t.ID),
		Kind:      track.KindCatalog,
		Thumbnail: albumArt(t.Album),
	}
	out.SetDuration(int(t.Duration) / 1000)
	return out
}

func (c *Client) convertSimple(t *spotify.SimpleTrack, thumbnail string) *track.Track {
	out := &track.Track{
		Title:     displayTitle(artistNames(t.Artists), t.Name),
		URL:       fmt.Sprintf("https://open.spotify.com/track/%s", t.ID),
		Kind:      track.KindCatalog,
		Thumbnail: thumbnail,
	}
	out.SetDuration(int(t.Duration) / 1000)
	return out
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}

func displayTitle(artists []string, name string) string {
	if len(artists) == 0 {
		return name
	}
	return strings.Join(artists, ", ") + " - " + name
}

func albumArt(album spotify.SimpleAlbum) string {
	if len(album.Images) > 0 {
		return album.Images[0].URL
	}
	return ""
}

// retry retries an operation with linear backoff. Permanent failures
// surface immediately.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// classifyErr maps catalog failures onto the resolver failure classes.
func classifyErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return errors.Mark(err, resolver.ErrRateLimited)
	case strings.Contains(msg, "404") || strings.Contains(msg, "non existing id") ||
		strings.Contains(msg, "not found"):
		return errors.Mark(err, resolver.ErrNotFound)
	default:
		return err
	}
}
