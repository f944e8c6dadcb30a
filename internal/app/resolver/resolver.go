// Package resolver turns raw play requests (URLs or free text) into queue
// tracks, and tracks into stream locators at the moment they play.
package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/app/mix"
	"github.com/mcarli/jambox/internal/domain/track"
)

// Failure classes. Providers map their transport errors onto these so the
// player can tell transient failures from permanent ones.
var (
	ErrNotFound    = errors.New("no result for reference")
	ErrRateLimited = errors.New("provider rate limited")
	ErrUnavailable = errors.New("source no longer serves this reference")
	ErrBadMetadata = errors.New("source returned unusable metadata")
)

// Source yields track metadata, playlists, mix batches and stream locators
// from the primary video site.
type Source interface {
	Video(ctx context.Context, url string) (*track.Track, error)
	Playlist(ctx context.Context, listID string) (SetInfo, []*track.Track, error)
	StreamLocator(ctx context.Context, url string) (string, error)
	MixBatch(ctx context.Context, seedID, mixID string) ([]track.MixEntry, error)
}

// Searcher finds the video URL best matching a free-text query.
// MusicSearchFirst prefers the music index; SearchFirst is the general one.
type Searcher interface {
	SearchFirst(ctx context.Context, query string) (string, error)
	MusicSearchFirst(ctx context.Context, query string) (string, error)
}

// Catalog serves metadata-only tracks from a streaming catalog. Catalog
// tracks carry no playable locator until they are substituted at play time.
type Catalog interface {
	Track(ctx context.Context, id string) (*track.Track, error)
	Set(ctx context.Context, id string, album bool) (SetInfo, []*track.Track, error)
}

// SetInfo describes a resolved multi-track container.
type SetInfo struct {
	Title     string
	URL       string
	Thumbnail string
}

// AddResult is what a resolved request contributes to the queue, plus the
// aggregates used for reporting.
type AddResult struct {
	Tracks           []*track.Track
	Set              *SetInfo // non-nil when the request was a multi-track container
	Added            int
	TotalDurationSec int
}

// Resolver classifies requests and routes them to the matching provider.
type Resolver struct {
	source     Source
	searcher   Searcher
	catalog    Catalog
	expander   *mix.Expander
	mirrorRoot string
}

// Option configures optional resolver behavior.
type Option func(*Resolver)

// WithCatalog enables streaming-catalog references.
func WithCatalog(c Catalog) Option {
	return func(r *Resolver) { r.catalog = c }
}

// WithMirrorRoot sets the privacy-mirror base URL used as the single
// fallback when the primary site stops serving a video.
func WithMirrorRoot(root string) Option {
	return func(r *Resolver) { r.mirrorRoot = root }
}

func New(source Source, searcher Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		source:     source,
		searcher:   searcher,
		expander:   mix.New(source),
		mirrorRoot: "https://yewtu.be/",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve turns one raw request into the tracks it contributes.
func (r *Resolver) Resolve(ctx context.Context, input string, requestedBy snowflake.ID) (*AddResult, error) {
	kind := Classify(input)
	zlog.Debug().Msgf("resolver: %q classified as %s", input, kind)

	var (
		res *AddResult
		err error
	)
	switch kind {
	case RefSearch:
		res, err = r.resolveSearch(ctx, input)
	case RefWebVideo:
		res, err = r.resolveVideo(ctx, input, track.KindWebVideo)
	case RefWebMix:
		res, err = r.resolveMix(ctx, input)
	case RefWebPlaylist:
		res, err = r.resolvePlaylist(ctx, input)
	case RefCatalogTrack:
		res, err = r.resolveCatalogTrack(ctx, input)
	case RefCatalogSet:
		res, err = r.resolveCatalogSet(ctx, input)
	case RefAudioHost:
		res, err = r.resolveVideo(ctx, input, track.KindAudioHost)
	case RefMirrorVideo:
		res, err = r.resolveVideo(ctx, input, track.KindWebVideo)
	case RefFile:
		res, err = r.resolveFile(input)
	default:
		return nil, errors.Newf("unhandled reference kind %s", kind)
	}
	if err != nil {
		return nil, err
	}
	for _, t := range res.Tracks {
		t.RequestedBy = requestedBy
		res.TotalDurationSec += t.DurationSec
	}
	res.Added = len(res.Tracks)
	return res, nil
}

// ResolveStream produces the playable locator for the track about to play,
// lazily substituting catalog tracks and advancing mixes in place.
func (r *Resolver) ResolveStream(ctx context.Context, t *track.Track) (string, error) {
	switch t.Kind {
	case track.KindFile:
		return t.URL, nil
	case track.KindCatalog:
		if err := r.substitute(ctx, t); err != nil {
			return "", err
		}
		return r.source.StreamLocator(ctx, t.URL)
	case track.KindWebMix:
		if _, err := r.expander.Next(ctx, t); err != nil {
			if errors.Is(err, mix.ErrExhausted) {
				return "", errors.Wrap(ErrUnavailable, "mix exhausted")
			}
			return "", err
		}
		return r.source.StreamLocator(ctx, t.URL)
	default:
		return r.source.StreamLocator(ctx, t.URL)
	}
}

// substitute swaps a catalog track's identity for its best video match,
// keeping the queue position. The music index is tried first; the general
// search covers queries the music index does not know.
func (r *Resolver) substitute(ctx context.Context, t *track.Track) error {
	url, err := r.searcher.MusicSearchFirst(ctx, t.Title)
	if err != nil {
		zlog.Debug().Msgf("resolver: music search failed for %q, using general search: %v", t.Title, err)
		url, err = r.searcher.SearchFirst(ctx, t.Title)
	}
	if err != nil {
		return errors.Wrapf(err, "substituting catalog track %q", t.Title)
	}
	t.URL = url
	t.Kind = track.KindWebVideo
	return nil
}

func (r *Resolver) resolveSearch(ctx context.Context, query string) (*AddResult, error) {
	url, err := r.searcher.SearchFirst(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "searching %q", query)
	}
	return r.resolveVideo(ctx, url, track.KindWebVideo)
}

// resolveVideo fetches single-video metadata. When the primary site has
// stopped serving the video, the mirror is tried exactly once.
func (r *Resolver) resolveVideo(ctx context.Context, url string, kind track.SourceKind) (*AddResult, error) {
	t, err := r.source.Video(ctx, url)
	if err != nil {
		if kind != track.KindWebVideo || !errors.Is(err, ErrUnavailable) || r.mirrorRoot == "" {
			return nil, err
		}
		mirror := r.mirrorRoot + "watch?v=" + VideoID(url)
		zlog.Info().Msgf("resolver: %s gone from primary site, trying mirror %s", url, mirror)
		t, err = r.source.Video(ctx, mirror)
		if err != nil {
			return nil, errors.Wrap(err, "mirror fallback")
		}
	}
	t.Kind = kind
	return &AddResult{Tracks: []*track.Track{t}}, nil
}

// resolveMix builds one self-extending mix track seeded by the referenced
// video. When the mix batch cannot be fetched, the track downgrades to the
// plain video so the request still plays something.
func (r *Resolver) resolveMix(ctx context.Context, url string) (*AddResult, error) {
	t, err := r.source.Video(ctx, url)
	if err != nil {
		return nil, err
	}
	seedID := VideoID(url)
	mixID := ListID(url)
	if mixID == "" {
		mixID = "RD" + seedID
	}
	batch, err := r.source.MixBatch(ctx, seedID, mixID)
	if err != nil {
		zlog.Warn().Msgf("resolver: mix batch failed for %s, downgrading to plain video: %v", url, err)
		t.Kind = track.KindWebVideo
		return &AddResult{Tracks: []*track.Track{t}}, nil
	}
	t.Kind = track.KindWebMix
	t.Mix = track.NewMixState(seedID, mixID, batch)
	return &AddResult{Tracks: []*track.Track{t}}, nil
}

func (r *Resolver) resolvePlaylist(ctx context.Context, url string) (*AddResult, error) {
	info, tracks, err := r.source.Playlist(ctx, ListID(url))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving playlist %s", url)
	}
	if info.URL == "" {
		info.URL = url
	}
	return &AddResult{Tracks: tracks, Set: &info}, nil
}

func (r *Resolver) resolveCatalogTrack(ctx context.Context, url string) (*AddResult, error) {
	if r.catalog == nil {
		return nil, errors.Wrap(ErrNotFound, "no catalog provider configured")
	}
	t, err := r.catalog.Track(ctx, catalogID(url))
	if err != nil {
		return nil, err
	}
	t.Kind = track.KindCatalog
	return &AddResult{Tracks: []*track.Track{t}}, nil
}

func (r *Resolver) resolveCatalogSet(ctx context.Context, url string) (*AddResult, error) {
	if r.catalog == nil {
		return nil, errors.Wrap(ErrNotFound, "no catalog provider configured")
	}
	info, tracks, err := r.catalog.Set(ctx, catalogID(url), containsAlbum(url))
	if err != nil {
		return nil, err
	}
	for _, t := range tracks {
		t.Kind = track.KindCatalog
	}
	if info.URL == "" {
		info.URL = url
	}
	return &AddResult{Tracks: tracks, Set: &info}, nil
}

func (r *Resolver) resolveFile(url string) (*AddResult, error) {
	t := &track.Track{
		Title:        fileTitle(url),
		URL:          url,
		Kind:         track.KindFile,
		DurationText: "unknown",
	}
	return &AddResult{Tracks: []*track.Track{t}}, nil
}
