// Package mix maintains the rolling entry buffer behind auto-generated
// radio mixes. A mix track keeps a short window of upcoming entries and
// refetches a new batch, seeded by the last known entry, whenever the
// window runs low.
package mix

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/mcarli/jambox/internal/domain/track"
)

// ErrExhausted means the provider stopped yielding entries that have not
// been played already.
var ErrExhausted = errors.New("mix has no further entries")

// maxRefetches bounds how many batches a single Next call may request while
// filtering out already-played entries.
const maxRefetches = 3

// BatchFetcher loads the next batch of mix entries. seedID is the video the
// batch continues from and mixID identifies the mix itself.
type BatchFetcher interface {
	MixBatch(ctx context.Context, seedID, mixID string) ([]track.MixEntry, error)
}

// Expander advances mix tracks in place.
type Expander struct {
	fetcher BatchFetcher
}

func New(fetcher BatchFetcher) *Expander {
	return &Expander{fetcher: fetcher}
}

// Next pops the next unplayed entry of t's mix and overwrites the track's
// display fields with it, leaving the queue position untouched. The popped
// entry's ID is recorded so later batches can be deduplicated.
func (e *Expander) Next(ctx context.Context, t *track.Track) (track.MixEntry, error) {
	st := t.Mix
	if st == nil {
		return track.MixEntry{}, errors.New("track carries no mix state")
	}
	for fetches := 0; ; {
		if len(st.Pending) <= 1 {
			if fetches >= maxRefetches {
				return track.MixEntry{}, ErrExhausted
			}
			fetches++
			if err := e.refill(ctx, st); err != nil {
				return track.MixEntry{}, err
			}
		}
		if len(st.Pending) == 0 {
			continue
		}
		entry := st.Pending[0]
		st.Pending = st.Pending[1:]
		if _, seen := st.Played[entry.ID]; seen {
			continue
		}
		st.Played[entry.ID] = struct{}{}
		apply(t, entry)
		return entry, nil
	}
}

// refill fetches a batch seeded by the newest known entry, falling back to
// the original seed when the window is empty.
func (e *Expander) refill(ctx context.Context, st *track.MixState) error {
	seed := st.SeedID
	if n := len(st.Pending); n > 0 {
		seed = st.Pending[n-1].ID
	}
	batch, err := e.fetcher.MixBatch(ctx, seed, st.MixID)
	if err != nil {
		return errors.Wrap(err, "mix batch fetch")
	}
	if len(batch) == 0 {
		return ErrExhausted
	}
	zlog.Debug().Msgf("mix: fetched %d entries seeded by %s", len(batch), seed)
	// The provider echoes the seed as the first entry of its continuation.
	if batch[0].ID == seed {
		batch = batch[1:]
	}
	st.Pending = append(st.Pending, batch...)
	return nil
}

func apply(t *track.Track, entry track.MixEntry) {
	t.Title = entry.Title
	t.Thumbnail = entry.Thumbnail
	if sec, err := track.ParseClock(entry.DurationText); err == nil {
		t.SetDuration(sec)
	} else {
		t.DurationSec = 0
		t.DurationText = entry.DurationText
	}
	t.URL = "https://www.youtube.com/watch?v=" + entry.ID + "&list=" + t.Mix.MixID
}
