// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
)

// SourceKind classifies where a track's audio comes from and how its
// stream locator is obtained.
type SourceKind int

const (
	KindWebVideo  SourceKind = iota // Direct video link, locator resolved at play time
	KindWebMix                      // Self-extending auto-generated mix seeded from one video
	KindAudioHost                   // Hosted-audio link (e.g. SoundCloud)
	KindFile                        // Raw audio file URL, played as-is
	KindCatalog                     // Catalog metadata only, no locator until played
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case KindWebVideo:
		return "web-video"
	case KindWebMix:
		return "web-video-mix"
	case KindAudioHost:
		return "audio-host"
	case KindFile:
		return "file"
	case KindCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// MixEntry is one upcoming entry in a mix's pending batch.
type MixEntry struct {
	ID           string
	Title        string
	Thumbnail    string
	DurationText string
}

// MixState holds the rolling window of a self-extending mix track.
// Pending is the ordered batch of upcoming entries; Played records every
// entry id already consumed so the mix never repeats itself.
type MixState struct {
	SeedID  string
	MixID   string // list identifier of the mix, e.g. "RD<video id>"
	Played  map[string]struct{}
	Pending []MixEntry
}

// NewMixState creates mix state seeded with an initial batch.
func NewMixState(seedID, mixID string, batch []MixEntry) *MixState {
	return &MixState{
		SeedID:  seedID,
		MixID:   mixID,
		Played:  make(map[string]struct{}),
		Pending: batch,
	}
}

// Track represents one playable queue entry.
// URL is empty for catalog tracks until they are lazily resolved at the
// moment they become current.
type Track struct {
	Title        string
	URL          string
	DurationSec  int
	DurationText string
	Kind         SourceKind
	RequestedBy  snowflake.ID
	Thumbnail    string
	Mix          *MixState
}

// Duration returns the scheduling duration.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationSec) * time.Second
}

// Resolved reports whether the track already carries a stream locator.
func (t *Track) Resolved() bool {
	return t.URL != ""
}

// SetDuration sets DurationSec and keeps DurationText consistent with it.
func (t *Track) SetDuration(seconds int) {
	t.DurationSec = seconds
	t.DurationText = FormatSeconds(seconds)
}

// Validate checks the cross-field invariants of a track.
func (t *Track) Validate() error {
	if t.Title == "" {
		return errors.New("track title is required")
	}
	if t.Kind == KindWebMix && t.Mix == nil {
		return errors.New("mix track requires mix state")
	}
	if t.DurationSec < 0 {
		return errors.New("track duration must not be negative")
	}
	return nil
}

// FormatSeconds renders a second count as a clock display string,
// "m:ss" under an hour and "h:mm:ss" above.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseClock parses a clock display string ("ss", "m:ss" or "h:mm:ss")
// back into seconds.
func ParseClock(display string) (int, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return 0, errors.New("empty clock string")
	}
	parts := strings.Split(display, ":")
	if len(parts) > 3 {
		return 0, errors.Newf("invalid clock string %q", display)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, errors.Newf("invalid clock string %q", display)
		}
		total = total*60 + n
	}
	return total, nil
}
