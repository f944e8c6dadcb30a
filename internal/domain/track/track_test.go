package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{215, "3:35"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSeconds(tt.seconds))
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		display string
		want    int
		wantErr bool
	}{
		{"0:00", 0, false},
		{"3:35", 215, false},
		{"1:02:05", 3725, false},
		{"45", 45, false},
		{" 3:35 ", 215, false},
		{"", 0, true},
		{"a:bc", 0, true},
		{"1:2:3:4", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.display)
		if tt.wantErr {
			assert.Error(t, err, tt.display)
			continue
		}
		require.NoError(t, err, tt.display)
		assert.Equal(t, tt.want, got, tt.display)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, seconds := range []int{0, 59, 60, 215, 3600, 7325} {
		got, err := ParseClock(FormatSeconds(seconds))
		require.NoError(t, err)
		assert.Equal(t, seconds, got)
	}
}

func TestSetDuration(t *testing.T) {
	var tr Track
	tr.SetDuration(215)
	assert.Equal(t, 215, tr.DurationSec)
	assert.Equal(t, "3:35", tr.DurationText)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		track   Track
		wantErr bool
	}{
		{
			name:  "valid video track",
			track: Track{Title: "a", URL: "https://x", Kind: KindWebVideo},
		},
		{
			name:    "missing title",
			track:   Track{URL: "https://x"},
			wantErr: true,
		},
		{
			name:    "mix without state",
			track:   Track{Title: "a", Kind: KindWebMix},
			wantErr: true,
		},
		{
			name:  "mix with state",
			track: Track{Title: "a", Kind: KindWebMix, Mix: NewMixState("s", "RDs", nil)},
		},
		{
			name:    "negative duration",
			track:   Track{Title: "a", DurationSec: -1},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.track.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolved(t *testing.T) {
	assert.False(t, (&Track{Title: "a"}).Resolved())
	assert.True(t, (&Track{Title: "a", URL: "https://x"}).Resolved())
}

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "web-video", KindWebVideo.String())
	assert.Equal(t, "web-video-mix", KindWebMix.String())
	assert.Equal(t, "catalog", KindCatalog.String())
	assert.Equal(t, "unknown", SourceKind(99).String())
}
