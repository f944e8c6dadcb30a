package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RefKind
	}{
		{
			name:  "watch url",
			input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want:  RefWebVideo,
		},
		{
			name:  "short url",
			input: "https://youtu.be/dQw4w9WgXcQ",
			want:  RefWebVideo,
		},
		{
			name:  "watch url with mix list",
			input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=RDdQw4w9WgXcQ",
			want:  RefWebMix,
		},
		{
			name:  "short url with mix list",
			input: "https://youtu.be/dQw4w9WgXcQ?list=RDdQw4w9WgXcQ",
			want:  RefWebMix,
		},
		{
			name:  "playlist url",
			input: "https://www.youtube.com/playlist?list=PLdQw4w9WgXcQdQw4w9WgXcQ",
			want:  RefWebPlaylist,
		},
		{
			name:  "watch url with curated list is a plain video",
			input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLdQw4w9WgXcQ",
			want:  RefWebVideo,
		},
		{
			name:  "catalog track",
			input: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT",
			want:  RefCatalogTrack,
		},
		{
			name:  "catalog track with share query",
			input: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT?si=abc123",
			want:  RefCatalogTrack,
		},
		{
			name:  "catalog playlist",
			input: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			want:  RefCatalogSet,
		},
		{
			name:  "catalog album",
			input: "https://open.spotify.com/album/6dVIqQ8qmQ5GBnJ9shOYGE",
			want:  RefCatalogSet,
		},
		{
			name:  "hosted audio",
			input: "https://soundcloud.com/artist/some-track",
			want:  RefAudioHost,
		},
		{
			name:  "mirror video",
			input: "https://yewtu.be/watch?v=dQw4w9WgXcQ",
			want:  RefMirrorVideo,
		},
		{
			name:  "raw audio file",
			input: "https://files.example.com/audio/song.mp3",
			want:  RefFile,
		},
		{
			name:  "raw audio file with query",
			input: "http://files.example.com/song.ogg?token=x",
			want:  RefFile,
		},
		{
			name:  "free text",
			input: "never gonna give you up",
			want:  RefSearch,
		},
		{
			name:  "unknown site",
			input: "https://example.com/page",
			want:  RefSearch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=RDdQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VideoID(tt.url), tt.url)
	}
}

func TestListID(t *testing.T) {
	assert.Equal(t, "RDdQw4w9WgXcQ",
		ListID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=RDdQw4w9WgXcQ"))
	assert.Equal(t, "RDabc",
		ListID("https://www.youtube.com/watch?v=x&list=RDabc&index=2"))
	assert.Equal(t, "", ListID("https://www.youtube.com/watch?v=x"))
}
