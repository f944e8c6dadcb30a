package resolver

import (
	"regexp"
	"strings"
)

// RefKind classifies a raw play request.
type RefKind int

const (
	RefSearch       RefKind = iota // free text, resolved via search
	RefWebVideo                    // single video page
	RefWebPlaylist                 // curated playlist page
	RefWebMix                      // auto-generated mix, list id starting with RD
	RefCatalogTrack                // streaming-catalog track page
	RefCatalogSet                  // streaming-catalog playlist or album page
	RefAudioHost                   // hosted-audio page
	RefMirrorVideo                 // privacy-mirror video page
	RefFile                        // raw audio file URL
)

func (k RefKind) String() string {
	switch k {
	case RefSearch:
		return "search"
	case RefWebVideo:
		return "video"
	case RefWebPlaylist:
		return "playlist"
	case RefWebMix:
		return "mix"
	case RefCatalogTrack:
		return "catalog-track"
	case RefCatalogSet:
		return "catalog-set"
	case RefAudioHost:
		return "audio-host"
	case RefMirrorVideo:
		return "mirror-video"
	case RefFile:
		return "file"
	default:
		return "unknown"
	}
}

var (
	reMix          = regexp.MustCompile(`^https://((www\.youtube\.com/watch)|(youtu\.be/)).*list=RD.+`)
	reVideo        = regexp.MustCompile(`^https://((www\.youtube\.com/watch\?v=)|(youtu\.be/)).+`)
	rePlaylist     = regexp.MustCompile(`^https://(www\.)?youtube\.com/playlist\?list=([0-9a-zA-Z_-]{18,41})$`)
	reCatalogTrack = regexp.MustCompile(`^https://open\.spotify\.com/track/.{22}(\?.*)?$`)
	reCatalogSet   = regexp.MustCompile(`^https://open\.spotify\.com/(playlist|album)/.{22}(\?.*)?$`)
	reAudioHost    = regexp.MustCompile(`^https://soundcloud\.com/.+/.+$`)
	reMirror       = regexp.MustCompile(`^https://yewtu\.be/.+`)
	reFile         = regexp.MustCompile(`^https?://.+\.(mp3|wav|ogg|flac|m4a|aac|opus|webm)(\?.*)?$`)
)

// Classify maps a raw request string to the reference kind driving its
// resolution. Anything that matches no known URL shape is treated as a
// search query. Mix URLs must be tested before plain videos: a watch URL
// with a list=RD parameter matches both.
func Classify(input string) RefKind {
	switch {
	case reMix.MatchString(input):
		return RefWebMix
	case reVideo.MatchString(input):
		return RefWebVideo
	case rePlaylist.MatchString(input):
		return RefWebPlaylist
	case reCatalogTrack.MatchString(input):
		return RefCatalogTrack
	case reCatalogSet.MatchString(input):
		return RefCatalogSet
	case reAudioHost.MatchString(input):
		return RefAudioHost
	case reMirror.MatchString(input):
		return RefMirrorVideo
	case reFile.MatchString(input):
		return RefFile
	default:
		return RefSearch
	}
}

// VideoID extracts the video id from a watch or short-form URL.
func VideoID(url string) string {
	if i := strings.Index(url, "v="); i >= 0 {
		id := url[i+2:]
		if j := strings.IndexByte(id, '&'); j >= 0 {
			id = id[:j]
		}
		return id
	}
	// Short-form: the id is the last path segment.
	trimmed := url
	if j := strings.IndexByte(trimmed, '?'); j >= 0 {
		trimmed = trimmed[:j]
	}
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ListID extracts the list parameter from a playlist or mix URL.
func ListID(url string) string {
	i := strings.Index(url, "list=")
	if i < 0 {
		return ""
	}
	id := url[i+5:]
	if j := strings.IndexByte(id, '&'); j >= 0 {
		id = id[:j]
	}
	return id
}

// catalogID extracts the resource id from a catalog page URL, dropping any
// query string.
func catalogID(url string) string {
	if j := strings.IndexByte(url, '?'); j >= 0 {
		url = url[:j]
	}
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// containsAlbum reports whether a catalog set URL points at an album
// rather than a playlist.
func containsAlbum(url string) bool {
	return strings.Contains(url, "/album/")
}

// fileTitle derives a display title from a raw file URL.
func fileTitle(url string) string {
	if j := strings.IndexByte(url, '?'); j >= 0 {
		url = url[:j]
	}
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
