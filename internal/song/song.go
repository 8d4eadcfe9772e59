package song

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind tags the variant of a Song. Local files carry KindLocal; every other
// value is a stream type.
type Kind string

const (
	KindLocal   Kind = "local"
	KindYouTube Kind = "youtube"
	KindStream  Kind = "stream"
)

// IsStream reports whether k names a remote stream.
func (k Kind) IsStream() bool { return k != KindLocal && k != "" }

// PlaceholderTitle is shown for streams whose title has not been resolved yet.
const PlaceholderTitle = "Loading…"

// Quality selects a YouTube thumbnail size.
type Quality string

const (
	QualityMaxRes  Quality = "maxres"  // 1280x720
	QualitySD      Quality = "sd"      // 640x480
	QualityMQ      Quality = "mq"      // 320x180
	QualityDefault Quality = "default" // 120x90
)

var thumbnailFiles = map[Quality]string{
	QualityMaxRes:  "maxresdefault.jpg",
	QualitySD:      "sddefault.jpg",
	QualityMQ:      "mqdefault.jpg",
	QualityDefault: "default.jpg",
}

// ValidQuality reports whether q is a known thumbnail quality.
func ValidQuality(q Quality) bool {
	_, ok := thumbnailFiles[q]
	return ok
}

// Song is a reference to one track: either a local file (Kind == KindLocal)
// or a remote stream. Songs are values; only the owning playlist repairs
// their thumbnail.
type Song struct {
	URL          string
	Title        string
	Kind         Kind
	Duration     float64
	CreatedAt    int64
	ThumbnailURL string

	// Stream only.
	VideoID string
	Quality Quality
}

// now is a test seam.
var now = time.Now

// NewLocal builds a local song. An empty title falls back to the file name
// without its extension.
func NewLocal(path, title string, duration float64) Song {
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Song{
		URL:       path,
		Title:     title,
		Kind:      KindLocal,
		Duration:  clampDuration(duration),
		CreatedAt: now().Unix(),
	}
}

// NewStream builds a stream song. When streamType is youtube and no thumbnail
// is given, one is derived from the video id. An unparseable URL leaves both
// VideoID and ThumbnailURL empty.
func NewStream(streamURL, title string, streamType Kind, duration float64, thumbnail string) Song {
	if streamType == "" {
		streamType = KindYouTube
	}
	if title == "" {
		title = PlaceholderTitle
	}
	s := Song{
		URL:          streamURL,
		Title:        title,
		Kind:         streamType,
		Duration:     clampDuration(duration),
		CreatedAt:    now().Unix(),
		ThumbnailURL: thumbnail,
		VideoID:      VideoID(streamURL),
		Quality:      QualityMaxRes,
	}
	if s.ThumbnailURL == "" && streamType == KindYouTube {
		s.ThumbnailURL = thumbnailFor(s.VideoID, QualityMaxRes)
	}
	return s
}

func clampDuration(d float64) float64 {
	if d < 0 {
		return 0
	}
	return d
}

func (s Song) IsLocal() bool  { return s.Kind == KindLocal }
func (s Song) IsStream() bool { return !s.IsLocal() }

// StreamType returns the stream kind, or "" for local songs.
func (s Song) StreamType() Kind {
	if s.IsLocal() {
		return ""
	}
	return s.Kind
}

// FileName returns the base name of a local song's path.
func (s Song) FileName() string {
	if !s.IsLocal() {
		return ""
	}
	return filepath.Base(s.URL)
}

// FileExtension returns the lower-cased extension including the dot.
func (s Song) FileExtension() string {
	if !s.IsLocal() {
		return ""
	}
	return strings.ToLower(filepath.Ext(s.URL))
}

// Exists checks the filesystem on every call.
func (s Song) Exists() bool {
	if !s.IsLocal() || s.URL == "" {
		return false
	}
	_, err := os.Stat(s.URL)
	return err == nil
}

// FileSize returns the size in bytes, or 0 when the file cannot be read.
func (s Song) FileSize() int64 {
	if !s.IsLocal() || s.URL == "" {
		return 0
	}
	info, err := os.Stat(s.URL)
	if err != nil {
		return 0
	}
	return info.Size()
}

// AbsPath resolves a relative local path against base, or the working
// directory when base is empty.
func (s Song) AbsPath(base string) string {
	if filepath.IsAbs(s.URL) {
		return s.URL
	}
	if base != "" {
		return filepath.Join(base, s.URL)
	}
	abs, err := filepath.Abs(s.URL)
	if err != nil {
		return s.URL
	}
	return abs
}

// IsYouTube reports whether the stream points at YouTube.
func (s Song) IsYouTube() bool {
	if s.IsLocal() {
		return false
	}
	return s.Kind == KindYouTube || strings.Contains(strings.ToLower(s.URL), "youtube")
}

// Thumbnail returns the YouTube thumbnail URL for the given quality, or ""
// when the song is not a YouTube stream with a known video id. Unknown
// qualities fall back to maxres.
func (s Song) Thumbnail(q Quality) string {
	if !s.IsYouTube() {
		return ""
	}
	return thumbnailFor(s.VideoID, q)
}

// WatchURL returns the canonical watch URL for YouTube streams and the
// stored URL otherwise.
func (s Song) WatchURL() string {
	if s.IsYouTube() && s.VideoID != "" {
		return "https://www.youtube.com/watch?v=" + s.VideoID
	}
	return s.URL
}

func thumbnailFor(videoID string, q Quality) string {
	if videoID == "" {
		return ""
	}
	file, ok := thumbnailFiles[q]
	if !ok {
		file = thumbnailFiles[QualityMaxRes]
	}
	return "https://img.youtube.com/vi/" + videoID + "/" + file
}

// VideoID extracts a YouTube video id from watch, shorts, embed and youtu.be
// links. Anything else yields "".
func VideoID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	path := u.Path

	switch {
	case strings.Contains(host, "youtube.com") && strings.Contains(path, "watch"):
		return u.Query().Get("v")
	case strings.Contains(host, "youtube.com") && strings.HasPrefix(path, "/shorts/"):
		return firstSegment(strings.TrimPrefix(path, "/shorts/"))
	case strings.Contains(host, "youtube.com") && strings.HasPrefix(path, "/embed/"):
		return firstSegment(strings.TrimPrefix(path, "/embed/"))
	case strings.Contains(host, "youtu.be"):
		return firstSegment(strings.TrimLeft(path, "/"))
	}
	return ""
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
