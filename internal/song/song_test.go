package song

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhowden/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixtape/mixtape/internal/atomicfile"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?list=PL1&v=abc123", "abc123"},
		{"https://www.youtube.com/shorts/short01?feature=share", "short01"},
		{"https://www.youtube.com/embed/emb01/extra", "emb01"},
		{"https://youtu.be/tiny01?t=30", "tiny01"},
		{"https://example.com/watch?v=nope", ""},
		{"https://www.youtube.com/channel/UC123", ""},
		{"not a url at all", ""},
		{"%%%", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoID(tt.url))
		})
	}
}

func TestNewStreamDerivesThumbnail(t *testing.T) {
	s := NewStream("https://www.youtube.com/watch?v=abc", "", KindYouTube, 0, "")
	assert.Equal(t, "abc", s.VideoID)
	assert.Equal(t, "https://img.youtube.com/vi/abc/maxresdefault.jpg", s.ThumbnailURL)
	assert.Equal(t, PlaceholderTitle, s.Title)

	bad := NewStream("::not-a-url", "x", KindYouTube, -3, "")
	assert.Empty(t, bad.VideoID)
	assert.Empty(t, bad.ThumbnailURL)
	assert.Zero(t, bad.Duration)
}

func TestThumbnailQualities(t *testing.T) {
	s := NewStream("https://youtu.be/vid", "t", KindYouTube, 10, "")
	assert.Equal(t, "https://img.youtube.com/vi/vid/sddefault.jpg", s.Thumbnail(QualitySD))
	assert.Equal(t, "https://img.youtube.com/vi/vid/mqdefault.jpg", s.Thumbnail(QualityMQ))
	assert.Equal(t, "https://img.youtube.com/vi/vid/default.jpg", s.Thumbnail(QualityDefault))
	assert.Equal(t, "https://img.youtube.com/vi/vid/maxresdefault.jpg", s.Thumbnail("bogus"))
	assert.Equal(t, "https://www.youtube.com/watch?v=vid", s.WatchURL())

	other := NewStream("https://radio.example/live.mp3", "r", KindStream, 0, "")
	assert.Empty(t, other.Thumbnail(QualityMaxRes))
	assert.Equal(t, "https://radio.example/live.mp3", other.WatchURL())
}

func TestFromRecordDispatch(t *testing.T) {
	local := FromRecord(Record{URL: "/music/a/Song One.MP3", Type: "local"})
	assert.True(t, local.IsLocal())
	assert.Equal(t, "Song One", local.Title)
	assert.Equal(t, "Song One.MP3", local.FileName())
	assert.Equal(t, ".mp3", local.FileExtension())

	untyped := FromRecord(Record{URL: "b.flac"})
	assert.True(t, untyped.IsLocal())

	stream := FromRecord(Record{URL: "https://youtu.be/x1", Type: "stream", Duration: 12})
	assert.True(t, stream.IsStream())
	assert.Equal(t, KindStream, stream.StreamType())
	assert.Equal(t, "x1", stream.VideoID)
	assert.Equal(t, 12.0, stream.Duration)

	empty := FromRecord(Record{Type: "youtube"})
	assert.Empty(t, empty.VideoID)
}

func TestRecordRecomputesThumbnail(t *testing.T) {
	s := NewStream("https://www.youtube.com/watch?v=old", "t", KindYouTube, 1, "https://cdn.example/custom.jpg")
	s.VideoID = "new"
	s.Quality = QualityMQ
	r := s.Record()
	assert.Equal(t, "https://img.youtube.com/vi/new/mqdefault.jpg", r.ThumbnailURL)
	assert.Equal(t, "youtube", r.StreamType)
	assert.Equal(t, "new", r.VideoID)

	radio := NewStream("https://radio.example/live", "r", KindStream, 0, "https://cdn.example/logo.png")
	assert.Equal(t, "https://cdn.example/logo.png", radio.Record().ThumbnailURL)
}

func TestLocalFileChecks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.ogg")
	s := NewLocal(path, "", 0)
	assert.False(t, s.Exists())
	assert.Zero(t, s.FileSize())

	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o644))
	assert.True(t, s.Exists())
	assert.EqualValues(t, 5, s.FileSize())
	assert.EqualValues(t, 5, s.Record().FileSize)

	assert.Equal(t, path, s.AbsPath("/elsewhere"))
	rel := NewLocal("a/b.mp3", "", 0)
	assert.Equal(t, filepath.Join("/base", "a/b.mp3"), rel.AbsPath("/base"))
}

func TestCreatedAtUsesClock(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	now = func() time.Time { return time.Unix(1700000000, 0) }

	assert.EqualValues(t, 1700000000, NewLocal("x.mp3", "", 0).CreatedAt)
	assert.EqualValues(t, 42, FromRecord(Record{URL: "x.mp3", TS: 42}).CreatedAt)
}

func TestRecordJSONShapes(t *testing.T) {
	var entries []Record
	input := `[
		"music/Old Song.mp3",
		{"url": "https://youtu.be/a1", "type": "youtube", "title": "A", "duration": "bad", "uploader": "someone", "id": "a1"},
		42
	]`
	require.NoError(t, json.Unmarshal([]byte(input), &entries))
	require.Len(t, entries, 3)

	assert.Equal(t, "music/Old Song.mp3", entries[0].URL)
	assert.Equal(t, "Old Song", entries[0].Title)
	assert.Equal(t, KindLocal, entries[0].Kind())

	assert.Equal(t, "A", entries[1].Title)
	assert.Zero(t, entries[1].Duration)
	assert.Equal(t, map[string]any{"uploader": "someone", "id": "a1"}, entries[1].Extra)

	assert.True(t, entries[2].IsRaw())

	out, err := json.Marshal(entries)
	require.NoError(t, err)
	var again []Record
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, entries, again)
	assert.Contains(t, string(out), `"uploader":"someone"`)
}

func TestRecordKeepsAmpersands(t *testing.T) {
	out, err := atomicfile.MarshalJSON(Record{URL: "https://www.youtube.com/watch?v=a&list=b"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "v=a&list=b")
}

func TestHydrateThumbnail(t *testing.T) {
	r := Record{URL: "https://www.youtube.com/watch?v=h1", Type: "stream"}
	assert.True(t, r.HydrateThumbnail())
	assert.Equal(t, "https://img.youtube.com/vi/h1/maxresdefault.jpg", r.ThumbnailURL)
	assert.False(t, r.HydrateThumbnail())

	unknown := Record{URL: "https://radio.example/x", Type: "stream"}
	assert.False(t, unknown.HydrateThumbnail())

	local := Record{URL: "a.mp3", Type: "local"}
	assert.False(t, local.HydrateThumbnail())
}

func TestTags(t *testing.T) {
	_, err := NewStream("https://youtu.be/x", "", KindYouTube, 0, "").Tags()
	assert.ErrorIs(t, err, ErrNotLocal)

	_, err = NewLocal(filepath.Join(t.TempDir(), "missing.mp3"), "", 0).Tags()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "plain.mp3")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 512), 0o644))
	_, err = NewLocal(path, "", 0).Tags()
	assert.True(t, errors.Is(err, tag.ErrNoTagsFound), "got %v", err)
}
