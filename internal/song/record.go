package song

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
)

// Record is the persisted form of a song. Keys this package does not know
// are kept in Extra and written back unchanged.
type Record struct {
	URL           string
	Title         string
	Name          string
	Type          string
	Duration      float64
	TS            int64
	ThumbnailURL  string
	Artist        string
	FileName      string
	FileExtension string
	FileSize      int64
	StreamType    string
	VideoID       string
	Extra         map[string]any

	// raw holds an entry that was neither an object nor a path string.
	raw json.RawMessage
}

var knownKeys = []string{
	"url", "title", "name", "type", "duration", "ts", "thumbnail_url", "artist",
	"file_name", "file_extension", "file_size", "stream_type", "video_id",
}

// PathRecord lifts a legacy bare path into a local record.
func PathRecord(path string) Record {
	base := filepath.Base(path)
	return Record{
		URL:   path,
		Title: strings.TrimSuffix(base, filepath.Ext(base)),
		Type:  string(KindLocal),
	}
}

// IsRaw reports whether the entry could not be read as a song at all.
func (r Record) IsRaw() bool { return len(r.raw) > 0 }

// Kind returns the record's variant tag; an empty type means local.
func (r Record) Kind() Kind {
	if r.Type == "" {
		return KindLocal
	}
	return Kind(r.Type)
}

// HydrateThumbnail fills a missing thumbnail on a stream record from its
// video id. It reports whether the record changed; records it cannot help
// are left alone.
func (r *Record) HydrateThumbnail() bool {
	if r.IsRaw() || !r.Kind().IsStream() || r.ThumbnailURL != "" {
		return false
	}
	thumb := FromRecord(*r).Thumbnail(QualityMaxRes)
	if thumb == "" {
		return false
	}
	r.ThumbnailURL = thumb
	return true
}

// FromRecord builds a Song from its persisted form. "local" (or no type)
// selects the local variant; any other type is taken as the stream type.
func FromRecord(r Record) Song {
	var s Song
	if r.Kind() == KindLocal {
		s = NewLocal(r.URL, r.Title, r.Duration)
	} else {
		s = NewStream(r.URL, r.Title, r.Kind(), r.Duration, r.ThumbnailURL)
	}
	if r.TS > 0 {
		s.CreatedAt = r.TS
	}
	return s
}

// Record serializes the song. For YouTube streams the thumbnail is computed
// again from the current video id and quality.
func (s Song) Record() Record {
	r := Record{
		URL:          s.URL,
		Title:        s.Title,
		Name:         s.Title,
		Artist:       s.Title,
		Type:         string(s.Kind),
		Duration:     s.Duration,
		TS:           s.CreatedAt,
		ThumbnailURL: s.ThumbnailURL,
	}
	if s.IsLocal() {
		r.FileName = s.FileName()
		r.FileExtension = s.FileExtension()
		r.FileSize = s.FileSize()
		return r
	}
	r.StreamType = string(s.Kind)
	r.VideoID = s.VideoID
	q := s.Quality
	if q == "" {
		q = QualityMaxRes
	}
	if thumb := s.Thumbnail(q); thumb != "" {
		r.ThumbnailURL = thumb
	}
	return r
}

// UnmarshalJSON accepts a song object or a bare path string. Fields of the
// wrong type are ignored rather than failing the whole entry.
func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*r = Record{}
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var path string
		if err := json.Unmarshal(trimmed, &path); err != nil {
			return err
		}
		*r = PathRecord(path)
		return nil
	case '{':
	default:
		r.raw = append(json.RawMessage(nil), trimmed...)
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	r.URL = str(m, "url")
	r.Title = str(m, "title")
	r.Name = str(m, "name")
	r.Type = str(m, "type")
	r.Duration = num(m, "duration")
	r.TS = int64(num(m, "ts"))
	r.ThumbnailURL = str(m, "thumbnail_url")
	r.Artist = str(m, "artist")
	r.FileName = str(m, "file_name")
	r.FileExtension = str(m, "file_extension")
	r.FileSize = int64(num(m, "file_size"))
	r.StreamType = str(m, "stream_type")
	r.VideoID = str(m, "video_id")
	for _, k := range knownKeys {
		delete(m, k)
	}
	if len(m) > 0 {
		r.Extra = m
	}
	return nil
}

// MarshalJSON writes known fields over Extra; empty optional fields are
// omitted.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.IsRaw() {
		return r.raw, nil
	}
	m := make(map[string]any, len(r.Extra)+len(knownKeys))
	for k, v := range r.Extra {
		m[k] = v
	}
	m["url"] = r.URL
	m["duration"] = r.Duration
	setStr(m, "title", r.Title)
	setStr(m, "name", r.Name)
	setStr(m, "type", r.Type)
	setStr(m, "thumbnail_url", r.ThumbnailURL)
	setStr(m, "artist", r.Artist)
	setStr(m, "file_name", r.FileName)
	setStr(m, "file_extension", r.FileExtension)
	setStr(m, "stream_type", r.StreamType)
	setStr(m, "video_id", r.VideoID)
	if r.TS != 0 {
		m["ts"] = r.TS
	}
	if r.FileSize != 0 {
		m["file_size"] = r.FileSize
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	if f < 0 {
		return 0
	}
	return f
}

func setStr(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}
