package playlist

import (
	"strconv"
	"time"

	"github.com/mixtape/mixtape/internal/song"
)

// DefaultID is the reserved id of the playlist that always exists.
const DefaultID = "default"

const (
	defaultName  = "Default"
	untitledName = "Untitled playlist"
)

// now is a test seam.
var now = time.Now

func timestamp() float64 {
	return float64(now().UnixNano()) / 1e9
}

func newID() string {
	return strconv.FormatInt(now().UnixMilli(), 10)
}

// Playlist is an ordered, URL-deduplicated list of songs. The newest song
// is first.
type Playlist struct {
	ID        string
	Name      string
	Songs     []song.Record
	CreatedAt float64
	UpdatedAt float64
	// CurrentPlayingIndex is advanced by the player; -1 means not playing.
	CurrentPlayingIndex int
}

// New returns a fresh, empty playlist. An empty id is generated from the
// current time in milliseconds and an empty name becomes a placeholder.
func New(id, name string) *Playlist {
	if id == "" {
		id = newID()
	}
	if name == "" {
		name = untitledName
	}
	ts := timestamp()
	return &Playlist{
		ID:                  id,
		Name:                name,
		CreatedAt:           ts,
		UpdatedAt:           ts,
		CurrentPlayingIndex: -1,
	}
}

func (p *Playlist) touch() { p.UpdatedAt = timestamp() }

func (p *Playlist) indexOf(url string) int {
	for i, s := range p.Songs {
		if !s.IsRaw() && s.URL == url {
			return i
		}
	}
	return -1
}

// AddSong prepends r unless a song with the same URL is already present.
// Stream records without a thumbnail get one derived first when possible.
func (p *Playlist) AddSong(r song.Record) bool {
	if p.indexOf(r.URL) >= 0 {
		return false
	}
	r.HydrateThumbnail()
	p.Songs = append([]song.Record{r}, p.Songs...)
	p.touch()
	return true
}

// AddPath adds a bare file path, the form older clients send.
func (p *Playlist) AddPath(path string) bool {
	return p.AddSong(song.PathRecord(path))
}

// RemoveAt removes and returns the song at i. Out-of-range indexes are a
// no-op.
func (p *Playlist) RemoveAt(i int) (song.Record, bool) {
	if i < 0 || i >= len(p.Songs) {
		return song.Record{}, false
	}
	removed := p.Songs[i]
	p.Songs = append(p.Songs[:i], p.Songs[i+1:]...)
	p.touch()
	return removed, true
}

// RemoveSong removes the song with the given URL.
func (p *Playlist) RemoveSong(url string) bool {
	i := p.indexOf(url)
	if i < 0 {
		return false
	}
	_, ok := p.RemoveAt(i)
	return ok
}

// Reorder moves the song at from to position to, keeping the relative order
// of everything else.
func (p *Playlist) Reorder(from, to int) bool {
	n := len(p.Songs)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	item := p.Songs[from]
	if from < to {
		copy(p.Songs[from:], p.Songs[from+1:to+1])
	} else {
		copy(p.Songs[to+1:], p.Songs[to:from])
	}
	p.Songs[to] = item
	p.touch()
	return true
}

// ReplaceOrder rearranges the songs to follow urls. It fails without
// changes unless urls is exactly a permutation of the current song URLs, so
// a stale client order can never drop or duplicate songs.
func (p *Playlist) ReplaceOrder(urls []string) bool {
	if len(urls) != len(p.Songs) {
		return false
	}
	byURL := make(map[string]song.Record, len(p.Songs))
	for _, s := range p.Songs {
		if s.IsRaw() {
			return false
		}
		byURL[s.URL] = s
	}
	if len(byURL) != len(p.Songs) {
		return false
	}
	next := make([]song.Record, 0, len(urls))
	for _, u := range urls {
		s, ok := byURL[u]
		if !ok {
			return false
		}
		delete(byURL, u)
		next = append(next, s)
	}
	p.Songs = next
	p.touch()
	return true
}

// HydrateStreamThumbnails derives missing thumbnails on stream entries and
// reports whether anything changed.
func (p *Playlist) HydrateStreamThumbnails() bool {
	changed := false
	for i := range p.Songs {
		if p.Songs[i].HydrateThumbnail() {
			changed = true
		}
	}
	if changed {
		p.touch()
	}
	return changed
}

// Clear removes every song.
func (p *Playlist) Clear() {
	p.Songs = nil
	p.touch()
}

// Get returns the song at i.
func (p *Playlist) Get(i int) (song.Record, bool) {
	if i < 0 || i >= len(p.Songs) {
		return song.Record{}, false
	}
	return p.Songs[i], true
}

func (p *Playlist) Count() int { return len(p.Songs) }

// URLs lists the song URLs in playlist order.
func (p *Playlist) URLs() []string {
	out := make([]string, len(p.Songs))
	for i, s := range p.Songs {
		out[i] = s.URL
	}
	return out
}

// Clone returns a deep enough copy for callers outside the collection lock.
func (p *Playlist) Clone() Playlist {
	c := *p
	c.Songs = make([]song.Record, len(p.Songs))
	copy(c.Songs, p.Songs)
	return c
}

// Record is the persisted form of a playlist.
type Record struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Songs               []song.Record `json:"songs"`
	SongCount           int           `json:"song_count"`
	CreatedAt           float64       `json:"created_at"`
	UpdatedAt           float64       `json:"updated_at"`
	CurrentPlayingIndex *int          `json:"current_playing_index,omitempty"`
}

func (p *Playlist) Record() Record {
	songs := p.Songs
	if songs == nil {
		songs = []song.Record{}
	}
	idx := p.CurrentPlayingIndex
	return Record{
		ID:                  p.ID,
		Name:                p.Name,
		Songs:               songs,
		SongCount:           len(p.Songs),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		CurrentPlayingIndex: &idx,
	}
}

// FromRecord rebuilds a playlist, filling defaults for missing fields.
// Thumbnails are not hydrated here; callers decide when that is persisted.
func FromRecord(r Record) *Playlist {
	p := New(r.ID, r.Name)
	// A stored name is kept as is, even when empty.
	p.Name = r.Name
	if r.CreatedAt > 0 {
		p.CreatedAt = r.CreatedAt
	}
	if r.UpdatedAt > 0 {
		p.UpdatedAt = r.UpdatedAt
	}
	if r.CurrentPlayingIndex != nil {
		p.CurrentPlayingIndex = *r.CurrentPlayingIndex
	}
	if len(r.Songs) > 0 {
		p.Songs = make([]song.Record, len(r.Songs))
		copy(p.Songs, r.Songs)
	}
	return p
}
