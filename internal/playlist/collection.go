package playlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mixtape/mixtape/internal/atomicfile"
	"github.com/mixtape/mixtape/internal/song"
)

var (
	// ErrMalformed is returned when the store file is not a playlist store.
	ErrMalformed = errors.New("playlist: malformed store")
	// ErrNotFound is for callers reporting an unknown playlist id; the
	// collection itself signals that with ok=false.
	ErrNotFound = errors.New("playlist: not found")
	// ErrQuarantine means a malformed store could not be moved aside. The
	// collection must not be written through until the file is dealt with.
	ErrQuarantine = errors.New("playlist: cannot move malformed store aside")
)

// IsMalformed reports whether err came from a malformed store that was
// successfully moved aside, leaving the collection safe to use.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed) && !errors.Is(err, ErrQuarantine)
}

// Options configures a Collection.
type Options struct {
	Logger *slog.Logger
}

// Collection is the registry of playlists plus their display order, backed
// by one JSON file that is rewritten after every change.
//
// Mutating methods return ok=false for unknown ids and rejected input; err
// is reserved for persistence failures, in which case the in-memory change
// stands and the previous file is left intact.
type Collection struct {
	mu        sync.Mutex
	path      string
	logger    *slog.Logger
	playlists map[string]*Playlist
	order     []string
}

type storeFile struct {
	Order     []string `json:"order"`
	Playlists []Record `json:"playlists"`
}

// Open loads the collection stored at path. A non-nil error reports a load
// or save problem; the returned collection is usable either way.
func Open(path string, opts Options) (*Collection, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Collection{
		path:      path,
		logger:    opts.Logger,
		playlists: make(map[string]*Playlist),
	}
	return c, c.Load()
}

// Path returns the backing file.
func (c *Collection) Path() string { return c.path }

// Load replaces the in-memory state with the backing file. A malformed file
// is moved aside to <path>.corrupt and the collection starts over. Either way
// the default playlist exists afterwards.
func (c *Collection) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playlists = make(map[string]*Playlist)
	c.order = nil

	var loadErr error
	needSave := false
	// An unreadable file is never overwritten; it may be fine on the next run.
	canSave := true
	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.logger.Debug("playlist store missing, starting empty", slog.String("path", c.path))
	case err != nil:
		loadErr = fmt.Errorf("read playlists: %w", err)
		canSave = false
	default:
		changed, err := c.decode(data)
		if err != nil {
			loadErr = err
			c.playlists = make(map[string]*Playlist)
			c.order = nil
			if qErr := c.quarantine(); qErr != nil {
				loadErr = errors.Join(loadErr, qErr)
				canSave = false
			}
		}
		needSave = changed
	}

	if _, ok := c.playlists[DefaultID]; !ok {
		c.playlists[DefaultID] = New(DefaultID, defaultName)
		if !contains(c.order, DefaultID) {
			c.order = append([]string{DefaultID}, c.order...)
		}
		needSave = true
	}

	if needSave && canSave {
		if err := c.saveLocked(); err != nil {
			loadErr = errors.Join(loadErr, err)
		}
	}
	if loadErr != nil {
		c.logger.Error("load playlists", slog.String("path", c.path), slog.Any("err", loadErr))
		return loadErr
	}
	c.logger.Debug("loaded playlists", slog.Int("count", len(c.playlists)))
	return nil
}

// decode fills the collection from either store shape and reports whether
// thumbnail hydration changed anything.
func (c *Collection) decode(data []byte) (bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false, nil
	}

	var f storeFile
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &f.Playlists); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return false, fmt.Errorf("%w: unexpected %q", ErrMalformed, trimmed[0])
	}

	seen := make(map[string]bool, len(f.Order))
	for _, id := range f.Order {
		if !seen[id] {
			seen[id] = true
			c.order = append(c.order, id)
		}
	}

	changed := false
	for _, r := range f.Playlists {
		if r.ID == "" {
			r.ID = c.freshID()
		}
		p := FromRecord(r)
		if p.HydrateStreamThumbnails() {
			changed = true
		}
		c.playlists[p.ID] = p
		if !seen[p.ID] {
			seen[p.ID] = true
			c.order = append(c.order, p.ID)
		}
	}
	return changed, nil
}

func (c *Collection) quarantine() error {
	dst := c.path + ".corrupt"
	if err := os.Rename(c.path, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrQuarantine, err)
	}
	c.logger.Warn("moved malformed playlist store aside", slog.String("path", dst))
	return nil
}

// Save writes the whole collection.
func (c *Collection) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Collection) saveLocked() error {
	f := storeFile{Order: c.order, Playlists: []Record{}}
	if f.Order == nil {
		f.Order = []string{}
	}
	for _, p := range c.allLocked() {
		f.Playlists = append(f.Playlists, p.Record())
	}
	if err := atomicfile.WriteJSON(c.path, f); err != nil {
		err = fmt.Errorf("save playlists: %w", err)
		c.logger.Error("save playlists", slog.String("path", c.path), slog.Any("err", err))
		return err
	}
	c.logger.Debug("saved playlists", slog.Int("count", len(f.Playlists)))
	return nil
}

func (c *Collection) freshID() string {
	ms := now().UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if _, taken := c.playlists[id]; !taken {
			return id
		}
		ms++
	}
}

func (c *Collection) allLocked() []*Playlist {
	out := make([]*Playlist, 0, len(c.order))
	for _, id := range c.order {
		if p, ok := c.playlists[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Create registers a new playlist at the end of the display order.
func (c *Collection) Create(name string) (Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := New(c.freshID(), name)
	c.playlists[p.ID] = p
	c.order = append(c.order, p.ID)
	c.logger.Info("created playlist", slog.String("id", p.ID), slog.String("name", p.Name))
	return p.Clone(), c.saveLocked()
}

// Delete removes a playlist from the map and the order. The default
// playlist is not protected; the next Load recreates it.
func (c *Collection) Delete(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.playlists[id]; !ok {
		return false, nil
	}
	delete(c.playlists, id)
	c.order = remove(c.order, id)
	c.logger.Info("deleted playlist", slog.String("id", id))
	return true, c.saveLocked()
}

func (c *Collection) Rename(id, name string) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool {
		p.Name = name
		p.touch()
		return true
	})
}

// ReorderCollection sets a new display order. ids must be a permutation of
// the current order.
func (c *Collection) ReorderCollection(ids []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !samePermutation(c.order, ids) {
		return false, nil
	}
	c.order = append([]string(nil), ids...)
	return true, c.saveLocked()
}

// mutate runs fn on the playlist id and saves when fn reports a change.
func (c *Collection) mutate(id string, fn func(p *Playlist) bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.playlists[id]
	if !ok || !fn(p) {
		return false, nil
	}
	return true, c.saveLocked()
}

func (c *Collection) AddSongTo(id string, r song.Record) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool { return p.AddSong(r) })
}

func (c *Collection) AddPathTo(id, path string) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool { return p.AddPath(path) })
}

func (c *Collection) RemoveSongFrom(id, url string) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool { return p.RemoveSong(url) })
}

// RemoveAtIndexIn removes the song at index from playlist id and returns it.
func (c *Collection) RemoveAtIndexIn(id string, index int) (song.Record, bool, error) {
	var removed song.Record
	ok, err := c.mutate(id, func(p *Playlist) bool {
		var ok bool
		removed, ok = p.RemoveAt(index)
		return ok
	})
	return removed, ok, err
}

func (c *Collection) ReorderSongsIn(id string, from, to int) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool { return p.Reorder(from, to) })
}

func (c *Collection) ReplaceSongOrderIn(id string, urls []string) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool { return p.ReplaceOrder(urls) })
}

func (c *Collection) ClearPlaylist(id string) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool {
		p.Clear()
		return true
	})
}

// SetCurrentIndex stores the playback cursor; -1 clears it.
func (c *Collection) SetCurrentIndex(id string, index int) (bool, error) {
	return c.mutate(id, func(p *Playlist) bool {
		if index < -1 || index >= len(p.Songs) {
			return false
		}
		p.CurrentPlayingIndex = index
		return true
	})
}

// Export writes one playlist as a standalone JSON file.
func (c *Collection) Export(id, dest string) (bool, error) {
	c.mu.Lock()
	rec, ok := Record{}, false
	if p, found := c.playlists[id]; found {
		cl := p.Clone()
		rec, ok = cl.Record(), true
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := atomicfile.WriteJSON(dest, rec); err != nil {
		c.logger.Error("export playlist", slog.String("id", id), slog.Any("err", err))
		return false, fmt.Errorf("export playlist: %w", err)
	}
	c.logger.Info("exported playlist", slog.String("id", id), slog.String("dest", dest))
	return true, nil
}

// Import reads a playlist file and stores it under its own id, replacing any
// playlist with that id. replaced reports whether that happened.
func (c *Collection) Import(src string) (pl Playlist, replaced bool, err error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return Playlist{}, false, fmt.Errorf("import playlist: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Playlist{}, false, fmt.Errorf("import playlist: %w: not a playlist object", ErrMalformed)
	}
	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Playlist{}, false, fmt.Errorf("import playlist: %w: %v", ErrMalformed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r.ID == "" {
		r.ID = c.freshID()
	}
	p := FromRecord(r)
	p.HydrateStreamThumbnails()
	_, replaced = c.playlists[p.ID]
	c.playlists[p.ID] = p
	if !contains(c.order, p.ID) {
		c.order = append(c.order, p.ID)
	}
	if replaced {
		c.logger.Warn("import replaced existing playlist", slog.String("id", p.ID))
	}
	c.logger.Info("imported playlist", slog.String("id", p.ID), slog.String("name", p.Name))
	return p.Clone(), replaced, c.saveLocked()
}

// Search matches keyword case-insensitively against playlist names, in
// display order.
func (c *Collection) Search(keyword string) []Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()

	kw := strings.ToLower(keyword)
	var out []Playlist
	for _, p := range c.allLocked() {
		if strings.Contains(strings.ToLower(p.Name), kw) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (c *Collection) Get(id string) (Playlist, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.playlists[id]
	if !ok {
		return Playlist{}, false
	}
	return p.Clone(), true
}

// All returns the playlists in display order.
func (c *Collection) All() []Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := c.allLocked()
	out := make([]Playlist, len(all))
	for i, p := range all {
		out[i] = p.Clone()
	}
	return out
}

// SongsOf returns the songs of playlist id, or nil when it does not exist.
func (c *Collection) SongsOf(id string) []song.Record {
	p, ok := c.Get(id)
	if !ok {
		return nil
	}
	return p.Songs
}

// Order returns the display order, which may name ids no longer present.
func (c *Collection) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

func (c *Collection) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.playlists)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func samePermutation(cur, next []string) bool {
	if len(cur) != len(next) {
		return false
	}
	counts := make(map[string]int, len(cur))
	for _, id := range cur {
		counts[id]++
	}
	for _, id := range next {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}
	return true
}
