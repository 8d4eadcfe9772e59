package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mixtape/mixtape/internal/atomicfile"
)

// Play is one playback to append to the history.
type Play struct {
	URL      string
	Title    string
	Type     string
	Duration float64
	// At defaults to the current time.
	At time.Time
}

// Store is the migrated play-history file.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// Load returns the history records. A missing file is an empty history.
func (s *Store) Load(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]Event, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return decodeEvents(data)
}

// Record adds p to its track's summary, creating the track if needed, and
// moves the track to the front. Unmigrated history is migrated first.
func (s *Store) Record(ctx context.Context, p Play) (Event, error) {
	if p.URL == "" {
		return nil, errors.New("history: play without url")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	events = Migrate(events)

	at := p.At
	if at.IsZero() {
		at = s.now()
	}
	ts := float64(at.UnixMilli()) / 1000

	var rec Event
	rest := make([]Event, 0, len(events))
	for _, ev := range events {
		if rec == nil && ev.URL() == p.URL {
			rec = ev
			continue
		}
		rest = append(rest, ev)
	}
	if rec == nil {
		rec = Event{FieldURL: p.URL}
	}
	if p.Title != "" {
		rec["title"] = p.Title
	}
	if p.Type != "" {
		rec["type"] = p.Type
	}
	if p.Duration > 0 {
		rec["duration"] = p.Duration
	}
	rec.summarize(append(rec.Times(), ts))

	events = append([]Event{rec}, rest...)
	if err := atomicfile.WriteJSON(s.path, events); err != nil {
		s.logger.Error("write history", slog.String("path", s.path), slog.Any("err", err))
		return nil, fmt.Errorf("write history: %w", err)
	}
	s.logger.Debug("recorded play", slog.String("url", p.URL), slog.Int("play_count", rec.PlayCount()))
	return rec, nil
}
