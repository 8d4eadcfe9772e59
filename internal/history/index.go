package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a SQLite mirror of the history used for ranking queries. The JSON
// file stays the source of truth; Sync rebuilds the index from it.
type Index struct {
	db *sql.DB
}

// Stat is one track's row in the index.
type Stat struct {
	URL        string
	Title      string
	Type       string
	PlayCount  int
	LastPlayed time.Time
}

// OpenIndex opens or creates the index database at dbPath.
func OpenIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history index: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			url TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS plays (
			url TEXT NOT NULL,
			ts REAL NOT NULL,
			PRIMARY KEY (url, ts)
		);`,
		`CREATE INDEX IF NOT EXISTS plays_ts ON plays (ts);`,
	}
	for _, stmt := range schema {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate index schema: %w", err)
		}
	}
	return nil
}

// Sync replaces the index content with events, migrating them first.
func (i *Index) Sync(ctx context.Context, events []Event) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM plays`, `DELETE FROM tracks`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}

	insTrack, err := tx.PrepareContext(ctx,
		`INSERT INTO tracks (url, title, kind, play_count, last_played) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer insTrack.Close()
	insPlay, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO plays (url, ts) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare play insert: %w", err)
	}
	defer insPlay.Close()

	for _, ev := range Migrate(events) {
		title, _ := ev["title"].(string)
		kind, _ := ev["type"].(string)
		if _, err := insTrack.ExecContext(ctx, ev.URL(), title, kind, ev.PlayCount(), ev.Time()); err != nil {
			return fmt.Errorf("insert track %s: %w", ev.URL(), err)
		}
		for _, ts := range ev.Times() {
			if _, err := insPlay.ExecContext(ctx, ev.URL(), ts); err != nil {
				return fmt.Errorf("insert play %s: %w", ev.URL(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TopPlayed returns the most played tracks, ties broken by recency.
func (i *Index) TopPlayed(ctx context.Context, limit int) ([]Stat, error) {
	return i.query(ctx, `SELECT url, title, kind, play_count, last_played FROM tracks
		ORDER BY play_count DESC, last_played DESC, url ASC LIMIT ?`, limit)
}

// RecentlyPlayed returns the tracks played most recently.
func (i *Index) RecentlyPlayed(ctx context.Context, limit int) ([]Stat, error) {
	return i.query(ctx, `SELECT url, title, kind, play_count, last_played FROM tracks
		WHERE last_played > 0 ORDER BY last_played DESC, url ASC LIMIT ?`, limit)
}

// PlaysBetween counts plays with from <= ts < to.
func (i *Index) PlaysBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays WHERE ts >= ? AND ts < ?`,
		unixSeconds(from), unixSeconds(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count plays: %w", err)
	}
	return n, nil
}

func (i *Index) query(ctx context.Context, q string, limit int) ([]Stat, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := i.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var out []Stat
	for rows.Next() {
		var st Stat
		var last float64
		if err := rows.Scan(&st.URL, &st.Title, &st.Type, &st.PlayCount, &last); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		st.LastPlayed = fromUnixSeconds(last)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return out, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	if s <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}

// Close closes the database connection.
func (i *Index) Close() error {
	if i.db != nil {
		return i.db.Close()
	}
	return nil
}
