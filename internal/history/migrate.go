// Package history aggregates the play-history log into per-track summaries
// and keeps it current as tracks are played.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mixtape/mixtape/internal/atomicfile"
)

// ErrNotArray is returned when the history file is not a JSON array.
var ErrNotArray = errors.New("history: file is not a JSON array")

// Field names of a history record.
const (
	FieldURL        = "url"
	FieldTS         = "ts"
	FieldTimestamp  = "timestamp"
	FieldPlayCount  = "play_count"
	FieldTimestamps = "timestamps"
)

// Event is one history record. Fields other than the derived ones are kept
// exactly as read.
type Event map[string]any

// URL returns the event's url, or "" when missing or not a string.
func (e Event) URL() string {
	s, _ := e[FieldURL].(string)
	return s
}

// Time returns ts, falling back to timestamp when ts is missing or zero.
func (e Event) Time() float64 {
	if ts := number(e[FieldTS]); ts != 0 {
		return ts
	}
	return number(e[FieldTimestamp])
}

// PlayCount returns the derived play count, 0 before migration.
func (e Event) PlayCount() int {
	return int(number(e[FieldPlayCount]))
}

// Times returns the timestamps already recorded on a migrated event.
func (e Event) Times() []float64 {
	var out []float64
	switch v := e[FieldTimestamps].(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err == nil && f > 0 {
				out = append(out, f)
			}
		}
	case []any:
		for _, item := range v {
			if f := number(item); f > 0 {
				out = append(out, f)
			}
		}
	}
	return out
}

func (e Event) clone() Event {
	out := make(Event, len(e)+3)
	for k, v := range e {
		out[k] = v
	}
	return out
}

// summarize overwrites the derived fields from a set of play times.
func (e Event) summarize(times []float64) {
	times = uniqueSorted(times)
	var last float64
	if len(times) > 0 {
		last = times[len(times)-1]
	}
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = strconv.FormatFloat(t, 'f', -1, 64)
	}
	e[FieldTS] = last
	e[FieldTimestamp] = last
	e[FieldPlayCount] = len(times)
	e[FieldTimestamps] = strings.Join(parts, ",")
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func uniqueSorted(times []float64) []float64 {
	if len(times) == 0 {
		return nil
	}
	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)
	out := sorted[:1]
	for _, t := range sorted[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}

// Migrate groups events by url and returns one summary per track, most
// recently played first. Events without a url are dropped. Each summary keeps
// every field of the track's latest event and gains ts, timestamp,
// play_count and timestamps. Running Migrate on its own output is a no-op.
func Migrate(events []Event) []Event {
	type group struct {
		rep     Event
		repTime float64
		times   []float64
	}
	groups := make(map[string]*group)
	var order []string

	for _, ev := range events {
		url := ev.URL()
		if url == "" {
			continue
		}
		ts := ev.Time()
		g, ok := groups[url]
		if !ok {
			g = &group{rep: ev, repTime: ts}
			groups[url] = g
			order = append(order, url)
		} else if ts > g.repTime {
			g.rep, g.repTime = ev, ts
		}
		if ts > 0 {
			g.times = append(g.times, ts)
		}
		g.times = append(g.times, ev.Times()...)
	}

	out := make([]Event, 0, len(order))
	for _, url := range order {
		g := groups[url]
		rec := g.rep.clone()
		rec.summarize(g.times)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time() > out[j].Time()
	})
	return out
}

// Result describes a completed file migration.
type Result struct {
	Events     int
	Tracks     int
	TotalPlays int
	BackupPath string
	BackedUp   bool
}

// MigrateFile migrates the history file at path in place. The original bytes
// are copied to <path>.backup unless that file already exists. The rewrite
// is atomic, so a failure leaves the previous content in place.
func MigrateFile(path string) (Result, error) {
	res := Result{BackupPath: path + ".backup"}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read history: %w", err)
	}
	events, err := decodeEvents(data)
	if err != nil {
		return res, err
	}
	res.Events = len(events)

	migrated := Migrate(events)
	res.Tracks = len(migrated)
	for _, ev := range migrated {
		res.TotalPlays += ev.PlayCount()
	}

	if _, err := os.Stat(res.BackupPath); errors.Is(err, os.ErrNotExist) {
		if err := atomicfile.WriteFile(res.BackupPath, data, 0o644); err != nil {
			return res, fmt.Errorf("write history backup: %w", err)
		}
		res.BackedUp = true
	} else if err != nil {
		return res, fmt.Errorf("check history backup: %w", err)
	}

	if err := atomicfile.WriteJSON(path, migrated); err != nil {
		return res, fmt.Errorf("write history: %w", err)
	}
	return res, nil
}

func decodeEvents(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		// Non-object entries have no url and would be dropped anyway.
		if err := json.Unmarshal(item, &ev); err != nil || ev == nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
