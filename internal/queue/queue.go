// Package queue orders a playlist's songs for playback.
package queue

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mixtape/mixtape/internal/song"
)

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

var repeatNames = map[string]RepeatMode{"off": RepeatOff, "all": RepeatAll, "one": RepeatOne}

// ParseRepeat maps "off", "all" or "one" to a RepeatMode.
func ParseRepeat(s string) (RepeatMode, error) {
	m, ok := repeatNames[s]
	if !ok {
		return RepeatOff, fmt.Errorf("unknown repeat mode %q (want off, all or one)", s)
	}
	return m, nil
}

func (m RepeatMode) String() string {
	for name, v := range repeatNames {
		if v == m {
			return name
		}
	}
	return "off"
}

// Entry is a queued song with its position in the source playlist.
type Entry struct {
	Index int
	Song  song.Record
}

var (
	ErrEmpty = errors.New("queue is empty")
	ErrEnd   = errors.New("end of queue")
)

// Queue walks a fixed list of entries. Raw entries are never queued.
type Queue struct {
	items      []Entry
	current    int
	repeatMode RepeatMode
	shuffled   bool
	// pinned marks a cursor placed by StartAt.
	pinned bool
}

// FromSongs queues songs in playlist order.
func FromSongs(songs []song.Record) *Queue {
	q := &Queue{current: -1}
	for i, s := range songs {
		if s.IsRaw() {
			continue
		}
		q.items = append(q.items, Entry{Index: i, Song: s})
	}
	return q
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) Items() []Entry {
	out := make([]Entry, len(q.items))
	copy(out, q.items)
	return out
}

// Current returns the entry under the cursor.
func (q *Queue) Current() (Entry, error) {
	if q.current < 0 || q.current >= len(q.items) {
		return Entry{}, ErrEmpty
	}
	return q.items[q.current], nil
}

// StartAt puts the cursor just before the entry for playlist index idx, so
// the next call to Next returns it. An index that is not queued starts from
// the top.
func (q *Queue) StartAt(idx int) {
	q.current = -1
	q.pinned = false
	for i, e := range q.items {
		if e.Index == idx {
			q.current = i - 1
			q.pinned = true
			return
		}
	}
}

func (q *Queue) SetRepeat(m RepeatMode) { q.repeatMode = m }

func (q *Queue) RepeatMode() RepeatMode { return q.repeatMode }

func (q *Queue) IsShuffled() bool { return q.shuffled }

// Shuffle randomizes the order and rewinds. After StartAt or Next, the entry
// Next would have returned stays first.
func (q *Queue) Shuffle(rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	next := q.current + 1
	if (q.current < 0 && !q.pinned) || next >= len(q.items) {
		next = -1
	}
	var keep []Entry
	rest := make([]Entry, 0, len(q.items))
	for i, e := range q.items {
		if i == next {
			keep = append(keep, e)
			continue
		}
		rest = append(rest, e)
	}
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	q.items = append(keep, rest...)
	q.current = -1
	q.shuffled = true
}

// Next advances the cursor and returns the entry to play.
func (q *Queue) Next() (Entry, error) {
	if len(q.items) == 0 {
		return Entry{}, ErrEmpty
	}

	if q.repeatMode == RepeatOne && q.current >= 0 {
		return q.items[q.current], nil
	}

	if q.current < len(q.items)-1 {
		q.current++
	} else if q.repeatMode == RepeatAll {
		q.current = 0
	} else {
		return Entry{}, ErrEnd
	}
	return q.items[q.current], nil
}
