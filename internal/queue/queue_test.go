package queue

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixtape/mixtape/internal/song"
)

func sampleSongs(t *testing.T) []song.Record {
	t.Helper()
	var songs []song.Record
	require.NoError(t, json.Unmarshal([]byte(`["a.mp3", "b.mp3", 42, "c.mp3", "d.mp3"]`), &songs))
	return songs
}

func urls(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Song.URL
	}
	return out
}

func TestFromSongsSkipsRaw(t *testing.T) {
	q := FromSongs(sampleSongs(t))
	assert.Equal(t, 4, q.Len())
	assert.Equal(t, []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"}, urls(q.Items()))
	assert.Equal(t, 3, q.Items()[2].Index, "index refers to the playlist position")

	_, err := q.Current()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestNextRepeatModes(t *testing.T) {
	q := FromSongs(sampleSongs(t))
	var got []string
	for {
		e, err := q.Next()
		if err != nil {
			assert.ErrorIs(t, err, ErrEnd)
			break
		}
		got = append(got, e.Song.URL)
	}
	assert.Equal(t, []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"}, got)

	q.SetRepeat(RepeatAll)
	e, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", e.Song.URL)

	q.SetRepeat(RepeatOne)
	e, err = q.Next()
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", e.Song.URL)

	_, err = FromSongs(nil).Next()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestStartAt(t *testing.T) {
	q := FromSongs(sampleSongs(t))
	q.StartAt(3)
	e, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "c.mp3", e.Song.URL)

	q.StartAt(2)
	e, _ = q.Next()
	assert.Equal(t, "a.mp3", e.Song.URL, "raw positions start from the top")
}

func TestShuffleKeepsNext(t *testing.T) {
	q := FromSongs(sampleSongs(t))
	q.StartAt(4)
	q.Shuffle(rand.New(rand.NewSource(7)))
	assert.True(t, q.IsShuffled())

	e, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "d.mp3", e.Song.URL)
	assert.ElementsMatch(t, []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"}, urls(q.Items()))
}

func TestParseRepeat(t *testing.T) {
	for _, name := range []string{"off", "all", "one"} {
		m, err := ParseRepeat(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}
	_, err := ParseRepeat("forever")
	assert.Error(t, err)
}
