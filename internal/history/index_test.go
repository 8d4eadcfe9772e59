package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRankings(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	defer idx.Close()

	events := decode(t, `[
		{"url": "a", "ts": 100, "title": "A"},
		{"url": "a", "ts": 200},
		{"url": "a", "ts": 300, "title": "A"},
		{"url": "b", "ts": 400, "title": "B", "type": "youtube"},
		{"url": "c", "ts": 250},
		{"url": "c", "ts": 260},
		{"url": "never"}
	]`)
	require.NoError(t, idx.Sync(ctx, events))

	top, err := idx.TopPlayed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].URL)
	assert.Equal(t, "A", top[0].Title)
	assert.Equal(t, 3, top[0].PlayCount)
	assert.Equal(t, "c", top[1].URL)

	recent, err := idx.RecentlyPlayed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "b", recent[0].URL)
	assert.Equal(t, "youtube", recent[0].Type)
	assert.Equal(t, time.Unix(400, 0), recent[0].LastPlayed)

	n, err := idx.PlaysBetween(ctx, time.Unix(200, 0), time.Unix(300, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndexSyncReplaces(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Sync(ctx, decode(t, `[{"url": "a", "ts": 1}]`)))
	require.NoError(t, idx.Sync(ctx, decode(t, `[{"url": "b", "ts": 2}]`)))

	all, err := idx.TopPlayed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].URL)
}
