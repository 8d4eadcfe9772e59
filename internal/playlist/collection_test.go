package playlist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixtape/mixtape/internal/song"
)

func openTemp(t *testing.T) (*Collection, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playlists.json")
	c, err := Open(path, Options{})
	require.NoError(t, err)
	return c, path
}

func readStore(t *testing.T, path string) storeFile {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var f storeFile
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestOpenMissingCreatesDefault(t *testing.T) {
	c, path := openTemp(t)

	assert.Equal(t, []string{DefaultID}, c.Order())
	def, ok := c.Get(DefaultID)
	require.True(t, ok)
	assert.Equal(t, "Default", def.Name)

	f := readStore(t, path)
	assert.Equal(t, []string{DefaultID}, f.Order)
	require.Len(t, f.Playlists, 1)
}

func TestLoadLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlists.json")
	legacy := `[
		{"id": "p1", "name": "One", "songs": ["music/a.mp3"]},
		{"id": "p2", "name": "Two", "songs": []}
	]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	c, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultID, "p1", "p2"}, c.Order())

	songs := c.SongsOf("p1")
	require.Len(t, songs, 1)
	assert.Equal(t, "a", songs[0].Title)
	assert.Equal(t, song.KindLocal, songs[0].Kind())

	f := readStore(t, path)
	assert.Equal(t, []string{DefaultID, "p1", "p2"}, f.Order)
}

func TestLoadObjectKeepsOrderAndDedups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlists.json")
	store := `{
		"order": ["p2", "default", "p2", "ghost"],
		"playlists": [
			{"id": "default", "name": "Default", "songs": []},
			{"id": "p1", "name": "One", "songs": []},
			{"id": "p2", "name": "Two", "songs": []}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(store), 0o644))
	before, err := os.Stat(path)
	require.NoError(t, err)

	c, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", DefaultID, "ghost", "p1"}, c.Order())

	names := make([]string, 0)
	for _, p := range c.All() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Two", "Default", "One"}, names)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "a clean load does not rewrite the file")
}

func TestLoadHydratesAndSavesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlists.json")
	store := `{"order": ["default"], "playlists": [
		{"id": "default", "name": "Default", "songs": [
			{"url": "https://www.youtube.com/watch?v=h1", "type": "youtube", "title": "H"}
		]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(store), 0o644))

	c, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://img.youtube.com/vi/h1/maxresdefault.jpg", c.SongsOf(DefaultID)[0].ThumbnailURL)

	f := readStore(t, path)
	assert.Equal(t, "https://img.youtube.com/vi/h1/maxresdefault.jpg", f.Playlists[0].Songs[0].ThumbnailURL)
}

func TestLoadMalformedIsQuarantined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlists.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c, err := Open(path, Options{})
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.Equal(t, []string{DefaultID}, c.Order())

	corrupt, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(corrupt))

	f := readStore(t, path)
	assert.Equal(t, []string{DefaultID}, f.Order)
}

func TestLoadScalarIsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlists.json")
	require.NoError(t, os.WriteFile(path, []byte("42"), 0o644))

	_, err := Open(path, Options{})
	assert.True(t, IsMalformed(err))
}

func TestLoadAssignsMissingIDs(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))
	path := filepath.Join(t.TempDir(), "playlists.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "A"}, {"name": "B"}]`), 0o644))

	c, err := Open(path, Options{})
	require.NoError(t, err)
	order := c.Order()
	require.Len(t, order, 3)
	assert.NotEqual(t, order[1], order[2])
	assert.Equal(t, 3, c.Count())
}

func TestCreateRenameDelete(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))
	c, path := openTemp(t)

	p, err := c.Create("Road trip")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultID, p.ID}, c.Order())

	ok, err := c.Rename(p.ID, "Night drive")
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := c.Get(p.ID)
	assert.Equal(t, "Night drive", got.Name)

	ok, err = c.Rename("missing", "x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Delete(p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{DefaultID}, c.Order())
	assert.Equal(t, []string{DefaultID}, readStore(t, path).Order)
}

func TestEmptyNames(t *testing.T) {
	c, path := openTemp(t)

	p, err := c.Create("")
	require.NoError(t, err)
	assert.Equal(t, untitledName, p.Name, "new playlists get a placeholder")

	ok, err := c.Rename(p.ID, "")
	require.NoError(t, err)
	require.True(t, ok)

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	got, ok := reopened.Get(p.ID)
	require.True(t, ok)
	assert.Empty(t, got.Name, "an empty stored name survives a reload")
}

func TestDeleteUnknownDoesNotSave(t *testing.T) {
	c, path := openTemp(t)
	require.NoError(t, os.Remove(path))

	ok, err := c.Delete("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteDefaultIsRecreatedOnLoad(t *testing.T) {
	c, path := openTemp(t)
	ok, err := c.Delete(DefaultID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, c.Order())

	again, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultID}, again.Order())
}

func TestReorderCollection(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))
	c, _ := openTemp(t)
	a, err := c.Create("A")
	require.NoError(t, err)
	b, err := c.Create("B")
	require.NoError(t, err)
	before := c.Order()

	for _, bad := range [][]string{
		{a.ID, b.ID},
		{a.ID, b.ID, "other"},
		{a.ID, a.ID, b.ID},
	} {
		ok, err := c.ReorderCollection(bad)
		require.NoError(t, err)
		assert.False(t, ok, "%v", bad)
		assert.Equal(t, before, c.Order())
	}

	ok, err := c.ReorderCollection([]string{b.ID, DefaultID, a.ID})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{b.ID, DefaultID, a.ID}, c.Order())
}

func TestSongOperationsPersist(t *testing.T) {
	c, path := openTemp(t)

	ok, err := c.AddPathTo(DefaultID, "a.mp3")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = c.AddSongTo(DefaultID, song.Record{URL: "https://youtu.be/v1", Type: "youtube"})
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = c.AddPathTo(DefaultID, "a.mp3")
	assert.False(t, ok)
	ok, _ = c.AddPathTo("missing", "a.mp3")
	assert.False(t, ok)

	ok, err = c.ReorderSongsIn(DefaultID, 0, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.mp3", c.SongsOf(DefaultID)[0].URL)

	ok, err = c.ReplaceSongOrderIn(DefaultID, []string{"https://youtu.be/v1", "a.mp3"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.SetCurrentIndex(DefaultID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = c.SetCurrentIndex(DefaultID, 2)
	assert.False(t, ok)

	f := readStore(t, path)
	require.Len(t, f.Playlists[0].Songs, 2)
	assert.Equal(t, "https://img.youtube.com/vi/v1/maxresdefault.jpg", f.Playlists[0].Songs[0].ThumbnailURL)
	require.NotNil(t, f.Playlists[0].CurrentPlayingIndex)
	assert.Equal(t, 1, *f.Playlists[0].CurrentPlayingIndex)

	removed, ok, err := c.RemoveAtIndexIn(DefaultID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.mp3", removed.URL)

	ok, err = c.RemoveSongFrom(DefaultID, "https://youtu.be/v1")
	require.NoError(t, err)
	assert.True(t, ok)

	c.AddPathTo(DefaultID, "b.mp3")
	ok, err = c.ClearPlaylist(DefaultID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, c.SongsOf(DefaultID))
	assert.Nil(t, c.SongsOf("missing"))
}

func TestExportImport(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))
	c, _ := openTemp(t)
	p, err := c.Create("Mix")
	require.NoError(t, err)
	c.AddPathTo(p.ID, "a.mp3")

	dest := filepath.Join(t.TempDir(), "out", "mix.json")
	ok, err := c.Export(p.ID, dest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Export("missing", dest)
	require.NoError(t, err)
	assert.False(t, ok)

	other, _ := openTemp(t)
	imported, replaced, err := other.Import(dest)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, p.ID, imported.ID)
	assert.Equal(t, []string{"a.mp3"}, imported.URLs())
	assert.Equal(t, []string{DefaultID, p.ID}, other.Order())

	_, replaced, err = other.Import(dest)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, []string{DefaultID, p.ID}, other.Order(), "re-import does not duplicate the id")

	for _, content := range []string{"[]", "null", "  ", `"x"`} {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(content), 0o644))
		_, _, err = other.Import(bad)
		assert.True(t, IsMalformed(err), content)
	}
	assert.Equal(t, []string{DefaultID, p.ID}, other.Order(), "rejected imports leave the collection alone")

	_, _, err = other.Import(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))
	c, _ := openTemp(t)
	_, err := c.Create("Morning Jazz")
	require.NoError(t, err)
	_, err = c.Create("jazz fusion")
	require.NoError(t, err)
	_, err = c.Create("Rock")
	require.NoError(t, err)

	hits := c.Search("JAZZ")
	require.Len(t, hits, 2)
	assert.Equal(t, "Morning Jazz", hits[0].Name)
	assert.Equal(t, "jazz fusion", hits[1].Name)
	assert.Len(t, c.Search(""), 4)
	assert.Empty(t, c.Search("metal"))
}

func TestConcurrentAdds(t *testing.T) {
	c, path := openTemp(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.AddPathTo(DefaultID, filepath.Join("music", string(rune('a'+i))+".mp3"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.SongsOf(DefaultID), 20)
	assert.Len(t, readStore(t, path).Playlists[0].Songs, 20)
}

func TestSaveFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playlists.json")
	c, err := Open(path, Options{})
	require.NoError(t, err)

	// Replace the store with a directory so the rename fails.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0o755))

	ok, err := c.AddPathTo(DefaultID, "a.mp3")
	assert.True(t, ok)
	assert.Error(t, err)
	assert.Len(t, c.SongsOf(DefaultID), 1)
}
