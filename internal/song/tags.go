package song

import (
	"errors"
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// ErrNotLocal is returned when a file operation is asked of a stream.
var ErrNotLocal = errors.New("song: not a local file")

// Tags holds the embedded metadata of a local audio file.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Track  int
	Format string
}

// Tags reads embedded metadata from a local song's file. Files without tags
// return tag.ErrNoTagsFound.
func (s Song) Tags() (Tags, error) {
	if !s.IsLocal() {
		return Tags{}, ErrNotLocal
	}
	f, err := os.Open(s.URL)
	if err != nil {
		return Tags{}, fmt.Errorf("open %s: %w", s.URL, err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, err
	}
	track, _ := meta.Track()
	return Tags{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
		Track:  track,
		Format: fmt.Sprint(meta.Format()),
	}, nil
}
