package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/spf13/cobra"

	"github.com/mixtape/mixtape/internal/playlist"
	"github.com/mixtape/mixtape/internal/queue"
	"github.com/mixtape/mixtape/internal/resolve"
	"github.com/mixtape/mixtape/internal/song"
)

func newSongCmd(a *app) *cobra.Command {
	var plID string
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Add, remove and order the songs of a playlist",
	}
	cmd.PersistentFlags().StringVarP(&plID, "playlist", "p", playlist.DefaultID, "playlist id")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the songs of a playlist, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			p, ok := c.Get(plID)
			if !ok {
				return notFound(plID)
			}
			a.printf("%s %s\n", a.theme.Title.Render(p.Name), a.theme.Dim.Render(fmt.Sprintf("(%d songs)", p.Count())))
			for i, r := range p.Songs {
				a.printSong(i, r, i == p.CurrentPlayingIndex)
			}
			return nil
		},
	}

	var (
		title string
		play  bool
	)
	add := &cobra.Command{
		Use:   "add <url|path>",
		Short: "Add a stream URL or local file to the top of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			if _, ok := c.Get(plID); !ok {
				return notFound(plID)
			}

			s, rec := a.buildRecord(args[0], title)
			ok, err := c.AddSongTo(plID, rec)
			if err != nil {
				return err
			}
			if !ok {
				a.warnf("%s is already in %s", rec.URL, plID)
				return nil
			}
			a.successf("added %s", rec.Title)

			if !cmd.Flags().Changed("play") {
				play = a.cfg.Defaults.AutoStream && s.IsStream()
			}
			if !play {
				return nil
			}
			// New songs go to the top, so the playlist index is 0.
			return a.runQueue(cmd.Context(), c, plID, queue.FromSongs([]song.Record{rec}))
		},
	}
	add.Flags().StringVar(&title, "title", "", "title to store instead of the tagged or resolved one")
	add.Flags().BoolVar(&play, "play", false, "play the song after adding it (default: defaults.auto_stream for streams)")

	rm := &cobra.Command{
		Use:   "rm <index|url>",
		Short: "Remove a song by position or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			if idx, convErr := strconv.Atoi(args[0]); convErr == nil {
				removed, ok, err := c.RemoveAtIndexIn(plID, idx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no song at index %d in %s", idx, plID)
				}
				a.successf("removed %s", removed.Title)
				return nil
			}
			ok, err := c.RemoveSongFrom(plID, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not in %s", args[0], plID)
			}
			a.successf("removed %s", args[0])
			return nil
		},
	}

	move := &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a song to another position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}
			c, err := a.collection()
			if err != nil {
				return err
			}
			ok, err := c.ReorderSongsIn(plID, from, to)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("cannot move %d to %d in %s", from, to, plID)
			}
			a.successf("moved %d to %d", from, to)
			return nil
		},
	}

	order := &cobra.Command{
		Use:   "order <url...>",
		Short: "Replace the song order; every URL must be named once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.collection()
			if err != nil {
				return err
			}
			ok, err := c.ReplaceSongOrderIn(plID, args)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("order must list every song URL of the playlist exactly once")
			}
			a.successf("reordered %s", plID)
			return nil
		},
	}

	cmd.AddCommand(list, add, rm, move, order)
	return cmd
}

// buildRecord turns a command-line argument into a song. http(s) URLs are
// streams whose metadata is looked up; anything else is a local path whose
// embedded tags are read when present.
func (a *app) buildRecord(arg, title string) (song.Song, song.Record) {
	if isURL(arg) {
		kind := song.KindStream
		if song.VideoID(arg) != "" {
			kind = song.KindYouTube
		}
		s := song.NewStream(arg, title, kind, 0, "")
		s.Quality = song.Quality(a.cfg.Defaults.ThumbnailQuality)
		rec := s.Record()
		if rec.Artist == song.PlaceholderTitle {
			rec.Artist = ""
		}
		if r := a.resolver(); r != nil {
			ctx, cancel := a.cfg.DeadlineContext()
			defer cancel()
			resolve.Fill(ctx, r, &rec, a.logger)
		}
		return s, rec
	}

	s := song.NewLocal(arg, title, 0)
	rec := s.Record()
	tags, err := s.Tags()
	switch {
	case err == nil:
		if title == "" && tags.Title != "" {
			rec.Title, rec.Name = tags.Title, tags.Title
		}
		if tags.Artist != "" {
			rec.Artist = tags.Artist
		}
	case errors.Is(err, tag.ErrNoTagsFound):
	default:
		a.logger.Debug("read tags", "path", arg, "err", err)
	}
	return s, rec
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (a *app) printSong(i int, r song.Record, current bool) {
	marker := " "
	if current {
		marker = a.theme.Accent.Render("▶")
	}
	if r.IsRaw() {
		a.printf("%s %3d  %s\n", marker, i, a.theme.Dim.Render("(unreadable entry)"))
		return
	}
	dur := ""
	if r.Duration > 0 {
		dur = (time.Duration(r.Duration) * time.Second).String()
	}
	a.printf("%s %3d  %s  %s  %s\n",
		marker, i,
		a.theme.Text.Render(r.Title),
		a.theme.Dim.Render(string(r.Kind())),
		a.theme.Dim.Render(dur),
	)
}
