package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mixtape/mixtape/internal/history"
	"github.com/mixtape/mixtape/internal/playlist"
	"github.com/mixtape/mixtape/internal/queue"
	"github.com/mixtape/mixtape/internal/song"
)

func newPlayCmd(a *app) *cobra.Command {
	var (
		from    int
		shuffle bool
		repeat  string
	)
	cmd := &cobra.Command{
		Use:   "play [playlist-id]",
		Short: "Play a playlist through mpv",
		Long: "Play a playlist through mpv, resuming at the playlist's current song\n" +
			"unless --from is given. Each play is recorded in the history.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := playlist.DefaultID
			if len(args) == 1 {
				id = args[0]
			}
			mode, err := queue.ParseRepeat(repeat)
			if err != nil {
				return err
			}

			c, err := a.collection()
			if err != nil {
				return err
			}
			p, ok := c.Get(id)
			if !ok {
				return notFound(id)
			}
			q := queue.FromSongs(p.Songs)
			if q.Len() == 0 {
				return fmt.Errorf("playlist %s has nothing to play", id)
			}

			start := p.CurrentPlayingIndex
			if cmd.Flags().Changed("from") {
				start = from
			}
			if start >= 0 {
				q.StartAt(start)
			}
			q.SetRepeat(mode)
			if shuffle {
				q.Shuffle(nil)
			}
			return a.runQueue(cmd.Context(), c, id, q)
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "playlist index to start at (default: resume)")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "shuffle the queue")
	cmd.Flags().StringVar(&repeat, "repeat", "off", "repeat mode: off, all or one")
	return cmd
}

// runQueue plays q until it ends or the user interrupts. The playlist's
// current index follows playback and is cleared when it stops.
func (a *app) runQueue(ctx context.Context, c *playlist.Collection, plID string, q *queue.Queue) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := a.newPlayer(a.cfg, a.logger)
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	defer func() {
		if err := p.Stop(); err != nil {
			a.logger.Debug("stop player", slog.Any("err", err))
		}
	}()
	defer func() {
		if _, err := c.SetCurrentIndex(plID, -1); err != nil {
			a.logger.Warn("clear current index", slog.String("playlist", plID), slog.Any("err", err))
		}
	}()

	store := a.history()
	failures := 0
	for {
		e, err := q.Next()
		if errors.Is(err, queue.ErrEnd) {
			return nil
		}
		if err != nil {
			return err
		}

		s := song.FromRecord(e.Song)
		if _, err := c.SetCurrentIndex(plID, e.Index); err != nil {
			a.logger.Warn("save current index", slog.String("playlist", plID), slog.Any("err", err))
		}
		a.printf("%s %s\n", a.theme.Accent.Render("▶"), a.theme.Title.Render(s.Title))

		if a.cfg.Player.RecordPlays {
			_, err := store.Record(ctx, history.Play{
				URL:      s.URL,
				Title:    s.Title,
				Type:     string(s.Kind),
				Duration: s.Duration,
			})
			if err != nil {
				a.logger.Warn("record play", slog.String("url", s.URL), slog.Any("err", err))
			}
		}

		if err := p.PlayWait(ctx, s, a.cfg.Library.MusicDir); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			a.warnf("could not play %s: %v", s.Title, err)
			if q.RepeatMode() == queue.RepeatOne || failures >= q.Len() {
				return fmt.Errorf("playback failed: %w", err)
			}
			continue
		}
		failures = 0
	}
}
