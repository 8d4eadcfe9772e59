package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mixtape/mixtape/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and migrate the play history",
	}

	migrate := &cobra.Command{
		Use:   "migrate [file]",
		Short: "Collapse per-play history events into one summary per track",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Library.HistoryFile
			if len(args) == 1 {
				path = args[0]
			}
			res, err := history.MigrateFile(path)
			if err != nil {
				return err
			}
			if res.BackedUp {
				a.printf("%s\n", a.theme.Dim.Render("backup written to "+res.BackupPath))
			}
			a.successf("migrated %d tracks, %d plays", res.Tracks, res.TotalPlays)
			return nil
		},
	}

	var limit int
	top := &cobra.Command{
		Use:   "top",
		Short: "Show the most played tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(cmd.Context(), func(ctx context.Context, idx *history.Index) ([]history.Stat, error) {
				return idx.TopPlayed(ctx, limit)
			})
		},
	}
	top.Flags().IntVarP(&limit, "limit", "n", 10, "number of tracks (0 for all)")

	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recently played tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(cmd.Context(), func(ctx context.Context, idx *history.Index) ([]history.Stat, error) {
				return idx.RecentlyPlayed(ctx, limit)
			})
		},
	}
	recent.Flags().IntVarP(&limit, "limit", "n", 10, "number of tracks (0 for all)")

	var since time.Duration
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count plays in a recent window and overall",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since <= 0 {
				return fmt.Errorf("--since must be positive, got %s", since)
			}
			ctx := cmd.Context()
			idx, err := a.syncedIndex(ctx)
			if err != nil {
				return err
			}
			defer idx.Close()

			now := time.Now()
			// The upper bound is exclusive; include a play recorded this instant.
			end := now.Add(time.Second)
			recent, err := idx.PlaysBetween(ctx, now.Add(-since), end)
			if err != nil {
				return err
			}
			total, err := idx.PlaysBetween(ctx, time.Unix(0, 0), end)
			if err != nil {
				return err
			}
			a.printf("%s plays in the last %s %s\n",
				a.theme.Accent.Render(fmt.Sprint(recent)),
				since,
				a.theme.Dim.Render(fmt.Sprintf("(%d total)", total)),
			)
			return nil
		},
	}
	stats.Flags().DurationVar(&since, "since", 30*24*time.Hour, "window to count, e.g. 24h or 168h")

	cmd.AddCommand(migrate, top, recent, stats)
	return cmd
}

// syncedIndex opens the SQLite index and rebuilds it from the history file.
func (a *app) syncedIndex(ctx context.Context) (*history.Index, error) {
	events, err := a.history().Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := history.OpenIndex(a.cfg.Library.IndexFile)
	if err != nil {
		return nil, err
	}
	if err := idx.Sync(ctx, events); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

// withIndex refreshes the index, runs query and prints its rows.
func (a *app) withIndex(ctx context.Context, query func(context.Context, *history.Index) ([]history.Stat, error)) error {
	idx, err := a.syncedIndex(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()

	stats, err := query(ctx, idx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		a.printf("%s\n", a.theme.Dim.Render("no plays recorded"))
		return nil
	}
	for i, s := range stats {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		last := ""
		if !s.LastPlayed.IsZero() {
			last = s.LastPlayed.Local().Format("2006-01-02 15:04")
		}
		a.printf("%3d. %s  %s  %s\n",
			i+1,
			a.theme.Text.Render(title),
			a.theme.Accent.Render(fmt.Sprintf("×%d", s.PlayCount)),
			a.theme.Dim.Render(last),
		)
	}
	return nil
}
