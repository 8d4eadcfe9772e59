package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/mixtape/mixtape/internal/playlist"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, data files and dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a.runDoctor(ctx)
			return nil
		},
	}
}

func (a *app) runDoctor(ctx context.Context) {
	ok := a.theme.Success.Render("OK")
	a.printf("%s\n", a.theme.Title.Render("mixtape doctor"))

	if _, err := os.Stat(a.resolved); err == nil {
		a.printf("Config file: %s (%s)\n", ok, a.resolved)
	} else {
		a.printf("Config file: %s (%s)\n", a.theme.Dim.Render("defaults"), a.resolved)
	}

	if err := a.cfg.CheckPlayer(); err != nil {
		a.printf("mpv (%s): %s\n", a.cfg.Player.MPVPath, a.theme.Error.Render("NOT FOUND"))
	} else {
		path, _ := exec.LookPath(a.cfg.Player.MPVPath)
		if path == "" {
			path = a.cfg.Player.MPVPath
		}
		a.printf("mpv: %s (%s)\n", ok, path)
	}
	if _, err := exec.LookPath("yt-dlp"); err != nil {
		a.printf("yt-dlp: %s\n", a.theme.Warning.Render("NOT FOUND (needed for YouTube streams)"))
	} else {
		a.printf("yt-dlp: %s\n", ok)
	}

	c, err := playlist.Open(a.cfg.Library.PlaylistsFile, playlist.Options{Logger: a.logger})
	switch {
	case err == nil:
		a.printf("Playlists: %s (%d in %s)\n", ok, c.Count(), c.Path())
	case playlist.IsMalformed(err):
		a.printf("Playlists: %s (moved to %s.corrupt, started over)\n", a.theme.Warning.Render("MALFORMED"), c.Path())
	default:
		a.printf("Playlists: %s - %v\n", a.theme.Error.Render("ERROR"), err)
	}

	events, err := a.history().Load(ctx)
	switch {
	case err == nil && len(events) == 0:
		a.printf("History: %s\n", a.theme.Dim.Render("none yet"))
	case err == nil:
		plays := 0
		for _, ev := range events {
			plays += ev.PlayCount()
		}
		a.printf("History: %s (%d records, %d plays)\n", ok, len(events), plays)
	default:
		a.printf("History: %s - %v\n", a.theme.Error.Render("ERROR"), err)
	}

	if a.cfg.Resolver.Enabled {
		a.printf("Resolver: %s (%s, timeout %s, %d retries)\n", ok, a.cfg.Resolver.Endpoint, a.cfg.ResolverTimeout(), a.cfg.Resolver.Retries)
	} else {
		a.printf("Resolver: %s\n", a.theme.Dim.Render("disabled"))
	}

	d := a.cfg.Defaults
	a.printf("Defaults: theme=%s auto_stream=%t volume=%d language=%s thumbnails=%s\n",
		d.Theme, d.AutoStream, d.StreamVolume, d.Language, d.ThumbnailQuality)

	a.logger.Info("doctor complete")
}
