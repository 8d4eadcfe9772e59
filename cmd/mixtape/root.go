package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mixtape/mixtape/internal/config"
	"github.com/mixtape/mixtape/internal/history"
	"github.com/mixtape/mixtape/internal/logging"
	"github.com/mixtape/mixtape/internal/player"
	"github.com/mixtape/mixtape/internal/playlist"
	"github.com/mixtape/mixtape/internal/resolve"
	"github.com/mixtape/mixtape/internal/song"
	"github.com/mixtape/mixtape/internal/theme"
)

// sink is the playback side of the play command.
type sink interface {
	Start(ctx context.Context) error
	PlayWait(ctx context.Context, s song.Song, musicDir string) error
	Stop() error
}

// app carries what every command needs once flags are parsed.
type app struct {
	out     io.Writer
	errOut  io.Writer
	cfgPath string
	envFile string
	noColor bool
	verbose bool

	cfg       *config.Config
	resolved  string
	logger    *slog.Logger
	logCloser io.Closer
	theme     theme.Theme

	// newPlayer and newResolver are replaced in tests.
	newPlayer   func(cfg *config.Config, logger *slog.Logger) sink
	newResolver func(cfg *config.Config, logger *slog.Logger) resolve.Resolver
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	return rootCmdFor(&app{
		out:         out,
		errOut:      errOut,
		newPlayer:   defaultPlayer,
		newResolver: defaultResolver,
	})
}

func rootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mixtape",
		Short:         "Manage local playlists of files and streams",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to config file (default: ~/.config/mixtape/config.toml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newPlaylistCmd(a),
		newSongCmd(a),
		newHistoryCmd(a),
		newPlayCmd(a),
		newDoctorCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.envFile != "" {
		// godotenv does not override variables that are already set.
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, resolved, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg, a.resolved = cfg, resolved

	level, _ := config.ParseLevel(cfg.Log.Level)
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := logging.Options{
		Path:       cfg.Log.File,
		Level:      level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if cfg.Log.Stderr {
		opts.Console = a.errOut
	}
	logger, closer, err := logging.Setup(opts)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	a.logger, a.logCloser = logger, closer
	slog.SetDefault(logger)

	a.theme = theme.Get(cfg.Defaults.Theme, a.noColor || os.Getenv("NO_COLOR") != "")
	logger.Debug("starting mixtape", slog.String("config", resolved), slog.String("version", version))
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// collection opens the playlist store. A malformed store has already been
// moved aside by Open, so the warning is printed and work continues; any
// other load error stops the command before it can overwrite the file.
func (a *app) collection() (*playlist.Collection, error) {
	c, err := playlist.Open(a.cfg.Library.PlaylistsFile, playlist.Options{Logger: a.logger})
	if err != nil {
		if playlist.IsMalformed(err) {
			a.warnf("playlist store was malformed and has been moved to %s.corrupt", c.Path())
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

func (a *app) history() *history.Store {
	return history.NewStore(a.cfg.Library.HistoryFile, a.logger)
}

func (a *app) resolver() resolve.Resolver {
	if !a.cfg.Resolver.Enabled {
		return nil
	}
	return a.newResolver(a.cfg, a.logger)
}

func defaultResolver(cfg *config.Config, logger *slog.Logger) resolve.Resolver {
	return resolve.NewOEmbed(resolve.Options{
		Endpoint: cfg.Resolver.Endpoint,
		Timeout:  cfg.ResolverTimeout(),
		Retries:  cfg.Resolver.Retries,
		Logger:   logger,
	})
}

func defaultPlayer(cfg *config.Config, logger *slog.Logger) sink {
	return player.New(player.Options{
		MPVPath:      cfg.Player.MPVPath,
		IPCPath:      cfg.Player.IPC,
		Logger:       logger,
		ExtraArgs:    cfg.Player.ExtraArgs,
		StreamFormat: cfg.Player.StreamFormat,
		Volume:       cfg.Defaults.StreamVolume,
	})
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) successf(format string, args ...any) {
	fmt.Fprintln(a.out, a.theme.Success.Render(fmt.Sprintf(format, args...)))
}

func (a *app) warnf(format string, args ...any) {
	fmt.Fprintln(a.out, a.theme.Warning.Render(fmt.Sprintf(format, args...)))
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", playlist.ErrNotFound, id)
}
