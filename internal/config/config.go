package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/mixtape/mixtape/internal/song"
)

// EnvPrefix prefixes every environment override, e.g. MIXTAPE_LIBRARY_MUSIC_DIR.
const EnvPrefix = "MIXTAPE"

// Config holds mixtape runtime configuration loaded from TOML and the
// environment.
type Config struct {
	ConfigVersion int            `toml:"config_version" split_words:"true"`
	Library       LibraryConfig  `toml:"library" envconfig:"LIBRARY"`
	Player        PlayerConfig   `toml:"player" envconfig:"PLAYER"`
	Resolver      ResolverConfig `toml:"resolver" envconfig:"RESOLVER"`
	Log           LogConfig      `toml:"log" envconfig:"LOG"`
	Defaults      Defaults       `toml:"defaults" envconfig:"DEFAULTS"`
}

// LibraryConfig locates the data files. Relative file names are taken
// relative to DataDir.
type LibraryConfig struct {
	DataDir       string `toml:"data_dir" split_words:"true"`
	PlaylistsFile string `toml:"playlists_file" split_words:"true"`
	HistoryFile   string `toml:"history_file" split_words:"true"`
	IndexFile     string `toml:"index_file" split_words:"true"`
	MusicDir      string `toml:"music_dir" split_words:"true"`
}

type PlayerConfig struct {
	MPVPath      string   `toml:"mpv_path" split_words:"true"`
	IPC          string   `toml:"ipc" split_words:"true"`
	StreamFormat string   `toml:"stream_format" split_words:"true"`
	ExtraArgs    []string `toml:"extra_args" split_words:"true"`
	RecordPlays  bool     `toml:"record_plays" split_words:"true"`
}

type ResolverConfig struct {
	Enabled   bool   `toml:"enabled" split_words:"true"`
	Endpoint  string `toml:"endpoint" split_words:"true"`
	TimeoutMS int    `toml:"timeout_ms" split_words:"true"`
	Retries   int    `toml:"retries" split_words:"true"`
}

type LogConfig struct {
	Level      string `toml:"level" split_words:"true"`
	File       string `toml:"file" split_words:"true"`
	MaxSizeMB  int    `toml:"max_size_mb" split_words:"true"`
	MaxBackups int    `toml:"max_backups" split_words:"true"`
	MaxAgeDays int    `toml:"max_age_days" split_words:"true"`
	Compress   bool   `toml:"compress" split_words:"true"`
	// Stderr copies warnings and errors to standard error.
	Stderr bool `toml:"stderr" split_words:"true"`
}

// Defaults are the user-setting defaults a client starts from.
type Defaults struct {
	Theme            string `toml:"theme" split_words:"true"`
	AutoStream       bool   `toml:"auto_stream" split_words:"true"`
	StreamVolume     int    `toml:"stream_volume" split_words:"true"`
	Language         string `toml:"language" split_words:"true"`
	ThumbnailQuality string `toml:"thumbnail_quality" split_words:"true"`
}

var (
	themes    = []string{"light", "dark", "auto"}
	languages = []string{"auto", "zh", "en"}
)

// Load reads configuration from disk and applies environment overrides. If
// path is empty, a default OS-specific location is used. A missing file is
// not an error; the defaults apply.
func Load(path string) (*Config, string, error) {
	cfgPath := path
	if cfgPath == "" {
		var err error
		cfgPath, err = DefaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
	}

	// Defaults a user may turn off or set to zero are set before decoding, so
	// only an absent key keeps them.
	cfg := Config{
		Player:   PlayerConfig{RecordPlays: true},
		Resolver: ResolverConfig{Enabled: true, Retries: 2},
		Log:      LogConfig{Stderr: true},
	}
	data, err := os.ReadFile(cfgPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, cfgPath, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, cfgPath, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, cfgPath, fmt.Errorf("env overrides: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, cfgPath, err
	}

	if err := Validate(cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// DefaultPath returns config.toml in the user config directory.
func DefaultPath() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func baseDir() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mixtape"), nil
}

func applyDefaults(cfg *Config) error {
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = 1
	}
	if cfg.Library.DataDir == "" {
		dir, err := baseDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.Library.DataDir = dir
	}
	cfg.Library.PlaylistsFile = inDataDir(cfg, cfg.Library.PlaylistsFile, "playlists.json")
	cfg.Library.HistoryFile = inDataDir(cfg, cfg.Library.HistoryFile, "playback_history.json")
	cfg.Library.IndexFile = inDataDir(cfg, cfg.Library.IndexFile, filepath.Join("state", "history.db"))
	if cfg.Library.MusicDir == "" {
		cfg.Library.MusicDir = filepath.Join(cfg.Library.DataDir, "music")
	}

	if cfg.Player.MPVPath == "" {
		cfg.Player.MPVPath = "mpv"
	}
	if cfg.Player.StreamFormat == "" {
		cfg.Player.StreamFormat = "bestaudio"
	}

	if cfg.Resolver.Endpoint == "" {
		cfg.Resolver.Endpoint = "https://www.youtube.com/oembed"
	}
	if cfg.Resolver.TimeoutMS == 0 {
		cfg.Resolver.TimeoutMS = 8000
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = inDataDir(cfg, cfg.Log.File, filepath.Join("logs", "mixtape.log"))
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}

	if cfg.Defaults.Theme == "" {
		cfg.Defaults.Theme = "dark"
	}
	// 0 is read as unset; a muted default volume is not useful.
	if cfg.Defaults.StreamVolume == 0 {
		cfg.Defaults.StreamVolume = 50
	}
	if cfg.Defaults.Language == "" {
		cfg.Defaults.Language = "auto"
	}
	if cfg.Defaults.ThumbnailQuality == "" {
		cfg.Defaults.ThumbnailQuality = string(song.QualityMaxRes)
	}
	return nil
}

func inDataDir(cfg *Config, name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.Library.DataDir, name)
}

// Validate performs semantic validation of a config with defaults applied.
// It does not require mpv; see CheckPlayer.
func Validate(cfg Config) error {
	if cfg.Library.PlaylistsFile == cfg.Library.HistoryFile {
		return errors.New("library.playlists_file and library.history_file must differ")
	}
	if cfg.Defaults.StreamVolume < 0 || cfg.Defaults.StreamVolume > 100 {
		return fmt.Errorf("defaults.stream_volume must be 0-100")
	}
	if !oneOf(cfg.Defaults.Theme, themes) {
		return fmt.Errorf("defaults.theme must be one of %s", strings.Join(themes, ", "))
	}
	if !oneOf(cfg.Defaults.Language, languages) {
		return fmt.Errorf("defaults.language must be one of %s", strings.Join(languages, ", "))
	}
	if !song.ValidQuality(song.Quality(cfg.Defaults.ThumbnailQuality)) {
		return fmt.Errorf("defaults.thumbnail_quality %q is not a known quality", cfg.Defaults.ThumbnailQuality)
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Resolver.Retries < 0 {
		return errors.New("resolver.retries must not be negative")
	}
	if cfg.Resolver.TimeoutMS < 0 {
		return errors.New("resolver.timeout_ms must not be negative")
	}
	return nil
}

// CheckPlayer reports whether the configured mpv binary can be found.
func (c Config) CheckPlayer() error {
	if _, err := os.Stat(c.Player.MPVPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, lookErr := execLookPath(c.Player.MPVPath); lookErr != nil {
				return fmt.Errorf("mpv not found (%s): %w", c.Player.MPVPath, lookErr)
			}
		}
	}
	return nil
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return lvl, nil
}

// ResolverTimeout returns the resolver's request timeout.
func (c Config) ResolverTimeout() time.Duration {
	d := time.Duration(c.Resolver.TimeoutMS) * time.Millisecond
	if d == 0 {
		d = 8 * time.Second
	}
	return d
}

// DeadlineContext returns a context bounded by the resolver timeout plus its
// retries.
func (c Config) DeadlineContext() (context.Context, context.CancelFunc) {
	d := c.ResolverTimeout() * time.Duration(c.Resolver.Retries+1)
	return context.WithTimeout(context.Background(), d)
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Test seams.
var (
	execLookPath  = exec.LookPath
	userConfigDir = os.UserConfigDir
)
