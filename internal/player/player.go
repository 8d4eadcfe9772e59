// Package player drives an mpv process over its JSON IPC socket.
package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/mixtape/mixtape/internal/song"
)

// ErrNotConnected is returned by commands sent before Start or after Stop.
var ErrNotConnected = errors.New("player: mpv not connected")

// Event describes a playback state update emitted by mpv.
type Event struct {
	TimePos  *float64
	Duration *float64
	Paused   *bool
	Volume   *float64
	Ended    bool   // true when the track ended naturally (eof)
	Reason   string // end-file reason: "eof", "stop", "quit", "error", "redirect"
	Err      error
}

// Options configures the Controller.
type Options struct {
	MPVPath        string
	IPCPath        string
	Logger         *slog.Logger
	DisableProcess bool
	Dial           func(ctx context.Context, network, addr string) (net.Conn, error)
	ExtraArgs      []string
	// StreamFormat is passed to mpv's ytdl-format before stream URLs.
	StreamFormat string
	// Volume is applied on Start when positive.
	Volume int
}

// Controller manages the mpv process and IPC connection.
type Controller struct {
	opts   Options
	cmd    *exec.Cmd
	conn   net.Conn
	mu     sync.Mutex
	events chan Event
	done   chan struct{}
}

func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MPVPath == "" {
		opts.MPVPath = "mpv"
	}
	if opts.StreamFormat == "" {
		opts.StreamFormat = "bestaudio"
	}
	return &Controller{
		opts:   opts,
		events: make(chan Event, 32),
		done:   make(chan struct{}),
	}
}

func DefaultIPCPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("mixtape-mpv-%d.sock", os.Getpid()))
}

// Start launches mpv (unless disabled) and connects to the IPC socket.
func (c *Controller) Start(ctx context.Context) error {
	if c.opts.IPCPath == "" {
		c.opts.IPCPath = DefaultIPCPath()
	}
	c.opts.Logger.Debug("starting player", slog.String("ipc_path", c.opts.IPCPath), slog.Bool("disable_process", c.opts.DisableProcess))
	if !c.opts.DisableProcess {
		if err := c.spawnMPV(ctx); err != nil {
			c.opts.Logger.Error("failed to spawn mpv", slog.Any("err", err))
			return err
		}
	}
	if err := c.connect(ctx); err != nil {
		c.opts.Logger.Error("failed to connect to mpv ipc", slog.Any("err", err))
		return err
	}
	if err := c.observeProperties(); err != nil {
		return err
	}
	if c.opts.Volume > 0 {
		if err := c.SetVolume(float64(c.opts.Volume)); err != nil {
			return err
		}
	}
	go c.readLoop()
	return nil
}

func (c *Controller) spawnMPV(ctx context.Context) error {
	args := []string{
		"--idle=yes",
		"--force-window=no",
		"--no-terminal",
		"--no-video",
		"--input-ipc-server=" + c.opts.IPCPath,
	}
	args = append(args, c.opts.ExtraArgs...)
	c.cmd = exec.CommandContext(ctx, c.opts.MPVPath, args...)
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}
	c.opts.Logger.Debug("mpv process started", slog.Int("pid", c.cmd.Process.Pid))
	return nil
}

// connect dials the socket with capped exponential backoff; mpv creates it
// a moment after the process starts.
func (c *Controller) connect(ctx context.Context) error {
	dial := c.opts.Dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: 5 * time.Second}).DialContext
	}
	var err error
	baseDelay := 50 * time.Millisecond
	maxDelay := 500 * time.Millisecond
	maxRetries := 10
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < maxRetries; i++ {
		var conn net.Conn
		conn, err = dial(ctx, "unix", c.opts.IPCPath)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("connect mpv ipc: %w", ctx.Err())
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(i))
			if delay > maxDelay {
				delay = maxDelay
			}
			jitter := time.Duration(float64(delay) * 0.2 * rng.Float64())
			c.opts.Logger.Debug("mpv ipc connection failed, retrying", slog.Int("attempt", i+1), slog.Any("err", err))
			select {
			case <-ctx.Done():
				return fmt.Errorf("connect mpv ipc: %w", ctx.Err())
			case <-time.After(delay + jitter):
			}
		}
	}
	return fmt.Errorf("connect mpv ipc: %w", err)
}

func (c *Controller) observeProperties() error {
	props := []string{"time-pos", "duration", "pause", "volume"}
	for i, p := range props {
		if err := c.send("observe_property", i+1, p); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the event channel. It is closed when the connection ends.
func (c *Controller) Events() <-chan Event { return c.events }

func (c *Controller) send(args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(map[string]any{"command": args})
	if err != nil {
		return err
	}
	_, err = c.conn.Write(append(b, '\n'))
	return err
}

// Target returns what mpv should load for s. Relative local paths are
// resolved against musicDir.
func Target(s song.Song, musicDir string) string {
	if s.IsLocal() {
		return s.AbsPath(musicDir)
	}
	return s.URL
}

// Play loads s into mpv, replacing the current track. Streams first select
// an audio-only format.
func (c *Controller) Play(s song.Song, musicDir string) error {
	target := Target(s, musicDir)
	c.opts.Logger.Debug("playing", slog.String("target", target), slog.String("kind", string(s.Kind)))
	if s.IsStream() {
		if err := c.send("set_property", "ytdl-format", c.opts.StreamFormat); err != nil {
			return fmt.Errorf("set stream format: %w", err)
		}
	}
	if err := c.send("loadfile", target, "replace"); err != nil {
		c.opts.Logger.Error("failed to send play command", slog.Any("err", err))
		return fmt.Errorf("load %s: %w", target, err)
	}
	return nil
}

// PlayWait plays s and blocks until mpv reports the end of the file. It
// returns nil when the track ran to the end.
func (c *Controller) PlayWait(ctx context.Context, s song.Song, musicDir string) error {
	if err := c.Play(s, musicDir); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.events:
			if !ok {
				return ErrNotConnected
			}
			if ev.Err != nil {
				c.opts.Logger.Warn("mpv event", slog.Any("err", ev.Err))
				continue
			}
			if ev.Reason == "" {
				continue
			}
			if ev.Ended {
				return nil
			}
			// "stop" follows our own replace; anything else aborts.
			if ev.Reason != "stop" {
				return fmt.Errorf("playback ended: %s", ev.Reason)
			}
		}
	}
}

func (c *Controller) TogglePause(paused bool) error {
	return c.send("set_property", "pause", paused)
}

func (c *Controller) SetVolume(vol float64) error {
	if vol < 0 {
		vol = 0
	}
	if vol > 100 {
		vol = 100
	}
	return c.send("set_property", "volume", vol)
}

func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	if c.conn != nil {
		b, _ := json.Marshal(map[string]any{"command": []any{"quit"}})
		_, _ = c.conn.Write(append(b, '\n'))
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
		c.cmd = nil
	}
	return nil
}

func (c *Controller) readLoop() {
	defer close(c.events)
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.emit(Event{Err: fmt.Errorf("decode: %w", err)})
			continue
		}
		switch msg.Event {
		case "property-change":
			c.handlePropertyChange(msg)
		case "end-file":
			c.emit(Event{Ended: msg.Reason == "eof", Reason: msg.Reason})
		}
	}
	select {
	case <-c.done:
	default:
		if err := scanner.Err(); err != nil {
			c.emit(Event{Err: err})
		}
	}
}

// emit delivers ev unless the controller is stopping.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

type ipcMessage struct {
	Event  string `json:"event"`
	Name   string `json:"name"`
	Data   any    `json:"data"`
	Reason string `json:"reason"`
}

func (c *Controller) handlePropertyChange(msg ipcMessage) {
	switch msg.Name {
	case "time-pos":
		if v, ok := msg.Data.(float64); ok {
			c.emit(Event{TimePos: &v})
		}
	case "duration":
		if v, ok := msg.Data.(float64); ok {
			c.emit(Event{Duration: &v})
		}
	case "pause":
		if b, ok := msg.Data.(bool); ok {
			c.emit(Event{Paused: &b})
		}
	case "volume":
		if v, ok := msg.Data.(float64); ok {
			c.emit(Event{Volume: &v})
		}
	}
}
