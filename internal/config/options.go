package config

import (
	"io"
	"log/slog"

	"github.com/roach88/phasetrack/internal/engine"
)

// TrackerOptions converts the engine section into tracker options.
func (c *Config) TrackerOptions() []engine.TrackerOption {
	return []engine.TrackerOption{
		engine.WithOwnerCheck(c.Engine.OwnerCheck),
		engine.WithPoolCapacity(c.Engine.PoolCapacity),
		engine.WithMaxDepth(c.Engine.MaxDepth),
	}
}

// Level returns the configured slog level. Unknown names fall back to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Handler builds the slog handler selected by the log section.
func (c *Config) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.Log.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
