package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
)

//go:embed schema.cue
var schemaCUE string

// Config is the resolved phasetrack configuration.
type Config struct {
	Log     LogConfig     `json:"log"`
	Engine  EngineConfig  `json:"engine"`
	Journal JournalConfig `json:"journal"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"  env:"PHASETRACK_LOG_LEVEL"`
	Format string `json:"format" env:"PHASETRACK_LOG_FORMAT"`
}

// EngineConfig tunes trackers built from this configuration.
type EngineConfig struct {
	OwnerCheck   bool `json:"owner_check"   env:"PHASETRACK_OWNER_CHECK"`
	PoolCapacity int  `json:"pool_capacity" env:"PHASETRACK_POOL_CAPACITY"`
	MaxDepth     int  `json:"max_depth"     env:"PHASETRACK_MAX_DEPTH"`
}

// JournalConfig locates the SQLite event journal.
type JournalConfig struct {
	Path string `json:"path" env:"PHASETRACK_JOURNAL_PATH"`
}

// Error reports an invalid configuration.
type Error struct {
	Source  string // file path, "schema" or "env"
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Source, e.Message)
}

// Default returns the schema defaults with no file and no environment.
func Default() *Config {
	cfg, err := decode(nil, "")
	if err != nil {
		// The embedded schema is fixed at build time.
		panic(err)
	}
	return cfg
}

// Load resolves configuration in three layers: schema defaults, the CUE
// file at path (skipped when path is empty), then PHASETRACK_* environment
// variables. The result is validated against the schema after every layer.
func Load(path string) (*Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		src = data
	}

	cfg, err := decode(src, path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &Error{Source: "env", Message: err.Error()}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a resolved configuration against the schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(cfg))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &Error{Source: "env", Message: details(err)}
	}
	return nil
}

func decode(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return nil, err
	}

	v := def
	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, &Error{Source: filename, Message: details(err)}
		}
		v = def.Unify(user)
	}
	if err := v.Validate(); err != nil {
		return nil, &Error{Source: sourceName(filename), Message: details(err)}
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, &Error{Source: sourceName(filename), Message: details(err)}
	}
	return &cfg, nil
}

func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, &Error{Source: "schema", Message: details(err)}
	}
	def := v.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return cue.Value{}, &Error{Source: "schema", Message: "#Config not defined"}
	}
	return def, nil
}

func sourceName(filename string) string {
	if filename == "" {
		return "schema"
	}
	return filename
}

// details flattens a CUE error list into one message.
func details(err error) string {
	return cueerrors.Details(err, nil)
}
