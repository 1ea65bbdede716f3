// Package config holds the stock settings for every command and loads
// overrides from a TOML file.
package config

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	charmlog "github.com/charmbracelet/log"
	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/store"
)

// Store backends.
const (
	BackendFS    = "fs"
	BackendRedis = "redis"
)

// Log selects the level and output format of the default logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Store selects where run records are kept.
type Store struct {
	Backend string            `toml:"backend"`
	Dir     string            `toml:"dir"`
	Redis   store.RedisConfig `toml:"redis"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `toml:"addr"`
}

// File is the full set of settings. Sections missing from a loaded file keep
// their defaults.
type File struct {
	Log       Log             `toml:"log"`
	Store     Store           `toml:"store"`
	Server    Server          `toml:"server"`
	ANS       generate.Config `toml:"ans"`
	OneColour generate.Config `toml:"one_colour"`
	MTS       generate.Config `toml:"mts"`
}

// Default returns the stock configuration.
func Default() File {
	return File{
		Log:       Log{Level: "info", Format: "text"},
		Store:     Store{Backend: BackendFS, Dir: "./data", Redis: store.RedisConfig{Addr: "localhost:6379"}},
		Server:    Server{Addr: ":8080"},
		ANS:       ANSDefaults(),
		OneColour: OneColourDefaults(),
		MTS:       MTSDefaults(),
	}
}

// ANSDefaults is the two-colour approximate number system dataset.
func ANSDefaults() generate.Config {
	return generate.Config{
		OutputDir:     "images/ans",
		Format:        "png",
		Canvas:        dots.DefaultCanvas(),
		Radii:         dots.RadiusRange{Min: 20, Max: 30},
		AttemptsLimit: 2000,
		ImageAttempts: 100,
		Tolerance:     dots.Tolerance{Relative: 0.01},
		Growth:        dots.GrowStep,
		SearchIters:   60,
		Background:    "black",
		Primary:       "yellow",
		Secondary:     "blue",
		Train:         50,
		Test:          50,
		Ratios:        "all",
		MinPoints:     1,
		MaxPoints:     10,
		Summary:       true,
		Layouts:       true,
	}
}

// OneColourDefaults is ANSDefaults drawn in the primary colour only.
func OneColourDefaults() generate.Config {
	c := ANSDefaults()
	c.OutputDir = "images/one_colour"
	c.OneColour = true
	return c
}

// MTSDefaults is the match-to-sample dataset.
func MTSDefaults() generate.Config {
	c := ANSDefaults()
	c.OutputDir = "images/match_to_sample"
	c.Radii = dots.RadiusRange{Min: 5, Max: 15}
	c.AttemptsLimit = 10000
	c.ImageAttempts = 20
	c.Tolerance = dots.Tolerance{Relative: 0.05, Absolute: 2}
	c.MaxPoints = 9
	c.Train = 1
	c.Test = 1
	return c
}

// Load reads path on top of Default. Unknown keys are an error so typos do
// not silently fall back to defaults.
func Load(path string) (File, error) {
	f := Default()
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return File{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return f, f.Validate()
}

// Decode is Load for an already opened reader.
func Decode(r io.Reader) (File, error) {
	f := Default()
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return File{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return File{}, err
	}
	return f, f.Validate()
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	sort.Strings(names)
	return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
}

// Validate checks the ambient settings. Dataset sections are validated when
// a generator is built from them.
func (f File) Validate() error {
	if _, err := charmlog.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", f.Log.Level, err)
	}
	switch strings.ToLower(f.Log.Format) {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("unknown log format %q", f.Log.Format)
	}
	switch f.Store.Backend {
	case BackendFS:
		if f.Store.Dir == "" {
			return fmt.Errorf("store dir is required for the fs backend")
		}
	case BackendRedis:
		if f.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", f.Store.Backend)
	}
	return nil
}

// OpenStore builds the configured run store. The returned close function
// is never nil.
func (s Store) OpenStore(ctx context.Context) (store.Store, func() error, error) {
	switch s.Backend {
	case BackendRedis:
		rs, err := store.NewRedisStore(ctx, s.Redis)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	case BackendFS, "":
		fs, err := store.NewFSStore(s.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}
