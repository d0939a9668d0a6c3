// Package config handles the global bibfix configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matsen/bibfix/internal/enrich"
	"github.com/matsen/bibfix/internal/logging"
	"github.com/matsen/bibfix/internal/match"
	"github.com/matsen/bibfix/internal/merge"
	"github.com/matsen/bibfix/internal/reference"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the effective bibfix configuration.
type Config struct {
	// Mailto is sent to CrossRef to join its polite pool.
	Mailto      string        `yaml:"mailto,omitempty" json:"mailto,omitempty"`
	Threshold   float64       `yaml:"threshold" json:"threshold"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`

	// Priority orders sources when filling empty fields.
	Priority []string `yaml:"priority" json:"priority"`

	// Overridable lists fields a source may overwrite, as "field=src+src".
	Overridable []string `yaml:"overridable,omitempty" json:"overridable,omitempty"`

	// Sources are the enabled sources.
	Sources []string `yaml:"sources" json:"sources"`

	Cache  CacheConfig  `yaml:"cache" json:"cache"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Server ServerConfig `yaml:"server" json:"server"`
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	// Path of the SQLite cache. Empty disables the persistent tier.
	Path     string        `yaml:"path,omitempty" json:"path,omitempty"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	Disabled bool          `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

const (
	DefaultCacheTTL   = 30 * 24 * time.Hour
	DefaultServerAddr = "127.0.0.1:8765"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Threshold:   match.DefaultThreshold,
		Timeout:     enrich.DefaultTimeout,
		Concurrency: enrich.DefaultConcurrency,
		Priority:    sourceNames(reference.AllSources),
		Overridable: []string{"doi=crossref"},
		Sources:     sourceNames(reference.AllSources),
		Cache: CacheConfig{
			Path: DefaultCachePath(),
			TTL:  DefaultCacheTTL,
		},
		Log:    LogConfig{Level: "warn", Format: "console"},
		Server: ServerConfig{Addr: DefaultServerAddr},
	}
}

func sourceNames(srcs []reference.Source) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = string(s)
	}
	return out
}

// Validate checks the configuration for values bibfix cannot run with.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalid, c.Threshold)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalid, c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache ttl must not be negative", ErrInvalid)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources enabled", ErrInvalid)
	}
	if _, err := c.EnabledSources(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q (valid: json, console)", ErrInvalid, c.Log.Format)
	}
	return nil
}

// EnabledSources parses Sources, dropping duplicates.
func (c *Config) EnabledSources() ([]reference.Source, error) {
	return parseSources("sources", c.Sources)
}

// Policy builds the merge policy from Priority and Overridable.
func (c *Config) Policy() (merge.Policy, error) {
	prio, err := parseSources("priority", c.Priority)
	if err != nil {
		return merge.Policy{}, err
	}
	over, err := merge.ParseOverridable(c.Overridable)
	if err != nil {
		return merge.Policy{}, fmt.Errorf("%w: overridable: %w", ErrInvalid, err)
	}
	return merge.Policy{Priority: prio, Overridable: over}, nil
}

// Matcher builds the candidate matcher from Threshold and Priority.
func (c *Config) Matcher() (match.Matcher, error) {
	prio, err := parseSources("priority", c.Priority)
	if err != nil {
		return match.Matcher{}, err
	}
	return match.Matcher{Threshold: c.Threshold, Priority: prio}, nil
}

func parseSources(key string, names []string) ([]reference.Source, error) {
	seen := make(map[reference.Source]bool, len(names))
	var out []reference.Source
	for _, name := range names {
		src, err := reference.ParseSource(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
		}
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out, nil
}

// DefaultCachePath returns the default lookup cache location.
// Respects XDG_CACHE_HOME, defaults to ~/.cache/bibfix/lookups.db.
func DefaultCachePath() string {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, Dir, "lookups.db")
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
