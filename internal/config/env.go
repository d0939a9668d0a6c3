package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables overriding the config file.
const (
	EnvMailto      = "BIBFIX_MAILTO"
	EnvThreshold   = "BIBFIX_THRESHOLD"
	EnvTimeout     = "BIBFIX_TIMEOUT"
	EnvConcurrency = "BIBFIX_CONCURRENCY"
	EnvCachePath   = "BIBFIX_CACHE_PATH"
	EnvLogLevel    = "BIBFIX_LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Empty variables are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvMailto); ok {
		c.Mailto = v
	}
	if v, ok := get(EnvThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, EnvThreshold, err)
		}
		c.Threshold = f
	}
	if v, ok := get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := get(EnvConcurrency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	if v, ok := get(EnvCachePath); ok {
		c.Cache.Path = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	return nil
}
