package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/bibfix/internal/cache"
	"github.com/matsen/bibfix/internal/config"
	"github.com/matsen/bibfix/internal/enrich"
	"github.com/matsen/bibfix/internal/logging"
	"github.com/matsen/bibfix/internal/merge"
	"github.com/matsen/bibfix/internal/metrics"
	"github.com/matsen/bibfix/internal/source"
)

// memoryCleanupInterval is how often expired in-memory lookups are dropped.
const memoryCleanupInterval = 10 * time.Minute

// Flags shared by the commands that query sources.
var (
	flagThreshold   float64
	flagTimeout     time.Duration
	flagConcurrency int
	flagSources     []string
	flagMailto      string
	flagNoCache     bool
	flagLogLevel    string
)

func addLookupFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "Minimum title similarity to accept a match (0-1)")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Per-source timeout for one entry")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Entries enriched at the same time")
	cmd.Flags().StringSliceVar(&flagSources, "sources", nil, "Sources to query (arxiv, crossref, dblp)")
	cmd.Flags().StringVar(&flagMailto, "mailto", "", "Contact email sent to CrossRef")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Do not read or write the lookup cache")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// mustLoadConfig loads the config file and applies flag overrides, exiting
// with ExitConfigError when the result is invalid.
func mustLoadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Threshold = flagThreshold
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if flags.Changed("sources") {
		cfg.Sources = flagSources
	}
	if flags.Changed("mailto") {
		cfg.Mailto = flagMailto
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Disabled = flagNoCache
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// app holds everything a lookup command needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	store    cache.Store
	enricher *enrich.Enricher
}

// mustSetup wires config, logging, cache, sources and the enricher.
func mustSetup(cmd *cobra.Command) *app {
	cfg := mustLoadConfig(cmd)

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	m, err := metrics.New(metrics.NewRegistry())
	if err != nil {
		exitWithError(ExitError, "registering metrics: %v", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: m}
	if !cfg.Cache.Disabled {
		a.store = openCache(cfg, logger)
	}

	srcs, _ := cfg.EnabledSources() // validated in mustLoadConfig
	adapters := make([]source.Adapter, 0, len(srcs))
	for _, src := range srcs {
		adapter, err := source.New(src,
			source.WithMailto(cfg.Mailto),
			source.WithLogger(logger.Named(string(src))))
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		if a.store != nil {
			adapter = source.NewCached(adapter, a.store, cfg.Cache.TTL)
		}
		adapters = append(adapters, adapter)
	}

	policy, _ := cfg.Policy()
	matcher, _ := cfg.Matcher()
	a.enricher = enrich.New(adapters,
		enrich.WithMatcher(matcher),
		enrich.WithMerger(merge.New(policy)),
		enrich.WithTimeout(cfg.Timeout),
		enrich.WithConcurrency(cfg.Concurrency),
		enrich.WithLogger(logger),
		enrich.WithMetrics(m))
	return a
}

// openCache returns the in-memory cache, backed by SQLite when a cache path
// is configured. A SQLite cache that cannot be opened is skipped.
func openCache(cfg *config.Config, logger *zap.Logger) cache.Store {
	mem := cache.NewMemory(cfg.Cache.TTL, memoryCleanupInterval)
	if cfg.Cache.Path == "" {
		return mem
	}

	db, err := cache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		logger.Warn("lookup cache unavailable, using memory only",
			zap.String("path", cfg.Cache.Path),
			zap.Error(err))
		return mem
	}
	return cache.NewTiered(mem, db, cfg.Cache.TTL)
}

// Close flushes the logger and closes the cache.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing cache", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
