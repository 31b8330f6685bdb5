package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/contentsync/internal/config"
	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/crawler"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/logging"
	"github.com/Aman-CERP/contentsync/internal/notify"
	"github.com/Aman-CERP/contentsync/internal/pipeline"
	"github.com/Aman-CERP/contentsync/internal/policy"
	"github.com/Aman-CERP/contentsync/internal/repository"
	"github.com/Aman-CERP/contentsync/internal/store"
	"github.com/Aman-CERP/contentsync/internal/telemetry"
)

// app is the fully wired synchronizer for one project directory.
type app struct {
	dir     string
	cfg     *config.Config
	repo    *repository.Memory
	cached  *repository.Cached
	store   store.Store
	oracle  *policy.Oracle
	metrics *telemetry.Metrics
	sync    *crawler.Synchronizer
	pipe    *pipeline.Pipeline

	closers []func()
}

// appOptions select what openApp wires.
type appOptions struct {
	// readOnly skips the data directory lock and the synchronizer.
	readOnly bool
}

// openApp loads configuration and wires every component in dependency
// order: logging, repository, cache, store, policy, event sinks, metrics,
// synchronizer and pipeline.
func openApp(ctx context.Context, dir string, opts appOptions) (a *app, err error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	a = &app{dir: dir, cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.setupLogging(); err != nil {
		return nil, err
	}

	repo, err := repository.Load(cfg.Repository.Path)
	if err != nil {
		return nil, err
	}
	if repo.Database() != cfg.Index.Database {
		return nil, serrors.New(serrors.ErrCodeConfigInvalid,
			fmt.Sprintf("repository %s holds database %q but index %s is built from %q",
				cfg.Repository.Path, repo.Database(), cfg.Index.Name, cfg.Index.Database), nil).
			WithSuggestion("set index.database to the repository's database")
	}
	a.repo = repo
	a.cached = repository.NewCached(repo, cfg.Repository.CacheSize)

	backend, err := store.ParseBackend(cfg.Store.Backend)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeConfigInvalid, err.Error(), err)
	}
	if !opts.readOnly && backend != store.BackendMemory {
		lock := store.NewDataDirLock(cfg.Store.DataDir)
		if err := lock.TryLock(); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = lock.Unlock() })
	}

	st, err := store.Open(backend, cfg.Store.DataDir, cfg.Index.Name)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, func() { _ = st.Close() })

	oracle, err := policy.NewOracle(a.cached, policy.Options{
		ExcludePaths:     cfg.Policy.ExcludePaths,
		ExcludeTemplates: cfg.Policy.ExcludeTemplates,
		Languages:        cfg.Policy.Languages,
		Paused:           cfg.Policy.Paused,
	})
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeInvalidPattern, "invalid policy.exclude_paths", err)
	}
	a.oracle = oracle

	if opts.readOnly {
		return a, nil
	}

	a.metrics = telemetry.NewMetrics()
	a.metrics.RegisterCache(a.cached.Stats)

	crawlerCfg, err := crawlerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sink := notify.MultiSink{
		notify.NewLogSink(nil),
		notify.NewCacheInvalidator(a.cached),
		a.metrics,
	}
	a.sync = crawler.New(crawlerCfg, a.cached, a.metrics.InstrumentStore(st), oracle, sink)
	a.pipe = pipeline.New(a.sync, pipeline.Config{
		Workers:  cfg.Pipeline.Workers,
		Observer: a.metrics,
	})

	slog.Debug("synchronizer ready",
		slog.String("index", cfg.Index.Name),
		slog.String("backend", string(backend)),
		slog.String("repository", cfg.Repository.Path),
		slog.Int("workers", cfg.Pipeline.Workers))
	return a, nil
}

func (a *app) setupLogging() error {
	lc := logging.Config{
		Level:         a.cfg.Logging.Level,
		FilePath:      a.cfg.Logging.File,
		MaxSizeMB:     a.cfg.Logging.MaxSizeMB,
		MaxFiles:      a.cfg.Logging.MaxFiles,
		WriteToStderr: debugMode,
	}
	if debugMode {
		lc.Level = "debug"
	}

	previous := slog.Default()
	cleanup, err := logging.SetupDefault(lc)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.closers = append(a.closers, func() {
		slog.SetDefault(previous)
		cleanup()
	})
	return nil
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// storePath is the on-disk location of the index, empty for memory.
func (a *app) storePath() string {
	backend, _ := store.ParseBackend(a.cfg.Store.Backend)
	return store.Path(backend, a.cfg.Store.DataDir, a.cfg.Index.Name)
}

// crawlerConfig maps the index configuration onto the synchronizer's.
func crawlerConfig(cfg *config.Config) (crawler.Config, error) {
	consistency, err := content.ParseReadConsistency(cfg.Index.ReadConsistency)
	if err != nil {
		return crawler.Config{}, serrors.New(serrors.ErrCodeConfigInvalid, "invalid index.read_consistency", err)
	}
	return crawler.Config{
		IndexName:                   cfg.Index.Name,
		Database:                    cfg.Index.Database,
		RootPath:                    cfg.Index.Root,
		RootID:                      cfg.Index.RootID,
		EnableItemLanguageFallback:  cfg.Index.EnableItemLanguageFallback,
		EnableFieldLanguageFallback: cfg.Index.EnableFieldLanguageFallback,
		ProcessDependencies:         cfg.Index.ProcessDependencies,
		Formatter:                   cfg.Index.Formatter,
		ReadConsistency:             consistency,
	}, nil
}

// absDir resolves the --dir flag.
func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	return abs, nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
