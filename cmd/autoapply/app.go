package main

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/pipeline"
	"github.com/Korbielowski/AutoApply/internal/store"
)

const dbFile = "autoapply.db"

// app holds what every command shares: live config, logger and store.
type app struct {
	cfgPath string
	cfgVal  atomic.Value // config.Config
	log     logger.Logger
	db      *store.DB
}

func setup(ctx context.Context) (*app, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	cfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		return nil, fmt.Errorf("config bootstrap failed: %w", err)
	}

	a := &app{cfgPath: cfgPath}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", cfgPath, err)
	}
	a.cfgVal.Store(cfg)

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	if a.log, err = logger.New(logger.Config{Level: level, Development: cfg.Log.Development}); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, dbFile)
	if a.db, err = store.Open(ctx, dbPath); err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	a.log.Info("engine ready", logger.String("config", cfgPath), logger.String("db", dbPath))
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) config() config.Config { return a.cfgVal.Load().(config.Config) }

// loadConfig reads the user config and resolves relative paths against
// the data dir.
func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return cfg, err
	}
	config.ApplyEnv(&cfg, os.Getenv)
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = dataDir
	}
	if !filepath.IsAbs(cfg.Documents.OutputDir) {
		cfg.Documents.OutputDir = filepath.Join(cfg.App.DataDir, cfg.Documents.OutputDir)
	}
	return cfg, nil
}

// launch starts a browser and an oracle client for one run.
func (a *app) launch(ctx context.Context, cfg config.Config) (iter.Seq[pipeline.Event], func(), error) {
	o := cfg.Oracle
	c, err := oracle.New(o.Provider, o.APIKey, o.BaseURL, o.Model, o.Temperature, oracle.GuardOptions{
		Provider:          o.Provider,
		Policy:            oracle.DefaultPolicy(o.RetryDelay(), o.MaxRetries),
		RequestsPerMinute: o.RequestsPerMinute,
		Timeout:           o.Timeout(),
		BreakAfter:        5,
		BreakerWait:       time.Minute,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}

	b := cfg.Browser
	br, err := browser.NewChrome(ctx, browser.ChromeOptions{
		Headless:          b.Headless,
		ExecPath:          b.ExecPath,
		UserAgent:         b.UserAgent,
		Locale:            b.Locale,
		ActionTimeout:     time.Duration(b.ActionTimeoutSeconds) * time.Second,
		NavigationTimeout: time.Duration(b.NavigationTimeoutSeconds) * time.Second,
	}, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	d, err := pipeline.New(cfg, pipeline.Deps{Browser: br, Oracle: c, Store: a.db, Log: a.log})
	if err != nil {
		_ = br.Close()
		return nil, nil, err
	}
	return d.Run(ctx, cfg.Sites), func() { _ = br.Close() }, nil
}
