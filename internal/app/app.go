// Package app wires configuration, storage, notifications and the engine
// into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/composition"
	"github.com/aayushbajaj/trigcap/internal/config"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/inertia"
	"github.com/aayushbajaj/trigcap/internal/keylogger"
	"github.com/aayushbajaj/trigcap/internal/keymap"
	"github.com/aayushbajaj/trigcap/internal/logging"
	"github.com/aayushbajaj/trigcap/internal/notify"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/storage"
)

// Options selects what New builds. Zero values pick the platform defaults.
type Options struct {
	ConfigPath string
	DBPath     string
	LogDir     string
	LogLevel   string
	Verbose    bool
	NoLogFile  bool
	// Sinks receive engine notifications after storage and notifications.
	Sinks []engine.Sink

	Monitor    keylogger.Monitor
	Checker    permission.Checker
	Translator keymap.Translator
	Focus      composition.FocusReader
	// Quiet disables desktop notifications regardless of config.
	Quiet bool
}

// App is a configured engine with its collaborators.
type App struct {
	Config      *config.Config
	Loader      *config.Loader
	Store       *storage.Store
	Engine      *engine.Engine
	Permissions *permission.Manager
	Log         *zap.Logger

	closeLog func()
}

// New loads configuration, opens storage and builds the engine.
func New(opts Options) (*App, error) {
	// Ensure HOME is set (needed when launched via launchctl/open)
	if os.Getenv("HOME") == "" {
		if u, err := user.Current(); err == nil {
			os.Setenv("HOME", u.HomeDir)
		}
	}

	path := opts.ConfigPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, closeLog, err := logging.New(logging.Options{
		Dir:     opts.LogDir,
		Level:   level,
		Verbose: opts.Verbose || cfg.Logging.Verbose,
		NoFile:  opts.NoLogFile,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: logger, closeLog: closeLog}
	a.Loader = config.NewLoader(path, logger)
	if _, err := a.Loader.Load(); err != nil {
		a.Close()
		return nil, err
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Storage.Path
	}
	if dbPath == "" {
		a.Store, err = storage.New()
	} else {
		a.Store, err = storage.NewWithPath(dbPath)
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	checker := opts.Checker
	if checker == nil {
		checker = permission.DefaultChecker()
	}
	a.Permissions = permission.NewManager(checker, logger.Named("permission"))

	monitor := opts.Monitor
	if monitor == nil {
		monitor = keylogger.New(keylogger.Options{Logger: logger})
	}

	focus := opts.Focus
	if focus == nil {
		focus = composition.DefaultFocusReader()
	}

	sinks := engine.Fanout{storage.NewRecorder(a.Store, logger)}
	if !opts.Quiet {
		sinks = append(sinks, notify.New(notify.Options{
			OnCapture:  cfg.Notifications.OnCapture,
			OnDegraded: cfg.Notifications.OnDegraded,
			OnConflict: cfg.Notifications.OnConflict,
		}, logger))
	}
	sinks = append(sinks, opts.Sinks...)

	a.Engine, err = engine.New(cfg.EngineOptions(), engine.Deps{
		Translator:  opts.Translator,
		Permissions: a.Permissions,
		Monitor:     monitor,
		Sink:        sinks,
		Eraser:      inertia.New(logger),
		Focus:       focus,
		AppName:     keylogger.AppName,
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Run watches the config file and runs the engine until ctx is done.
// Reloaded configs are applied to the running engine.
func (a *App) Run(ctx context.Context) error {
	a.Loader.OnChange(func(cfg *config.Config) {
		if err := a.Engine.SetOptions(ctx, cfg.EngineOptions()); err != nil && !errors.Is(err, context.Canceled) {
			a.Log.Warn("failed to apply reloaded config", zap.Error(err))
			return
		}
		a.Log.Info("applied reloaded config")
	})
	if err := a.Loader.Watch(ctx); err != nil {
		a.Log.Warn("config hot reload unavailable", zap.Error(err))
	}

	a.Log.Info("starting trigcap", zap.String("config", a.Loader.Path()))
	return a.Engine.Run(ctx)
}

// Close releases storage and flushes the log.
func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
	return err
}
