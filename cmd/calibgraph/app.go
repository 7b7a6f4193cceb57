package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/randalmurphal/calibgraph/internal/demo"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/config"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/runstate"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/snapshot"
)

// App holds the services shared by every command.
type App struct {
	Settings config.Settings
	Logger   *slog.Logger
	Store    snapshot.Store
	Catalog  *demo.Catalog
	Tracker  *runstate.Tracker

	out       io.Writer
	telemetry *telemetry
}

func newApp(cli *CLI, out, logOut io.Writer) (*App, error) {
	settings := config.Default()
	if cli.Config != "" {
		var err error
		if settings, err = config.FromFile(cli.Config); err != nil {
			return nil, err
		}
	}
	if cli.LogLevel != "" {
		settings.Log.Level = cli.LogLevel
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := newLogger(settings.Log, logOut)
	if err != nil {
		return nil, err
	}

	store, err := openStore(settings.Snapshot)
	if err != nil {
		return nil, err
	}

	tel := newTelemetry(settings, logger)
	opts := []calibgraph.OrchestratorOption{
		calibgraph.WithSkipFailed(settings.SkipFailed),
		calibgraph.WithSnapshotStore(store),
		calibgraph.WithSnapshotFailureFatal(settings.Snapshot.Fatal),
	}
	opts = append(opts, tel.orchestratorOptions()...)

	catalog, err := demo.NewCatalog(demo.NewDevice(demo.WithBroken(cli.Broken...)))
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	logger.Debug("library loaded",
		slog.Int("runnables", catalog.Library.Len()),
		slog.Any("graphs", catalog.Library.Graphs()))

	tracker := runstate.NewTracker(
		runstate.WithOrchestrator(calibgraph.NewOrchestrator(opts...)),
		runstate.WithLibrary(catalog.Library),
		runstate.WithLogger(logger),
	)

	return &App{
		Settings:  settings,
		Logger:    logger,
		Store:     store,
		Catalog:   catalog,
		Tracker:   tracker,
		out:       out,
		telemetry: tel,
	}, nil
}

// Close flushes telemetry and closes the snapshot store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.telemetry.shutdown(ctx), a.Store.Close())
}

// newLogger builds the slog handler selected by settings.
func newLogger(s config.LogSettings, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(s.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

// openStore opens the SQLite store at s.Path, or an in-memory store when no
// path is configured.
func openStore(s config.SnapshotSettings) (snapshot.Store, error) {
	if s.Path == "" {
		return snapshot.NewMemoryStore(), nil
	}
	store, err := snapshot.NewSQLiteStore(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store %s: %w", s.Path, err)
	}
	return store, nil
}
