// Package app wires a loaded configuration into the compression engine and
// the services around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docpress/internal/api"
	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/events"
	"github.com/dgallion1/docpress/internal/llm"
	"github.com/dgallion1/docpress/internal/metrics"
	"github.com/dgallion1/docpress/internal/pathstore"
	"github.com/dgallion1/docpress/internal/pipeline"
	"github.com/dgallion1/docpress/internal/reportstore"
)

// App holds the long-lived collaborators of the HTTP service.
type App struct {
	Config    config.Config
	Engine    *compress.Engine
	Store     *reportstore.Store
	Claude    *llm.ClaudeClient // nil without an Anthropic key
	Pathstore *pathstore.Client // nil without a pathstore URL
	Exporter  *pathstore.Exporter
	Metrics   *metrics.Metrics

	metricsHandler http.Handler
	log            *slog.Logger
}

// New opens the report store and builds every client cfg enables. A nil
// registry uses the Prometheus default registerer.
func New(cfg config.Config, log *slog.Logger, reg *prometheus.Registry) (*App, error) {
	a := &App{Config: cfg, log: log}

	if reg == nil {
		a.Metrics = metrics.New(prometheus.DefaultRegisterer)
		a.metricsHandler = promhttp.Handler()
	} else {
		a.Metrics = metrics.New(reg)
		a.metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	claude, err := NewClaude(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Claude = claude

	a.Engine, err = NewEngine(cfg, log, claude, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Store, err = reportstore.Open(cfg.Store.Path)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Pathstore.URL != "" {
		a.Pathstore = pathstore.NewClient(cfg.Pathstore.URL, cfg.Pathstore.APIKey)
		a.Exporter = pathstore.NewExporter(a.Pathstore)
	}
	return a, nil
}

// NewClaude returns nil, nil when no Anthropic key is configured.
func NewClaude(cfg config.Config, log *slog.Logger) (*llm.ClaudeClient, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, nil
	}
	c, err := llm.NewClaudeClient(cfg.LLM(), log)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return c, nil
}

// NewEngine builds the compression engine. Events go to the log and to any
// extra observers. claude may be nil.
func NewEngine(cfg config.Config, log *slog.Logger, claude *llm.ClaudeClient, observers ...events.Observer) (*compress.Engine, error) {
	obs := events.Multi{events.LogObserver(log)}
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	opts := []compress.Option{
		compress.WithObserver(obs),
		compress.WithParserOptions(cfg.Parser()),
	}
	if claude != nil {
		opts = append(opts, compress.WithGenerator(claude))
	}
	return compress.New(cfg.EngineConfig(), opts...)
}

// Orchestrator builds an unstarted job pipeline over the app's collaborators.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(a.Config.Pipeline, pipeline.Deps{
		Engine:   a.Engine,
		Store:    a.Store,
		Exporter: a.Exporter,
		Metrics:  a.Metrics,
		Log:      a.log,
	})
}

// Handler builds the API handler around orch.
func (a *App) Handler(orch *pipeline.Orchestrator) http.Handler {
	return api.NewServer(orch, api.Options{
		Claude:   a.Claude,
		Exporter: a.Exporter,
		Metrics:  a.metricsHandler,
	}, a.log, a.Config)
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight
// requests and stops the workers.
func (a *App) Serve(ctx context.Context) error {
	orch := a.Orchestrator()
	orch.Start(ctx)
	defer orch.Stop()

	httpServer := &http.Server{
		Addr:         ":" + a.Config.Server.Port,
		Handler:      a.Handler(orch),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting docpress",
			"port", a.Config.Server.Port,
			"strategy", a.Config.Compression.Strategy,
			"llm", a.Claude != nil,
			"pathstore", a.Exporter != nil,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the store and clients.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Claude != nil {
		a.Claude.Close()
	}
	if a.Pathstore != nil {
		a.Pathstore.Close()
	}
	return errors.Join(errs...)
}
