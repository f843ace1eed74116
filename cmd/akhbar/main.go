package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adda-Baaj/akhbar/internal/aggregator"
	"github.com/Adda-Baaj/akhbar/internal/api"
	"github.com/Adda-Baaj/akhbar/internal/config"
	"github.com/Adda-Baaj/akhbar/internal/crawler"
	"github.com/Adda-Baaj/akhbar/internal/logger"
	"github.com/Adda-Baaj/akhbar/internal/scheduler"
	"github.com/Adda-Baaj/akhbar/internal/store"
	"github.com/Adda-Baaj/akhbar/pkg/feed"
	"github.com/Adda-Baaj/akhbar/pkg/httpclient"
	"github.com/Adda-Baaj/akhbar/pkg/providers"
	"github.com/Adda-Baaj/akhbar/pkg/publishers"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	registry, err := loadSources(cfg.Sources.File)
	if err != nil {
		return err
	}

	client := httpclient.NewRestyClient(cfg.HTTP.FetchTimeout)
	defer client.Close()

	engine := aggregator.New(
		feed.NewFetcher(client, cfg.HTTP.FetchTimeout, cfg.HTTP.UserAgent),
		registry,
		aggregator.WithSourceDeadline(cfg.HTTP.SourceDeadline),
		aggregator.WithLogger(log),
	)

	runnerOpts := []scheduler.Option{
		scheduler.WithTimeout(cfg.Refresh.Timeout),
		scheduler.WithLogger(log),
	}

	pubs, err := buildPublishers(ctx, cfg.Publishers.File, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publishers.CloseAll(pubs); err != nil {
			log.WarnObj("closing publishers failed", "publisher_close_error", map[string]any{"error": err.Error()})
		}
	}()
	if len(pubs) > 0 {
		runnerOpts = append(runnerOpts, scheduler.WithPublishers(pubs))
	}

	if cfg.Ledger.Path != "" {
		ledger, err := store.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer ledger.Close()
		runnerOpts = append(runnerOpts, scheduler.WithLedger(ledger, cfg.Ledger.Retention))
	}

	if cfg.Enrich.Enabled {
		runnerOpts = append(runnerOpts, scheduler.WithEnricher(crawler.NewEnricher(client, cfg.Enrich.RequestDelay, log)))
	}

	runner := scheduler.New(engine, runnerOpts...)
	if cfg.Refresh.Cron != "" {
		if err := runner.StartCron(cfg.Refresh.Cron); err != nil {
			return err
		}
	}

	srv := api.New(engine, registry, api.WithLogger(log), api.WithRefresher(runner))
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// sources run in parallel, each bounded by the fetch timeout or the source deadline
		WriteTimeout: max(cfg.HTTP.FetchTimeout, cfg.HTTP.SourceDeadline) + 15*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.InfoObj("api server starting", "server_start", map[string]any{
			"addr":    cfg.HTTP.Addr,
			"sources": len(registry.All()),
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.InfoObj("shutdown signal received", "server_shutdown", nil)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.ErrorObj("server shutdown failed", "server_shutdown_error", map[string]any{"error": err.Error()})
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.WarnObj("background refreshes still running at exit", "runner_stop_timeout", map[string]any{"error": err.Error()})
	}
	return nil
}

func loadSources(path string) (*providers.Registry, error) {
	if path == "" {
		reg, err := providers.DefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("load built-in sources: %w", err)
		}
		return reg, nil
	}
	reg, err := providers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load sources %s: %w", path, err)
	}
	return reg, nil
}

func buildPublishers(ctx context.Context, path string, log logger.Logger) ([]publishers.Publisher, error) {
	if path == "" {
		return nil, nil
	}
	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), reg.Enabled(), log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	return pubs, nil
}
