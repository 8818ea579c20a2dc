package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog"
	"github.com/marcelsud/plop-reliability/config"
	"github.com/marcelsud/plop-reliability/endpoints"
	"github.com/marcelsud/plop-reliability/internal/http/chi"
	"github.com/marcelsud/plop-reliability/metrics"
	"github.com/marcelsud/plop-reliability/ratelimit"
	"github.com/marcelsud/plop-reliability/store"
	"github.com/marcelsud/plop-reliability/webhook"
	"github.com/marcelsud/plop-reliability/webhook/postgres"
)

const TIMEOUT = 30 * time.Second

/* Wires the backing store, the data layer and the delivery pipeline, then
 * serves the scheduler-facing API until a termination signal arrives.
 * Imports flow one way: cmd -> domain packages -> storage.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	logger := httplog.NewLogger("plop-reliability", httplog.Options{
		JSON: cfg.LogJSON,
	})

	handle := store.New(cfg.Store(), logger)
	defer handle.Close()

	if err := cfg.ValidatePostgres(); err != nil {
		fmt.Println(err)
		return
	}
	repo, err := postgres.NewRepositoryWithPoolConfig(
		cfg.PostgresURL,
		cfg.PostgresMaxOpenConns,
		cfg.PostgresMaxIdleConns,
		cfg.PostgresConnMaxLifeMinutes,
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)
	if cfg.PostgresAutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			fmt.Println(err)
			return
		}
	}

	exporter, err := metrics.NewOTelExporter(metrics.NewStoreCollector(handle))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	opts := []webhook.Option{
		webhook.WithTimeout(cfg.WebhookTimeout()),
		webhook.WithRecorder(exporter),
		webhook.WithLogger(logger),
	}
	if cfg.WebhookEndpointsFile != "" {
		catalog, err := endpoints.LoadFile(cfg.WebhookEndpointsFile)
		if err != nil {
			fmt.Println(err)
			return
		}
		logger.Info().Int("endpoints", len(catalog.List())).Msg("using endpoint catalog")
		opts = append(opts, webhook.WithEndpointSource(catalog))
	}
	s := webhook.NewService(repo, opts...)

	r := chi.Handlers(ctx, chi.Dependencies{
		Deliveries: s,
		Limiter:    ratelimit.New(handle, ratelimit.WithLogger(logger)),
		Store:      handle,
		Metrics:    exporter.ServeHTTP(),
		Recorder:   exporter,
		AdminToken: cfg.AdminToken,
		Logger:     logger,
	})
	if cfg.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN not set, operator routes reject every request")
	}
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	logger.Info().Str("port", cfg.Port).Bool("store_enabled", handle.Enabled()).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	default:
		errShutdown <- fmt.Errorf("forcing server close: %w", err)
	}
}
