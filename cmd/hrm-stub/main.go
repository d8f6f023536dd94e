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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samvad-hq/hr-portal-client/internal/config"
	"github.com/samvad-hq/hr-portal-client/internal/logger"
	"github.com/samvad-hq/hr-portal-client/internal/stubserver"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hrm-stub start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sugar, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	log := logger.New(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := stubserver.Options{
		Token:  cfg.StubToken,
		Prefix: "/api",
		Logger: log,
	}
	var reg *prometheus.Registry
	if cfg.MetricsEnabled {
		reg = prometheus.NewRegistry()
		opts.Registerer = reg
	}
	backend := stubserver.New(opts)

	root := chi.NewRouter()
	if reg != nil {
		root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	root.Mount("/", backend.Handler())

	srv := &http.Server{
		Addr:              cfg.StubAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("stub backend listening", "stub_config", map[string]any{
			"addr":            cfg.StubAddr,
			"prefix":          "/api",
			"authenticated":   cfg.StubToken != "",
			"metrics_enabled": cfg.MetricsEnabled,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("stub backend serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.InfoObj("stub backend shutting down", "reason", ctx.Err())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stub backend shutdown: %w", err)
	}
	return nil
}
