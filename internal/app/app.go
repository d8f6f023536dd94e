package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samvad-hq/hr-portal-client/internal/config"
	"github.com/samvad-hq/hr-portal-client/internal/logger"
	"github.com/samvad-hq/hr-portal-client/internal/storage"
	"github.com/samvad-hq/hr-portal-client/pkg/employees"
	"github.com/samvad-hq/hr-portal-client/pkg/httpclient"
	"github.com/samvad-hq/hr-portal-client/pkg/publishers"
)

// App is the wired employee client runtime: gateway, resource client and the
// optional cache and change-notification decorators selected by config.
type App struct {
	cfg      *config.Config
	log      logger.Logger
	service  employees.Service
	store    storage.Store
	fanout   *publishers.Fanout
	registry *prometheus.Registry
}

// New builds an App from config. Decorators are composed only when enabled.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a := &App{cfg: cfg, log: log}

	var metrics *httpclient.Metrics
	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		m, err := httpclient.NewMetrics(a.registry)
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	gw, err := httpclient.NewRestyGateway(httpclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.APIToken,
		UserAgent: cfg.APIUserAgent,
		Timeout:   cfg.APITimeout,
		Logger:    log,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init gateway: %w", err)
	}
	log.InfoObj("gateway initialized", "gateway_config", map[string]any{
		"base_url":        gw.BaseURL(),
		"timeout_seconds": int(cfg.APITimeout.Seconds()),
		"authenticated":   strings.TrimSpace(cfg.APIToken) != "",
		"metrics_enabled": cfg.MetricsEnabled,
	})

	var svc employees.Service = employees.NewClient(gw)

	if storage.Enabled(cfg.CacheType) {
		store, err := storage.NewStore(cfg.CacheType, cfg.CachePath, storage.Options{
			TTL:             cfg.CacheTTL,
			CleanupInterval: cfg.CacheCleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		a.store = store
		svc = employees.NewCached(svc, store, log)
		log.InfoObj("cache initialized", "cache_config", map[string]any{
			"type":                     cfg.CacheType,
			"path":                     cfg.CachePath,
			"ttl_seconds":              int(cfg.CacheTTL.Seconds()),
			"cleanup_interval_seconds": int(cfg.CacheCleanupInterval.Seconds()),
		})
	}

	if strings.TrimSpace(cfg.PublishersFile) != "" {
		fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		if fanout != nil {
			a.fanout = fanout
			svc = employees.NewNotifying(svc, fanout, log)
		}
	}

	a.service = svc
	return a, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	pubCfg, err := publishers.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers config: %w", err)
	}
	enabled := pubCfg.Enabled()
	if len(enabled) == 0 {
		log.WarnObj("no enabled publishers; change notification disabled", "publishers_file", path)
		return nil, nil
	}

	routes, err := publishers.DefaultBuilders().Routes(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]any, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]any{
			"id":          p.ID,
			"type":        p.Type,
			"actions":     p.Actions,
			"omit_record": p.OmitRecord,
		})
	}
	log.InfoObj("change publishers configured", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(routes...), nil
}

// Service returns the composed employee service.
func (a *App) Service() employees.Service { return a.service }

// MetricsSummary flattens gateway metrics into "name{labels}" -> value. Histograms
// report their sample count. It returns nil when metrics are disabled.
func (a *App) MetricsSummary() (map[string]float64, error) {
	if a == nil || a.registry == nil {
		return nil, nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			key := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// Close releases the cache and publisher connections.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.fanout != nil {
		if err := a.fanout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publishers: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.ErrorObj("cache close failed", "error", err)
	}
	a.store = nil
}
