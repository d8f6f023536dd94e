package publishers

import (
	"context"
	"fmt"
)

// Builder constructs the sink for one config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Builders maps a sink type to its constructor.
type Builders map[string]Builder

// DefaultBuilders knows every sink type accepted by LoadConfig.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:      newWebhookPublisher,
		TypeSQS:       newSQSPublisher,
		TypeSNS:       newSNSPublisher,
		TypeGCPPubSub: newGCPPubSubPublisher,
	}
}

// Routes builds one route per config. Sinks opened before a failure are closed.
func (b Builders) Routes(ctx context.Context, cfgs []PublisherConfig, log Logger) ([]Route, error) {
	routes := make([]Route, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := b[cfg.Type]
		if !ok {
			_ = closeRoutes(routes)
			return nil, fmt.Errorf("publisher %q: no builder for type %q", cfg.ID, cfg.Type)
		}
		pub, err := build(ctx, cfg, log)
		if err != nil {
			_ = closeRoutes(routes)
			return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
		}
		routes = append(routes, Route{Publisher: pub, Actions: cfg.Actions, OmitRecord: cfg.OmitRecord})
	}
	return routes, nil
}
