package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/hr-portal-client/pkg/httpclient"
)

// Webhook delivery headers.
const (
	headerEventID = "X-Event-ID"
	headerAction  = "X-Employee-Action"
)

// webhookPublisher posts events through the same gateway the employee client
// uses, so non-2xx replies surface as *httpclient.RequestError.
type webhookPublisher struct {
	id     string
	method string
	gw     httpclient.Gateway
	log    Logger
}

func newWebhookPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	gw, err := httpclient.NewRestyGateway(httpclient.Options{
		BaseURL:   cfg.HTTP.URL,
		UserAgent: "hr-portal-client/webhook",
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		Headers:   cfg.HTTP.Headers,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	return &webhookPublisher{id: cfg.ID, method: cfg.HTTP.Method, gw: gw, log: orNop(log)}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

func (w *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := w.gw.Do(ctx, httpclient.Request{
		Method:  w.method,
		Headers: map[string]string{headerEventID: evt.ID, headerAction: evt.Action},
		Body:    evt,
	})
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	w.log.DebugObj("webhook delivered employee event", "publisher_http_delivery", map[string]any{
		"publisher_id": w.id,
		"event_id":     evt.ID,
		"action":       evt.Action,
		"status":       resp.StatusCode(),
	})
	return nil
}
