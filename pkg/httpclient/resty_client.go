package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	defaultTimeout  = 15 * time.Second
	requestIDHeader = "X-Request-ID"
)

// Options configures a RestyGateway. Credentials are passed explicitly; the
// gateway never reads them from ambient storage.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
	Logger    Logger
	Metrics   *Metrics
}

// RestyGateway adapts resty.Client to the Gateway interface.
type RestyGateway struct {
	client  *resty.Client
	baseURL string
	log     Logger
	metrics *Metrics
}

// NewRestyGateway creates a gateway bound to a single base URL.
func NewRestyGateway(opts Options) (*RestyGateway, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway base url is empty")
	}

	c := newRestyBaseClient(opts.Timeout)
	c.SetBaseURL(base)
	c.SetHeader("Accept", "application/json")
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		c.SetHeader("User-Agent", ua)
	}
	if headers := sanitizeHeaders(opts.Headers); len(headers) > 0 {
		c.SetHeaders(headers)
	}
	if token := strings.TrimSpace(opts.Token); token != "" {
		c.SetAuthToken(token)
	}

	return &RestyGateway{
		client:  c,
		baseURL: base,
		log:     ensureLogger(opts.Logger),
		metrics: opts.Metrics,
	}, nil
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// BaseURL returns the normalized base URL requests are resolved against.
func (g *RestyGateway) BaseURL() string { return g.baseURL }

// Do performs one HTTP exchange. It never retries.
func (g *RestyGateway) Do(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	r := g.client.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString())
	if headers := sanitizeHeaders(req.Headers); len(headers) > 0 {
		r.SetHeaders(headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Path)
	if err != nil {
		g.metrics.observe(method, 0, time.Since(start))
		g.log.WarnObj("gateway transport failure", "gateway_error", map[string]any{
			"method": method,
			"path":   req.Path,
			"error":  err.Error(),
		})
		return nil, &TransportError{Method: method, URL: g.baseURL + req.Path, Err: err}
	}

	status := resp.StatusCode()
	g.metrics.observe(method, status, time.Since(start))
	g.log.DebugObj("gateway exchange completed", "gateway_exchange", map[string]any{
		"method":     method,
		"path":       req.Path,
		"status":     status,
		"request_id": r.Header.Get(requestIDHeader),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, newRequestError(status, resp.Header().Get("Content-Type"), resp.Body())
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
