package httpclient

import (
	"context"
	"net/url"
)

// Request describes a single exchange relative to the gateway base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Headers are added to this request only.
	Headers map[string]string
	// Body is JSON encoded when non-nil.
	Body any
}

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Gateway abstracts HTTP calls so callers can inject stubs or different transports.
// Do returns a *RequestError for non-2xx statuses and a *TransportError when no
// response was received.
type Gateway interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Logger defines the logging surface the gateway relies on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
