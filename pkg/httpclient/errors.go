package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxMessageLen = 512

// RequestError reports a non-2xx response. Body holds the raw response bytes.
type RequestError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// TransportError reports an exchange that produced no HTTP response
// (unreachable host, timeout, cancelled context).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err when it wraps a *RequestError.
func StatusCode(err error) (int, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status, true
	}
	return 0, false
}

func newRequestError(status int, contentType string, body []byte) *RequestError {
	return &RequestError{
		Status:  status,
		Message: normalizeMessage(status, contentType, body),
		Body:    append([]byte(nil), body...),
	}
}

// normalizeMessage derives a human readable message from an error response body.
func normalizeMessage(status int, contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	fallback := http.StatusText(status)
	if fallback == "" {
		fallback = fmt.Sprintf("status %d", status)
	}
	if len(trimmed) == 0 {
		return fallback
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json") || trimmed[0] == '{':
		if msg := messageFromJSON(trimmed); msg != "" {
			return msg
		}
	case strings.Contains(ct, "html") || trimmed[0] == '<':
		if msg := messageFromHTML(trimmed); msg != "" {
			return msg
		}
		return fallback
	}

	return snippet(trimmed)
}

func messageFromJSON(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail", "title"} {
		if msg := stringField(doc[key]); msg != "" {
			return msg
		}
	}
	return ""
}

// stringField accepts a plain string or a nested object carrying "message".
func stringField(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return stringField(val["message"])
	}
	return ""
}

func messageFromHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return firstNonEmpty(
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxMessageLen {
		return s[:maxMessageLen] + "..."
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
