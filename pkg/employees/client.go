// Package employees is a typed façade over the HTTP gateway for the admin
// employee collection. The client is a stateless pass-through: it shapes
// requests, unwraps response bodies and returns gateway failures unchanged.
// It does not retry, cache, validate or mutate records locally; caching and
// change notification are separate decorators composed over Service.
package employees

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samvad-hq/hr-portal-client/pkg/httpclient"
)

// CollectionPath is the collection endpoint relative to the gateway base URL.
const CollectionPath = "/admin/employees"

// Service is the employee resource contract implemented by Client and its decorators.
type Service interface {
	List(ctx context.Context, query ListQuery) (ListResult, error)
	GetByID(ctx context.Context, id ID) (Employee, error)
	Create(ctx context.Context, record Employee) (Employee, error)
	Update(ctx context.Context, id ID, record Employee) (Employee, error)
	Delete(ctx context.Context, id ID) (Payload, error)
}

// Client issues employee requests through a Gateway.
type Client struct {
	gw httpclient.Gateway
}

var _ Service = (*Client)(nil)

// NewClient binds the resource client to a gateway.
func NewClient(gw httpclient.Gateway) *Client {
	return &Client{gw: gw}
}

// List reads the collection, forwarding query as request parameters.
func (c *Client) List(ctx context.Context, query ListQuery) (ListResult, error) {
	params, err := query.Values()
	if err != nil {
		return ListResult{}, fmt.Errorf("encode list query: %w", err)
	}

	resp, err := c.gw.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   CollectionPath,
		Query:  params,
	})
	if err != nil {
		return ListResult{}, err
	}

	var out ListResult
	if body := bytes.TrimSpace(resp.Body()); len(body) > 0 {
		if err := out.UnmarshalJSON(body); err != nil {
			return ListResult{}, fmt.Errorf("decode employee list: %w", err)
		}
	}
	return out, nil
}

// GetByID reads one record. A missing record surfaces as a *httpclient.RequestError with status 404.
func (c *Client) GetByID(ctx context.Context, id ID) (Employee, error) {
	path, err := resourcePath(id)
	if err != nil {
		return nil, err
	}
	return c.exchange(ctx, http.MethodGet, path, nil)
}

// Create posts a draft record and returns the server-assigned representation.
func (c *Client) Create(ctx context.Context, record Employee) (Employee, error) {
	return c.exchange(ctx, http.MethodPost, CollectionPath, bodyOf(record))
}

// Update replaces the record addressed by id.
func (c *Client) Update(ctx context.Context, id ID, record Employee) (Employee, error) {
	path, err := resourcePath(id)
	if err != nil {
		return nil, err
	}
	return c.exchange(ctx, http.MethodPut, path, bodyOf(record))
}

// Delete removes the record addressed by id and returns the raw confirmation body.
func (c *Client) Delete(ctx context.Context, id ID) (Payload, error) {
	path, err := resourcePath(id)
	if err != nil {
		return nil, err
	}

	resp, err := c.gw.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: path})
	if err != nil {
		return nil, err
	}
	return Payload(append([]byte(nil), resp.Body()...)), nil
}

func (c *Client) exchange(ctx context.Context, method, path string, body any) (Employee, error) {
	resp, err := c.gw.Do(ctx, httpclient.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 {
		return nil, nil
	}
	var out Employee
	if err := decodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("decode employee: %w", err)
	}
	return out, nil
}

func resourcePath(id ID) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", ErrEmptyID
	}
	return CollectionPath + "/" + url.PathEscape(string(id)), nil
}

// bodyOf always yields a JSON object so drafts without attributes still encode as {}.
func bodyOf(record Employee) any {
	if record == nil {
		return Employee{}
	}
	return record
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	status, ok := httpclient.StatusCode(err)
	return ok && status == http.StatusNotFound
}
