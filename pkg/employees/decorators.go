package employees

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samvad-hq/hr-portal-client/pkg/publishers"
)

// Logger defines the logging surface used by the decorators. Client itself never logs.
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

// Cache is the key/value surface the caching decorator needs (see internal/storage).
type Cache interface {
	Get(bucket, key string) ([]byte, bool, error)
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	Purge(bucket string) error
}

const (
	recordBucket = "employees"
	listBucket   = "employee_lists"
)

// Cached is a read-through cache over a Service. Reads are served from the
// cache until entries expire; every mutation drops the addressed record and
// all cached lists whether or not the backend accepted it. Cache failures
// degrade to a direct call and never fail the operation. A read that overlaps
// a mutation is returned to its caller but not cached.
type Cached struct {
	next  Service
	cache Cache
	log   Logger

	mu  sync.Mutex
	gen uint64
}

var _ Service = (*Cached)(nil)

// NewCached composes a cache over next.
func NewCached(next Service, cache Cache, log Logger) *Cached {
	return &Cached{next: next, cache: cache, log: ensureLogger(log)}
}

func (c *Cached) List(ctx context.Context, query ListQuery) (ListResult, error) {
	params, err := query.Values()
	if err != nil {
		return c.next.List(ctx, query)
	}
	key := "?" + params.Encode()

	var cached ListResult
	if c.lookup(listBucket, key, &cached) {
		return cached, nil
	}

	gen := c.generation()
	res, err := c.next.List(ctx, query)
	if err != nil {
		return res, err
	}
	c.store(gen, listBucket, key, res)
	return res, nil
}

func (c *Cached) GetByID(ctx context.Context, id ID) (Employee, error) {
	var cached Employee
	if id != "" && c.lookup(recordBucket, string(id), &cached) {
		return cached, nil
	}

	gen := c.generation()
	rec, err := c.next.GetByID(ctx, id)
	if err != nil {
		return rec, err
	}
	if rec != nil {
		c.store(gen, recordBucket, string(id), rec)
	}
	return rec, nil
}

func (c *Cached) Create(ctx context.Context, record Employee) (Employee, error) {
	rec, err := c.next.Create(ctx, record)
	c.invalidate("")
	return rec, err
}

func (c *Cached) Update(ctx context.Context, id ID, record Employee) (Employee, error) {
	rec, err := c.next.Update(ctx, id, record)
	c.invalidate(id)
	return rec, err
}

func (c *Cached) Delete(ctx context.Context, id ID) (Payload, error) {
	payload, err := c.next.Delete(ctx, id)
	c.invalidate(id)
	return payload, err
}

func (c *Cached) lookup(bucket, key string, out any) bool {
	raw, ok, err := c.cache.Get(bucket, key)
	if err != nil {
		c.log.WarnObj("employee cache read failed", "cache_error", map[string]any{
			"bucket": bucket,
			"key":    key,
			"error":  err.Error(),
		})
		return false
	}
	if !ok {
		return false
	}
	if err := decodeJSON(raw, out); err != nil {
		_ = c.cache.Delete(bucket, key)
		return false
	}
	c.log.DebugObj("employee cache hit", "cache_hit", map[string]any{"bucket": bucket, "key": key})
	return true
}

func (c *Cached) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// store writes v only if no mutation was observed since gen was taken.
func (c *Cached) store(gen uint64, bucket, key string, v any) {
	raw, err := json.Marshal(v)
	if err == nil {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			c.log.DebugObj("employee cache write skipped", "cache_stale", map[string]any{"bucket": bucket, "key": key})
			return
		}
		err = c.cache.Put(bucket, key, raw)
		c.mu.Unlock()
	}
	if err != nil {
		c.log.WarnObj("employee cache write failed", "cache_error", map[string]any{
			"bucket": bucket,
			"key":    key,
			"error":  err.Error(),
		})
	}
}

func (c *Cached) invalidate(id ID) {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()

	if id != "" {
		if err := c.cache.Delete(recordBucket, string(id)); err != nil {
			c.log.WarnObj("employee cache invalidation failed", "cache_error", map[string]any{"id": id, "error": err.Error()})
		}
	}
	if err := c.cache.Purge(listBucket); err != nil {
		c.log.WarnObj("employee cache invalidation failed", "cache_error", map[string]any{"bucket": listBucket, "error": err.Error()})
	}
}

// ChangePublisher delivers change events; *publishers.Fanout satisfies it.
type ChangePublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Notifying emits a change event after every successful mutation. Publish
// failures are logged and never alter the operation result.
type Notifying struct {
	next Service
	pub  ChangePublisher
	log  Logger
}

var _ Service = (*Notifying)(nil)

// NewNotifying composes change notification over next.
func NewNotifying(next Service, pub ChangePublisher, log Logger) *Notifying {
	return &Notifying{next: next, pub: pub, log: ensureLogger(log)}
}

func (n *Notifying) List(ctx context.Context, query ListQuery) (ListResult, error) {
	return n.next.List(ctx, query)
}

func (n *Notifying) GetByID(ctx context.Context, id ID) (Employee, error) {
	return n.next.GetByID(ctx, id)
}

func (n *Notifying) Create(ctx context.Context, record Employee) (Employee, error) {
	rec, err := n.next.Create(ctx, record)
	if err == nil {
		id, _ := rec.ID()
		n.emit(ctx, publishers.ActionCreated, id, rec)
	}
	return rec, err
}

func (n *Notifying) Update(ctx context.Context, id ID, record Employee) (Employee, error) {
	rec, err := n.next.Update(ctx, id, record)
	if err == nil {
		n.emit(ctx, publishers.ActionUpdated, id, rec)
	}
	return rec, err
}

func (n *Notifying) Delete(ctx context.Context, id ID) (Payload, error) {
	payload, err := n.next.Delete(ctx, id)
	if err == nil {
		n.emit(ctx, publishers.ActionDeleted, id, nil)
	}
	return payload, err
}

func (n *Notifying) emit(ctx context.Context, action string, id ID, rec Employee) {
	if n.pub == nil {
		return
	}
	delivered, err := n.pub.Publish(ctx, publishers.NewEvent(action, string(id), rec))
	if err != nil {
		n.log.WarnObj("employee change publish failed", "publish_error", map[string]any{
			"action":      action,
			"employee_id": id,
			"delivered":   delivered,
			"error":       err.Error(),
		})
	}
}
