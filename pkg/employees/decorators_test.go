package employees

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/hr-portal-client/internal/storage"
	"github.com/samvad-hq/hr-portal-client/pkg/publishers"
)

// countingService is an in-memory Service that counts backend calls.
type countingService struct {
	mu      sync.Mutex
	records map[ID]Employee
	calls   map[string]int
	err     error
}

func newCountingService(records ...Employee) *countingService {
	s := &countingService{records: map[ID]Employee{}, calls: map[string]int{}}
	for _, r := range records {
		id, _ := r.ID()
		s.records[id] = r
	}
	return s
}

func (s *countingService) hit(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *countingService) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *countingService) List(context.Context, ListQuery) (ListResult, error) {
	s.hit("list")
	if s.err != nil {
		return ListResult{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Employee, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return ListResult{Data: out}, nil
}

func (s *countingService) GetByID(_ context.Context, id ID) (Employee, error) {
	s.hit("get")
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Clone(), nil
}

func (s *countingService) Create(_ context.Context, record Employee) (Employee, error) {
	s.hit("create")
	if s.err != nil {
		return nil, s.err
	}
	rec := record.Clone()
	if _, ok := rec.ID(); !ok {
		rec[IDField] = "new"
	}
	id, _ := rec.ID()
	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
	return rec.Clone(), nil
}

func (s *countingService) Update(_ context.Context, id ID, record Employee) (Employee, error) {
	s.hit("update")
	if s.err != nil {
		return nil, s.err
	}
	rec := record.Clone()
	rec[IDField] = string(id)
	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
	return rec.Clone(), nil
}

func (s *countingService) Delete(_ context.Context, id ID) (Payload, error) {
	s.hit("delete")
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return Payload(`{"message":"deleted"}`), nil
}

func newBoltCache(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewStore(storage.TypeBBolt, filepath.Join(t.TempDir(), "cache.db"), storage.Options{TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCachedGetByIDServesRepeatReadsFromCache(t *testing.T) {
	backend := newCountingService(Employee{"id": "1", "name": "Ada"})
	cached := NewCached(backend, newBoltCache(t), nil)
	ctx := context.Background()

	first, err := cached.GetByID(ctx, "1")
	require.NoError(t, err)
	second, err := cached.GetByID(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Ada", second["name"])
	assert.Equal(t, 1, backend.count("get"))
}

func TestCachedListKeysByQuery(t *testing.T) {
	backend := newCountingService(Employee{"id": "1", "name": "Ada"})
	cached := NewCached(backend, newBoltCache(t), nil)
	ctx := context.Background()

	_, err := cached.List(ctx, ListQuery{"page": 1})
	require.NoError(t, err)
	_, err = cached.List(ctx, ListQuery{"page": "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.count("list"), "equivalent queries share a cache entry")

	_, err = cached.List(ctx, ListQuery{"page": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("list"))
}

func TestCachedMutationsInvalidate(t *testing.T) {
	backend := newCountingService(Employee{"id": "1", "name": "Ada"})
	cached := NewCached(backend, newBoltCache(t), nil)
	ctx := context.Background()

	_, err := cached.GetByID(ctx, "1")
	require.NoError(t, err)
	_, err = cached.List(ctx, nil)
	require.NoError(t, err)

	_, err = cached.Update(ctx, "1", Employee{"name": "Grace"})
	require.NoError(t, err)

	rec, err := cached.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", rec["name"])
	assert.Equal(t, 2, backend.count("get"))

	_, err = cached.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("list"))

	_, err = cached.Create(ctx, Employee{"id": "2", "name": "Linus"})
	require.NoError(t, err)
	res, err := cached.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, 3, backend.count("list"))

	_, err = cached.Delete(ctx, "2")
	require.NoError(t, err)
	res, err = cached.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)
}

// gatedService snapshots the collection, then parks the first List until released.
type gatedService struct {
	*countingService
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedService) List(ctx context.Context, query ListQuery) (ListResult, error) {
	res, err := g.countingService.List(ctx, query)
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return res, err
}

func TestCachedDropsListReadOverlappingMutation(t *testing.T) {
	backend := &gatedService{
		countingService: newCountingService(Employee{"id": "1", "name": "Ada"}),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	cached := NewCached(backend, newBoltCache(t), nil)
	ctx := context.Background()

	done := make(chan ListResult, 1)
	go func() {
		res, err := cached.List(ctx, nil)
		assert.NoError(t, err)
		done <- res
	}()

	<-backend.entered
	_, err := cached.Create(ctx, Employee{"id": "2", "name": "Linus"})
	require.NoError(t, err)
	close(backend.release)

	inflight := <-done
	assert.Len(t, inflight.Data, 1, "the overlapping read still returns what it saw")

	res, err := cached.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, 2, backend.count("list"))
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	backend := newCountingService()
	backend.err = boom
	cached := NewCached(backend, newBoltCache(t), nil)

	_, err := cached.GetByID(context.Background(), "1")
	assert.Same(t, boom, err)
	_, err = cached.GetByID(context.Background(), "1")
	assert.Same(t, boom, err)
	assert.Equal(t, 2, backend.count("get"))
}

type brokenCache struct{}

func (brokenCache) Get(string, string) ([]byte, bool, error) { return nil, false, errors.New("read") }
func (brokenCache) Put(string, string, []byte) error          { return errors.New("write") }
func (brokenCache) Delete(string, string) error               { return errors.New("delete") }
func (brokenCache) Purge(string) error                        { return errors.New("purge") }

func TestCachedDegradesWhenCacheFails(t *testing.T) {
	backend := newCountingService(Employee{"id": "1", "name": "Ada"})
	cached := NewCached(backend, brokenCache{}, nil)
	ctx := context.Background()

	rec, err := cached.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])

	_, err = cached.Update(ctx, "1", Employee{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.count("update"))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	if p.err != nil {
		return 0, p.err
	}
	return 1, nil
}

func TestNotifyingPublishesAfterMutations(t *testing.T) {
	backend := newCountingService()
	pub := &recordingPublisher{}
	svc := NewNotifying(backend, pub, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Employee{"id": "5", "name": "Ada"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "5", Employee{"name": "Grace"})
	require.NoError(t, err)
	_, err = svc.Delete(ctx, "5")
	require.NoError(t, err)
	_, err = svc.List(ctx, nil)
	require.NoError(t, err)

	require.Len(t, pub.events, 3)
	assert.Equal(t, publishers.ActionCreated, pub.events[0].Action)
	assert.Equal(t, "5", pub.events[0].EmployeeID)
	assert.Equal(t, "Ada", pub.events[0].Record["name"])
	assert.Equal(t, publishers.ActionUpdated, pub.events[1].Action)
	assert.Equal(t, "Grace", pub.events[1].Record["name"])
	assert.Equal(t, publishers.ActionDeleted, pub.events[2].Action)
	assert.Nil(t, pub.events[2].Record)
}

func TestNotifyingSkipsFailedMutations(t *testing.T) {
	backend := newCountingService()
	backend.err = errors.New("rejected")
	pub := &recordingPublisher{}
	svc := NewNotifying(backend, pub, nil)

	_, err := svc.Create(context.Background(), Employee{"name": "Ada"})
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestNotifyingIgnoresPublishFailures(t *testing.T) {
	backend := newCountingService()
	pub := &recordingPublisher{err: errors.New("sink down")}
	svc := NewNotifying(backend, pub, nil)

	rec, err := svc.Create(context.Background(), Employee{"id": "9", "name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])
	assert.Len(t, pub.events, 1)
}

func TestDecoratorsComposeOverStubBackend(t *testing.T) {
	client, backend := newStubBackedClient(t)
	ids := backend.Seed(map[string]any{"name": "Ada", "department": "eng"})
	pub := &recordingPublisher{}
	svc := NewNotifying(NewCached(client, newBoltCache(t), nil), pub, nil)
	ctx := context.Background()

	rec, err := svc.GetByID(ctx, ID(ids[0]))
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])

	_, err = svc.Delete(ctx, ID(ids[0]))
	require.NoError(t, err)

	_, err = svc.GetByID(ctx, ID(ids[0]))
	assert.True(t, IsNotFound(err))

	require.Len(t, pub.events, 1)
	raw, err := json.Marshal(pub.events[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"action":"employee.deleted"`)
}
