// Package stubserver is an in-memory backend for the admin employee endpoints,
// used by tests and local development.
package stubserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samvad-hq/hr-portal-client/internal/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Options configures the stub backend.
type Options struct {
	// Token, when set, must be presented as a bearer token on every request.
	Token string
	// Prefix mounts the routes under a base path (e.g. "/api").
	Prefix string
	Logger logger.Logger
	// Registerer, when set, receives per-route request counters and latencies.
	Registerer prometheus.Registerer
}

// Server stores employee records in memory.
type Server struct {
	mu         sync.RWMutex
	records    map[string]map[string]any
	order      []string
	referenced map[string]bool
	token      string
	prefix     string
	log        logger.Logger
	metrics    *metrics
	router     chi.Router
}

// New builds a stub backend with an empty collection. It panics if
// opts.Registerer already holds the stub collectors.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &Server{
		records:    make(map[string]map[string]any),
		referenced: make(map[string]bool),
		token:      strings.TrimSpace(opts.Token),
		prefix:     "/" + strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		log:        log,
	}
	if opts.Registerer != nil {
		s.metrics = newMetrics(opts.Registerer)
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.instrument)
	}
	r.Use(s.requestLog)
	r.Use(s.requireToken)

	mount := func(r chi.Router) {
		r.Route("/admin/employees", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Route("/{employeeID}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Put("/", s.handleUpdate)
				r.Delete("/", s.handleDelete)
			})
		})
	}
	if s.prefix == "/" {
		mount(r)
	} else {
		r.Route(s.prefix, mount)
	}
	return r
}

// Seed inserts records, assigning ids to those without one. It returns the ids in order.
func (s *Server) Seed(records ...map[string]any) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		cp := copyRecord(rec)
		id := idString(cp["id"])
		if id == "" {
			id = uuid.NewString()
		}
		cp["id"] = id
		if _, exists := s.records[id]; !exists {
			s.order = append(s.order, id)
		}
		s.records[id] = cp
		ids = append(ids, id)
	}
	return ids
}

// MarkReferenced makes deletes of id fail with 409, as a referential constraint would.
func (s *Server) MarkReferenced(id string) {
	s.mu.Lock()
	s.referenced[id] = true
	s.mu.Unlock()
}

// Len returns the number of stored records.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	department := strings.TrimSpace(q.Get("department"))
	page := positiveInt(q.Get("page"), 1)
	pageSize := positiveInt(q.Get("pageSize"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	s.mu.RLock()
	matched := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if search != "" && !strings.Contains(strings.ToLower(stringAttr(rec, "name")), search) {
			continue
		}
		if department != "" && !strings.EqualFold(stringAttr(rec, "department"), department) {
			continue
		}
		matched = append(matched, copyRecord(rec))
	}
	s.mu.RUnlock()

	start := len(matched)
	if pages := (len(matched) + pageSize - 1) / pageSize; page <= pages {
		start = (page - 1) * pageSize
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":     matched[start:end],
		"total":    len(matched),
		"page":     page,
		"pageSize": pageSize,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "employeeID")

	s.mu.RLock()
	rec, ok := s.records[id]
	if ok {
		rec = copyRecord(rec)
	}
	s.mu.RUnlock()

	if !ok {
		fail(w, http.StatusNotFound, "employee not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	if stringAttr(rec, "name") == "" {
		fail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	id := uuid.NewString()
	rec["id"] = id

	s.mu.Lock()
	s.records[id] = rec
	s.order = append(s.order, id)
	out := copyRecord(rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "employeeID")
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	if stringAttr(rec, "name") == "" {
		fail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if bodyID := idString(rec["id"]); bodyID != "" && bodyID != id {
		fail(w, http.StatusBadRequest, "id cannot be changed")
		return
	}
	rec["id"] = id

	s.mu.Lock()
	if _, exists := s.records[id]; !exists {
		s.mu.Unlock()
		fail(w, http.StatusNotFound, "employee not found")
		return
	}
	s.records[id] = rec
	out := copyRecord(rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "employeeID")

	s.mu.Lock()
	if _, exists := s.records[id]; !exists {
		s.mu.Unlock()
		fail(w, http.StatusNotFound, "employee not found")
		return
	}
	if s.referenced[id] {
		s.mu.Unlock()
		fail(w, http.StatusConflict, "employee is referenced by payroll records")
		return
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "employee deleted", "id": id})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			fail(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.DebugObj("stub request served", "stub_request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"request_id": r.Header.Get("X-Request-ID"),
		})
	})
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var rec map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil || rec == nil {
		fail(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

func copyRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func stringAttr(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	}
	return ""
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// IDs returns the stored ids in insertion order.
func (s *Server) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
