package stubserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListFiltersAndPaginates(t *testing.T) {
	srv := New(Options{})
	srv.Seed(
		map[string]any{"id": "1", "name": "John Doe", "department": "Finance"},
		map[string]any{"id": "2", "name": "Jane Roe", "department": "Engineering"},
		map[string]any{"id": "3", "name": "Johnny Walker", "department": "finance"},
	)

	rec := do(t, srv.Handler(), http.MethodGet, "/admin/employees?search=john&department=FINANCE&pageSize=1&page=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "3", body.Data[0]["id"])
}

func TestCreateAssignsIDAndValidates(t *testing.T) {
	srv := New(Options{})

	rec := do(t, srv.Handler(), http.MethodPost, "/admin/employees", `{"name":"Ada"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"`)
	assert.Equal(t, 1, srv.Len())

	rec = do(t, srv.Handler(), http.MethodPost, "/admin/employees", `{"department":"HR"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/admin/employees", `[1,2]`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRejectsIDChangeAndUnknownRecord(t *testing.T) {
	srv := New(Options{})
	srv.Seed(map[string]any{"id": "7", "name": "Old"})

	rec := do(t, srv.Handler(), http.MethodPut, "/admin/employees/7", `{"id":"8","name":"New"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPut, "/admin/employees/9", `{"name":"New"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPut, "/admin/employees/7", `{"name":"New"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"New"`)
}

func TestDeleteConflictAndNotFound(t *testing.T) {
	srv := New(Options{})
	srv.Seed(map[string]any{"id": "1", "name": "A"}, map[string]any{"id": "2", "name": "B"})
	srv.MarkReferenced("1")

	assert.Equal(t, http.StatusConflict, do(t, srv.Handler(), http.MethodDelete, "/admin/employees/1", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, srv.Handler(), http.MethodDelete, "/admin/employees/2", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodDelete, "/admin/employees/2", "", nil).Code)
	assert.Equal(t, []string{"1"}, srv.IDs())
}

func TestTokenAndPrefix(t *testing.T) {
	srv := New(Options{Token: "s3cret", Prefix: "/api/"})

	assert.Equal(t, http.StatusUnauthorized, do(t, srv.Handler(), http.MethodGet, "/api/admin/employees", "", nil).Code)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/admin/employees", "", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPastLastPageIsEmpty(t *testing.T) {
	srv := New(Options{})
	srv.Seed(map[string]any{"id": "1", "name": "A"}, map[string]any{"id": "2", "name": "B"})

	for _, page := range []string{"2", "3", "9223372036854775807"} {
		rec := do(t, srv.Handler(), http.MethodGet, "/admin/employees?pageSize=200&page="+page, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, "page %s", page)

		var body struct {
			Data  []map[string]any `json:"data"`
			Total int              `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Empty(t, body.Data, "page %s", page)
		assert.Equal(t, 2, body.Total)
	}

	rec := do(t, srv.Handler(), http.MethodGet, "/admin/employees?pageSize=9223372036854775807&page=9223372036854775807", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegistererCountsRequestsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := New(Options{Prefix: "/api", Registerer: reg})
	srv.Seed(map[string]any{"id": "1", "name": "A"})

	do(t, srv.Handler(), http.MethodGet, "/api/admin/employees/1", "", nil)
	do(t, srv.Handler(), http.MethodGet, "/api/admin/employees/2", "", nil)
	do(t, srv.Handler(), http.MethodGet, "/api/admin/employees", "", nil)

	assert.Equal(t, 3, testutil.CollectAndCount(reg, "hr_stub_requests_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	byStatus := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "hr_stub_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if strings.Contains(labels["route"], "{employeeID}") {
				byStatus[labels["status"]] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"200": 1, "404": 1}, byStatus, "ids collapse into the route pattern")
}
