package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/hr-portal-client/internal/stubserver"
	"github.com/samvad-hq/hr-portal-client/pkg/employees"
	"github.com/samvad-hq/hr-portal-client/pkg/httpclient"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseList(t *testing.T) {
	cmd, err := Parse([]string{"list", "-q", "department=eng", "-q", "page=2", "-q", "tag=a", "-q", "tag=b"})
	require.NoError(t, err)

	assert.Equal(t, CmdList, cmd.Name)
	assert.Equal(t, employees.ListQuery{
		"department": "eng",
		"page":       "2",
		"tag":        []string{"a", "b"},
	}, cmd.Query)
}

func TestParseGetAndDeleteRequireID(t *testing.T) {
	cmd, err := Parse([]string{"get", "42"})
	require.NoError(t, err)
	assert.Equal(t, employees.ID("42"), cmd.ID)

	_, err = Parse([]string{"delete"})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestParseUpdateReadsYAMLRecord(t *testing.T) {
	path := writeFile(t, "rec.yaml", "name: Ada\ndepartment: eng\nskills:\n  - go\n")

	cmd, err := Parse([]string{"update", "-f", path, "7"})
	require.NoError(t, err)
	assert.Equal(t, employees.ID("7"), cmd.ID)
	assert.Equal(t, "Ada", cmd.Record["name"])
	assert.Equal(t, []any{"go"}, cmd.Record["skills"])
}

func TestParseAcceptsFlagsAfterID(t *testing.T) {
	path := writeFile(t, "rec.yaml", "name: Ada\n")

	cmd, err := Parse([]string{"update", "7", "-f", path})
	require.NoError(t, err)
	assert.Equal(t, employees.ID("7"), cmd.ID)
	assert.Equal(t, "Ada", cmd.Record["name"])

	cmd, err = Parse([]string{"get", "--", "-12"})
	require.NoError(t, err)
	assert.Equal(t, employees.ID("-12"), cmd.ID)

	_, err = Parse([]string{"get", "7", "8"})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestParseQueryMatchesURLValues(t *testing.T) {
	cmd, err := Parse([]string{"list", "-q", "empty=", "-q", "search=a=b"})
	require.NoError(t, err)
	assert.Equal(t, employees.ListQuery{"empty": "", "search": "a=b"}, cmd.Query)

	cmd, err = Parse([]string{"list"})
	require.NoError(t, err)
	assert.Nil(t, cmd.Query)
}

func TestParseCreateRequiresRecordFile(t *testing.T) {
	_, err := Parse([]string{"create"})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestParseRejectsUnknownCommand(t *testing.T) {
	_, err := Parse([]string{"purge"})
	assert.ErrorIs(t, err, ErrUsage)

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrUsage)

	_, err = Parse([]string{"list", "-q", "novalue"})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestDecodeRecordFallsBackAcrossFormats(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"name":"Ada"}`), "")
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])

	rec, err = DecodeRecord([]byte("name: Grace\n"), ".txt")
	require.NoError(t, err)
	assert.Equal(t, "Grace", rec["name"])

	rec, err = DecodeRecord([]byte(""), ".yaml")
	require.NoError(t, err)
	assert.Equal(t, employees.Employee{}, rec)

	_, err = DecodeRecord([]byte("{"), ".json")
	assert.Error(t, err)
}

func TestDecodeRecordKeepsLargeIntegersExact(t *testing.T) {
	for _, ext := range []string{".json", ""} {
		rec, err := DecodeRecord([]byte(`{"id":9007199254740993,"salary":1.5}`), ext)
		require.NoError(t, err)
		assert.Equal(t, json.Number("9007199254740993"), rec["id"])
		assert.Equal(t, json.Number("1.5"), rec["salary"])

		id, ok := rec.ID()
		require.True(t, ok)
		assert.Equal(t, employees.ID("9007199254740993"), id)
	}

	_, err := DecodeRecord([]byte(`{"id":1} {"id":2}`), ".json")
	assert.Error(t, err)
}

func newService(t *testing.T) (employees.Service, *stubserver.Server) {
	t.Helper()
	backend := stubserver.New(stubserver.Options{})
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	gw, err := httpclient.NewRestyGateway(httpclient.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return employees.NewClient(gw), backend
}

func TestExecuteRoundTrip(t *testing.T) {
	svc, backend := newService(t)
	ctx := context.Background()
	path := writeFile(t, "rec.json", `{"name":"Ada","department":"eng"}`)

	create, err := Parse([]string{"create", "-f", path})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, Execute(ctx, svc, create, &out))
	assert.Contains(t, out.String(), `"name": "Ada"`)
	require.Equal(t, 1, backend.Len())

	out.Reset()
	list, err := Parse([]string{"list", "-q", "department=eng"})
	require.NoError(t, err)
	require.NoError(t, Execute(ctx, svc, list, &out))
	assert.Contains(t, out.String(), `"total": 1`)

	id := backend.IDs()[0]
	out.Reset()
	del, err := Parse([]string{"delete", id})
	require.NoError(t, err)
	require.NoError(t, Execute(ctx, svc, del, &out))
	assert.Contains(t, out.String(), "employee deleted")

	get, err := Parse([]string{"get", id})
	require.NoError(t, err)
	err = Execute(ctx, svc, get, &out)
	var reqErr *httpclient.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 404, reqErr.Status)
}
