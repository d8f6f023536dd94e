package employees

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// ErrEmptyID is returned before any network I/O when an operation is addressed by a blank id.
var ErrEmptyID = errors.New("employee id is empty")

// IDField is the only attribute the client interprets.
const IDField = "id"

// ID identifies an employee. Backends may assign strings or integers; both are
// carried in their canonical text form.
type ID string

// Employee is a backend-defined attribute bag. The client assumes nothing beyond IDField.
type Employee map[string]any

// ID returns the record identity when present and non-empty.
func (e Employee) ID() (ID, bool) {
	raw, ok := e[IDField]
	if !ok || raw == nil {
		return "", false
	}

	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		str, err := cast.ToStringE(v)
		if err != nil {
			return "", false
		}
		s = str
	}

	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return ID(s), true
}

// Clone returns a shallow copy so callers can edit a draft without touching fetched state.
func (e Employee) Clone() Employee {
	if e == nil {
		return nil
	}
	out := make(Employee, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ListQuery holds filter and pagination parameters forwarded verbatim as query parameters.
type ListQuery map[string]any

// QueryFromValues converts parsed URL values into a ListQuery.
func QueryFromValues(values url.Values) ListQuery {
	if len(values) == 0 {
		return nil
	}
	q := make(ListQuery, len(values))
	for k, v := range values {
		if len(v) == 1 {
			q[k] = v[0]
			continue
		}
		q[k] = append([]string(nil), v...)
	}
	return q
}

// Values renders the query without renaming keys or injecting defaults.
// Slice values become repeated parameters; nil values and empty slices are
// sent as a single empty parameter so the key still reaches the server.
func (q ListQuery) Values() (url.Values, error) {
	if len(q) == 0 {
		return nil, nil
	}
	out := make(url.Values, len(q))
	for key, raw := range q {
		vals, err := queryValues(raw)
		if err != nil {
			return nil, fmt.Errorf("query parameter %q: %w", key, err)
		}
		out[key] = vals
	}
	return out, nil
}

func queryValues(raw any) ([]string, error) {
	if raw == nil {
		return []string{""}, nil
	}
	if s, ok := raw.(string); ok {
		return []string{s}, nil
	}
	if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if _, isBytes := raw.([]byte); !isBytes {
			if rv.Len() == 0 {
				return []string{""}, nil
			}
			out := make([]string, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				s, err := cast.ToStringE(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out = append(out, s)
			}
			return out, nil
		}
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

// Envelope is a server-defined response wrapper. Data holds the decoded "data"
// field; every other top-level field is kept verbatim in Fields. A decoded
// envelope remembers its wire shape so MarshalJSON reproduces it.
type Envelope[T any] struct {
	Data   T
	Fields map[string]json.RawMessage

	bare     bool
	withData bool
	decoded  bool
}

// ListResult is the list envelope returned by List.
type ListResult = Envelope[[]Employee]

// UnmarshalJSON keeps unknown fields. A bare JSON array is treated as the data payload.
func (e *Envelope[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decodeJSON(trimmed, &e.Data); err != nil {
			return err
		}
		e.Fields = nil
		e.decoded, e.bare, e.withData = true, true, true
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	data, hasData := raw["data"]
	if hasData {
		if err := decodeJSON(data, &e.Data); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
		delete(raw, "data")
	}
	if len(raw) == 0 {
		raw = nil
	}
	e.Fields = raw
	e.decoded, e.bare, e.withData = true, false, hasData
	return nil
}

// Bare reports whether the envelope was decoded from a bare JSON array.
func (e Envelope[T]) Bare() bool { return e.bare }

// MarshalJSON re-emits the envelope in the shape it was decoded from: a bare
// array stays bare and an absent "data" stays absent. Envelopes built in code
// always carry "data".
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	if e.bare && len(e.Fields) == 0 {
		return json.Marshal(e.Data)
	}
	out := make(map[string]json.RawMessage, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	if e.withData || !e.decoded || e.bare {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		out["data"] = data
	}
	return json.Marshal(out)
}

// Field decodes a pass-through envelope field (e.g. "total") into v.
func (e Envelope[T]) Field(key string, v any) (bool, error) {
	raw, ok := e.Fields[key]
	if !ok {
		return false, nil
	}
	return true, decodeJSON(raw, v)
}

// Payload is the raw confirmation body returned by Delete; it may be empty.
type Payload []byte

// Empty reports whether the server returned no body.
func (p Payload) Empty() bool { return len(bytes.TrimSpace(p)) == 0 }

// Decode unmarshals a non-empty payload into v.
func (p Payload) Decode(v any) error {
	if p.Empty() {
		return nil
	}
	return decodeJSON(p, v)
}

// decodeJSON keeps numbers as json.Number so integer ids survive exactly.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
