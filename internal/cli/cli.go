// Package cli parses hrmctl invocations and runs them against an employee service.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/hr-portal-client/pkg/employees"
)

// Supported subcommands.
const (
	CmdList   = "list"
	CmdGet    = "get"
	CmdCreate = "create"
	CmdUpdate = "update"
	CmdDelete = "delete"
)

// ErrUsage is returned for malformed invocations. Flags may appear before or
// after the id.
var ErrUsage = errors.New("usage: hrmctl <list|get|create|update|delete> [-q key=value]... [-f record.yaml] [id]")

// Command is a parsed invocation.
type Command struct {
	Name   string
	ID     employees.ID
	Query  employees.ListQuery
	Record employees.Employee
}

type queryFlag []string

func (q *queryFlag) String() string { return strings.Join(*q, "&") }

func (q *queryFlag) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("query %q must be key=value", v)
	}
	*q = append(*q, v)
	return nil
}

// Parse reads the subcommand, its flags and positional id from args (without the program name).
func Parse(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, ErrUsage
	}
	cmd := Command{Name: strings.ToLower(strings.TrimSpace(args[0]))}

	fs := flag.NewFlagSet("hrmctl "+cmd.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var queries queryFlag
	var recordFile string
	fs.Var(&queries, "q", "list query parameter as key=value (repeatable)")
	fs.StringVar(&recordFile, "f", "", "record file (YAML or JSON)")
	rest, err := parseInterspersed(fs, args[1:])
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	switch cmd.Name {
	case CmdList:
		if len(rest) != 0 {
			return Command{}, ErrUsage
		}
		cmd.Query = parseQuery(queries)
	case CmdGet, CmdDelete:
		if len(rest) != 1 {
			return Command{}, ErrUsage
		}
		cmd.ID = employees.ID(rest[0])
	case CmdCreate, CmdUpdate:
		want := 0
		if cmd.Name == CmdUpdate {
			want = 1
		}
		if len(rest) != want || recordFile == "" {
			return Command{}, ErrUsage
		}
		if want == 1 {
			cmd.ID = employees.ID(rest[0])
		}
		rec, err := LoadRecord(recordFile)
		if err != nil {
			return Command{}, err
		}
		cmd.Record = rec
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.Name)
	}
	return cmd, nil
}

// parseInterspersed lets flags follow positionals, so "update 7 -f rec.yaml"
// parses like "update -f rec.yaml 7". Everything after "--" is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if n := len(args) - len(rest); n > 0 && args[n-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func parseQuery(pairs []string) employees.ListQuery {
	values := make(url.Values, len(pairs))
	for _, p := range pairs {
		k, v, _ := strings.Cut(p, "=")
		values.Add(k, v)
	}
	return employees.QueryFromValues(values)
}

// LoadRecord reads an employee record from a YAML or JSON file. "-" reads JSON from stdin.
func LoadRecord(path string) (employees.Employee, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	return DecodeRecord(raw, filepath.Ext(path))
}

// DecodeRecord decodes raw by extension; unknown extensions try JSON then YAML.
func DecodeRecord(raw []byte, ext string) (employees.Employee, error) {
	var rec employees.Employee
	switch strings.ToLower(ext) {
	case ".json":
		if err := decodeJSON(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record yaml: %w", err)
		}
	default:
		if jsonErr := decodeJSON(raw, &rec); jsonErr != nil {
			rec = nil
			if yamlErr := yaml.Unmarshal(raw, &rec); yamlErr != nil {
				return nil, fmt.Errorf("decode record: json: %v; yaml: %v", jsonErr, yamlErr)
			}
		}
	}
	if rec == nil {
		rec = employees.Employee{}
	}
	return rec, nil
}

// decodeJSON keeps numbers as json.Number so large integer ids survive.
func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after record")
	}
	return nil
}

// Execute runs cmd against svc and writes the result to out as indented JSON.
func Execute(ctx context.Context, svc employees.Service, cmd Command, out io.Writer) error {
	var (
		result any
		err    error
	)
	switch cmd.Name {
	case CmdList:
		result, err = svc.List(ctx, cmd.Query)
	case CmdGet:
		result, err = svc.GetByID(ctx, cmd.ID)
	case CmdCreate:
		result, err = svc.Create(ctx, cmd.Record)
	case CmdUpdate:
		result, err = svc.Update(ctx, cmd.ID, cmd.Record)
	case CmdDelete:
		var payload employees.Payload
		payload, err = svc.Delete(ctx, cmd.ID)
		if err == nil {
			result = deletePayload(payload)
		}
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.Name)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func deletePayload(p employees.Payload) any {
	if p.Empty() {
		return map[string]any{}
	}
	if json.Valid(p) {
		return json.RawMessage(p)
	}
	return string(p)
}
