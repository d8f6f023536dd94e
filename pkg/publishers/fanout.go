package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Route binds a sink to the employee actions it receives. Empty Actions means all.
type Route struct {
	Publisher  Publisher
	Actions    []string
	OmitRecord bool
}

func (r Route) accepts(action string) bool {
	return len(r.Actions) == 0 || slices.Contains(r.Actions, action)
}

// Fanout delivers each event to every route that accepts its action.
type Fanout struct {
	routes []Route
}

// NewFanout drops routes without a publisher.
func NewFanout(routes ...Route) *Fanout {
	kept := make([]Route, 0, len(routes))
	for _, r := range routes {
		if r.Publisher != nil {
			kept = append(kept, r)
		}
	}
	return &Fanout{routes: kept}
}

// Publish returns how many sinks accepted the event. Sinks that filter the
// action out count neither as delivered nor as failed.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, r := range f.routes {
		if !r.accepts(evt.Action) {
			continue
		}
		out := evt
		if r.OmitRecord {
			out.Record = nil
		}
		if err := r.Publisher.Publish(ctx, out); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", r.Publisher.Type(), r.Publisher.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of routes.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.routes)
}

// Close releases sinks holding connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeRoutes(f.routes)
}

func closeRoutes(routes []Route) error {
	var errs []error
	for _, r := range routes {
		c, ok := r.Publisher.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", r.Publisher.Type(), r.Publisher.ID(), err))
		}
	}
	return errors.Join(errs...)
}
