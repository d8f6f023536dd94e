package publishers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Employee change actions.
const (
	ActionCreated = "employee.created"
	ActionUpdated = "employee.updated"
	ActionDeleted = "employee.deleted"
)

var knownActions = []string{ActionCreated, ActionUpdated, ActionDeleted}

// Event describes one accepted employee mutation. ID is unique per event so
// at-least-once sinks can deduplicate.
type Event struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EmployeeID string         `json:"employee_id"`
	Record     map[string]any `json:"record,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps a fresh event for an employee change.
func NewEvent(action, employeeID string, record map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Action:     action,
		EmployeeID: employeeID,
		Record:     record,
		OccurredAt: time.Now().UTC(),
	}
}

// ParseAction accepts a full action name or its short form ("created").
func ParseAction(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(s, "employee.") {
		s = "employee." + s
	}
	for _, a := range knownActions {
		if s == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown employee action %q", raw)
}

func (e Event) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Action, err)
	}
	return b, nil
}

// attributes are attached as message attributes by queue and topic sinks so
// subscribers can filter without decoding the body.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_id":    e.ID,
		"action":      e.Action,
		"employee_id": e.EmployeeID,
	}
}
