package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type names a live-update event
type Type string

const (
	TeamUpdated               Type = "team_updated"
	SimulationStarted         Type = "simulation_started"
	SimulationCompleted       Type = "simulation_completed"
	SimulationError           Type = "simulation_error"
	BulkSimulationStarted     Type = "bulk_simulation_started"
	DetailedAnalysisCompleted Type = "detailed_analysis_completed"
	DetailedAnalysisError     Type = "detailed_analysis_error"
)

// Event is the message pushed to every listener. Fields that do not apply
// to a type are left empty.
type Event struct {
	Type      Type            `json:"type"`
	TeamID    int             `json:"team_id,omitempty"`
	TeamIDs   []int           `json:"team_ids,omitempty"`
	BatchID   string          `json:"batch_id,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New creates an event of the given type stamped with the current time
func New(t Type) Event {
	return Event{Type: t, Timestamp: time.Now().UTC()}
}

// ForTeam sets the team of the event
func (e Event) ForTeam(teamID int) Event {
	e.TeamID = teamID
	return e
}

// InBatch sets the batch id of the event
func (e Event) InBatch(batchID string) Event {
	e.BatchID = batchID
	return e
}

// WithError sets the error message of the event
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithResults attaches a result payload
func (e Event) WithResults(v any) (Event, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return e, fmt.Errorf("failed to marshal results: %w", err)
	}
	e.Results = raw
	return e, nil
}

// WithConfig attaches a configuration payload
func (e Event) WithConfig(v any) (Event, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return e, fmt.Errorf("failed to marshal config: %w", err)
	}
	e.Config = raw
	return e, nil
}

// Encode encodes an event to JSON
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode decodes JSON to an event
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event without type")
	}
	return &e, nil
}
