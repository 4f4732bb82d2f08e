package models

import (
	"fmt"
	"strings"
)

// Outcome is the result of one practice attempt
type Outcome string

const (
	OutcomeRemembered Outcome = "remembered"
	OutcomeForgotten  Outcome = "forgotten"
	OutcomeSkipped    Outcome = "skipped"
)

// IsSuccess reports whether the outcome counts as successful recall.
// Skipped is scheduled exactly like Remembered.
func (o Outcome) IsSuccess() bool {
	return o == OutcomeRemembered || o == OutcomeSkipped
}

// ParseOutcome converts a user-supplied string into an Outcome
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeRemembered:
		return OutcomeRemembered, nil
	case OutcomeForgotten:
		return OutcomeForgotten, nil
	case OutcomeSkipped:
		return OutcomeSkipped, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// EventType names the kind of change an event records
type EventType string

const (
	EventTypeTaskIngest           EventType = "taskIngest"
	EventTypeTaskRepetition       EventType = "taskRepetition"
	EventTypeTaskDelete           EventType = "taskDelete"
	EventTypeTaskUpdateSpec       EventType = "taskUpdateSpec"
	EventTypeTaskUpdateProvenance EventType = "taskUpdateProvenance"
)

// Event is an immutable, append-only record of a change to a task.
// Only the payload fields matching Type are set.
type Event struct {
	ID              string    `json:"id" db:"id"`
	Type            EventType `json:"type" db:"type"`
	EntityID        TaskID    `json:"entityID" db:"entity_id"`
	TimestampMillis int64     `json:"timestampMillis" db:"timestamp_millis"`

	// taskIngest, taskUpdateSpec
	Spec *TaskSpec `json:"spec,omitempty"`
	// taskIngest, taskUpdateProvenance
	Provenance *Provenance       `json:"provenance,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// taskRepetition
	ComponentID string  `json:"componentID,omitempty"`
	Outcome     Outcome `json:"outcome,omitempty"`
}
