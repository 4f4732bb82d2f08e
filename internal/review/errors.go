package review

import (
	"errors"
	"fmt"

	"github.com/example/orbit/pkg/models"
)

var (
	// ErrNoComponents means a task has no schedulable component
	ErrNoComponents = errors.New("task has no component states")
	// ErrMissingComponentOrder means components tie on due time but the content defines no order
	ErrMissingComponentOrder = errors.New("task has multiple components due at the same time but no components in its content spec")
	// ErrUnknownComponent means a due component is absent from the content spec
	ErrUnknownComponent = errors.New("task has an unknown due component")
)

// InconsistentTaskError identifies a task whose data violates its own schema
type InconsistentTaskError struct {
	TaskID      models.TaskID
	ComponentID string
	Err         error
}

func (e *InconsistentTaskError) Error() string {
	if e.ComponentID != "" {
		return fmt.Sprintf("inconsistent task %s (component %s): %v", e.TaskID, e.ComponentID, e.Err)
	}
	return fmt.Sprintf("inconsistent task %s: %v", e.TaskID, e.Err)
}

func (e *InconsistentTaskError) Unwrap() error {
	return e.Err
}
