package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/orbit/pkg/models"
)

// IngestTask appends an ingest event and creates the task it describes.
// Every component implied by the task spec starts due at the event's timestamp.
func (s *Store) IngestTask(ctx context.Context, event models.Event) error {
	if event.Type != models.EventTypeTaskIngest || event.Spec == nil {
		return fmt.Errorf("event %s is not a task ingest event", event.ID)
	}
	spec, err := json.Marshal(event.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}
	provenance, err := nullJSON(event.Provenance)
	if err != nil {
		return err
	}
	metadata, err := nullJSON(event.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := appendEvent(ctx, tx, event); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO tasks (id, spec, provenance, metadata, is_deleted, created_at_millis, updated_at_millis)
			VALUES (?, ?, ?, ?, FALSE, ?, ?)
		`), string(event.EntityID), string(spec), provenance, metadata, event.TimestampMillis, event.TimestampMillis)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		for _, componentID := range event.Spec.ComponentIDs() {
			state := models.NewComponentState(event.TimestampMillis)
			if err := insertComponent(ctx, tx, newComponentRow(event.EntityID, componentID, state)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordRepetition appends a repetition event and stores the component state the
// scheduler computed for it, atomically. Deleted tasks report ErrNotFound.
func (s *Store) RecordRepetition(ctx context.Context, event models.Event, next models.ComponentState) error {
	if event.Type != models.EventTypeTaskRepetition {
		return fmt.Errorf("event %s is not a task repetition event", event.ID)
	}
	row := newComponentRow(event.EntityID, event.ComponentID, next)

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := appendEvent(ctx, tx, event); err != nil {
			return err
		}
		result, err := tx.NamedExecContext(ctx, `
			UPDATE task_components SET
				last_repetition_millis = :last_repetition_millis,
				due_millis = :due_millis,
				interval_millis = :interval_millis,
				ease_factor = :ease_factor,
				learning_step = :learning_step
			WHERE task_id = :task_id AND component_id = :component_id
				AND task_id IN (SELECT id FROM tasks WHERE is_deleted = FALSE)
		`, row)
		if err != nil {
			return fmt.Errorf("failed to update component state: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("component %s of task %s: %w", event.ComponentID, event.EntityID, ErrNotFound)
		}
		return touchTask(ctx, tx, event)
	})
}

// DeleteTask appends a delete event and marks the task deleted. Nothing is purged.
func (s *Store) DeleteTask(ctx context.Context, event models.Event) error {
	if event.Type != models.EventTypeTaskDelete {
		return fmt.Errorf("event %s is not a task delete event", event.ID)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := appendEvent(ctx, tx, event); err != nil {
			return err
		}
		return updateTask(ctx, tx, event, `is_deleted = TRUE`)
	})
}

// UpdateTaskSpec appends a spec update and replaces the task's spec. Components
// new to the task spec start due at the event's timestamp; components it no longer
// names are dropped.
func (s *Store) UpdateTaskSpec(ctx context.Context, event models.Event) error {
	if event.Type != models.EventTypeTaskUpdateSpec || event.Spec == nil {
		return fmt.Errorf("event %s is not a task spec update event", event.ID)
	}
	spec, err := json.Marshal(event.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := appendEvent(ctx, tx, event); err != nil {
			return err
		}
		if err := updateTask(ctx, tx, event, `spec = ?`, string(spec)); err != nil {
			return err
		}

		var existing []string
		err := tx.SelectContext(ctx, &existing, tx.Rebind(`SELECT component_id FROM task_components WHERE task_id = ?`), string(event.EntityID))
		if err != nil {
			return fmt.Errorf("failed to get task components: %w", err)
		}
		wanted := make(map[string]bool)
		for _, id := range event.Spec.ComponentIDs() {
			wanted[id] = true
		}
		for _, id := range existing {
			if wanted[id] {
				delete(wanted, id)
				continue
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM task_components WHERE task_id = ? AND component_id = ?`), string(event.EntityID), id)
			if err != nil {
				return fmt.Errorf("failed to remove component %s: %w", id, err)
			}
		}
		for id := range wanted {
			if err := insertComponent(ctx, tx, newComponentRow(event.EntityID, id, models.NewComponentState(event.TimestampMillis))); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateTaskProvenance appends a provenance update and replaces the task's provenance
func (s *Store) UpdateTaskProvenance(ctx context.Context, event models.Event) error {
	if event.Type != models.EventTypeTaskUpdateProvenance {
		return fmt.Errorf("event %s is not a task provenance update event", event.ID)
	}
	provenance, err := nullJSON(event.Provenance)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := appendEvent(ctx, tx, event); err != nil {
			return err
		}
		return updateTask(ctx, tx, event, `provenance = ?`, provenance)
	})
}

// ListEvents returns the events recorded for a task, oldest first
func (s *Store) ListEvents(ctx context.Context, entityID models.TaskID) ([]models.Event, error) {
	var payloads []string
	query := s.db.Rebind(`SELECT payload FROM events WHERE entity_id = ? ORDER BY timestamp_millis ASC, id ASC`)
	if err := s.db.SelectContext(ctx, &payloads, query, string(entityID)); err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	events := make([]models.Event, 0, len(payloads))
	for _, payload := range payloads {
		var event models.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func appendEvent(ctx context.Context, tx *sqlx.Tx, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO events (id, type, entity_id, timestamp_millis, payload) VALUES (?, ?, ?, ?, ?)
	`), event.ID, string(event.Type), string(event.EntityID), event.TimestampMillis, string(payload))
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func insertComponent(ctx context.Context, tx *sqlx.Tx, row componentRow) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO task_components (
			task_id, component_id, created_at_millis, last_repetition_millis,
			due_millis, interval_millis, ease_factor, learning_step
		) VALUES (
			:task_id, :component_id, :created_at_millis, :last_repetition_millis,
			:due_millis, :interval_millis, :ease_factor, :learning_step
		)
	`, row)
	if err != nil {
		return fmt.Errorf("failed to create component %s: %w", row.ComponentID, err)
	}
	return nil
}

// updateTask applies set to the task row and bumps its update time
func updateTask(ctx context.Context, tx *sqlx.Tx, event models.Event, set string, args ...interface{}) error {
	args = append(args, event.TimestampMillis, string(event.EntityID))
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tasks SET `+set+`, updated_at_millis = ? WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", event.EntityID, ErrNotFound)
	}
	return nil
}

func touchTask(ctx context.Context, tx *sqlx.Tx, event models.Event) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tasks SET updated_at_millis = ? WHERE id = ?`), event.TimestampMillis, string(event.EntityID))
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func nullJSON(v interface{}) (sql.NullString, error) {
	switch x := v.(type) {
	case *models.Provenance:
		if x == nil {
			return sql.NullString{}, nil
		}
	case map[string]string:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
