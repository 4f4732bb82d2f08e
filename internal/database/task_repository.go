package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/orbit/pkg/models"
)

// Store persists tasks, their component states and the event log
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store over an open connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.db.Close()
}

type taskRow struct {
	ID              string         `db:"id"`
	Spec            string         `db:"spec"`
	Provenance      sql.NullString `db:"provenance"`
	Metadata        sql.NullString `db:"metadata"`
	IsDeleted       bool           `db:"is_deleted"`
	CreatedAtMillis int64          `db:"created_at_millis"`
	UpdatedAtMillis int64          `db:"updated_at_millis"`
}

type componentRow struct {
	TaskID               string          `db:"task_id"`
	ComponentID          string          `db:"component_id"`
	CreatedAtMillis      int64           `db:"created_at_millis"`
	LastRepetitionMillis sql.NullInt64   `db:"last_repetition_millis"`
	DueMillis            int64           `db:"due_millis"`
	IntervalMillis       int64           `db:"interval_millis"`
	EaseFactor           sql.NullFloat64 `db:"ease_factor"`
	LearningStep         sql.NullInt64   `db:"learning_step"`
}

func (r componentRow) state() models.ComponentState {
	var lastRepetition *int64
	if r.LastRepetitionMillis.Valid {
		lastRepetition = models.Int64(r.LastRepetitionMillis.Int64)
	}
	var ease *float64
	if r.EaseFactor.Valid {
		ease = models.Float64(r.EaseFactor.Float64)
	}
	var step *int
	if r.LearningStep.Valid {
		v := int(r.LearningStep.Int64)
		step = &v
	}
	return models.ComponentStateFromColumns(r.CreatedAtMillis, lastRepetition, r.DueMillis, r.IntervalMillis, ease, step)
}

func newComponentRow(taskID models.TaskID, componentID string, state models.ComponentState) componentRow {
	row := componentRow{
		TaskID:          string(taskID),
		ComponentID:     componentID,
		CreatedAtMillis: state.CreatedAtTimestampMillis,
		DueMillis:       state.DueTimestampMillis,
		IntervalMillis:  state.IntervalMillis(),
	}
	if state.LastRepetitionTimestampMillis != nil {
		row.LastRepetitionMillis = sql.NullInt64{Int64: *state.LastRepetitionTimestampMillis, Valid: true}
	}
	if ease, ok := state.EaseFactor(); ok {
		row.EaseFactor = sql.NullFloat64{Float64: ease, Valid: true}
	}
	if step, ok := state.LearningStep(); ok && !state.IsNew() {
		row.LearningStep = sql.NullInt64{Int64: int64(step), Valid: true}
	}
	return row
}

func (r taskRow) task() (models.Task, error) {
	task := models.Task{
		ID:              models.TaskID(r.ID),
		IsDeleted:       r.IsDeleted,
		ComponentStates: map[string]models.ComponentState{},
	}
	if err := json.Unmarshal([]byte(r.Spec), &task.Spec); err != nil {
		return task, fmt.Errorf("failed to decode spec of task %s: %w", r.ID, err)
	}
	if r.Provenance.Valid {
		if err := json.Unmarshal([]byte(r.Provenance.String), &task.Provenance); err != nil {
			return task, fmt.Errorf("failed to decode provenance of task %s: %w", r.ID, err)
		}
	}
	if r.Metadata.Valid {
		if err := json.Unmarshal([]byte(r.Metadata.String), &task.Metadata); err != nil {
			return task, fmt.Errorf("failed to decode metadata of task %s: %w", r.ID, err)
		}
	}
	return task, nil
}

// ListDueTasks returns non-deleted tasks whose earliest component is due at or
// before thresholdMillis, earliest first, up to limit
func (s *Store) ListDueTasks(ctx context.Context, thresholdMillis int64, limit int) ([]models.Task, error) {
	query := s.db.Rebind(`
		SELECT t.id
		FROM tasks t
		JOIN task_components c ON c.task_id = t.id
		WHERE t.is_deleted = FALSE
		GROUP BY t.id
		HAVING MIN(c.due_millis) <= ?
		ORDER BY MIN(c.due_millis) ASC, t.id ASC
		LIMIT ?
	`)
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, thresholdMillis, limit); err != nil {
		return nil, fmt.Errorf("failed to get due tasks: %w", err)
	}
	return s.loadTasks(ctx, ids)
}

// ListTasks returns every non-deleted task, up to limit
func (s *Store) ListTasks(ctx context.Context, limit int) ([]models.Task, error) {
	var ids []string
	query := s.db.Rebind(`SELECT id FROM tasks WHERE is_deleted = FALSE ORDER BY created_at_millis, id LIMIT ?`)
	if err := s.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	return s.loadTasks(ctx, ids)
}

// CountDueComponents counts components of non-deleted tasks due at or before thresholdMillis
func (s *Store) CountDueComponents(ctx context.Context, thresholdMillis int64) (int, error) {
	var count int
	query := s.db.Rebind(`
		SELECT COUNT(*)
		FROM task_components c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.is_deleted = FALSE AND c.due_millis <= ?
	`)
	if err := s.db.GetContext(ctx, &count, query, thresholdMillis); err != nil {
		return 0, fmt.Errorf("failed to count due components: %w", err)
	}
	return count, nil
}

// GetTask returns a task with all of its component states
func (s *Store) GetTask(ctx context.Context, id models.TaskID) (*models.Task, error) {
	tasks, err := s.loadTasks(ctx, []string{string(id)})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &tasks[0], nil
}

// GetComponentState returns the latest state of one component of a non-deleted task
func (s *Store) GetComponentState(ctx context.Context, taskID models.TaskID, componentID string) (*models.ComponentState, error) {
	var row componentRow
	query := s.db.Rebind(`
		SELECT c.*
		FROM task_components c
		JOIN tasks t ON t.id = c.task_id
		WHERE c.task_id = ? AND c.component_id = ? AND t.is_deleted = FALSE
	`)
	err := s.db.GetContext(ctx, &row, query, string(taskID), componentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("component %s of task %s: %w", componentID, taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component state: %w", err)
	}
	state := row.state()
	return &state, nil
}

// loadTasks fetches tasks and their components, keeping the order of ids
func (s *Store) loadTasks(ctx context.Context, ids []string) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM tasks WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build task query: %w", err)
	}
	var taskRows []taskRow
	if err := s.db.SelectContext(ctx, &taskRows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}

	query, args, err = sqlx.In(`SELECT * FROM task_components WHERE task_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build component query: %w", err)
	}
	var componentRows []componentRow
	if err := s.db.SelectContext(ctx, &componentRows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get task components: %w", err)
	}

	byID := make(map[string]*models.Task, len(taskRows))
	for _, row := range taskRows {
		task, err := row.task()
		if err != nil {
			return nil, err
		}
		byID[row.ID] = &task
	}
	for _, row := range componentRows {
		if task, ok := byID[row.TaskID]; ok {
			task.ComponentStates[row.ComponentID] = row.state()
		}
	}

	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if task, ok := byID[id]; ok {
			tasks = append(tasks, *task)
		}
	}
	return tasks, nil
}
