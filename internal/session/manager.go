// Package session connects the scheduler and the review queue to the task store.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/orbit/internal/logger"
	"github.com/example/orbit/internal/review"
	"github.com/example/orbit/internal/spaced_repetition"
	"github.com/example/orbit/pkg/models"
)

// DueTaskFetchLimit caps how many candidate tasks are read before building a queue
const DueTaskFetchLimit = 500

// Store is the persistence the session needs
type Store interface {
	ListDueTasks(ctx context.Context, thresholdMillis int64, limit int) ([]models.Task, error)
	ListTasks(ctx context.Context, limit int) ([]models.Task, error)
	CountDueComponents(ctx context.Context, thresholdMillis int64) (int, error)
	GetTask(ctx context.Context, id models.TaskID) (*models.Task, error)
	GetComponentState(ctx context.Context, taskID models.TaskID, componentID string) (*models.ComponentState, error)
	IngestTask(ctx context.Context, event models.Event) error
	RecordRepetition(ctx context.Context, event models.Event, next models.ComponentState) error
	DeleteTask(ctx context.Context, event models.Event) error
	UpdateTaskSpec(ctx context.Context, event models.Event) error
	UpdateTaskProvenance(ctx context.Context, event models.Event) error
}

// ErrNotEditable is returned when a card edit targets content that is not question and answer
var ErrNotEditable = errors.New("only question and answer cards can be edited")

// ErrDeleted is returned when an operation targets a deleted task
var ErrDeleted = errors.New("task is deleted")

// Card is a question and answer pair to ingest
type Card struct {
	Question string
	Answer   string
}

// Manager runs practice sessions against a store
type Manager struct {
	store     Store
	scheduler *spaced_repetition.Scheduler
	queueSize int
	log       *logger.Logger
	newID     func() string
}

// NewManager creates a session manager. queueSize <= 0 uses the review package default.
func NewManager(store Store, scheduler *spaced_repetition.Scheduler, queueSize int, log *logger.Logger) *Manager {
	return &Manager{
		store:     store,
		scheduler: scheduler,
		queueSize: queueSize,
		log:       log,
		newID:     uuid.NewString,
	}
}

// FetchReviewQueue returns the components to practice now
func (m *Manager) FetchReviewQueue(ctx context.Context, nowMillis int64) ([]review.ReviewItem, error) {
	threshold := review.FuzzyDueTimestampThreshold(nowMillis)
	tasks, err := m.store.ListDueTasks(ctx, threshold, DueTaskFetchLimit)
	if err != nil {
		return nil, err
	}
	queue, err := review.CreateReviewQueue(tasks, m.queueSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build review queue: %w", err)
	}
	m.log.Debug("built review queue", "candidates", len(tasks), "queued", len(queue))
	return queue, nil
}

// DueCount counts components that would be eligible for review now
func (m *Manager) DueCount(ctx context.Context, nowMillis int64) (int, error) {
	return m.store.CountDueComponents(ctx, review.FuzzyDueTimestampThreshold(nowMillis))
}

// GetTask returns a task by ID. Deleted tasks report ErrDeleted.
func (m *Manager) GetTask(ctx context.Context, id models.TaskID) (*models.Task, error) {
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, fmt.Errorf("task %s: %w", id, ErrDeleted)
	}
	return task, nil
}

// ListCards returns the non-deleted tasks, oldest first, up to limit
func (m *Manager) ListCards(ctx context.Context, limit int) ([]models.Task, error) {
	return m.store.ListTasks(ctx, limit)
}

// UpdateCard replaces the question and answer of a QA task. Empty fields keep
// their current text. Component schedules are kept.
func (m *Manager) UpdateCard(ctx context.Context, taskID models.TaskID, card Card, timestampMillis int64) (*models.TaskSpec, error) {
	task, err := m.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	spec := task.Spec
	if spec.Content.Type != models.TaskContentTypeQA {
		return nil, fmt.Errorf("task %s has %s content: %w", taskID, spec.Content.Type, ErrNotEditable)
	}
	if card.Question != "" {
		spec.Content.Body.Text = card.Question
	}
	if card.Answer != "" {
		answer := models.TaskContentField{Attachments: []models.AttachmentID{}}
		if spec.Content.Answer != nil {
			answer = *spec.Content.Answer
		}
		answer.Text = card.Answer
		spec.Content.Answer = &answer
	}

	err = m.store.UpdateTaskSpec(ctx, models.Event{
		ID:              m.newID(),
		Type:            models.EventTypeTaskUpdateSpec,
		EntityID:        taskID,
		TimestampMillis: timestampMillis,
		Spec:            &spec,
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("updated card", "task", taskID)
	return &spec, nil
}

// RecordRepetition schedules a component after a practice outcome and persists
// both the repetition event and the new state. It returns the new state.
func (m *Manager) RecordRepetition(ctx context.Context, taskID models.TaskID, componentID string, outcome models.Outcome, timestampMillis int64) (models.ComponentState, error) {
	state, err := m.store.GetComponentState(ctx, taskID, componentID)
	if err != nil {
		return models.ComponentState{}, err
	}

	result := m.scheduler.ComputeNext(*state, timestampMillis, outcome, taskID, componentID)
	next := result.Apply(*state, timestampMillis)

	event := models.Event{
		ID:              m.newID(),
		Type:            models.EventTypeTaskRepetition,
		EntityID:        taskID,
		TimestampMillis: timestampMillis,
		ComponentID:     componentID,
		Outcome:         outcome,
	}
	if err := m.store.RecordRepetition(ctx, event, next); err != nil {
		return models.ComponentState{}, err
	}

	m.log.Info("recorded repetition",
		"task", taskID,
		"component", componentID,
		"outcome", outcome,
		"due", next.DueTimestampMillis,
		"interval", next.IntervalMillis(),
	)
	return next, nil
}

// IngestCards creates one QA task per card and returns their IDs
func (m *Manager) IngestCards(ctx context.Context, cards []Card, provenance *models.Provenance, timestampMillis int64) ([]models.TaskID, error) {
	ids := make([]models.TaskID, 0, len(cards))
	for _, card := range cards {
		id := models.TaskID(m.newID())
		event := models.Event{
			ID:              m.newID(),
			Type:            models.EventTypeTaskIngest,
			EntityID:        id,
			TimestampMillis: timestampMillis,
			Spec: &models.TaskSpec{
				Type: models.TaskSpecTypeMemory,
				Content: models.TaskContent{
					Type:   models.TaskContentTypeQA,
					Body:   models.TaskContentField{Text: card.Question, Attachments: []models.AttachmentID{}},
					Answer: &models.TaskContentField{Text: card.Answer, Attachments: []models.AttachmentID{}},
				},
			},
			Provenance: provenance,
		}
		if err := m.store.IngestTask(ctx, event); err != nil {
			return ids, fmt.Errorf("failed to ingest card %q: %w", card.Question, err)
		}
		ids = append(ids, id)
	}
	m.log.Info("ingested cards", "count", len(ids))
	return ids, nil
}

// DeleteTask logically deletes a task
func (m *Manager) DeleteTask(ctx context.Context, taskID models.TaskID, timestampMillis int64) error {
	err := m.store.DeleteTask(ctx, models.Event{
		ID:              m.newID(),
		Type:            models.EventTypeTaskDelete,
		EntityID:        taskID,
		TimestampMillis: timestampMillis,
	})
	if err != nil {
		return err
	}
	m.log.Info("deleted task", "task", taskID)
	return nil
}

// UpdateProvenance replaces a task's provenance; nil clears it
func (m *Manager) UpdateProvenance(ctx context.Context, taskID models.TaskID, provenance *models.Provenance, timestampMillis int64) error {
	return m.store.UpdateTaskProvenance(ctx, models.Event{
		ID:              m.newID(),
		Type:            models.EventTypeTaskUpdateProvenance,
		EntityID:        taskID,
		TimestampMillis: timestampMillis,
		Provenance:      provenance,
	})
}
