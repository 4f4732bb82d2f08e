// Package review builds the bounded, ordered queue of components shown in one
// practice session.
package review

import (
	"sort"
	"time"

	"github.com/example/orbit/pkg/models"
)

// DefaultMaximumQueueSize bounds a session when the caller does not
const DefaultMaximumQueueSize = 50

// FuzzyDueLookahead is how far ahead of now a task may be due and still be reviewed now
const FuzzyDueLookahead = 16 * time.Hour

// ReviewItem pairs a task with the component to present. It is never persisted.
type ReviewItem struct {
	Task        models.Task
	ComponentID string
}

// DueTimestampMillis returns the due time of the chosen component
func (r ReviewItem) DueTimestampMillis() int64 {
	return r.Task.ComponentStates[r.ComponentID].DueTimestampMillis
}

// FuzzyDueTimestampThreshold returns the due-time cutoff for fetching review candidates.
// Anything becoming due before the learner's next likely session is reviewed now.
func FuzzyDueTimestampThreshold(nowMillis int64) int64 {
	return nowMillis + FuzzyDueLookahead.Milliseconds()
}

// CreateReviewQueue filters out deleted tasks, picks one component per task,
// orders by due time, keeps the earliest maxSize and spaces out same-source items.
// A task whose data violates its own schema yields an *InconsistentTaskError.
func CreateReviewQueue(dueTasks []models.Task, maxSize int) ([]ReviewItem, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaximumQueueSize
	}

	items := make([]ReviewItem, 0, len(dueTasks))
	for _, task := range dueTasks {
		if task.IsDeleted {
			continue
		}
		componentID, err := selectComponent(task)
		if err != nil {
			return nil, err
		}
		items = append(items, ReviewItem{Task: task, ComponentID: componentID})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueTimestampMillis() < items[j].DueTimestampMillis()
	})

	if len(items) > maxSize {
		items = items[:maxSize]
	}
	return spaceOutSameSource(items), nil
}

// selectComponent returns the earliest-due component, breaking ties by content order
func selectComponent(task models.Task) (string, error) {
	if len(task.ComponentStates) == 0 {
		return "", &InconsistentTaskError{TaskID: task.ID, Err: ErrNoComponents}
	}

	ids := make([]string, 0, len(task.ComponentStates))
	for id := range task.ComponentStates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ids[0]
	for _, id := range ids[1:] {
		due, bestDue := task.ComponentStates[id].DueTimestampMillis, task.ComponentStates[best].DueTimestampMillis
		if due > bestDue {
			continue
		}
		if due < bestDue {
			best = id
			continue
		}
		// Tie with the current earliest: only now is a content order required
		order, err := componentOrder(task, id)
		if err != nil {
			return "", err
		}
		bestOrder, err := componentOrder(task, best)
		if err != nil {
			return "", err
		}
		if order < bestOrder {
			best = id
		}
	}
	return best, nil
}

func componentOrder(task models.Task, componentID string) (int, error) {
	components := task.Spec.Content.Components
	if len(components) == 0 {
		return 0, &InconsistentTaskError{TaskID: task.ID, ComponentID: componentID, Err: ErrMissingComponentOrder}
	}
	component, ok := components[componentID]
	if !ok {
		return 0, &InconsistentTaskError{TaskID: task.ID, ComponentID: componentID, Err: ErrUnknownComponent}
	}
	return component.Order, nil
}

// spaceOutSameSource reorders items so that two items from the same source are
// not adjacent while an item from another source is still available. Greedy and
// quadratic; the queue is small.
func spaceOutSameSource(items []ReviewItem) []ReviewItem {
	result := make([]ReviewItem, 0, len(items))
	buffer := append([]ReviewItem(nil), items...)

	for len(buffer) > 0 {
		index := 0
		if len(result) > 0 {
			if prev := result[len(result)-1].Task.ProvenanceIdentifier(); prev != "" {
				for i, item := range buffer {
					if item.Task.ProvenanceIdentifier() != prev {
						index = i
						break
					}
				}
			}
		}
		result = append(result, buffer[index])
		buffer = append(buffer[:index], buffer[index+1:]...)
	}
	return result
}
