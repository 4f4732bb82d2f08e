package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/orbit/pkg/models"
)

const day = 24 * time.Hour

// Config holds the tunable parameters of the scheduler
type Config struct {
	// Ease used for components without one. Graduation starts at this plus EaseIncrement.
	IntervalGrowthFactor float64
	// Divisor applied to the interval when a graduated component is forgotten
	IntervalShrinkFactor float64
	// Interval assigned at graduation, and the floor for every graduated interval
	InitialReviewInterval time.Duration
	EaseIncrement         float64
	EaseDecrement         float64
	MinEaseFactor         float64
	MaxEaseFactor         float64
	// Delays a new component walks through before graduating
	LearningSteps []time.Duration
	// Delay before a forgotten graduated component is shown again
	ForgottenRetryDelay time.Duration
}

// DefaultConfig returns the scheduler configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		IntervalGrowthFactor:  2.3,
		IntervalShrinkFactor:  3.0,
		InitialReviewInterval: 5 * day,
		EaseIncrement:         0.1,
		EaseDecrement:         0.2,
		MinEaseFactor:         1.3,
		MaxEaseFactor:         3.0,
		LearningSteps:         []time.Duration{time.Minute, 10 * time.Minute},
		ForgottenRetryDelay:   10 * time.Minute,
	}
}

// Scheduler computes when a component should next be shown.
// It is stateless; a single instance may be shared freely.
type Scheduler struct {
	config Config
}

// New creates a scheduler with the given configuration
func New(config Config) *Scheduler {
	return &Scheduler{config: config}
}

// NewDefault creates a scheduler with DefaultConfig
func NewDefault() *Scheduler {
	return New(DefaultConfig())
}

// Config returns the scheduler's configuration
func (s *Scheduler) Config() Config {
	return s.config
}

// Result is the outcome of scheduling one repetition
type Result struct {
	DueTimestampMillis int64
	Schedule           models.Schedule
}

// IntervalMillis returns the new interval; 0 while learning
func (r Result) IntervalMillis() int64 {
	return models.ComponentState{Schedule: r.Schedule}.IntervalMillis()
}

// EaseFactor returns the new ease factor, if the component is graduated
func (r Result) EaseFactor() (float64, bool) {
	return models.ComponentState{Schedule: r.Schedule}.EaseFactor()
}

// LearningStep returns the new learning step, if the component is still learning
func (r Result) LearningStep() (int, bool) {
	return models.ComponentState{Schedule: r.Schedule}.LearningStep()
}

// Apply returns the component state after a repetition at timestampMillis
func (r Result) Apply(state models.ComponentState, timestampMillis int64) models.ComponentState {
	return models.ComponentState{
		CreatedAtTimestampMillis:      state.CreatedAtTimestampMillis,
		LastRepetitionTimestampMillis: models.Int64(timestampMillis),
		DueTimestampMillis:            r.DueTimestampMillis,
		Schedule:                      r.Schedule,
	}
}

// ComputeNext schedules a component after a practice event with the given outcome.
// timestampMillis may lie anywhere relative to the state's due time.
func (s *Scheduler) ComputeNext(state models.ComponentState, timestampMillis int64, outcome models.Outcome, taskID models.TaskID, componentID string) Result {
	switch sch := state.Schedule.(type) {
	case models.Graduated:
		return s.computeGraduated(state, sch, timestampMillis, outcome, taskID, componentID)
	case models.Learning:
		return s.computeLearning(sch.Step, timestampMillis, outcome, taskID, componentID)
	default:
		return s.computeLearning(0, timestampMillis, outcome, taskID, componentID)
	}
}

func (s *Scheduler) computeLearning(step int, timestampMillis int64, outcome models.Outcome, taskID models.TaskID, componentID string) Result {
	steps := s.config.LearningSteps

	if !outcome.IsSuccess() {
		delay := s.config.ForgottenRetryDelay
		if len(steps) > 0 {
			delay = steps[0]
		}
		return Result{
			DueTimestampMillis: timestampMillis + delay.Milliseconds(),
			Schedule:           models.Learning{Step: 0},
		}
	}

	nextStep := step + 1
	if nextStep >= len(steps) {
		interval := s.config.InitialReviewInterval.Milliseconds()
		ease := math.Min(s.config.IntervalGrowthFactor+s.config.EaseIncrement, s.config.MaxEaseFactor)
		return Result{
			DueTimestampMillis: timestampMillis + interval + StableJitterMillis(taskID, componentID),
			Schedule:           models.Graduated{IntervalMillis: interval, EaseFactor: models.Float64(ease)},
		}
	}

	// Learning steps are exact: no jitter.
	return Result{
		DueTimestampMillis: timestampMillis + steps[nextStep].Milliseconds(),
		Schedule:           models.Learning{Step: nextStep},
	}
}

func (s *Scheduler) computeGraduated(state models.ComponentState, g models.Graduated, timestampMillis int64, outcome models.Outcome, taskID models.TaskID, componentID string) Result {
	since := state.CreatedAtTimestampMillis
	if state.LastRepetitionTimestampMillis != nil {
		since = *state.LastRepetitionTimestampMillis
	}
	currentReviewIntervalMillis := max(0, timestampMillis-since)

	ease := s.config.IntervalGrowthFactor
	if g.EaseFactor != nil {
		ease = *g.EaseFactor
	}
	initial := s.config.InitialReviewInterval.Milliseconds()

	var newInterval int64
	var newEase float64
	var delay int64

	if outcome.IsSuccess() {
		newEase = math.Min(ease+s.config.EaseIncrement, s.config.MaxEaseFactor)
		grown := int64(math.Floor(float64(currentReviewIntervalMillis) * ease))
		if currentReviewIntervalMillis < g.IntervalMillis {
			// Practiced early: never shrink below the interval already earned.
			newInterval = max(g.IntervalMillis, initial, grown)
		} else {
			newInterval = max(initial, grown)
		}
		delay = newInterval
	} else {
		newEase = math.Max(ease-s.config.EaseDecrement, s.config.MinEaseFactor)
		if g.IntervalMillis < initial {
			newInterval = g.IntervalMillis
		} else {
			newInterval = max(initial, int64(math.Floor(float64(g.IntervalMillis)/s.config.IntervalShrinkFactor)))
		}
		delay = s.config.ForgottenRetryDelay.Milliseconds()
	}

	return Result{
		DueTimestampMillis: timestampMillis + StableJitterMillis(taskID, componentID) + delay,
		Schedule:           models.Graduated{IntervalMillis: newInterval, EaseFactor: models.Float64(newEase)},
	}
}
