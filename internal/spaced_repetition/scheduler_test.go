package spaced_repetition

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/orbit/pkg/models"
)

const maxJitterMillis = 600_000

var (
	defaults        = DefaultConfig()
	initialInterval = defaults.InitialReviewInterval.Milliseconds()
)

func assertWithinJitter(t *testing.T, offset int64) {
	t.Helper()
	assert.GreaterOrEqual(t, offset, int64(0))
	assert.Less(t, offset, int64(maxJitterMillis))
}

// ==================== Learning regime ====================

func TestComputeNext_NewComponent(t *testing.T) {
	s := NewDefault()
	state := models.ComponentState{
		CreatedAtTimestampMillis: 1000,
		DueTimestampMillis:       1000,
	}

	t.Run("remembered advances to the second step", func(t *testing.T) {
		result := s.ComputeNext(state, 2000, models.OutcomeRemembered, "task", models.MainComponentID)

		step, learning := result.LearningStep()
		require.True(t, learning)
		assert.Equal(t, 1, step)
		assert.Equal(t, int64(0), result.IntervalMillis())
		assert.Equal(t, int64(2000+600_000), result.DueTimestampMillis)
		_, hasEase := result.EaseFactor()
		assert.False(t, hasEase)
	})

	t.Run("forgotten resets to the first step", func(t *testing.T) {
		result := s.ComputeNext(state, 10000, models.OutcomeForgotten, "task", models.MainComponentID)

		step, learning := result.LearningStep()
		require.True(t, learning)
		assert.Equal(t, 0, step)
		assert.Equal(t, int64(0), result.IntervalMillis())
		assert.Equal(t, 10000+defaults.LearningSteps[0].Milliseconds(), result.DueTimestampMillis)
	})

	t.Run("skipped behaves like remembered", func(t *testing.T) {
		remembered := s.ComputeNext(state, 2000, models.OutcomeRemembered, "task", models.MainComponentID)
		skipped := s.ComputeNext(state, 2000, models.OutcomeSkipped, "task", models.MainComponentID)
		assert.Equal(t, remembered, skipped)
	})
}

func TestComputeNext_LearningStepsHaveNoJitter(t *testing.T) {
	s := NewDefault()
	state := models.ComponentState{
		CreatedAtTimestampMillis: 0,
		DueTimestampMillis:       0,
		Schedule:                 models.Learning{Step: 0},
	}

	a := s.ComputeNext(state, 5000, models.OutcomeRemembered, "task-a", models.MainComponentID)
	b := s.ComputeNext(state, 5000, models.OutcomeRemembered, "task-b", "c1")
	assert.Equal(t, a.DueTimestampMillis, b.DueTimestampMillis)

	fa := s.ComputeNext(state, 5000, models.OutcomeForgotten, "task-a", models.MainComponentID)
	fb := s.ComputeNext(state, 5000, models.OutcomeForgotten, "task-b", "c1")
	assert.Equal(t, fa.DueTimestampMillis, fb.DueTimestampMillis)
}

func TestComputeNext_ForgottenDuringLearningStaysLearning(t *testing.T) {
	s := NewDefault()
	state := models.ComponentState{
		CreatedAtTimestampMillis:      0,
		LastRepetitionTimestampMillis: models.Int64(60_000),
		DueTimestampMillis:            660_000,
		Schedule:                      models.Learning{Step: 1},
	}

	result := s.ComputeNext(state, 700_000, models.OutcomeForgotten, "task", models.MainComponentID)

	assert.Equal(t, models.Learning{Step: 0}, result.Schedule)
	assert.Equal(t, int64(700_000+60_000), result.DueTimestampMillis)
}

func TestComputeNext_Graduation(t *testing.T) {
	s := NewDefault()
	last := len(defaults.LearningSteps) - 1
	state := models.ComponentState{
		CreatedAtTimestampMillis:      0,
		LastRepetitionTimestampMillis: models.Int64(60_000),
		DueTimestampMillis:            660_000,
		Schedule:                      models.Learning{Step: last},
	}
	now := int64(700_000)

	result := s.ComputeNext(state, now, models.OutcomeRemembered, "task", models.MainComponentID)

	_, learning := result.LearningStep()
	assert.False(t, learning)
	assert.Equal(t, initialInterval, result.IntervalMillis())
	ease, ok := result.EaseFactor()
	require.True(t, ok)
	assert.InDelta(t, defaults.IntervalGrowthFactor+defaults.EaseIncrement, ease, 1e-9)
	assertWithinJitter(t, result.DueTimestampMillis-(now+initialInterval))
}

func TestComputeNext_FullLadderWalk(t *testing.T) {
	s := NewDefault()
	state := models.NewComponentState(0)
	now := int64(1000)

	for i := 0; i < len(defaults.LearningSteps); i++ {
		_, learning := state.LearningStep()
		require.True(t, learning, "repetition %d", i)
		state = s.ComputeNext(state, now, models.OutcomeRemembered, "walk", models.MainComponentID).Apply(state, now)
		now = state.DueTimestampMillis
	}

	_, learning := state.LearningStep()
	assert.False(t, learning)
	assert.Equal(t, initialInterval, state.IntervalMillis())
	assert.Equal(t, int64(0), state.CreatedAtTimestampMillis)
}

func TestComputeNext_EmptyLadderGraduatesImmediately(t *testing.T) {
	config := DefaultConfig()
	config.LearningSteps = nil
	s := New(config)

	result := s.ComputeNext(models.NewComponentState(0), 1000, models.OutcomeRemembered, "task", models.MainComponentID)
	assert.Equal(t, initialInterval, result.IntervalMillis())

	forgotten := s.ComputeNext(models.NewComponentState(0), 1000, models.OutcomeForgotten, "task", models.MainComponentID)
	assert.Equal(t, 1000+config.ForgottenRetryDelay.Milliseconds(), forgotten.DueTimestampMillis)
}

// ==================== Graduated regime ====================

var graduatedState = models.ComponentState{
	CreatedAtTimestampMillis:      0,
	LastRepetitionTimestampMillis: models.Int64(1000),
	DueTimestampMillis:            initialInterval * 2,
	Schedule:                      models.Graduated{IntervalMillis: initialInterval * 2},
}

func TestComputeNext_SuccessfulRepetition(t *testing.T) {
	s := NewDefault()
	interval := graduatedState.IntervalMillis()

	for _, outcome := range []models.Outcome{models.OutcomeRemembered, models.OutcomeSkipped} {
		t.Run(string(outcome), func(t *testing.T) {
			tests := []struct {
				name        string
				reviewAt    int64
				growthRatio float64
			}{
				{"typical", graduatedState.DueTimestampMillis + 100_000, 1},
				{"very delayed", graduatedState.DueTimestampMillis + interval, 2},
				{"too early", *graduatedState.LastRepetitionTimestampMillis + interval/2, 0.5},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					result := s.ComputeNext(graduatedState, tt.reviewAt, outcome, "task", models.MainComponentID)

					ratio := float64(result.IntervalMillis()) / float64(interval) / defaults.IntervalGrowthFactor
					assert.InDelta(t, tt.growthRatio, ratio, 0.01)
					assert.Greater(t, result.IntervalMillis(), interval)
					assertWithinJitter(t, result.DueTimestampMillis-(tt.reviewAt+result.IntervalMillis()))
				})
			}
		})
	}
}

func TestComputeNext_ForgottenRepetition(t *testing.T) {
	s := NewDefault()
	interval := graduatedState.IntervalMillis()

	tests := []struct {
		name     string
		reviewAt int64
	}{
		{"typical", graduatedState.DueTimestampMillis + 100_000},
		{"early", graduatedState.DueTimestampMillis + interval/2},
		{"late", graduatedState.DueTimestampMillis + interval*2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.ComputeNext(graduatedState, tt.reviewAt, models.OutcomeForgotten, "task", models.MainComponentID)

			assert.Less(t, result.IntervalMillis(), interval)
			_, learning := result.LearningStep()
			assert.False(t, learning, "forgetting after graduation stays graduated")
			assertWithinJitter(t, result.DueTimestampMillis-(tt.reviewAt+defaults.ForgottenRetryDelay.Milliseconds()))
		})
	}
}

func TestComputeNext_ForgottenBelowInitialIntervalKeepsInterval(t *testing.T) {
	s := NewDefault()
	state := models.ComponentState{
		CreatedAtTimestampMillis:      0,
		LastRepetitionTimestampMillis: models.Int64(1000),
		DueTimestampMillis:            1000,
		Schedule:                      models.Graduated{IntervalMillis: initialInterval / 2},
	}

	result := s.ComputeNext(state, 5000, models.OutcomeForgotten, "task", models.MainComponentID)
	assert.Equal(t, initialInterval/2, result.IntervalMillis())
}

func TestComputeNext_AfterRetry(t *testing.T) {
	s := NewDefault()

	for _, outcome := range []models.Outcome{models.OutcomeRemembered, models.OutcomeSkipped} {
		t.Run(string(outcome)+" not yet successful", func(t *testing.T) {
			state := models.ComponentState{
				CreatedAtTimestampMillis:      0,
				LastRepetitionTimestampMillis: models.Int64(1000),
				DueTimestampMillis:            1000,
				Schedule:                      models.Graduated{IntervalMillis: 0},
			}
			result := s.ComputeNext(state, 10000, outcome, "task", models.MainComponentID)

			assert.Equal(t, initialInterval, result.IntervalMillis())
			assertWithinJitter(t, result.DueTimestampMillis-(10000+result.IntervalMillis()))
		})

		pastSuccess := models.ComponentState{
			CreatedAtTimestampMillis:      0,
			LastRepetitionTimestampMillis: models.Int64(initialInterval * 4),
			DueTimestampMillis:            initialInterval * 4,
			Schedule:                      models.Graduated{IntervalMillis: initialInterval * 2},
		}

		t.Run(string(outcome)+" with past success", func(t *testing.T) {
			reviewAt := initialInterval*4 + 10000
			result := s.ComputeNext(pastSuccess, reviewAt, outcome, "task", models.MainComponentID)

			assert.Equal(t, initialInterval*2, result.IntervalMillis())
			assertWithinJitter(t, result.DueTimestampMillis-(reviewAt+result.IntervalMillis()))
		})

		t.Run(string(outcome)+" very delayed with past success", func(t *testing.T) {
			reviewAt := initialInterval * 8
			result := s.ComputeNext(pastSuccess, reviewAt, outcome, "task", models.MainComponentID)

			assert.Greater(t, result.IntervalMillis(), initialInterval*2)
		})
	}
}

func TestComputeNext_EarlyReviewNeverShrinks(t *testing.T) {
	s := NewDefault()
	interval := graduatedState.IntervalMillis()
	last := *graduatedState.LastRepetitionTimestampMillis

	for _, elapsed := range []int64{0, 1, 1000, interval / 10, interval / 3, interval - 1} {
		result := s.ComputeNext(graduatedState, last+elapsed, models.OutcomeRemembered, "task", models.MainComponentID)
		assert.GreaterOrEqual(t, result.IntervalMillis(), interval, "elapsed %d", elapsed)
	}
}

func TestComputeNext_TimestampBeforeLastRepetition(t *testing.T) {
	s := NewDefault()

	result := s.ComputeNext(graduatedState, 0, models.OutcomeRemembered, "task", models.MainComponentID)

	assert.Equal(t, graduatedState.IntervalMillis(), result.IntervalMillis())
	assertWithinJitter(t, result.DueTimestampMillis-result.IntervalMillis())
}

// ==================== Ease factor ====================

func TestComputeNext_EaseFactor(t *testing.T) {
	s := NewDefault()
	withEase := func(ease *float64, interval int64) models.ComponentState {
		state := graduatedState
		state.Schedule = models.Graduated{IntervalMillis: interval, EaseFactor: ease}
		return state
	}
	reviewAt := graduatedState.DueTimestampMillis + 100_000

	easeOf := func(t *testing.T, r Result) float64 {
		t.Helper()
		ease, ok := r.EaseFactor()
		require.True(t, ok)
		return ease
	}

	t.Run("increases on success", func(t *testing.T) {
		r := s.ComputeNext(withEase(models.Float64(2.0), initialInterval*2), reviewAt, models.OutcomeRemembered, "task", "main")
		assert.InDelta(t, 2.1, easeOf(t, r), 1e-9)
	})

	t.Run("decreases on failure", func(t *testing.T) {
		r := s.ComputeNext(withEase(models.Float64(2.0), initialInterval*2), reviewAt, models.OutcomeForgotten, "task", "main")
		assert.InDelta(t, 1.8, easeOf(t, r), 1e-9)
	})

	t.Run("shrink ignores ease", func(t *testing.T) {
		r := s.ComputeNext(withEase(models.Float64(2.0), initialInterval*6), reviewAt, models.OutcomeForgotten, "task", "main")
		assert.Equal(t, initialInterval*6/3, r.IntervalMillis())
	})

	t.Run("growth uses per-component ease", func(t *testing.T) {
		r := s.ComputeNext(withEase(models.Float64(2.0), initialInterval*2), reviewAt, models.OutcomeRemembered, "task", "main")
		current := reviewAt - *graduatedState.LastRepetitionTimestampMillis
		assert.Equal(t, current*2, r.IntervalMillis())
	})

	t.Run("capped at maximum", func(t *testing.T) {
		r := s.ComputeNext(withEase(models.Float64(2.95), initialInterval*2), reviewAt, models.OutcomeRemembered, "task", "main")
		assert.Equal(t, defaults.MaxEaseFactor, easeOf(t, r))
	})

	t.Run("floored at minimum", func(t *testing.T) {
		r := s.ComputeNext(withEase(models.Float64(1.35), initialInterval*2), reviewAt, models.OutcomeForgotten, "task", "main")
		assert.Equal(t, defaults.MinEaseFactor, easeOf(t, r))
	})

	t.Run("defaults to growth factor when absent", func(t *testing.T) {
		r := s.ComputeNext(withEase(nil, initialInterval*2), reviewAt, models.OutcomeRemembered, "task", "main")
		assert.InDelta(t, defaults.IntervalGrowthFactor+defaults.EaseIncrement, easeOf(t, r), 1e-9)
	})
}

func TestComputeNext_RepeatedOutcomesRespectEaseBounds(t *testing.T) {
	s := NewDefault()

	for _, outcome := range []models.Outcome{models.OutcomeRemembered, models.OutcomeForgotten} {
		t.Run(string(outcome), func(t *testing.T) {
			state := graduatedState
			now := graduatedState.DueTimestampMillis
			for i := 0; i < 15; i++ {
				state = s.ComputeNext(state, now, outcome, "task", "main").Apply(state, now)
				ease, ok := state.EaseFactor()
				require.True(t, ok)
				assert.LessOrEqual(t, ease, defaults.MaxEaseFactor)
				assert.GreaterOrEqual(t, ease, defaults.MinEaseFactor)
				now = state.DueTimestampMillis
			}
		})
	}
}

// ==================== Jitter ====================

func TestComputeNext_JitterCancelsAcrossCallTimes(t *testing.T) {
	s := NewDefault()
	state := models.ComponentState{
		CreatedAtTimestampMillis:      0,
		LastRepetitionTimestampMillis: models.Int64(1000),
		DueTimestampMillis:            11000,
		Schedule:                      models.Graduated{IntervalMillis: 10000, EaseFactor: models.Float64(2.0)},
	}

	first := s.ComputeNext(state, 6000, models.OutcomeRemembered, "task-1", "main")
	second := s.ComputeNext(state, 7000, models.OutcomeRemembered, "task-1", "main")

	assert.Equal(t, first.IntervalMillis(), second.IntervalMillis())
	assert.Equal(t, int64(1000), second.DueTimestampMillis-first.DueTimestampMillis)
}

func TestComputeNext_JitterBounds(t *testing.T) {
	s := NewDefault()
	now := graduatedState.DueTimestampMillis + 100_000

	for i := 0; i < 100; i++ {
		taskID := models.TaskID(fmt.Sprintf("task-%d", i))
		result := s.ComputeNext(graduatedState, now, models.OutcomeRemembered, taskID, "main")
		assertWithinJitter(t, result.DueTimestampMillis-now-result.IntervalMillis())
	}
}

func TestConfig_Overrides(t *testing.T) {
	config := DefaultConfig()
	config.LearningSteps = []time.Duration{30 * time.Second, time.Minute, 5 * time.Minute}
	s := New(config)

	result := s.ComputeNext(models.ComponentState{Schedule: models.Learning{Step: 1}}, 0, models.OutcomeRemembered, "task", "main")

	assert.Equal(t, models.Learning{Step: 2}, result.Schedule)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), result.DueTimestampMillis)
	assert.Equal(t, config, s.Config())
}
