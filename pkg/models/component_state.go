package models

// Schedule is the scheduling regime of a component: Learning or Graduated.
// A nil Schedule marks a component that has never been practiced.
type Schedule interface {
	isSchedule()
}

// Learning is the regime of a component still walking the learning-step ladder
type Learning struct {
	Step int
}

// Graduated is the regime of a component under full spaced review.
// A nil EaseFactor means the scheduler's default growth factor applies.
type Graduated struct {
	IntervalMillis int64
	EaseFactor     *float64
}

func (Learning) isSchedule()  {}
func (Graduated) isSchedule() {}

// ComponentState is the scheduling record of one task component
type ComponentState struct {
	CreatedAtTimestampMillis      int64
	LastRepetitionTimestampMillis *int64
	DueTimestampMillis            int64
	Schedule                      Schedule
}

// NewComponentState returns the state of a component ingested at timestampMillis.
// It is due immediately.
func NewComponentState(timestampMillis int64) ComponentState {
	return ComponentState{
		CreatedAtTimestampMillis: timestampMillis,
		DueTimestampMillis:       timestampMillis,
	}
}

// IntervalMillis returns the last computed interval; 0 while learning
func (s ComponentState) IntervalMillis() int64 {
	if g, ok := s.Schedule.(Graduated); ok {
		return g.IntervalMillis
	}
	return 0
}

// EaseFactor returns the component's ease factor if it has one
func (s ComponentState) EaseFactor() (float64, bool) {
	if g, ok := s.Schedule.(Graduated); ok && g.EaseFactor != nil {
		return *g.EaseFactor, true
	}
	return 0, false
}

// LearningStep returns the learning-step index; ok is false once graduated.
// A never-practiced component reports step 0.
func (s ComponentState) LearningStep() (int, bool) {
	switch sch := s.Schedule.(type) {
	case Learning:
		return sch.Step, true
	case nil:
		return 0, true
	}
	return 0, false
}

// IsNew reports whether the component has never been practiced
func (s ComponentState) IsNew() bool {
	return s.Schedule == nil
}

// ComponentStateFromColumns rebuilds a state from its flattened storage form.
// A row without a learning step, interval, ease or repetition is a new component.
func ComponentStateFromColumns(createdAt int64, lastRepetition *int64, due, interval int64, ease *float64, learningStep *int) ComponentState {
	state := ComponentState{
		CreatedAtTimestampMillis:      createdAt,
		LastRepetitionTimestampMillis: lastRepetition,
		DueTimestampMillis:            due,
	}
	switch {
	case learningStep != nil:
		state.Schedule = Learning{Step: *learningStep}
	case interval == 0 && ease == nil && lastRepetition == nil:
		state.Schedule = nil
	default:
		state.Schedule = Graduated{IntervalMillis: interval, EaseFactor: ease}
	}
	return state
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
