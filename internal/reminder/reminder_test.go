package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/orbit/internal/logger"
)

type fakeCounter struct {
	count int
	err   error
	asked []int64
}

func (f *fakeCounter) DueCount(_ context.Context, nowMillis int64) (int, error) {
	f.asked = append(f.asked, nowMillis)
	return f.count, f.err
}

type fakeNotifier struct {
	sent []int
	err  error
}

func (f *fakeNotifier) SendReminder(_ context.Context, dueCount int) error {
	f.sent = append(f.sent, dueCount)
	return f.err
}

func newTestScheduler(counter *fakeCounter, notifier *fakeNotifier, at time.Time) *Scheduler {
	s := New(counter, notifier, Config{StartHour: 8, EndHour: 22}, logger.NewNop())
	s.now = func() time.Time { return at }
	return s
}

func TestCheck_SendsInsideWindow(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	counter := &fakeCounter{count: 3}
	notifier := &fakeNotifier{}

	sent, err := newTestScheduler(counter, notifier, at).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []int{3}, notifier.sent)
	assert.Equal(t, []int64{at.UnixMilli()}, counter.asked)
}

func TestCheck_Window(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true},
		{22, true},
		{23, false},
	}
	for _, tt := range tests {
		at := time.Date(2024, 5, 1, tt.hour, 0, 0, 0, time.Local)
		notifier := &fakeNotifier{}
		sent, err := newTestScheduler(&fakeCounter{count: 1}, notifier, at).Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.want, sent, "hour %d", tt.hour)
		assert.Equal(t, tt.want, len(notifier.sent) == 1, "hour %d", tt.hour)
	}
}

func TestCheck_NothingDue(t *testing.T) {
	notifier := &fakeNotifier{}
	sent, err := newTestScheduler(&fakeCounter{}, notifier, time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, notifier.sent)
}

func TestCheck_Errors(t *testing.T) {
	noon := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	boom := errors.New("boom")

	_, err := newTestScheduler(&fakeCounter{err: boom}, &fakeNotifier{}, noon).Check(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = newTestScheduler(&fakeCounter{count: 2}, &fakeNotifier{err: boom}, noon).Check(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&fakeCounter{}, &fakeNotifier{}, time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local))
	require.NoError(t, s.Start())
	s.Stop()
}
