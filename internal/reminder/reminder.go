// Package reminder periodically tells the learner how many cards are due.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/orbit/internal/logger"
)

// DueCounter reports how many components are due for review
type DueCounter interface {
	DueCount(ctx context.Context, nowMillis int64) (int, error)
}

// Notifier delivers a reminder
type Notifier interface {
	SendReminder(ctx context.Context, dueCount int) error
}

// Config holds the notification window, in local hours inclusive
type Config struct {
	StartHour int
	EndHour   int
}

// Scheduler runs the hourly reminder job
type Scheduler struct {
	scheduler *gocron.Scheduler
	counter   DueCounter
	notifier  Notifier
	config    Config
	log       *logger.Logger
	now       func() time.Time
}

// New creates a reminder scheduler
func New(counter DueCounter, notifier Notifier, config Config, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		counter:   counter,
		notifier:  notifier,
		config:    config,
		log:       log,
		now:       time.Now,
	}
}

// Start schedules the hourly check and runs it in the background
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.runCheck); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates the scheduled job
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Check(ctx); err != nil {
		s.log.Error("reminder check failed", "error", err)
	}
}

// Check sends a reminder when the current hour is inside the notification
// window and something is due. It reports whether a reminder was sent.
func (s *Scheduler) Check(ctx context.Context) (bool, error) {
	now := s.now()
	if hour := now.Hour(); hour < s.config.StartHour || hour > s.config.EndHour {
		s.log.Debug("outside notification hours, skipping reminder",
			"hour", hour, "start", s.config.StartHour, "end", s.config.EndHour)
		return false, nil
	}

	count, err := s.counter.DueCount(ctx, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to count due cards: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminder(ctx, count); err != nil {
		return false, fmt.Errorf("failed to send reminder: %w", err)
	}
	s.log.Info("sent reminder", "due", count)
	return true, nil
}
