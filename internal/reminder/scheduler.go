// Package reminder sends each todo's email reminder once, at its configured offset before the due time.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"todocal/internal/logging"
	"todocal/internal/mail"
	"todocal/internal/model"
	"todocal/internal/repository"
)

const (
	defaultInterval    = time.Minute
	defaultMaxOffset   = 24 * time.Hour
	defaultSendTimeout = 10 * time.Second
	defaultClaimTTL    = 10 * time.Minute
)

// TitleDecrypter recovers the plaintext title of a stored todo.
type TitleDecrypter interface {
	DecryptTitle(ctx context.Context, stored string) string
}

// Config tunes the scheduler. Zero values take defaults.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// CatchUp widens the firing window past the target minute so a missed tick
	// still sends the reminder. Zero fires only on the exact minute.
	// Claims must outlive the window; see ClaimTTL.
	CatchUp time.Duration
	// MaxOffset bounds how far ahead of the due time a reminder may be scheduled.
	// It decides how many future due dates a sweep has to look at.
	MaxOffset   time.Duration
	SendTimeout time.Duration
	Location    *time.Location
}

// ClaimTTL is how long a send claim must live for cfg. A claim kept after a failed
// MarkNotified then covers the rest of the firing window, so no later sweep resends.
func ClaimTTL(cfg Config) time.Duration {
	window := time.Minute
	if cfg.CatchUp > 0 {
		window += cfg.CatchUp
	}
	return max(defaultClaimTTL, window)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Now        time.Time
	Candidates int
	Fired      int
	Failed     int
	Skipped    bool
}

// Scheduler runs the periodic reminder sweep.
type Scheduler struct {
	todos   repository.TodoRepository
	titles  TitleDecrypter
	sender  mail.Sender
	claims  Claimer
	clock   Clock
	logger  logging.Logger
	cfg     Config
	running *semaphore.Weighted
}

// New creates a scheduler. A nil clock uses the system clock in cfg.Location.
func New(
	todos repository.TodoRepository,
	titles TitleDecrypter,
	sender mail.Sender,
	claims Claimer,
	clock Clock,
	logger logging.Logger,
	cfg Config,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.CatchUp < 0 {
		cfg.CatchUp = 0
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = defaultMaxOffset
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = SystemClock{Location: cfg.Location}
	}
	if claims == nil {
		claims = NewCacheClaimer(nil, ClaimTTL(cfg))
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		todos:   todos,
		titles:  titles,
		sender:  sender,
		claims:  claims,
		clock:   clock,
		logger:  logger.With("component", "reminder"),
		cfg:     cfg,
		running: semaphore.NewWeighted(1),
	}
}

// Run sweeps on every tick until ctx is cancelled, then waits for the in-flight sweep.
// A tick that arrives while a sweep is still running is dropped.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "reminder scheduler started",
		"interval", s.cfg.Interval.String(),
		"catch_up", s.cfg.CatchUp.String(),
		"location", s.cfg.Location.String())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "reminder scheduler stopping")
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.tick(ctx)
			}()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.Sweep(ctx)
	switch {
	case err != nil:
		s.logger.Error(ctx, "reminder sweep failed", "error", err)
	case res.Skipped:
		s.logger.Warn(ctx, "reminder sweep skipped, previous sweep still running")
	case res.Candidates > 0:
		s.logger.Info(ctx, "reminder sweep finished",
			"now", res.Now.Format(time.RFC3339),
			"candidates", res.Candidates,
			"fired", res.Fired,
			"failed", res.Failed)
	}
}

// Sweep runs one pass: every pending reminder whose target minute falls in the
// current window is sent and marked notified. Per-todo failures are logged and
// do not stop the pass.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	if !s.running.TryAcquire(1) {
		return SweepResult{Skipped: true}, nil
	}
	defer s.running.Release(1)

	now := truncateToMinute(s.clock.Now().In(s.cfg.Location))
	res := SweepResult{Now: now}

	from, to := s.dateRange(now)
	candidates, err := s.todos.ListReminderCandidates(ctx, from, to)
	if err != nil {
		return res, fmt.Errorf("list reminder candidates: %w", err)
	}
	res.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if !s.due(c, now) {
			continue
		}
		sent, err := s.fire(ctx, c)
		if err != nil {
			res.Failed++
			s.logger.Error(ctx, "reminder not sent", "todo_id", c.ID, "user_id", c.UserID, "error", err)
			continue
		}
		if sent {
			res.Fired++
		}
	}
	return res, nil
}

// window is how long after its target minute a reminder may still fire.
func (s *Scheduler) window() time.Duration {
	return time.Minute + s.cfg.CatchUp
}

// dateRange returns the due dates whose reminders can fall inside the current window.
// Reminders fire before their due time, so the range extends forward by the maximum offset.
func (s *Scheduler) dateRange(now time.Time) (model.Date, model.Date) {
	today := model.DateOf(now)
	from := model.DateOf(now.Add(-s.cfg.CatchUp))
	lookahead := int((s.cfg.MaxOffset + 24*time.Hour - 1) / (24 * time.Hour))
	return from, today.AddDays(lookahead)
}

// due reports whether now falls in [remindAt, remindAt+window).
func (s *Scheduler) due(c model.ReminderCandidate, now time.Time) bool {
	remindAt := c.RemindAt(s.cfg.Location)
	return !now.Before(remindAt) && now.Before(remindAt.Add(s.window()))
}

// fire sends one reminder. It reports false without error when another instance holds the claim.
func (s *Scheduler) fire(ctx context.Context, c model.ReminderCandidate) (bool, error) {
	if !s.claims.Claim(ctx, c.ID) {
		s.logger.Debug(ctx, "reminder claimed elsewhere", "todo_id", c.ID)
		return false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	minutes := 0
	if c.NotifyMinutes != nil {
		minutes = *c.NotifyMinutes
	}
	err := s.sender.SendReminder(sendCtx, mail.Reminder{
		To:      c.Email,
		Name:    c.Name,
		Title:   s.titles.DecryptTitle(ctx, c.Title),
		DueDate: c.DueDate,
		DueTime: c.DueTime,
		Minutes: minutes,
	})
	if err != nil {
		s.claims.Release(ctx, c.ID)
		return false, fmt.Errorf("send reminder: %w", err)
	}

	marked, err := s.todos.MarkNotified(ctx, c.ID)
	if err != nil {
		// the mail is out; keep the claim so no other sweep resends before it expires
		return true, fmt.Errorf("mark notified: %w", err)
	}
	if !marked {
		s.logger.Warn(ctx, "reminder already marked notified", "todo_id", c.ID)
	}
	s.logger.Info(ctx, "reminder sent", "todo_id", c.ID, "user_id", c.UserID, "due_date", c.DueDate.String(), "due_time", c.DueTime.String())
	return true, nil
}

func truncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
