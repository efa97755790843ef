// Package scheduler runs the time-driven steps of the waitlist workflow: the
// draw once registration closes, invitation expiry and the notice sent to
// non-selected entrants before an event starts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/service"
)

// Config holds configuration for the scheduler worker.
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	WorkerInterval time.Duration `mapstructure:"worker_interval"`
	SorryLead      time.Duration `mapstructure:"sorry_lead"` // how long before start non-selected entrants are told
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		WorkerInterval: 30 * time.Second,
		SorryLead:      time.Minute,
	}
}

// Workflow is the part of the service the worker drives.
type Workflow interface {
	DueForDraw(ctx context.Context) ([]model.Event, error)
	Draw(ctx context.Context, eventID string) (*service.DrawResult, error)
	ExpireDue(ctx context.Context) (int, error)
	StartingWithin(ctx context.Context, lead time.Duration) ([]model.Event, error)
	NotifyNonSelected(ctx context.Context, eventID string) (int, error)
}

// Worker periodically runs due draws, expires overdue invitations and sends
// the pre-start notice to non-selected entrants.
type Worker struct {
	wf   Workflow
	c    *Config
	ctx  context.Context
	stop context.CancelFunc
	done chan struct{}
}

// New creates a new scheduler worker.
func New(c *Config, wf Workflow) *Worker {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.WorkerInterval <= 0 {
		c.WorkerInterval = 30 * time.Second
	}
	if c.SorryLead <= 0 {
		c.SorryLead = time.Minute
	}
	return &Worker{wf: wf, c: c}
}

// Start starts the worker.
func (w *Worker) Start(ctx context.Context) error {
	if w.ctx != nil && w.stop != nil {
		return fmt.Errorf("scheduler worker already started")
	}
	w.ctx, w.stop = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.worker(w.ctx)
	return nil
}

// Stop stops the worker and waits for the current tick to finish.
func (w *Worker) Stop() error {
	if w.stop == nil {
		return fmt.Errorf("scheduler worker already stopped or not started")
	}
	w.stop()
	<-w.done
	w.stop = nil
	w.ctx = nil
	return nil
}

func (w *Worker) worker(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.c.WorkerInterval)
	defer ticker.Stop()

	for {
		w.Tick(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs every step once. Step failures are logged and do not stop the
// remaining steps.
func (w *Worker) Tick(ctx context.Context) {
	if err := w.drawDue(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "can't run due draws",
			slog.String("err", err.Error()),
		)
	}
	if n, err := w.wf.ExpireDue(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "can't expire overdue invitations",
			slog.String("err", err.Error()),
		)
	} else if n > 0 {
		slog.Default().InfoContext(ctx, "expired overdue invitations",
			slog.Int("count", n),
		)
	}
	if err := w.notifyNonSelected(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "can't notify non-selected entrants",
			slog.String("err", err.Error()),
		)
	}
}

func (w *Worker) drawDue(ctx context.Context) error {
	events, err := w.wf.DueForDraw(ctx)
	if err != nil {
		return fmt.Errorf("can't get events due for draw: %w", err)
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := w.wf.Draw(ctx, ev.ID)
		if errors.Is(err, service.ErrAlreadyProcessed) {
			// Another instance won the race.
			continue
		}
		if err != nil {
			slog.Default().ErrorContext(ctx, "can't draw event",
				slog.String("err", err.Error()),
				slog.String("event_id", ev.ID),
			)
			continue
		}
		slog.Default().InfoContext(ctx, "drew event",
			slog.String("event_id", ev.ID),
			slog.Int("selected", len(res.Selected)),
			slog.Int("non_selected", len(res.NonSelected)),
		)
	}

	return nil
}

func (w *Worker) notifyNonSelected(ctx context.Context) error {
	events, err := w.wf.StartingWithin(ctx, w.c.SorryLead)
	if err != nil {
		return fmt.Errorf("can't get events starting soon: %w", err)
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := w.wf.NotifyNonSelected(ctx, ev.ID)
		if err != nil {
			slog.Default().ErrorContext(ctx, "can't notify non-selected entrants of event",
				slog.String("err", err.Error()),
				slog.String("event_id", ev.ID),
			)
			continue
		}
		slog.Default().InfoContext(ctx, "notified non-selected entrants",
			slog.String("event_id", ev.ID),
			slog.Int("recipients", n),
		)
	}

	return nil
}
