// Package service implements the waitlist workflow: the roster, the one-time
// draw, invitations, admissions and replacements. Every operation that touches
// more than one record runs in a single repository transaction that holds the
// event row lock.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/eventease/internal/lottery"
	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
	"github.com/Shivanand-hulikatti/eventease/internal/watch"
)

// DefaultInvitationTTL is the response window of invitations issued by a draw
// for an event without a deadline.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// EventService orchestrates the waitlist workflow.
type EventService struct {
	repo     repository.Repository
	now      func() time.Time
	src      lottery.Source
	notifier notify.Notifier
	ttl      time.Duration

	counts      *watch.Hub[model.WaitlistCount]
	invitations *watch.Hub[[]model.Invitation]
}

// Option customises an EventService.
type Option func(*EventService)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *EventService) { s.now = now }
}

// WithSource overrides the random source used by draws and replacements.
func WithSource(src lottery.Source) Option {
	return func(s *EventService) { s.src = src }
}

// WithNotifier sets the notification backend. Without it notifications are
// only logged.
func WithNotifier(n notify.Notifier) Option {
	return func(s *EventService) { s.notifier = n }
}

// WithInvitationTTL overrides DefaultInvitationTTL.
func WithInvitationTTL(ttl time.Duration) Option {
	return func(s *EventService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(repo repository.Repository, opts ...Option) (*EventService, error) {
	s := &EventService{
		repo:     repo,
		now:      time.Now,
		notifier: notify.LogNotifier{},
		ttl:      DefaultInvitationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		src, err := lottery.NewSource()
		if err != nil {
			return nil, err
		}
		s.src = src
	}
	s.counts = watch.NewHub[model.WaitlistCount](s.WaitlistCount)
	s.invitations = watch.NewHub[[]model.Invitation](s.ListActive)
	return s, nil
}

func (s *EventService) nowMs() int64 {
	return s.now().UnixMilli()
}

// SubscribeWaitlistCount delivers the waitlist count of eventID now and after
// every change until the subscription is removed.
func (s *EventService) SubscribeWaitlistCount(ctx context.Context, eventID string, fn func(watch.Update[model.WaitlistCount])) (*watch.Subscription[model.WaitlistCount], error) {
	return s.counts.Subscribe(ctx, eventID, fn)
}

// SubscribeInvitations delivers the active invitations of uid now and after
// every change until the subscription is removed.
func (s *EventService) SubscribeInvitations(ctx context.Context, uid string, fn func(watch.Update[[]model.Invitation])) (*watch.Subscription[[]model.Invitation], error) {
	return s.invitations.Subscribe(ctx, uid, fn)
}

// changed pushes fresh values to listeners after a committed mutation.
func (s *EventService) changed(ctx context.Context, eventID string, uids ...string) {
	if err := s.counts.Refresh(ctx, eventID); err != nil {
		slog.Default().ErrorContext(ctx, "can't refresh waitlist count listeners",
			slog.String("err", err.Error()),
			slog.String("event_id", eventID),
		)
	}
	for _, uid := range uids {
		if err := s.invitations.Refresh(ctx, uid); err != nil {
			slog.Default().ErrorContext(ctx, "can't refresh invitation listeners",
				slog.String("err", err.Error()),
				slog.String("uid", uid),
			)
		}
	}
}

// notify hands a notification to the backend. Failures never reach the caller.
func (s *EventService) notify(ctx context.Context, kind notify.Kind, ev *model.Event, uids []string, expiresAt int64) {
	if len(uids) == 0 {
		return
	}
	n := notify.Notification{
		Kind:       kind,
		EventID:    ev.ID,
		EventTitle: ev.Title,
		Recipients: uids,
		Message:    notify.Message(kind, ev.Title),
		ExpiresAt:  expiresAt,
		SentAt:     s.nowMs(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Default().ErrorContext(ctx, "can't send notification",
			slog.String("err", err.Error()),
			slog.String("kind", string(kind)),
			slog.String("event_id", ev.ID),
		)
	}
}
