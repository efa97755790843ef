package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// Admit admits uid to eventID directly. Admitting twice is a no-op. Once the
// draw has run, uid must be one of the drawn entrants. The
// capacity check runs under the event lock, so concurrent admissions never
// exceed capacity.
func (s *EventService) Admit(ctx context.Context, eventID, uid string) error {
	if uid == "" {
		return invalidArgument("uid is required")
	}
	now := s.nowMs()
	changed := false
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		ev, err := q.LockEvent(ctx, eventID)
		if err != nil {
			return mapRepoErr(err, ErrEventNotFound, "lock event")
		}
		if changed, err = s.admit(ctx, q, ev, uid, now); err != nil || !changed {
			return err
		}
		return persist(ctx, q, ev)
	})
	if err != nil {
		return err
	}
	if changed {
		s.changed(ctx, eventID, uid)
	}
	return nil
}

// admit moves uid to admitted inside a transaction that holds the event lock.
// A pending invitation of uid is marked accepted. It reports false when uid
// was already admitted.
func (s *EventService) admit(ctx context.Context, q repository.Queries, ev *model.Event, uid string, now int64) (bool, error) {
	current, err := entrantState(ctx, q, ev.ID, uid)
	if err != nil {
		return false, err
	}
	if current == model.StateAdmitted {
		return false, nil
	}
	// After the draw the partition is fixed; only drawn entrants can be admitted.
	if current == "" && ev.SelectionProcessed {
		return false, ErrEntrantNotEligible
	}
	if !model.CanTransition(current, model.StateAdmitted) {
		return false, ErrEntrantNotEligible
	}

	if !ev.Unlimited() {
		counts, err := q.CountEntrants(ctx, ev.ID)
		if err != nil {
			return false, fmt.Errorf("count entrants: %w", err)
		}
		if counts[model.StateAdmitted] >= ev.Capacity {
			return false, ErrCapacityReached
		}
	}

	pending, err := q.PendingInvitation(ctx, ev.ID, uid)
	switch {
	case err == nil:
		pending.Status = model.InvitationAccepted
		pending.RespondedAt = now
		if err := q.UpdateInvitation(ctx, *pending); err != nil {
			return false, fmt.Errorf("update invitation: %w", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("get pending invitation: %w", err)
	}

	if err := moveEntrant(ctx, q, ev.ID, uid, current, model.StateAdmitted, now); err != nil {
		return false, err
	}
	return true, nil
}

// IsAdmitted reports whether uid holds an admission to eventID.
func (s *EventService) IsAdmitted(ctx context.Context, eventID, uid string) (bool, error) {
	m, err := s.Membership(ctx, eventID, uid)
	if err != nil {
		return false, err
	}
	return m.Admitted, nil
}

// UpcomingEvents returns the events uid is admitted to that have not started,
// soonest first.
func (s *EventService) UpcomingEvents(ctx context.Context, uid string) ([]model.Event, error) {
	events, err := s.repo.EventsForEntrant(ctx, uid, model.StateAdmitted)
	if err != nil {
		return nil, fmt.Errorf("list admitted events: %w", err)
	}
	now := s.nowMs()
	upcoming := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.StartsAtEpochMs > now {
			upcoming = append(upcoming, ev)
		}
	}
	return upcoming, nil
}

// PreviousEvents returns the events uid was admitted to that have already
// started, most recent first.
func (s *EventService) PreviousEvents(ctx context.Context, uid string) ([]model.Event, error) {
	events, err := s.repo.EventsForEntrant(ctx, uid, model.StateAdmitted)
	if err != nil {
		return nil, fmt.Errorf("list admitted events: %w", err)
	}
	now := s.nowMs()
	previous := make([]model.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Started(now) {
			previous = append(previous, events[i])
		}
	}
	return previous, nil
}
