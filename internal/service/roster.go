package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// Join adds uid to the waitlist of eventID. Joining while already joined is a
// no-op; a selected or cancelled entrant cannot join again.
func (s *EventService) Join(ctx context.Context, eventID, uid string) error {
	if uid == "" {
		return ErrUnauthorized
	}
	now := s.nowMs()
	changed := false
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		changed = false
		ev, err := q.LockEvent(ctx, eventID)
		if err != nil {
			return mapRepoErr(err, ErrEventNotFound, "lock event")
		}

		current, err := entrantState(ctx, q, eventID, uid)
		if err != nil {
			return err
		}
		switch current {
		case model.StateAdmitted:
			return ErrAlreadyAdmitted
		case model.StateNonSelected:
			// Still in the replacement pool, so already joined.
			return nil
		}

		switch {
		case now < ev.RegistrationStart:
			return ErrRegistrationNotOpen
		case !ev.RegistrationOpen(now), ev.SelectionProcessed:
			return ErrRegistrationClosed
		}
		switch current {
		case model.StateWaitlisted:
			return nil
		case model.StateSelected, model.StateCancelled:
			return ErrEntrantNotEligible
		}

		if !ev.Unlimited() {
			counts, err := q.CountEntrants(ctx, eventID)
			if err != nil {
				return fmt.Errorf("count entrants: %w", err)
			}
			if counts[model.StateWaitlisted] >= ev.Capacity {
				return ErrCapacityReached
			}
		}

		if err := q.PutEntrant(ctx, model.Entrant{
			EventID:   eventID,
			UID:       uid,
			State:     model.StateWaitlisted,
			JoinedAt:  now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("put entrant: %w", err)
		}
		changed = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return err
	}
	if changed {
		s.changed(ctx, eventID)
	}
	return nil
}

// Leave removes uid from the waitlist of eventID. Before the draw the entry is
// deleted; after it a non-selected entrant opts out of replacement and becomes
// cancelled. Leaving when absent succeeds.
func (s *EventService) Leave(ctx context.Context, eventID, uid string) error {
	now := s.nowMs()
	changed := false
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		changed = false
		ev, err := q.LockEvent(ctx, eventID)
		if err != nil {
			return mapRepoErr(err, ErrEventNotFound, "lock event")
		}
		current, err := entrantState(ctx, q, eventID, uid)
		if err != nil {
			return err
		}

		switch current {
		case model.StateWaitlisted:
			if err := q.DeleteEntrant(ctx, eventID, uid); err != nil {
				return fmt.Errorf("delete entrant: %w", err)
			}
		case model.StateNonSelected:
			if err := moveEntrant(ctx, q, eventID, uid, current, model.StateCancelled, now); err != nil {
				return err
			}
		default:
			return nil
		}
		changed = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return err
	}
	if changed {
		s.changed(ctx, eventID)
	}
	return nil
}

// IsJoined reports whether uid is still in the running for eventID, i.e.
// waitlisted before the draw or non-selected after it.
func (s *EventService) IsJoined(ctx context.Context, eventID, uid string) (bool, error) {
	m, err := s.Membership(ctx, eventID, uid)
	if err != nil {
		return false, err
	}
	return m.Joined, nil
}

// Membership summarises the position of uid in eventID.
func (s *EventService) Membership(ctx context.Context, eventID, uid string) (*model.Membership, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	state, err := entrantState(ctx, s.repo, eventID, uid)
	if err != nil {
		return nil, err
	}
	return &model.Membership{
		EventID:  eventID,
		Joined:   state == model.StateWaitlisted || state == model.StateNonSelected,
		Admitted: state == model.StateAdmitted,
		State:    state,
	}, nil
}

// entrantState returns the state of uid in eventID, or "" when uid has no row.
func entrantState(ctx context.Context, q repository.Queries, eventID, uid string) (model.EntrantState, error) {
	en, err := q.GetEntrant(ctx, eventID, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get entrant: %w", err)
	}
	return en.State, nil
}

// moveEntrant applies one lifecycle transition, refusing edges the lifecycle
// does not allow.
func moveEntrant(ctx context.Context, q repository.Queries, eventID, uid string, from, to model.EntrantState, now int64) error {
	if !model.CanTransition(from, to) {
		return ErrEntrantNotEligible
	}
	if err := q.PutEntrant(ctx, model.Entrant{
		EventID:   eventID,
		UID:       uid,
		State:     to,
		JoinedAt:  now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("put entrant: %w", err)
	}
	return nil
}
