package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// Issue offers eventID to uid until expiresAt (0 for no deadline). A
// waitlisted or non-selected entrant becomes selected; admitted and cancelled
// entrants are refused.
func (s *EventService) Issue(ctx context.Context, eventID, uid string, expiresAt int64) (*model.Invitation, error) {
	now := s.nowMs()
	if expiresAt != 0 && expiresAt <= now {
		return nil, ErrInvalidDeadline
	}
	var inv model.Invitation
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		ev, err := q.LockEvent(ctx, eventID)
		if err != nil {
			return mapRepoErr(err, ErrEventNotFound, "lock event")
		}
		current, err := entrantState(ctx, q, eventID, uid)
		if err != nil {
			return err
		}
		switch {
		case current == "":
			return ErrEntrantNotFound
		case current.Terminal():
			return ErrEntrantNotEligible
		}

		if _, err := q.PendingInvitation(ctx, eventID, uid); err == nil {
			return ErrDuplicatePendingInvitation
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get pending invitation: %w", err)
		}

		if current != model.StateSelected {
			if err := moveEntrant(ctx, q, eventID, uid, current, model.StateSelected, now); err != nil {
				return err
			}
		}
		if inv, err = createInvitation(ctx, q, eventID, uid, expiresAt, now); err != nil {
			return err
		}
		return persist(ctx, q, ev)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, eventID, uid)
	return &inv, nil
}

// GetInvitation returns one invitation by ID.
func (s *EventService) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	if id == "" {
		return nil, ErrInvitationNotFound
	}
	inv, err := s.repo.GetInvitation(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, ErrInvitationNotFound, "get invitation")
	}
	return inv, nil
}

// ListActive returns the pending, unexpired invitations of uid, newest first.
func (s *EventService) ListActive(ctx context.Context, uid string) ([]model.Invitation, error) {
	invs, err := s.repo.PendingInvitationsForUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	now := s.nowMs()
	active := make([]model.Invitation, 0, len(invs))
	for _, inv := range invs {
		if inv.Active(now) {
			active = append(active, inv)
		}
	}
	return active, nil
}

// respond loads an invitation under its event lock and checks that it belongs
// to (eventID, uid).
func respond(ctx context.Context, q repository.Queries, invitationID, eventID, uid string) (*model.Invitation, *model.Event, error) {
	inv, err := q.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, nil, mapRepoErr(err, ErrInvitationNotFound, "get invitation")
	}
	if inv.EventID != eventID || inv.UID != uid {
		return nil, nil, ErrUnauthorized
	}
	ev, err := q.LockEvent(ctx, inv.EventID)
	if err != nil {
		return nil, nil, mapRepoErr(err, ErrEventNotFound, "lock event")
	}
	// Re-read now that concurrent responses are serialised by the lock.
	if inv, err = q.GetInvitation(ctx, invitationID); err != nil {
		return nil, nil, mapRepoErr(err, ErrInvitationNotFound, "get invitation")
	}
	return inv, ev, nil
}

// Accept admits uid to eventID through the invitation. Accepting a terminal
// invitation is a no-op. An invitation past its deadline is expired on the
// spot and ErrInvitationExpired is returned. When the event is full the call
// fails with ErrCapacityReached and the invitation stays pending.
func (s *EventService) Accept(ctx context.Context, invitationID, eventID, uid string) (*model.Invitation, error) {
	now := s.nowMs()
	var (
		inv     *model.Invitation
		changed bool
		expired bool
	)
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		changed, expired = false, false
		var (
			ev  *model.Event
			err error
		)
		inv, ev, err = respond(ctx, q, invitationID, eventID, uid)
		if err != nil {
			return err
		}
		if inv.Status.Terminal() {
			return nil
		}

		if model.IsExpired(*inv, now) {
			if err := closeInvitation(ctx, q, inv, model.InvitationExpired, now); err != nil {
				return err
			}
			changed, expired = true, true
			return persist(ctx, q, ev)
		}

		if _, err := s.admit(ctx, q, ev, uid, now); err != nil {
			return err
		}
		inv.Status = model.InvitationAccepted
		inv.RespondedAt = now
		changed = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.changed(ctx, eventID, uid)
	}
	if expired {
		return inv, ErrInvitationExpired
	}
	return inv, nil
}

// Decline gives up the invitation. The entrant becomes cancelled and is never
// considered for replacement. Declining a terminal invitation is a no-op.
func (s *EventService) Decline(ctx context.Context, invitationID, eventID, uid string) (*model.Invitation, error) {
	now := s.nowMs()
	var (
		inv     *model.Invitation
		changed bool
	)
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		changed = false
		var (
			ev  *model.Event
			err error
		)
		inv, ev, err = respond(ctx, q, invitationID, eventID, uid)
		if err != nil {
			return err
		}
		if inv.Status.Terminal() {
			return nil
		}
		if err := closeInvitation(ctx, q, inv, model.InvitationDeclined, now); err != nil {
			return err
		}
		changed = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.changed(ctx, eventID, uid)
	}
	return inv, nil
}

// Expire closes a pending invitation whose deadline has passed and cancels
// its entrant. It fails with ErrInvitationNotExpired before the deadline and
// is a no-op for terminal invitations.
func (s *EventService) Expire(ctx context.Context, invitationID string) (*model.Invitation, error) {
	now := s.nowMs()
	var (
		inv     *model.Invitation
		changed bool
	)
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		changed = false
		first, err := q.GetInvitation(ctx, invitationID)
		if err != nil {
			return mapRepoErr(err, ErrInvitationNotFound, "get invitation")
		}
		var ev *model.Event
		inv, ev, err = respond(ctx, q, invitationID, first.EventID, first.UID)
		if err != nil {
			return err
		}
		if inv.Status.Terminal() {
			return nil
		}
		if !model.IsExpired(*inv, now) {
			return ErrInvitationNotExpired
		}
		if err := closeInvitation(ctx, q, inv, model.InvitationExpired, now); err != nil {
			return err
		}
		changed = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.changed(ctx, inv.EventID, inv.UID)
	}
	return inv, nil
}

// ExpireDue expires every overdue pending invitation and returns how many
// were expired. Failures are logged and skipped.
func (s *EventService) ExpireDue(ctx context.Context) (int, error) {
	overdue, err := s.repo.OverdueInvitations(ctx, s.nowMs())
	if err != nil {
		return 0, fmt.Errorf("list overdue invitations: %w", err)
	}

	expired := 0
	for _, inv := range overdue {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if _, err := s.Expire(ctx, inv.ID); err != nil {
			slog.Default().ErrorContext(ctx, "can't expire invitation",
				slog.String("err", err.Error()),
				slog.String("invitation_id", inv.ID),
				slog.String("event_id", inv.EventID),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

// closeInvitation moves a pending invitation to a terminal status and cancels
// its selected entrant.
func closeInvitation(ctx context.Context, q repository.Queries, inv *model.Invitation, status model.InvitationStatus, now int64) error {
	inv.Status = status
	inv.RespondedAt = now
	if err := q.UpdateInvitation(ctx, *inv); err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	current, err := entrantState(ctx, q, inv.EventID, inv.UID)
	if err != nil {
		return err
	}
	if current != model.StateSelected {
		return nil
	}
	return moveEntrant(ctx, q, inv.EventID, inv.UID, current, model.StateCancelled, now)
}
