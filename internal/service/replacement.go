package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/eventease/internal/lottery"
	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// ReplaceFailure reports a candidate that could not be promoted.
type ReplaceFailure struct {
	UID   string `json:"uid"`
	Error string `json:"error"`
}

// ReplaceResult is the outcome of a replacement round.
type ReplaceResult struct {
	EventID  string             `json:"event_id"`
	Promoted []model.Invitation `json:"promoted"`
	Failed   []ReplaceFailure   `json:"failed"`
}

// Replace promotes up to count non-selected entrants of eventID, picked
// uniformly at random, and invites each of them until newDeadline. Every
// promotion commits on its own; a candidate that fails is reported and the
// next one is tried. Cancelled and admitted entrants are never candidates. If
// ctx ends mid-round, the promotions already committed are returned together
// with the context error.
func (s *EventService) Replace(ctx context.Context, eventID string, count int, newDeadline int64) (*ReplaceResult, error) {
	if count <= 0 {
		return nil, invalidArgument("count must be positive")
	}
	if newDeadline <= s.nowMs() {
		return nil, ErrInvalidDeadline
	}
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	pool, err := s.repo.ListEntrants(ctx, eventID, model.StateNonSelected)
	if err != nil {
		return nil, fmt.Errorf("list non-selected entrants: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrNoEligibleCandidates
	}
	ids := make([]string, 0, len(pool))
	for _, en := range pool {
		ids = append(ids, en.UID)
	}

	res := &ReplaceResult{
		EventID:  eventID,
		Promoted: []model.Invitation{},
		Failed:   []ReplaceFailure{},
	}
	var (
		promoted []string
		stopErr  error
	)
	for _, uid := range lottery.Shuffle(s.src, ids) {
		if len(res.Promoted) == count {
			break
		}
		if stopErr = ctx.Err(); stopErr != nil {
			break
		}
		inv, err := s.promote(ctx, eventID, uid, newDeadline)
		if err != nil {
			if !isDomain(err) {
				slog.Default().ErrorContext(ctx, "can't promote replacement candidate",
					slog.String("err", err.Error()),
					slog.String("event_id", eventID),
					slog.String("uid", uid),
				)
			}
			res.Failed = append(res.Failed, ReplaceFailure{UID: uid, Error: err.Error()})
			continue
		}
		res.Promoted = append(res.Promoted, *inv)
		promoted = append(promoted, uid)
	}

	if len(promoted) == 0 {
		if stopErr != nil {
			return res, stopErr
		}
		return res, ErrNoEligibleCandidates
	}
	// Committed promotions are published even when the round was cut short.
	pubCtx := context.WithoutCancel(ctx)
	s.changed(pubCtx, eventID, promoted...)
	s.notify(pubCtx, notify.KindReplacement, ev, promoted, newDeadline)
	return res, stopErr
}

// promote moves one non-selected entrant to selected and issues its
// invitation in a single transaction.
func (s *EventService) promote(ctx context.Context, eventID, uid string, expiresAt int64) (*model.Invitation, error) {
	now := s.nowMs()
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
		if current != model.StateNonSelected {
			return ErrEntrantNotEligible
		}
		if _, err := q.PendingInvitation(ctx, eventID, uid); err == nil {
			return ErrDuplicatePendingInvitation
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get pending invitation: %w", err)
		}

		if err := moveEntrant(ctx, q, eventID, uid, current, model.StateSelected, now); err != nil {
			return err
		}
		if inv, err = createInvitation(ctx, q, eventID, uid, expiresAt, now); err != nil {
			return err
		}
		return persist(ctx, q, ev)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
