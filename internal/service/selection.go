package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/eventease/internal/lottery"
	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// DrawResult is the outcome of a draw.
type DrawResult struct {
	EventID     string             `json:"event_id"`
	Selected    []string           `json:"selected"`
	NonSelected []string           `json:"non_selected"`
	Invitations []model.Invitation `json:"invitations"`
}

// Draw runs the one-time lottery of eventID. It picks min(sampleSize, roster)
// entrants uniformly at random, moves everyone else to non-selected, issues an
// invitation to each selected entrant and marks the event processed, all in a
// single transaction. A second draw fails with ErrAlreadyProcessed.
func (s *EventService) Draw(ctx context.Context, eventID string) (*DrawResult, error) {
	now := s.nowMs()
	var (
		ev  *model.Event
		res *DrawResult
	)
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		var err error
		ev, err = q.LockEvent(ctx, eventID)
		if err != nil {
			return mapRepoErr(err, ErrEventNotFound, "lock event")
		}
		if ev.SelectionProcessed {
			return ErrAlreadyProcessed
		}

		roster, err := q.ListEntrants(ctx, eventID, model.StateWaitlisted)
		if err != nil {
			return fmt.Errorf("list roster: %w", err)
		}
		ids := make([]string, 0, len(roster))
		for _, en := range roster {
			ids = append(ids, en.UID)
		}
		selected, rest := lottery.Draw(s.src, ids, max(ev.SampleSize, 0))

		res = &DrawResult{
			EventID:     eventID,
			Selected:    selected,
			NonSelected: rest,
			Invitations: make([]model.Invitation, 0, len(selected)),
		}
		expiresAt := s.drawDeadline(ev, now)
		for _, uid := range selected {
			if err := moveEntrant(ctx, q, eventID, uid, model.StateWaitlisted, model.StateSelected, now); err != nil {
				return err
			}
			inv, err := createInvitation(ctx, q, eventID, uid, expiresAt, now)
			if err != nil {
				return err
			}
			res.Invitations = append(res.Invitations, inv)
		}
		for _, uid := range rest {
			if err := moveEntrant(ctx, q, eventID, uid, model.StateWaitlisted, model.StateNonSelected, now); err != nil {
				return err
			}
		}

		ev.SelectionProcessed = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, eventID, res.Selected...)
	if len(res.Invitations) > 0 {
		s.notify(ctx, notify.KindSelection, ev, res.Selected, res.Invitations[0].ExpiresAt)
	}
	return res, nil
}

// drawDeadline is the expiry of invitations issued by a draw: the event
// deadline when it is still ahead, otherwise now plus the default TTL.
func (s *EventService) drawDeadline(ev *model.Event, now int64) int64 {
	if ev.DeadlineEpochMs > now {
		return ev.DeadlineEpochMs
	}
	return now + s.ttl.Milliseconds()
}

func createInvitation(ctx context.Context, q repository.Queries, eventID, uid string, expiresAt, now int64) (model.Invitation, error) {
	inv := model.Invitation{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UID:       uid,
		Status:    model.InvitationPending,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := q.CreateInvitation(ctx, inv); err != nil {
		return model.Invitation{}, mapConflict(err, ErrDuplicatePendingInvitation, "create invitation")
	}
	return inv, nil
}
