package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// ProjectCount is the externally visible waitlist size. Before the draw it is
// the roster size; afterwards it is the non-selected pool plus the selected
// entrants still holding a pending invitation.
func ProjectCount(selectionProcessed bool, counts map[model.EntrantState]int, selectedPending int) int {
	if !selectionProcessed {
		return counts[model.StateWaitlisted]
	}
	return counts[model.StateNonSelected] + selectedPending
}

func countFrom(ctx context.Context, q repository.Queries, ev *model.Event) (int, error) {
	counts, err := q.CountEntrants(ctx, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("count entrants: %w", err)
	}
	pending := 0
	if ev.SelectionProcessed {
		if pending, err = q.CountSelectedPending(ctx, ev.ID); err != nil {
			return 0, fmt.Errorf("count pending invitations: %w", err)
		}
	}
	return ProjectCount(ev.SelectionProcessed, counts, pending), nil
}

// persist recomputes the cached count from source rows and writes the event.
// It must run inside the transaction that changed the entrants.
func persist(ctx context.Context, q repository.Queries, ev *model.Event) error {
	n, err := countFrom(ctx, q, ev)
	if err != nil {
		return err
	}
	ev.WaitlistCount = n
	if err := q.UpdateEvent(ctx, ev); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// WaitlistCount recomputes the count of eventID from source rows. The cached
// value on the event is never trusted.
func (s *EventService) WaitlistCount(ctx context.Context, eventID string) (model.WaitlistCount, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return model.WaitlistCount{}, err
	}
	n, err := countFrom(ctx, s.repo, ev)
	if err != nil {
		return model.WaitlistCount{}, err
	}
	return model.WaitlistCount{EventID: eventID, Count: n}, nil
}

// Partition returns the members of every entrant state of eventID.
func (s *EventService) Partition(ctx context.Context, eventID string) (*model.Partition, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	p := &model.Partition{EventID: eventID}
	targets := map[model.EntrantState]*[]string{
		model.StateWaitlisted:  &p.Waitlisted,
		model.StateSelected:    &p.Selected,
		model.StateNonSelected: &p.NonSelected,
		model.StateCancelled:   &p.Cancelled,
		model.StateAdmitted:    &p.Admitted,
	}
	for _, state := range model.States {
		entrants, err := s.repo.ListEntrants(ctx, eventID, state)
		if err != nil {
			return nil, fmt.Errorf("list %s entrants: %w", state, err)
		}
		uids := make([]string, 0, len(entrants))
		for _, en := range entrants {
			uids = append(uids, en.UID)
		}
		*targets[state] = uids
	}
	return p, nil
}
