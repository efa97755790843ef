package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// StartingWithin returns drawn events that start within lead from now and
// whose non-selected entrants have not been told yet.
func (s *EventService) StartingWithin(ctx context.Context, lead time.Duration) ([]model.Event, error) {
	now := s.nowMs()
	events, err := s.repo.StartingBetween(ctx, now, now+lead.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("list starting events: %w", err)
	}
	due := events[:0]
	for _, ev := range events {
		if ev.SelectionProcessed && !ev.SorryNotificationSent {
			due = append(due, ev)
		}
	}
	return due, nil
}

// NotifyNonSelected tells the non-selected entrants of eventID that the event
// goes ahead without them. The event is flagged so the message goes out once;
// it returns the number of recipients.
func (s *EventService) NotifyNonSelected(ctx context.Context, eventID string) (int, error) {
	var (
		ev   *model.Event
		uids []string
	)
	err := s.repo.Tx(ctx, func(ctx context.Context, q repository.Queries) error {
		uids = nil
		var err error
		ev, err = q.LockEvent(ctx, eventID)
		if err != nil {
			return mapRepoErr(err, ErrEventNotFound, "lock event")
		}
		if ev.SorryNotificationSent {
			return nil
		}
		if !ev.SelectionProcessed {
			return ErrSelectionNotProcessed
		}
		entrants, err := q.ListEntrants(ctx, eventID, model.StateNonSelected)
		if err != nil {
			return fmt.Errorf("list non-selected entrants: %w", err)
		}
		uids = make([]string, 0, len(entrants))
		for _, en := range entrants {
			uids = append(uids, en.UID)
		}
		ev.SorryNotificationSent = true
		return persist(ctx, q, ev)
	})
	if err != nil {
		return 0, err
	}
	s.notify(ctx, notify.KindSorry, ev, uids, 0)
	return len(uids), nil
}
