package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
)

const (
	maxTitleLength = 80
	maxCapacity    = 500
)

// CreateEvent validates the request and stores a new event owned by organizerID.
func (s *EventService) CreateEvent(ctx context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error) {
	if organizerID == "" {
		return nil, ErrUnauthorized
	}
	now := s.nowMs()
	req.Title = strings.TrimSpace(req.Title)
	if err := validateEvent(req, now); err != nil {
		return nil, err
	}

	event := &model.Event{
		ID:                uuid.NewString(),
		Title:             req.Title,
		Description:       strings.TrimSpace(req.Description),
		Location:          strings.TrimSpace(req.Location),
		OrganizerID:       organizerID,
		Capacity:          req.Capacity,
		SampleSize:        req.SampleSize,
		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
		DeadlineEpochMs:   req.DeadlineEpochMs,
		StartsAtEpochMs:   req.StartsAtEpochMs,
		CreatedAtEpochMs:  now,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func validateEvent(req model.CreateEventRequest, now int64) error {
	switch {
	case req.Title == "":
		return invalidArgument("title is required")
	case utf8.RuneCountInString(req.Title) > maxTitleLength:
		return invalidArgument("title cannot exceed %d characters", maxTitleLength)
	case req.Capacity > maxCapacity:
		return invalidArgument("capacity cannot exceed %d", maxCapacity)
	case req.SampleSize < 0:
		return invalidArgument("sample_size cannot be negative")
	case req.RegistrationStart <= 0 || req.RegistrationEnd <= 0:
		return invalidArgument("registration window is required")
	case req.RegistrationStart >= req.RegistrationEnd:
		return invalidArgument("registration_start must be before registration_end")
	case req.StartsAtEpochMs != 0 && req.StartsAtEpochMs <= now:
		return invalidArgument("starts_at_epoch_ms must be in the future")
	case req.StartsAtEpochMs != 0 && req.StartsAtEpochMs <= req.RegistrationEnd:
		return invalidArgument("event must start after registration closes")
	case req.DeadlineEpochMs < 0:
		return invalidArgument("deadline_epoch_ms cannot be negative")
	}
	return nil
}

// ListEvents returns all events, newest first.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, ErrEventNotFound
	}
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, ErrEventNotFound, "get event")
	}
	return event, nil
}

// RequireOrganizer returns the event when uid owns it and ErrNotOrganizer otherwise.
func (s *EventService) RequireOrganizer(ctx context.Context, eventID, uid string) (*model.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if uid == "" || event.OrganizerID != uid {
		return nil, ErrNotOrganizer
	}
	return event, nil
}

// DueForDraw returns events whose registration has closed but whose draw has
// not run yet.
func (s *EventService) DueForDraw(ctx context.Context) ([]model.Event, error) {
	events, err := s.repo.DueForDraw(ctx, s.nowMs())
	if err != nil {
		return nil, fmt.Errorf("list events due for draw: %w", err)
	}
	return events, nil
}

func isDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
