package service

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/eventease/internal/repository"
)

// Kind classifies a domain error so callers can render a precise message.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindInvalidState     Kind = "InvalidState"
	KindCapacityExceeded Kind = "CapacityExceeded"
	KindWindowClosed     Kind = "WindowClosed"
	KindWindowNotOpen    Kind = "WindowNotOpen"
	KindUnauthorized     Kind = "Unauthorized"
	KindInvalidArgument  Kind = "InvalidArgument"
)

// Error is a domain error. Sentinels below are compared with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrEventNotFound      = newError(KindNotFound, "event not found")
	ErrInvitationNotFound = newError(KindNotFound, "invitation not found")
	ErrEntrantNotFound    = newError(KindNotFound, "entrant not found")

	ErrAlreadyAdmitted            = newError(KindInvalidState, "already admitted to this event")
	ErrAlreadyProcessed           = newError(KindInvalidState, "selection already processed")
	ErrSelectionNotProcessed      = newError(KindInvalidState, "selection has not run yet")
	ErrDuplicatePendingInvitation = newError(KindInvalidState, "a pending invitation already exists")
	ErrInvitationExpired          = newError(KindInvalidState, "invitation has expired")
	ErrInvitationNotExpired       = newError(KindInvalidState, "invitation has not expired yet")
	ErrNoEligibleCandidates       = newError(KindInvalidState, "no eligible candidates")
	ErrEntrantNotEligible         = newError(KindInvalidState, "entrant is not eligible")

	ErrCapacityReached = newError(KindCapacityExceeded, "event capacity reached")

	ErrRegistrationNotOpen = newError(KindWindowNotOpen, "registration is not open yet")
	ErrRegistrationClosed  = newError(KindWindowClosed, "registration is closed")

	ErrUnauthorized = newError(KindUnauthorized, "not allowed to act on this resource")
	ErrNotOrganizer = newError(KindUnauthorized, "only the organizer can do this")

	ErrInvalidArgument = newError(KindInvalidArgument, "invalid argument")
	ErrInvalidDeadline = newError(KindInvalidArgument, "deadline must be in the future")
)

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// mapRepoErr converts a repository miss into notFound and wraps anything else.
func mapRepoErr(err error, notFound error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapConflict(err error, conflict error, op string) error {
	if errors.Is(err, repository.ErrConflict) {
		return conflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
