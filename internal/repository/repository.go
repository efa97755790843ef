// Package repository implements persistence for events, entrants and invitations.
// Postgres is the production backend (pgx, no ORM); the in-memory backend serves
// tests and local development. Both honour the same transactional contract.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness rule,
// e.g. a second PENDING invitation for the same (event, uid).
var ErrConflict = errors.New("conflict")

// ErrNestedTx is returned when Tx is called on a repository that is already
// bound to a transaction.
var ErrNestedTx = errors.New("already in transaction")

// Queries is the set of reads and writes available both inside and outside
// a transaction.
type Queries interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// LockEvent returns the event and, inside a transaction, holds an exclusive
	// lock on it until commit. Every multi-record invariant of an event is
	// guarded by this lock.
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	// DueForDraw returns events whose registration closed at or before now,
	// whose draw has not run and which have not started yet.
	DueForDraw(ctx context.Context, now int64) ([]model.Event, error)
	// StartingBetween returns events with from <= startsAt < to.
	StartingBetween(ctx context.Context, from, to int64) ([]model.Event, error)

	GetEntrant(ctx context.Context, eventID, uid string) (*model.Entrant, error)
	PutEntrant(ctx context.Context, en model.Entrant) error
	DeleteEntrant(ctx context.Context, eventID, uid string) error
	ListEntrants(ctx context.Context, eventID string, state model.EntrantState) ([]model.Entrant, error)
	CountEntrants(ctx context.Context, eventID string) (map[model.EntrantState]int, error)
	// EventsForEntrant returns the events in which uid holds the given state.
	EventsForEntrant(ctx context.Context, uid string, state model.EntrantState) ([]model.Event, error)

	CreateInvitation(ctx context.Context, inv model.Invitation) error
	GetInvitation(ctx context.Context, id string) (*model.Invitation, error)
	UpdateInvitation(ctx context.Context, inv model.Invitation) error
	PendingInvitation(ctx context.Context, eventID, uid string) (*model.Invitation, error)
	// PendingInvitationsForUID returns PENDING invitations of uid, newest first.
	PendingInvitationsForUID(ctx context.Context, uid string) ([]model.Invitation, error)
	// OverdueInvitations returns PENDING invitations with 0 < expiresAt < now.
	OverdueInvitations(ctx context.Context, now int64) ([]model.Invitation, error)
	// CountSelectedPending counts SELECTED entrants holding a PENDING invitation.
	CountSelectedPending(ctx context.Context, eventID string) (int, error)
}

// Repository is the storage surface the workflow runs against.
type Repository interface {
	Queries
	// Tx runs f inside a transaction. It commits when f returns nil and rolls
	// back otherwise. Serialization failures are retried transparently, so f
	// must return repository errors unchanged or wrapped with %w.
	Tx(ctx context.Context, f func(ctx context.Context, q Queries) error) error
}
