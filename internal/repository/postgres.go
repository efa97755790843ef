package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Repository on top of a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// Tx runs f in a transaction.
//
// Multi-record invariants are serialised with a pessimistic row lock on the
// event (LockEvent issues SELECT ... FOR UPDATE). Two concurrent accepts near
// the capacity boundary, or two draws of the same event, therefore queue behind
// each other instead of both reading the same stale snapshot. Deadlocks and
// serialization failures roll back and run f again, at most maxTxAttempts
// times in total.
func (s *PostgresStore) Tx(ctx context.Context, f func(ctx context.Context, q Queries) error) error {
	if s.inTx {
		return ErrNestedTx
	}
	return retryTx(ctx, func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		err = f(ctx, &PostgresStore{pool: s.pool, db: tx, inTx: true})
		if err == nil {
			if err = tx.Commit(ctx); err == nil {
				return nil
			}
		}
		_ = tx.Rollback(ctx)
		return err
	})
}

const maxTxAttempts = 5

// txRetryBackoff is the pause before the second attempt; it grows linearly.
var txRetryBackoff = 20 * time.Millisecond

// retryTx runs attempt until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx ends.
func retryTx(ctx context.Context, attempt func() error) error {
	var err error
	for i := 1; i <= maxTxAttempts; i++ {
		if err = attempt(); err == nil || !isRetryable(err) {
			return err
		}
		if i == maxTxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction retry interrupted: %w", ctx.Err())
		case <-time.After(time.Duration(i) * txRetryBackoff):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ─── Events ───────────────────────────────────────────────────────────────────

const eventColumns = `id, title, description, location, organizer_id, capacity, sample_size,
	registration_start, registration_end, deadline_epoch_ms, starts_at_epoch_ms,
	selection_processed, sorry_notification_sent, waitlist_count, created_at_epoch_ms`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.OrganizerID, &e.Capacity, &e.SampleSize,
		&e.RegistrationStart, &e.RegistrationEnd, &e.DeadlineEpochMs, &e.StartsAtEpochMs,
		&e.SelectionProcessed, &e.SorryNotificationSent, &e.WaitlistCount, &e.CreatedAtEpochMs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, sql string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CreateEvent inserts a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Title, e.Description, e.Location, e.OrganizerID, e.Capacity, e.SampleSize,
		e.RegistrationStart, e.RegistrationEnd, e.DeadlineEpochMs, e.StartsAtEpochMs,
		e.SelectionProcessed, e.SorryNotificationSent, e.WaitlistCount, e.CreatedAtEpochMs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, err
}

// LockEvent acquires an exclusive row-level lock on the event. Outside a
// transaction it degrades to GetEvent.
func (s *PostgresStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	if !s.inTx {
		return s.GetEvent(ctx, id)
	}
	e, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, err
}

// ListEvents returns all events ordered by creation time descending.
func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at_epoch_ms DESC`)
}

// UpdateEvent writes the mutable lifecycle fields of an event.
func (s *PostgresStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events
		 SET selection_processed = $2, sorry_notification_sent = $3, waitlist_count = $4
		 WHERE id = $1`,
		e.ID, e.SelectionProcessed, e.SorryNotificationSent, e.WaitlistCount,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DueForDraw returns events whose draw should run now.
func (s *PostgresStore) DueForDraw(ctx context.Context, now int64) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE selection_processed = FALSE
		   AND registration_end > 0 AND registration_end <= $1
		   AND (starts_at_epoch_ms = 0 OR starts_at_epoch_ms > $1)
		 ORDER BY registration_end ASC`,
		now,
	)
}

// StartingBetween returns events starting in [from, to).
func (s *PostgresStore) StartingBetween(ctx context.Context, from, to int64) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE starts_at_epoch_ms >= $1 AND starts_at_epoch_ms < $2
		 ORDER BY starts_at_epoch_ms ASC`,
		from, to,
	)
}

// ─── Entrants ─────────────────────────────────────────────────────────────────

// GetEntrant returns the entrant row for (eventID, uid) or ErrNotFound.
func (s *PostgresStore) GetEntrant(ctx context.Context, eventID, uid string) (*model.Entrant, error) {
	var en model.Entrant
	var state string
	err := s.db.QueryRow(ctx,
		`SELECT event_id, uid, state, joined_at, updated_at
		 FROM entrants WHERE event_id = $1 AND uid = $2`,
		eventID, uid,
	).Scan(&en.EventID, &en.UID, &state, &en.JoinedAt, &en.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entrant: %w", err)
	}
	en.State = model.ParseEntrantState(state)
	return &en, nil
}

// PutEntrant inserts the entrant or moves an existing one to its new state.
func (s *PostgresStore) PutEntrant(ctx context.Context, en model.Entrant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO entrants (event_id, uid, state, joined_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (event_id, uid)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		en.EventID, en.UID, string(en.State), en.JoinedAt, en.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put entrant: %w", err)
	}
	return nil
}

// DeleteEntrant removes the entrant row; deleting an absent row is not an error.
func (s *PostgresStore) DeleteEntrant(ctx context.Context, eventID, uid string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM entrants WHERE event_id = $1 AND uid = $2`, eventID, uid)
	if err != nil {
		return fmt.Errorf("delete entrant: %w", err)
	}
	return nil
}

// ListEntrants returns entrants of an event in the given state, oldest join first.
func (s *PostgresStore) ListEntrants(ctx context.Context, eventID string, state model.EntrantState) ([]model.Entrant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT event_id, uid, state, joined_at, updated_at
		 FROM entrants
		 WHERE event_id = $1 AND state = $2
		 ORDER BY joined_at ASC, uid ASC`,
		eventID, string(state),
	)
	if err != nil {
		return nil, fmt.Errorf("list entrants: %w", err)
	}
	defer rows.Close()

	var entrants []model.Entrant
	for rows.Next() {
		var en model.Entrant
		var st string
		if err := rows.Scan(&en.EventID, &en.UID, &st, &en.JoinedAt, &en.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entrant: %w", err)
		}
		en.State = model.ParseEntrantState(st)
		entrants = append(entrants, en)
	}
	return entrants, rows.Err()
}

// CountEntrants returns the number of entrants per state for an event.
func (s *PostgresStore) CountEntrants(ctx context.Context, eventID string) (map[model.EntrantState]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT state, COUNT(*) FROM entrants WHERE event_id = $1 GROUP BY state`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("count entrants: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.EntrantState]int, len(model.States))
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan entrant count: %w", err)
		}
		counts[model.ParseEntrantState(st)] = n
	}
	return counts, rows.Err()
}

// EventsForEntrant returns events in which uid holds state.
func (s *PostgresStore) EventsForEntrant(ctx context.Context, uid string, state model.EntrantState) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE id IN (SELECT event_id FROM entrants WHERE uid = $1 AND state = $2)
		 ORDER BY starts_at_epoch_ms ASC`,
		uid, string(state),
	)
}

// ─── Invitations ──────────────────────────────────────────────────────────────

const invitationColumns = `id, event_id, uid, status, issued_at, expires_at, responded_at`

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	var inv model.Invitation
	var status string
	if err := row.Scan(&inv.ID, &inv.EventID, &inv.UID, &status, &inv.IssuedAt, &inv.ExpiresAt, &inv.RespondedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	inv.Status = model.ParseInvitationStatus(status)
	return &inv, nil
}

func (s *PostgresStore) queryInvitations(ctx context.Context, sql string, args ...any) ([]model.Invitation, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer rows.Close()

	var invs []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

// CreateInvitation inserts an invitation. The partial unique index on
// (event_id, uid) WHERE status = 'PENDING' turns a second pending invitation
// into ErrConflict.
func (s *PostgresStore) CreateInvitation(ctx context.Context, inv model.Invitation) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO invitations (`+invitationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.EventID, inv.UID, string(inv.Status), inv.IssuedAt, inv.ExpiresAt, inv.RespondedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

// GetInvitation returns a single invitation or ErrNotFound.
func (s *PostgresStore) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, err
}

// UpdateInvitation writes the status and response time of an invitation.
func (s *PostgresStore) UpdateInvitation(ctx context.Context, inv model.Invitation) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE invitations SET status = $2, responded_at = $3 WHERE id = $1`,
		inv.ID, string(inv.Status), inv.RespondedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingInvitation returns the PENDING invitation for (eventID, uid) or ErrNotFound.
func (s *PostgresStore) PendingInvitation(ctx context.Context, eventID, uid string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE event_id = $1 AND uid = $2 AND status = 'PENDING'`,
		eventID, uid,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get pending invitation: %w", err)
	}
	return inv, err
}

// PendingInvitationsForUID returns PENDING invitations for uid, newest first.
func (s *PostgresStore) PendingInvitationsForUID(ctx context.Context, uid string) ([]model.Invitation, error) {
	return s.queryInvitations(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE uid = $1 AND status = 'PENDING'
		 ORDER BY issued_at DESC, id DESC`,
		uid,
	)
}

// OverdueInvitations returns PENDING invitations whose deadline has passed.
func (s *PostgresStore) OverdueInvitations(ctx context.Context, now int64) ([]model.Invitation, error) {
	return s.queryInvitations(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE status = 'PENDING' AND expires_at > 0 AND expires_at < $1
		 ORDER BY expires_at ASC`,
		now,
	)
}

// CountSelectedPending counts SELECTED entrants that still hold a PENDING invitation.
func (s *PostgresStore) CountSelectedPending(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM entrants en
		 JOIN invitations inv
		   ON inv.event_id = en.event_id AND inv.uid = en.uid AND inv.status = 'PENDING'
		 WHERE en.event_id = $1 AND en.state = 'SELECTED'`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count selected pending: %w", err)
	}
	return n, nil
}
