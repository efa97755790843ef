package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
)

type entrantKey struct {
	EventID string
	UID     string
}

// memState is the full data set of a MemoryStore. Transactions work on a
// copy and swap it in on commit.
type memState struct {
	events      map[string]model.Event
	entrants    map[entrantKey]model.Entrant
	invitations map[string]model.Invitation
}

func newMemState() *memState {
	return &memState{
		events:      make(map[string]model.Event),
		entrants:    make(map[entrantKey]model.Entrant),
		invitations: make(map[string]model.Invitation),
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		events:      make(map[string]model.Event, len(st.events)),
		entrants:    make(map[entrantKey]model.Entrant, len(st.entrants)),
		invitations: make(map[string]model.Invitation, len(st.invitations)),
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	for k, v := range st.entrants {
		c.entrants[k] = v
	}
	for k, v := range st.invitations {
		c.invitations[k] = v
	}
	return c
}

// MemoryStore implements Repository in process memory. Transactions are fully
// serialised by a single mutex, which trivially satisfies the event-lock
// contract of LockEvent.
type MemoryStore struct {
	mu    *sync.RWMutex
	root  **memState
	state *memState // non-nil only inside a transaction
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	st := newMemState()
	return &MemoryStore{mu: &sync.RWMutex{}, root: &st}
}

// Tx runs f against a private copy of the data and publishes it on success.
func (m *MemoryStore) Tx(ctx context.Context, f func(ctx context.Context, q Queries) error) error {
	if m.state != nil {
		return ErrNestedTx
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := (*m.root).clone()
	if err := f(ctx, &MemoryStore{mu: m.mu, root: m.root, state: work}); err != nil {
		return err
	}
	*m.root = work
	return nil
}

// view runs fn with read access to the current data.
func (m *MemoryStore) view(fn func(st *memState)) {
	if m.state != nil {
		fn(m.state)
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(*m.root)
}

// update runs fn with write access; outside a transaction the write is
// applied directly under the lock.
func (m *MemoryStore) update(fn func(st *memState) error) error {
	if m.state != nil {
		return fn(m.state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := (*m.root).clone()
	if err := fn(work); err != nil {
		return err
	}
	*m.root = work
	return nil
}

func sortEvents(events []model.Event, less func(a, b model.Event) bool) {
	sort.SliceStable(events, func(i, j int) bool { return less(events[i], events[j]) })
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (m *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	return m.update(func(st *memState) error {
		if _, ok := st.events[e.ID]; ok {
			return ErrConflict
		}
		st.events[e.ID] = *e
		return nil
	})
}

func (m *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	var (
		e  model.Event
		ok bool
	)
	m.view(func(st *memState) { e, ok = st.events[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return m.GetEvent(ctx, id)
}

func (m *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	var events []model.Event
	m.view(func(st *memState) {
		for _, e := range st.events {
			events = append(events, e)
		}
	})
	sortEvents(events, func(a, b model.Event) bool {
		if a.CreatedAtEpochMs != b.CreatedAtEpochMs {
			return a.CreatedAtEpochMs > b.CreatedAtEpochMs
		}
		return a.ID < b.ID
	})
	return events, nil
}

func (m *MemoryStore) UpdateEvent(_ context.Context, e *model.Event) error {
	return m.update(func(st *memState) error {
		cur, ok := st.events[e.ID]
		if !ok {
			return ErrNotFound
		}
		cur.SelectionProcessed = e.SelectionProcessed
		cur.SorryNotificationSent = e.SorryNotificationSent
		cur.WaitlistCount = e.WaitlistCount
		st.events[e.ID] = cur
		return nil
	})
}

func (m *MemoryStore) filterEvents(keep func(e model.Event) bool, less func(a, b model.Event) bool) []model.Event {
	var events []model.Event
	m.view(func(st *memState) {
		for _, e := range st.events {
			if keep(e) {
				events = append(events, e)
			}
		}
	})
	sortEvents(events, less)
	return events
}

func (m *MemoryStore) DueForDraw(_ context.Context, now int64) ([]model.Event, error) {
	return m.filterEvents(
		func(e model.Event) bool {
			return !e.SelectionProcessed &&
				e.RegistrationEnd > 0 && e.RegistrationEnd <= now &&
				(e.StartsAtEpochMs == 0 || e.StartsAtEpochMs > now)
		},
		func(a, b model.Event) bool { return a.RegistrationEnd < b.RegistrationEnd },
	), nil
}

func (m *MemoryStore) StartingBetween(_ context.Context, from, to int64) ([]model.Event, error) {
	return m.filterEvents(
		func(e model.Event) bool { return e.StartsAtEpochMs >= from && e.StartsAtEpochMs < to },
		func(a, b model.Event) bool { return a.StartsAtEpochMs < b.StartsAtEpochMs },
	), nil
}

// ─── Entrants ─────────────────────────────────────────────────────────────────

func (m *MemoryStore) GetEntrant(_ context.Context, eventID, uid string) (*model.Entrant, error) {
	var (
		en model.Entrant
		ok bool
	)
	m.view(func(st *memState) { en, ok = st.entrants[entrantKey{eventID, uid}] })
	if !ok {
		return nil, ErrNotFound
	}
	return &en, nil
}

func (m *MemoryStore) PutEntrant(_ context.Context, en model.Entrant) error {
	return m.update(func(st *memState) error {
		key := entrantKey{en.EventID, en.UID}
		if cur, ok := st.entrants[key]; ok {
			en.JoinedAt = cur.JoinedAt
		}
		st.entrants[key] = en
		return nil
	})
}

func (m *MemoryStore) DeleteEntrant(_ context.Context, eventID, uid string) error {
	return m.update(func(st *memState) error {
		delete(st.entrants, entrantKey{eventID, uid})
		return nil
	})
}

func (m *MemoryStore) ListEntrants(_ context.Context, eventID string, state model.EntrantState) ([]model.Entrant, error) {
	var entrants []model.Entrant
	m.view(func(st *memState) {
		for _, en := range st.entrants {
			if en.EventID == eventID && en.State == state {
				entrants = append(entrants, en)
			}
		}
	})
	sort.Slice(entrants, func(i, j int) bool {
		if entrants[i].JoinedAt != entrants[j].JoinedAt {
			return entrants[i].JoinedAt < entrants[j].JoinedAt
		}
		return entrants[i].UID < entrants[j].UID
	})
	return entrants, nil
}

func (m *MemoryStore) CountEntrants(_ context.Context, eventID string) (map[model.EntrantState]int, error) {
	counts := make(map[model.EntrantState]int, len(model.States))
	m.view(func(st *memState) {
		for _, en := range st.entrants {
			if en.EventID == eventID {
				counts[en.State]++
			}
		}
	})
	return counts, nil
}

func (m *MemoryStore) EventsForEntrant(_ context.Context, uid string, state model.EntrantState) ([]model.Event, error) {
	var events []model.Event
	m.view(func(st *memState) {
		for key, en := range st.entrants {
			if key.UID != uid || en.State != state {
				continue
			}
			if e, ok := st.events[key.EventID]; ok {
				events = append(events, e)
			}
		}
	})
	sortEvents(events, func(a, b model.Event) bool { return a.StartsAtEpochMs < b.StartsAtEpochMs })
	return events, nil
}

// ─── Invitations ──────────────────────────────────────────────────────────────

func (m *MemoryStore) CreateInvitation(_ context.Context, inv model.Invitation) error {
	return m.update(func(st *memState) error {
		if _, ok := st.invitations[inv.ID]; ok {
			return ErrConflict
		}
		if inv.Status == model.InvitationPending && hasPending(st, inv.EventID, inv.UID, "") {
			return ErrConflict
		}
		st.invitations[inv.ID] = inv
		return nil
	})
}

func hasPending(st *memState, eventID, uid, exceptID string) bool {
	for id, inv := range st.invitations {
		if id != exceptID && inv.EventID == eventID && inv.UID == uid && inv.Status == model.InvitationPending {
			return true
		}
	}
	return false
}

func (m *MemoryStore) GetInvitation(_ context.Context, id string) (*model.Invitation, error) {
	var (
		inv model.Invitation
		ok  bool
	)
	m.view(func(st *memState) { inv, ok = st.invitations[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (m *MemoryStore) UpdateInvitation(_ context.Context, inv model.Invitation) error {
	return m.update(func(st *memState) error {
		cur, ok := st.invitations[inv.ID]
		if !ok {
			return ErrNotFound
		}
		if inv.Status == model.InvitationPending && hasPending(st, cur.EventID, cur.UID, cur.ID) {
			return ErrConflict
		}
		cur.Status = inv.Status
		cur.RespondedAt = inv.RespondedAt
		st.invitations[inv.ID] = cur
		return nil
	})
}

func (m *MemoryStore) PendingInvitation(_ context.Context, eventID, uid string) (*model.Invitation, error) {
	var (
		found model.Invitation
		ok    bool
	)
	m.view(func(st *memState) {
		for _, inv := range st.invitations {
			if inv.EventID == eventID && inv.UID == uid && inv.Status == model.InvitationPending {
				found, ok = inv, true
				return
			}
		}
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &found, nil
}

func (m *MemoryStore) filterInvitations(keep func(inv model.Invitation) bool) []model.Invitation {
	var invs []model.Invitation
	m.view(func(st *memState) {
		for _, inv := range st.invitations {
			if keep(inv) {
				invs = append(invs, inv)
			}
		}
	})
	return invs
}

func (m *MemoryStore) PendingInvitationsForUID(_ context.Context, uid string) ([]model.Invitation, error) {
	invs := m.filterInvitations(func(inv model.Invitation) bool {
		return inv.UID == uid && inv.Status == model.InvitationPending
	})
	sort.Slice(invs, func(i, j int) bool {
		if invs[i].IssuedAt != invs[j].IssuedAt {
			return invs[i].IssuedAt > invs[j].IssuedAt
		}
		return invs[i].ID > invs[j].ID
	})
	return invs, nil
}

func (m *MemoryStore) OverdueInvitations(_ context.Context, now int64) ([]model.Invitation, error) {
	invs := m.filterInvitations(func(inv model.Invitation) bool {
		return model.IsExpired(inv, now)
	})
	sort.Slice(invs, func(i, j int) bool { return invs[i].ExpiresAt < invs[j].ExpiresAt })
	return invs, nil
}

func (m *MemoryStore) CountSelectedPending(_ context.Context, eventID string) (int, error) {
	n := 0
	m.view(func(st *memState) {
		for _, inv := range st.invitations {
			if inv.EventID != eventID || inv.Status != model.InvitationPending {
				continue
			}
			if en, ok := st.entrants[entrantKey{eventID, inv.UID}]; ok && en.State == model.StateSelected {
				n++
			}
		}
	})
	return n, nil
}
