package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventease/internal/lottery"
	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
	"github.com/Shivanand-hulikatti/eventease/internal/watch"
)

func TestDraw_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(0, 2))
	f.joinAll(t, ev.ID, "A", "B", "C", "D", "E")

	res := f.closeAndDraw(t, ev.ID)
	assert.Len(t, res.Selected, 2)
	assert.Len(t, res.NonSelected, 3)
	assert.Len(t, res.Invitations, 2)

	_, err := f.svc.Draw(context.Background(), ev.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = f.svc.Draw(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDraw_Partition(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(0, 2))
	roster := []string{"A", "B", "C", "D", "E"}
	f.joinAll(t, ev.ID, roster...)

	res := f.closeAndDraw(t, ev.ID)
	p := f.partition(t, ev.ID)

	assert.ElementsMatch(t, res.Selected, p.Selected)
	assert.ElementsMatch(t, res.NonSelected, p.NonSelected)
	assert.ElementsMatch(t, roster, append(append([]string{}, p.Selected...), p.NonSelected...))
	for _, uid := range p.Selected {
		assert.NotContains(t, p.NonSelected, uid)
		inv := f.pendingFor(t, ev.ID, uid)
		assert.Equal(t, ev.DeadlineEpochMs, inv.ExpiresAt)
		assert.Equal(t, ms(f.clock.Now()), inv.IssuedAt)
	}
	assert.Empty(t, p.Waitlisted)

	stored, err := f.svc.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, stored.SelectionProcessed)
	assert.Equal(t, 5, stored.WaitlistCount)
	f.assertCountFormula(t, ev.ID)

	sent := f.notes.ofKind(notify.KindSelection)
	require.Len(t, sent, 1)
	assert.ElementsMatch(t, res.Selected, sent[0].Recipients)
}

func TestDraw_EdgeCases(t *testing.T) {
	t.Run("roster smaller than sample", func(t *testing.T) {
		f := newFixture(t)
		ev := f.createEvent(t, eventRequest(0, 5))
		f.joinAll(t, ev.ID, "A", "B")
		res := f.closeAndDraw(t, ev.ID)
		assert.ElementsMatch(t, []string{"A", "B"}, res.Selected)
		assert.Empty(t, res.NonSelected)
	})

	t.Run("empty roster", func(t *testing.T) {
		f := newFixture(t)
		ev := f.createEvent(t, eventRequest(0, 5))
		res := f.closeAndDraw(t, ev.ID)
		assert.Empty(t, res.Selected)
		stored, err := f.svc.GetEvent(context.Background(), ev.ID)
		require.NoError(t, err)
		assert.True(t, stored.SelectionProcessed)
		assert.Empty(t, f.notes.ofKind(notify.KindSelection))
	})

	t.Run("zero sample", func(t *testing.T) {
		f := newFixture(t)
		ev := f.createEvent(t, eventRequest(0, 0))
		f.joinAll(t, ev.ID, "A", "B")
		res := f.closeAndDraw(t, ev.ID)
		assert.Empty(t, res.Selected)
		assert.ElementsMatch(t, []string{"A", "B"}, res.NonSelected)
	})

	t.Run("no deadline", func(t *testing.T) {
		f := newFixture(t)
		req := eventRequest(0, 1)
		req.DeadlineEpochMs = 0
		ev := f.createEvent(t, req)
		f.joinAll(t, ev.ID, "A")
		res := f.closeAndDraw(t, ev.ID)
		require.Len(t, res.Invitations, 1)
		assert.Equal(t, ms(f.clock.Now().Add(DefaultInvitationTTL)), res.Invitations[0].ExpiresAt)
	})
}

func TestDueForDraw(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(0, 1))
	f.createEvent(t, func() model.CreateEventRequest {
		r := eventRequest(0, 1)
		r.RegistrationEnd = ms(t0.Add(5 * time.Hour))
		r.StartsAtEpochMs = ms(t0.Add(10 * time.Hour))
		return r
	}())

	due, err := f.svc.DueForDraw(context.Background())
	require.NoError(t, err)
	assert.Empty(t, due)

	f.clock.Advance(2 * time.Hour)
	due, err = f.svc.DueForDraw(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ev.ID, due[0].ID)

	_, err = f.svc.Draw(context.Background(), ev.ID)
	require.NoError(t, err)
	due, err = f.svc.DueForDraw(context.Background())
	require.NoError(t, err)
	assert.Empty(t, due)
}

// Three entrants, one seat drawn: the winner declines, a replacement is
// promoted and accepts, the last entrant stays non-selected.
func TestScenario_DeclineReplaceAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(3, 1))
	f.joinAll(t, ev.ID, "A", "B", "C")

	res := f.closeAndDraw(t, ev.ID)
	require.Len(t, res.Selected, 1)
	require.Len(t, res.NonSelected, 2)
	first := res.Selected[0]
	assert.Equal(t, 3, f.count(t, ev.ID))

	inv, err := f.svc.Decline(ctx, res.Invitations[0].ID, ev.ID, first)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationDeclined, inv.Status)
	p := f.partition(t, ev.ID)
	assert.Equal(t, []string{first}, p.Cancelled)
	assert.Empty(t, p.Selected)
	assert.Equal(t, 2, f.count(t, ev.ID))

	deadline := ms(f.clock.Now().Add(12 * time.Hour))
	rep, err := f.svc.Replace(ctx, ev.ID, 1, deadline)
	require.NoError(t, err)
	require.Len(t, rep.Promoted, 1)
	assert.Empty(t, rep.Failed)
	second := rep.Promoted[0].UID
	assert.NotEqual(t, first, second)
	assert.Equal(t, deadline, rep.Promoted[0].ExpiresAt)
	assert.Equal(t, model.InvitationPending, rep.Promoted[0].Status)

	p = f.partition(t, ev.ID)
	assert.Equal(t, []string{second}, p.Selected)
	require.Len(t, p.NonSelected, 1)
	third := p.NonSelected[0]
	assert.Equal(t, 2, f.count(t, ev.ID))

	inv, err = f.svc.Accept(ctx, rep.Promoted[0].ID, ev.ID, second)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, inv.Status)

	p = f.partition(t, ev.ID)
	assert.Equal(t, []string{second}, p.Admitted)
	assert.Equal(t, []string{third}, p.NonSelected)
	assert.Empty(t, p.Selected)
	assert.Equal(t, 1, f.count(t, ev.ID))
	total := len(p.Selected) + len(p.NonSelected) + len(p.Cancelled) + len(p.Admitted)
	assert.Equal(t, 3, total)
	f.assertCountFormula(t, ev.ID)

	require.Len(t, f.notes.ofKind(notify.KindReplacement), 1)
	assert.Equal(t, []string{second}, f.notes.ofKind(notify.KindReplacement)[0].Recipients)

	upcoming, err := f.svc.UpcomingEvents(ctx, second)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, ev.ID, upcoming[0].ID)
}

func TestAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A")
	res := f.closeAndDraw(t, ev.ID)
	invID := res.Invitations[0].ID

	_, err := f.svc.Accept(ctx, "missing", ev.ID, "A")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
	_, err = f.svc.Accept(ctx, invID, ev.ID, "B")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Accept(ctx, invID, "other-event", "A")
	assert.ErrorIs(t, err, ErrUnauthorized)

	inv, err := f.svc.Accept(ctx, invID, ev.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, inv.Status)
	assert.Equal(t, ms(f.clock.Now()), inv.RespondedAt)

	// Terminal invitations tolerate retries.
	inv, err = f.svc.Accept(ctx, invID, ev.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, inv.Status)
	inv, err = f.svc.Decline(ctx, invID, ev.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, inv.Status)

	admitted, err := f.svc.IsAdmitted(ctx, ev.ID, "A")
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestAccept_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A")
	res := f.closeAndDraw(t, ev.ID)

	f.clock.Advance(24 * time.Hour)
	inv, err := f.svc.Accept(ctx, res.Invitations[0].ID, ev.ID, "A")
	assert.ErrorIs(t, err, ErrInvitationExpired)
	require.NotNil(t, inv)
	assert.Equal(t, model.InvitationExpired, inv.Status)

	stored, err := f.svc.GetInvitation(ctx, res.Invitations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, stored.Status)
	assert.Equal(t, []string{"A"}, f.partition(t, ev.ID).Cancelled)
	f.assertCountFormula(t, ev.ID)
}

func TestAccept_CapacityKeepsInvitationPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(1, 1))
	f.joinAll(t, ev.ID, "A")
	require.NoError(t, f.svc.Admit(ctx, ev.ID, "vip"))
	res := f.closeAndDraw(t, ev.ID)

	_, err := f.svc.Accept(ctx, res.Invitations[0].ID, ev.ID, "A")
	assert.ErrorIs(t, err, ErrCapacityReached)

	inv, err := f.svc.GetInvitation(ctx, res.Invitations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationPending, inv.Status)
	assert.Equal(t, []string{"A"}, f.partition(t, ev.ID).Selected)
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 2))
	f.joinAll(t, ev.ID, "A", "B", "C")
	res := f.closeAndDraw(t, ev.ID)

	_, err := f.svc.Expire(ctx, res.Invitations[0].ID)
	assert.ErrorIs(t, err, ErrInvitationNotExpired)
	_, err = f.svc.Expire(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	n, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(23 * time.Hour)
	n, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p := f.partition(t, ev.ID)
	assert.ElementsMatch(t, res.Selected, p.Cancelled)
	assert.Empty(t, p.Selected)
	assert.Equal(t, 1, f.count(t, ev.ID))

	inv, err := f.svc.Expire(ctx, res.Invitations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, inv.Status)
	f.assertCountFormula(t, ev.ID)
}

func TestIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 0))
	f.joinAll(t, ev.ID, "A", "B")
	f.closeAndDraw(t, ev.ID)
	expires := ms(f.clock.Now().Add(time.Hour))

	inv, err := f.svc.Issue(ctx, ev.ID, "A", expires)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationPending, inv.Status)
	assert.Equal(t, []string{"A"}, f.partition(t, ev.ID).Selected)

	_, err = f.svc.Issue(ctx, ev.ID, "A", expires)
	assert.ErrorIs(t, err, ErrDuplicatePendingInvitation)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = f.svc.Issue(ctx, ev.ID, "nobody", expires)
	assert.ErrorIs(t, err, ErrEntrantNotFound)
	_, err = f.svc.Issue(ctx, ev.ID, "B", ms(f.clock.Now()))
	assert.ErrorIs(t, err, ErrInvalidDeadline)

	_, err = f.svc.Decline(ctx, inv.ID, ev.ID, "A")
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, ev.ID, "A", expires)
	assert.ErrorIs(t, err, ErrEntrantNotEligible)
}

func TestReplace_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A")
	future := ms(t0.Add(30 * time.Hour))

	_, err := f.svc.Replace(ctx, ev.ID, 0, future)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.Replace(ctx, ev.ID, 1, ms(t0))
	assert.ErrorIs(t, err, ErrInvalidDeadline)
	_, err = f.svc.Replace(ctx, "missing", 1, future)
	assert.ErrorIs(t, err, ErrEventNotFound)

	f.closeAndDraw(t, ev.ID)
	_, err = f.svc.Replace(ctx, ev.ID, 1, future)
	assert.ErrorIs(t, err, ErrNoEligibleCandidates)
}

func TestReplace_NeverPicksCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 2))
	f.joinAll(t, ev.ID, "A", "B", "C", "D", "E", "F")
	res := f.closeAndDraw(t, ev.ID)

	for _, inv := range res.Invitations {
		_, err := f.svc.Decline(ctx, inv.ID, ev.ID, inv.UID)
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.Leave(ctx, ev.ID, res.NonSelected[0]))
	cancelled := f.partition(t, ev.ID).Cancelled
	require.Len(t, cancelled, 3)

	rep, err := f.svc.Replace(ctx, ev.ID, 10, ms(f.clock.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Len(t, rep.Promoted, 3)
	for _, inv := range rep.Promoted {
		assert.NotContains(t, cancelled, inv.UID)
	}

	p := f.partition(t, ev.ID)
	assert.ElementsMatch(t, cancelled, p.Cancelled)
	assert.Empty(t, p.NonSelected)
	for _, uid := range cancelled {
		assert.NotContains(t, p.Selected, uid)
	}

	_, err = f.svc.Replace(ctx, ev.ID, 1, ms(f.clock.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrNoEligibleCandidates)
}

func TestListActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createEvent(t, eventRequest(0, 1))
	second := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, first.ID, "A")
	f.joinAll(t, second.ID, "A")

	f.clock.Advance(2 * time.Hour)
	_, err := f.svc.Draw(ctx, first.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Draw(ctx, second.ID)
	require.NoError(t, err)

	active, err := f.svc.ListActive(ctx, "A")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].EventID)
	assert.Equal(t, first.ID, active[1].EventID)

	// Past the deadline they are no longer active even before the scheduler runs.
	f.clock.Advance(24 * time.Hour)
	active, err = f.svc.ListActive(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPreviousAndUpcomingEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soon := f.createEvent(t, eventRequest(0, 1))
	later := f.createEvent(t, func() model.CreateEventRequest {
		r := eventRequest(0, 1)
		r.StartsAtEpochMs = ms(t0.Add(96 * time.Hour))
		return r
	}())
	require.NoError(t, f.svc.Admit(ctx, later.ID, "A"))
	require.NoError(t, f.svc.Admit(ctx, soon.ID, "A"))

	upcoming, err := f.svc.UpcomingEvents(ctx, "A")
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, soon.ID, upcoming[0].ID)
	assert.Equal(t, later.ID, upcoming[1].ID)

	f.clock.Advance(100 * time.Hour)
	previous, err := f.svc.PreviousEvents(ctx, "A")
	require.NoError(t, err)
	require.Len(t, previous, 2)
	assert.Equal(t, later.ID, previous[0].ID)
	assert.Equal(t, soon.ID, previous[1].ID)

	upcoming, err = f.svc.UpcomingEvents(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestNotifyNonSelected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A", "B", "C")

	_, err := f.svc.NotifyNonSelected(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrSelectionNotProcessed)

	res := f.closeAndDraw(t, ev.ID)

	due, err := f.svc.StartingWithin(ctx, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)

	f.clock.Advance(46*time.Hour - 30*time.Second)
	due, err = f.svc.StartingWithin(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1)

	n, err := f.svc.NotifyNonSelected(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = f.svc.NotifyNonSelected(ctx, ev.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	sorry := f.notes.ofKind(notify.KindSorry)
	require.Len(t, sorry, 1)
	assert.ElementsMatch(t, res.NonSelected, sorry[0].Recipients)

	due, err = f.svc.StartingWithin(ctx, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)
	// Nobody changed state.
	assert.ElementsMatch(t, res.NonSelected, f.partition(t, ev.ID).NonSelected)
}

func TestSubscribeWaitlistCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))

	updates := make(chan watch.Update[model.WaitlistCount], 16)
	sub, err := f.svc.SubscribeWaitlistCount(ctx, ev.ID, func(u watch.Update[model.WaitlistCount]) {
		updates <- u
	})
	require.NoError(t, err)
	defer sub.Remove()

	expect := func(count int) {
		t.Helper()
		require.Eventually(t, func() bool {
			for {
				select {
				case u := <-updates:
					if u.Value.Count == count {
						return true
					}
				default:
					return false
				}
			}
		}, time.Second, 5*time.Millisecond)
	}

	expect(0)
	f.joinAll(t, ev.ID, "A", "B")
	expect(2)
	require.NoError(t, f.svc.Leave(ctx, ev.ID, "A"))
	expect(1)

	sub.Remove()
	sub.Remove()
}

func TestSubscribeInvitations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A")

	latest := make(chan []model.Invitation, 16)
	sub, err := f.svc.SubscribeInvitations(ctx, "A", func(u watch.Update[[]model.Invitation]) {
		latest <- u.Value
	})
	require.NoError(t, err)
	defer sub.Remove()

	require.Empty(t, <-latest)
	res := f.closeAndDraw(t, ev.ID)

	select {
	case invs := <-latest:
		require.Len(t, invs, 1)
		assert.Equal(t, res.Invitations[0].ID, invs[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no update after draw")
	}
}

func TestAdmit_AfterDrawOnlyDrawnEntrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A", "B")
	res := f.closeAndDraw(t, ev.ID)
	require.Len(t, res.NonSelected, 1)

	err := f.svc.Admit(ctx, ev.ID, "outsider")
	assert.ErrorIs(t, err, ErrEntrantNotEligible)
	assert.Equal(t, KindInvalidState, KindOf(err))

	require.NoError(t, f.svc.Admit(ctx, ev.ID, res.NonSelected[0]))
	p := f.partition(t, ev.ID)
	assert.Equal(t, res.NonSelected, p.Admitted)
	total := len(p.Waitlisted) + len(p.Selected) + len(p.NonSelected) + len(p.Cancelled) + len(p.Admitted)
	assert.Equal(t, 2, total)
}

// cancellingRepo cancels a context once a given number of transactions have
// committed.
type cancellingRepo struct {
	*repository.MemoryStore
	cancel context.CancelFunc
	after  int
	done   int
}

func (r *cancellingRepo) Tx(ctx context.Context, fn func(ctx context.Context, q repository.Queries) error) error {
	err := r.MemoryStore.Tx(ctx, fn)
	if err == nil {
		r.done++
		if r.done == r.after {
			r.cancel()
		}
	}
	return err
}

func TestReplace_CancelledKeepsCommittedPromotions(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(0, 1))
	f.joinAll(t, ev.ID, "A", "B", "C", "D")
	f.closeAndDraw(t, ev.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, err := NewEventService(&cancellingRepo{MemoryStore: f.repo, cancel: cancel, after: 1},
		WithClock(f.clock.Now),
		WithSource(lottery.NewSeededSource(3, 5)),
		WithNotifier(f.notes),
	)
	require.NoError(t, err)

	rep, err := svc.Replace(ctx, ev.ID, 3, ms(f.clock.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	require.Len(t, rep.Promoted, 1)

	p := f.partition(t, ev.ID)
	assert.Len(t, p.Selected, 2)
	assert.Len(t, p.NonSelected, 2)
	assert.Contains(t, p.Selected, rep.Promoted[0].UID)

	sent := f.notes.ofKind(notify.KindReplacement)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{rep.Promoted[0].UID}, sent[0].Recipients)
}

func TestDraw_InvitationTTLWithoutDeadline(t *testing.T) {
	f := newFixture(t)
	svc, err := NewEventService(f.repo,
		WithClock(f.clock.Now),
		WithSource(lottery.NewSeededSource(7, 11)),
		WithInvitationTTL(48*time.Hour),
	)
	require.NoError(t, err)

	req := eventRequest(0, 1)
	req.DeadlineEpochMs = 0
	req.StartsAtEpochMs = ms(t0.Add(96 * time.Hour))
	ev := f.createEvent(t, req)
	f.joinAll(t, ev.ID, "A")

	f.clock.Advance(2 * time.Hour)
	res, err := svc.Draw(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Len(t, res.Invitations, 1)
	assert.Equal(t, ms(f.clock.Now().Add(48*time.Hour)), res.Invitations[0].ExpiresAt)
}
