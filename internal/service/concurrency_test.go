package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
)

func TestDraw_ConcurrentCallsSucceedOnce(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(0, 3))
	for i := 0; i < 20; i++ {
		f.joinAll(t, ev.ID, fmt.Sprintf("u%02d", i))
	}
	f.clock.Advance(2 * time.Hour)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		processed atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Draw(context.Background(), ev.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrAlreadyProcessed):
				processed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(15), processed.Load())
	p := f.partition(t, ev.ID)
	assert.Len(t, p.Selected, 3)
	assert.Len(t, p.NonSelected, 17)
}

func TestIssue_ConcurrentCallsLeaveOnePending(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(0, 0))
	f.joinAll(t, ev.ID, "A")
	f.closeAndDraw(t, ev.ID)
	expires := ms(f.clock.Now().Add(time.Hour))

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Issue(context.Background(), ev.ID, "A", expires); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	pending, err := f.repo.PendingInvitationsForUID(context.Background(), "A")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAccept_ConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, eventRequest(4, 4))
	f.joinAll(t, ev.ID, "A", "B", "C", "D")

	// Two seats are taken directly, leaving two for four concurrent accepts.
	require.NoError(t, f.svc.Admit(ctx, ev.ID, "vip-1"))
	require.NoError(t, f.svc.Admit(ctx, ev.ID, "vip-2"))

	res := f.closeAndDraw(t, ev.ID)
	require.Len(t, res.Invitations, 4)

	var (
		wg   sync.WaitGroup
		ok   atomic.Int32
		full atomic.Int32
	)
	for _, inv := range res.Invitations {
		wg.Add(1)
		go func(inv model.Invitation) {
			defer wg.Done()
			_, err := f.svc.Accept(ctx, inv.ID, ev.ID, inv.UID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrCapacityReached):
				full.Add(1)
			}
		}(inv)
	}
	wg.Wait()

	assert.Equal(t, int32(2), ok.Load())
	assert.Equal(t, int32(2), full.Load())
	assert.Len(t, f.partition(t, ev.ID).Admitted, 4)
}

func TestAdmit_ConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(3, 1))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_ = f.svc.Admit(context.Background(), ev.ID, uid)
		}(fmt.Sprintf("u%02d", i))
	}
	wg.Wait()

	assert.Len(t, f.partition(t, ev.ID).Admitted, 3)
}

func TestJoin_ConcurrentRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvent(t, eventRequest(5, 1))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_ = f.svc.Join(context.Background(), ev.ID, uid)
		}(fmt.Sprintf("u%02d", i%10))
	}
	wg.Wait()

	assert.Len(t, f.partition(t, ev.ID).Waitlisted, 5)
	f.assertCountFormula(t, ev.ID)
}
