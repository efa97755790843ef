package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventease/internal/lottery"
	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/repository"
	"github.com/Shivanand-hulikatti/eventease/internal/service"
)

type mockWorkflow struct {
	mu    sync.Mutex
	drawn []string
	told  []string

	DueForDrawFn     func(ctx context.Context) ([]model.Event, error)
	DrawFn           func(ctx context.Context, eventID string) (*service.DrawResult, error)
	ExpireDueFn      func(ctx context.Context) (int, error)
	StartingWithinFn func(ctx context.Context, lead time.Duration) ([]model.Event, error)
	NotifyFn         func(ctx context.Context, eventID string) (int, error)
}

func (m *mockWorkflow) DueForDraw(ctx context.Context) ([]model.Event, error) {
	if m.DueForDrawFn == nil {
		return nil, nil
	}
	return m.DueForDrawFn(ctx)
}

func (m *mockWorkflow) Draw(ctx context.Context, eventID string) (*service.DrawResult, error) {
	m.mu.Lock()
	m.drawn = append(m.drawn, eventID)
	m.mu.Unlock()
	if m.DrawFn == nil {
		return &service.DrawResult{EventID: eventID}, nil
	}
	return m.DrawFn(ctx, eventID)
}

func (m *mockWorkflow) ExpireDue(ctx context.Context) (int, error) {
	if m.ExpireDueFn == nil {
		return 0, nil
	}
	return m.ExpireDueFn(ctx)
}

func (m *mockWorkflow) StartingWithin(ctx context.Context, lead time.Duration) ([]model.Event, error) {
	if m.StartingWithinFn == nil {
		return nil, nil
	}
	return m.StartingWithinFn(ctx, lead)
}

func (m *mockWorkflow) NotifyNonSelected(ctx context.Context, eventID string) (int, error) {
	m.mu.Lock()
	m.told = append(m.told, eventID)
	m.mu.Unlock()
	if m.NotifyFn == nil {
		return 0, nil
	}
	return m.NotifyFn(ctx, eventID)
}

func (m *mockWorkflow) calls() (drawn, told []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.drawn...), append([]string(nil), m.told...)
}

func TestTick_ContinuesPastFailures(t *testing.T) {
	expired := 0
	wf := &mockWorkflow{
		DueForDrawFn: func(context.Context) ([]model.Event, error) {
			return []model.Event{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}, nil
		},
		DrawFn: func(_ context.Context, id string) (*service.DrawResult, error) {
			switch id {
			case "e1":
				return nil, errors.New("db down")
			case "e2":
				return nil, service.ErrAlreadyProcessed
			}
			return &service.DrawResult{EventID: id}, nil
		},
		ExpireDueFn: func(context.Context) (int, error) {
			expired++
			return 2, nil
		},
		StartingWithinFn: func(_ context.Context, lead time.Duration) ([]model.Event, error) {
			assert.Equal(t, 5*time.Minute, lead)
			return []model.Event{{ID: "s1"}, {ID: "s2"}}, nil
		},
		NotifyFn: func(_ context.Context, id string) (int, error) {
			if id == "s1" {
				return 0, errors.New("boom")
			}
			return 3, nil
		},
	}
	w := New(&Config{WorkerInterval: time.Hour, SorryLead: 5 * time.Minute}, wf)

	w.Tick(context.Background())

	drawn, told := wf.calls()
	assert.Equal(t, []string{"e1", "e2", "e3"}, drawn)
	assert.Equal(t, []string{"s1", "s2"}, told)
	assert.Equal(t, 1, expired)
}

func TestTick_ListFailuresDoNotStopOtherSteps(t *testing.T) {
	expireCalled := false
	wf := &mockWorkflow{
		DueForDrawFn: func(context.Context) ([]model.Event, error) { return nil, errors.New("timeout") },
		ExpireDueFn: func(context.Context) (int, error) {
			expireCalled = true
			return 0, errors.New("timeout")
		},
		StartingWithinFn: func(context.Context, time.Duration) ([]model.Event, error) {
			return []model.Event{{ID: "s1"}}, nil
		},
	}
	New(nil, wf).Tick(context.Background())

	_, told := wf.calls()
	assert.True(t, expireCalled)
	assert.Equal(t, []string{"s1"}, told)
}

func TestWorker_StartStop(t *testing.T) {
	ticks := make(chan struct{}, 8)
	wf := &mockWorkflow{
		ExpireDueFn: func(context.Context) (int, error) {
			select {
			case ticks <- struct{}{}:
			default:
			}
			return 0, nil
		},
	}
	w := New(&Config{WorkerInterval: 10 * time.Millisecond}, wf)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("worker did not tick")
		}
	}

	require.NoError(t, w.Stop())
	assert.Error(t, w.Stop())
}

func TestWorker_DrivesService(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	svc, err := service.NewEventService(repository.NewMemoryStore(),
		service.WithClock(clock),
		service.WithSource(lottery.NewSeededSource(1, 2)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, "org", model.CreateEventRequest{
		Title:             "Pottery night",
		SampleSize:        1,
		RegistrationStart: now.Add(-time.Hour).UnixMilli(),
		RegistrationEnd:   now.Add(time.Hour).UnixMilli(),
		DeadlineEpochMs:   now.Add(3 * time.Hour).UnixMilli(),
		StartsAtEpochMs:   now.Add(6 * time.Hour).UnixMilli(),
	})
	require.NoError(t, err)
	for _, uid := range []string{"A", "B", "C"} {
		require.NoError(t, svc.Join(ctx, ev.ID, uid))
	}

	w := New(&Config{WorkerInterval: time.Hour, SorryLead: time.Minute}, svc)

	w.Tick(ctx)
	p, err := svc.Partition(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, p.Waitlisted, 3, "registration still open")

	advance(2 * time.Hour)
	w.Tick(ctx)
	p, err = svc.Partition(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, p.Selected, 1)
	assert.Len(t, p.NonSelected, 2)

	advance(2 * time.Hour)
	w.Tick(ctx)
	p, err = svc.Partition(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Selected)
	assert.Len(t, p.Cancelled, 1)

	advance(2*time.Hour - 30*time.Second)
	w.Tick(ctx)
	stored, err := svc.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, stored.SorryNotificationSent)
}
