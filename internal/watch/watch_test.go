package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu    sync.Mutex
	value int
}

func (c *counter) set(v int) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}

func (c *counter) load(_ context.Context, _ string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

type recorder struct {
	mu      sync.Mutex
	updates []Update[int]
}

func (r *recorder) record(u Update[int]) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Update[int] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update[int](nil), r.updates...)
}

func (r *recorder) last() (Update[int], bool) {
	all := r.snapshot()
	if len(all) == 0 {
		return Update[int]{}, false
	}
	return all[len(all)-1], true
}

func TestSubscribe_DeliversInitialValue(t *testing.T) {
	src := &counter{value: 3}
	hub := NewHub[int](src.load)
	rec := &recorder{}

	sub, err := hub.Subscribe(context.Background(), "event-1", rec.record)
	require.NoError(t, err)
	defer sub.Remove()

	require.Eventually(t, func() bool {
		u, ok := rec.last()
		return ok && u.Value == 3 && u.Key == "event-1"
	}, time.Second, 5*time.Millisecond)
}

func TestRefresh_PushesNewValues(t *testing.T) {
	ctx := context.Background()
	src := &counter{value: 0}
	hub := NewHub[int](src.load)
	rec := &recorder{}

	sub, err := hub.Subscribe(ctx, "event-1", rec.record)
	require.NoError(t, err)
	defer sub.Remove()

	for v := 1; v <= 5; v++ {
		src.set(v)
		require.NoError(t, hub.Refresh(ctx, "event-1"))
	}

	require.Eventually(t, func() bool {
		u, ok := rec.last()
		return ok && u.Value == 5 && u.Version == 5
	}, time.Second, 5*time.Millisecond)

	var prev uint64
	for i, u := range rec.snapshot() {
		if i > 0 {
			assert.Greater(t, u.Version, prev, "versions must increase")
		}
		prev = u.Version
	}
}

func TestRefresh_OtherKeysUntouched(t *testing.T) {
	ctx := context.Background()
	var loads atomic.Int32
	hub := NewHub[int](func(_ context.Context, key string) (int, error) {
		loads.Add(1)
		return len(key), nil
	})

	require.NoError(t, hub.Refresh(ctx, "nobody-listens"))
	assert.Equal(t, int32(0), loads.Load(), "keys without subscribers are not loaded")
}

func TestRemove_IsIdempotentAndStopsDelivery(t *testing.T) {
	ctx := context.Background()
	src := &counter{value: 1}
	hub := NewHub[int](src.load)
	rec := &recorder{}

	sub, err := hub.Subscribe(ctx, "k", rec.record)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	sub.Remove()
	sub.Remove()
	assert.Equal(t, 0, hub.Subscribers("k"))

	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel should be closed after Remove")
	}

	src.set(2)
	require.NoError(t, hub.Refresh(ctx, "k"))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestRemove_FromInsideCallback(t *testing.T) {
	ctx := context.Background()
	src := &counter{value: 1}
	hub := NewHub[int](src.load)

	var calls atomic.Int32
	var sub *Subscription[int]
	ready := make(chan struct{})
	var err error
	sub, err = hub.Subscribe(ctx, "k", func(Update[int]) {
		<-ready
		calls.Add(1)
		sub.Remove()
	})
	require.NoError(t, err)
	close(ready)

	require.Eventually(t, func() bool { return hub.Subscribers("k") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribe_LoaderError(t *testing.T) {
	boom := errors.New("boom")
	hub := NewHub[int](func(context.Context, string) (int, error) { return 0, boom })

	sub, err := hub.Subscribe(context.Background(), "k", func(Update[int]) {})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, sub)
	assert.Equal(t, 0, hub.Subscribers("k"))
}

func TestOffer_NeverGoesBackwards(t *testing.T) {
	hub := NewHub[int](func(context.Context, string) (int, error) { return 0, nil })
	sub := newSubscription(hub, "k", 1, func(Update[int]) {})

	sub.offer(Update[int]{Version: 4, Value: 4})
	sub.offer(Update[int]{Version: 2, Value: 2})

	require.NotNil(t, sub.pending)
	assert.Equal(t, uint64(4), sub.pending.Version)
}
