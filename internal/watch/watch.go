// Package watch is a keyed publish/subscribe registry for derived values such
// as an event's waitlist count or a user's active invitations.
//
// Each key carries a logical version that increases by one on every refresh.
// A subscriber first receives the value current at subscription time and then
// every later refresh, coalesced to the newest value when it falls behind.
// Versions delivered to one subscriber never decrease.
package watch

import (
	"context"
	"sync"
)

// Update is one delivery to a subscriber.
type Update[T any] struct {
	Key     string
	Version uint64
	Value   T
}

// Loader reads the current value for a key from the source of truth.
type Loader[T any] func(ctx context.Context, key string) (T, error)

type topic[T any] struct {
	mu      sync.Mutex
	version uint64
	subs    map[uint64]*Subscription[T]
}

// Hub owns the subscriptions of one kind of derived value. The zero value is
// not usable; create hubs with NewHub.
type Hub[T any] struct {
	load Loader[T]

	mu     sync.Mutex
	nextID uint64
	topics map[string]*topic[T]
}

// NewHub returns a Hub that reads values with load.
func NewHub[T any](load Loader[T]) *Hub[T] {
	return &Hub[T]{
		load:   load,
		topics: make(map[string]*topic[T]),
	}
}

func (h *Hub[T]) topic(key string, create bool) *topic[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[key]
	if !ok && create {
		t = &topic[T]{subs: make(map[uint64]*Subscription[T])}
		h.topics[key] = t
	}
	return t
}

// Subscribe registers fn for key. fn is called from a dedicated goroutine,
// first with the current value and then after every Refresh of key, until the
// returned subscription is removed.
func (h *Hub[T]) Subscribe(ctx context.Context, key string, fn func(Update[T])) (*Subscription[T], error) {
	for {
		t := h.topic(key, true)
		t.mu.Lock()
		if !h.attached(key, t) {
			// The topic was dropped by a concurrent Remove; retry on a fresh one.
			t.mu.Unlock()
			continue
		}
		value, err := h.load(ctx, key)
		if err != nil {
			t.mu.Unlock()
			h.dropIfEmpty(key, t)
			return nil, err
		}

		h.mu.Lock()
		h.nextID++
		id := h.nextID
		h.mu.Unlock()

		sub := newSubscription(h, key, id, fn)
		t.subs[id] = sub
		sub.offer(Update[T]{Key: key, Version: t.version, Value: value})
		t.mu.Unlock()

		go sub.run()
		return sub, nil
	}
}

func (h *Hub[T]) attached(key string, t *topic[T]) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topics[key] == t
}

// Refresh reloads the value for key and pushes it to every subscriber.
// Keys without subscribers are skipped without touching the loader.
func (h *Hub[T]) Refresh(ctx context.Context, key string) error {
	t := h.topic(key, false)
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) == 0 {
		return nil
	}

	value, err := h.load(ctx, key)
	if err != nil {
		return err
	}
	t.version++
	u := Update[T]{Key: key, Version: t.version, Value: value}
	for _, sub := range t.subs {
		sub.offer(u)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for key.
func (h *Hub[T]) Subscribers(key string) int {
	t := h.topic(key, false)
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (h *Hub[T]) remove(key string, id uint64) {
	t := h.topic(key, false)
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
	h.dropIfEmpty(key, t)
}

func (h *Hub[T]) dropIfEmpty(key string, t *topic[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) > 0 {
		return
	}
	h.mu.Lock()
	if h.topics[key] == t {
		delete(h.topics, key)
	}
	h.mu.Unlock()
}

// Subscription is the handle returned by Subscribe.
type Subscription[T any] struct {
	hub *Hub[T]
	key string
	id  uint64
	fn  func(Update[T])

	mu        sync.Mutex
	pending   *Update[T]
	delivered bool
	last      uint64

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newSubscription[T any](h *Hub[T], key string, id uint64, fn func(Update[T])) *Subscription[T] {
	return &Subscription[T]{
		hub:  h,
		key:  key,
		id:   id,
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// offer queues u unless a newer version is already queued or delivered.
func (s *Subscription[T]) offer(u Update[T]) {
	s.mu.Lock()
	if s.pending != nil && s.pending.Version > u.Version {
		s.mu.Unlock()
		return
	}
	if s.delivered && u.Version <= s.last {
		s.mu.Unlock()
		return
	}
	s.pending = &u
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		u := s.pending
		s.pending = nil
		if u != nil {
			s.delivered = true
			s.last = u.Version
		}
		s.mu.Unlock()

		if u == nil {
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.fn(*u)
	}
}

// Remove cancels the subscription. It is safe to call more than once and from
// any goroutine, including from inside the callback.
func (s *Subscription[T]) Remove() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s.key, s.id)
	})
}

// Done is closed once the subscription has been removed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}
