// Package notify delivers best-effort push notifications to entrants.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Kind identifies the audience group of a notification.
type Kind string

const (
	// KindSelection goes to entrants picked by the draw.
	KindSelection Kind = "selection"
	// KindReplacement goes to entrants promoted from the non-selected pool.
	KindReplacement Kind = "replacement"
	// KindSorry goes to non-selected entrants shortly before the event starts.
	KindSorry Kind = "sorry"
)

// Notification is one message addressed to a group of entrants of an event.
type Notification struct {
	Kind       Kind     `json:"kind"`
	EventID    string   `json:"event_id"`
	EventTitle string   `json:"event_title"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	ExpiresAt  int64    `json:"expires_at,omitempty"`
	SentAt     int64    `json:"sent_at"`
}

// Notifier sends a notification to its recipients.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Message returns the default text for a notification kind.
func Message(kind Kind, title string) string {
	switch kind {
	case KindSelection:
		return fmt.Sprintf("You have been selected for %q. Respond to your invitation before it expires.", title)
	case KindReplacement:
		return fmt.Sprintf("A spot opened up for %q and you have been invited.", title)
	case KindSorry:
		return fmt.Sprintf("%q is starting soon. Unfortunately you were not selected this time.", title)
	default:
		return title
	}
}

// LogNotifier writes notifications to the structured log. It is the default
// backend when no broker is configured.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	slog.Default().InfoContext(ctx, "notification",
		slog.String("kind", string(n.Kind)),
		slog.String("event_id", n.EventID),
		slog.Int("recipients", len(n.Recipients)),
		slog.String("message", n.Message),
	)
	return nil
}

// Dispatcher sends notifications in the background so callers never wait
// for, or fail because of, the delivery backend.
type Dispatcher struct {
	next    Notifier
	timeout time.Duration
}

// NewDispatcher wraps next. A non-positive timeout defaults to 10 seconds.
func NewDispatcher(next Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{next: next, timeout: timeout}
}

// Notify starts delivery and returns immediately. Empty recipient lists are
// dropped.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	if len(n.Recipients) == 0 {
		return nil
	}
	// Detach from the request so delivery survives the response being written.
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.next.Notify(ctx, n); err != nil {
			slog.Default().ErrorContext(ctx, "can't send notification",
				slog.String("err", err.Error()),
				slog.String("kind", string(n.Kind)),
				slog.String("event_id", n.EventID),
			)
		}
	}()
	return nil
}
