package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/watch"
)

const heartbeatInterval = 25 * time.Second

type subscribeFunc[T any] func(ctx context.Context, key string, fn func(watch.Update[T])) (*watch.Subscription[T], error)

// StreamWaitlistCount handles GET /events/{id}/waitlist/count/stream
// Pushes the waitlist count as Server-Sent Events until the client leaves.
func (h *EventHandler) StreamWaitlistCount(w http.ResponseWriter, r *http.Request) {
	serveStream[model.WaitlistCount](w, r, "waitlist_count", chi.URLParam(r, "id"), h.svc.SubscribeWaitlistCount)
}

// StreamInvitations handles GET /invitations/stream
// Pushes the caller's active invitations as Server-Sent Events.
func (h *EventHandler) StreamInvitations(w http.ResponseWriter, r *http.Request) {
	serveStream[[]model.Invitation](w, r, "invitations", UID(r.Context()), h.svc.SubscribeInvitations)
}

func serveStream[T any](w http.ResponseWriter, r *http.Request, event, key string, subscribe subscribeFunc[T]) {
	// Single producer: the subscription goroutine. Keep only the newest update.
	updates := make(chan watch.Update[T], 1)
	sub, err := subscribe(r.Context(), key, func(u watch.Update[T]) {
		select {
		case <-updates:
		default:
		}
		updates <- u
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to subscribe")
		return
	}
	defer sub.Remove()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case u := <-updates:
			data, err := json.Marshal(u.Value)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", u.Version, event, data); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}
