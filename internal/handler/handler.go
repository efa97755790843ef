// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/eventease/internal/model"
	"github.com/Shivanand-hulikatti/eventease/internal/service"
)

// EventHandler holds all HTTP handlers for the waitlist API.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

var kindStatus = map[service.Kind]int{
	service.KindNotFound:         http.StatusNotFound,
	service.KindInvalidState:     http.StatusConflict,
	service.KindCapacityExceeded: http.StatusConflict,
	service.KindWindowClosed:     http.StatusUnprocessableEntity,
	service.KindWindowNotOpen:    http.StatusUnprocessableEntity,
	service.KindUnauthorized:     http.StatusForbidden,
	service.KindInvalidArgument:  http.StatusBadRequest,
}

// writeServiceError maps domain errors to their status code and hides
// everything else behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var de *service.Error
	if errors.As(err, &de) {
		writeJSON(w, kindStatus[de.Kind], model.ErrorResponse{Error: err.Error(), Kind: string(de.Kind)})
		return
	}
	slog.Default().ErrorContext(r.Context(), fallback,
		slog.String("err", err.Error()),
		slog.String("path", r.URL.Path),
	)
	writeError(w, http.StatusInternalServerError, fallback)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// Creates a new event owned by the caller.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), UID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Returns a JSON array of all events.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list events")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ─── Waitlist ─────────────────────────────────────────────────────────────────

// Join handles POST /events/{id}/waitlist
func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, uid := chi.URLParam(r, "id"), UID(r.Context())

	if err := h.svc.Join(r.Context(), id, uid); err != nil {
		writeServiceError(w, r, err, "failed to join waitlist")
		return
	}
	h.writeMembership(w, r, id, uid)
}

// Leave handles DELETE /events/{id}/waitlist
func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, uid := chi.URLParam(r, "id"), UID(r.Context())

	if err := h.svc.Leave(r.Context(), id, uid); err != nil {
		writeServiceError(w, r, err, "failed to leave waitlist")
		return
	}
	h.writeMembership(w, r, id, uid)
}

// Membership handles GET /events/{id}/waitlist/me
// Reports whether the caller is joined or admitted.
func (h *EventHandler) Membership(w http.ResponseWriter, r *http.Request) {
	h.writeMembership(w, r, chi.URLParam(r, "id"), UID(r.Context()))
}

func (h *EventHandler) writeMembership(w http.ResponseWriter, r *http.Request, eventID, uid string) {
	m, err := h.svc.Membership(r.Context(), eventID, uid)
	if err != nil {
		writeServiceError(w, r, err, "failed to get membership")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// WaitlistCount handles GET /events/{id}/waitlist/count
func (h *EventHandler) WaitlistCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.WaitlistCount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "failed to count waitlist")
		return
	}
	writeJSON(w, http.StatusOK, count)
}

// ─── Organizer actions ────────────────────────────────────────────────────────

// Partition handles GET /events/{id}/partition
func (h *EventHandler) Partition(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Partition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "failed to get partition")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Draw handles POST /events/{id}/draw
// Runs the lottery now instead of waiting for the scheduler.
func (h *EventHandler) Draw(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Draw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "failed to draw")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Replace handles POST /events/{id}/replacements
func (h *EventHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req model.ReplaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Replace(r.Context(), chi.URLParam(r, "id"), req.Count, req.DeadlineEpochMs)
	if err != nil {
		writeServiceError(w, r, err, "failed to replace entrants")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Admit handles POST /events/{id}/admissions
func (h *EventHandler) Admit(w http.ResponseWriter, r *http.Request) {
	var req model.AdmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.Admit(r.Context(), id, req.UID); err != nil {
		writeServiceError(w, r, err, "failed to admit entrant")
		return
	}
	h.writeMembership(w, r, id, req.UID)
}

// ─── Invitations ──────────────────────────────────────────────────────────────

// ListInvitations handles GET /invitations
// Returns the caller's active invitations, newest first.
func (h *EventHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.ListActive(r.Context(), UID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "failed to list invitations")
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

// Accept handles POST /invitations/{id}/accept
func (h *EventHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Accept)
}

// Decline handles POST /invitations/{id}/decline
func (h *EventHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Decline)
}

type responder func(ctx context.Context, invitationID, eventID, uid string) (*model.Invitation, error)

func (h *EventHandler) respond(w http.ResponseWriter, r *http.Request, fn responder) {
	var req model.RespondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}

	inv, err := fn(r.Context(), chi.URLParam(r, "id"), req.EventID, UID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "failed to respond to invitation")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// ─── My events ────────────────────────────────────────────────────────────────

// UpcomingEvents handles GET /me/events/upcoming
func (h *EventHandler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.UpcomingEvents(r.Context(), UID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "failed to list upcoming events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// PreviousEvents handles GET /me/events/previous
func (h *EventHandler) PreviousEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.PreviousEvents(r.Context(), UID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "failed to list previous events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
