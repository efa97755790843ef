package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

// NewRouter builds the API routes. Everything except health and the public
// event listing requires a bearer token.
func NewRouter(h *EventHandler, ja *jwtauth.JWTAuth, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", HealthCheck)

	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/events/{id}/waitlist/count", h.WaitlistCount)
	r.Get("/events/{id}/waitlist/count/stream", h.StreamWaitlistCount)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(ja))
		r.Use(Authenticator)

		r.Post("/events", h.CreateEvent)
		r.Post("/events/{id}/waitlist", h.Join)
		r.Delete("/events/{id}/waitlist", h.Leave)
		r.Get("/events/{id}/waitlist/me", h.Membership)

		organizer := r.With(h.RequireOrganizer)
		organizer.Get("/events/{id}/partition", h.Partition)
		organizer.Post("/events/{id}/draw", h.Draw)
		organizer.Post("/events/{id}/replacements", h.Replace)
		organizer.Post("/events/{id}/admissions", h.Admit)

		r.Get("/invitations", h.ListInvitations)
		r.Get("/invitations/stream", h.StreamInvitations)
		r.Post("/invitations/{id}/accept", h.Accept)
		r.Post("/invitations/{id}/decline", h.Decline)

		r.Get("/me/events/upcoming", h.UpcomingEvents)
		r.Get("/me/events/previous", h.PreviousEvents)
	})

	return r
}
