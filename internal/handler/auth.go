package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type ctxKey struct{}

// UID returns the authenticated caller, or "" outside Authenticator.
func UID(ctx context.Context) string {
	uid, _ := ctx.Value(ctxKey{}).(string)
	return uid
}

// WithUID returns a copy of ctx carrying uid.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, uid)
}

// NewJWTAuth returns the HS256 verifier for bearer tokens.
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// NewToken issues a token for uid. The subject claim carries the uid.
func NewToken(ja *jwtauth.JWTAuth, uid string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"sub": uid,
		"exp": time.Now().Add(ttl).Unix(),
	}
	_, ts, err := ja.Encode(claims)
	return ts, err
}

// Authenticator rejects requests without a valid token and stores the token
// subject as the caller uid. It must run after jwtauth.Verifier.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil || token.Subject() == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUID(r.Context(), token.Subject())))
	})
}

// RequireOrganizer lets only the organizer of the {id} event through.
func (h *EventHandler) RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.svc.RequireOrganizer(r.Context(), chi.URLParam(r, "id"), UID(r.Context())); err != nil {
			writeServiceError(w, r, err, "failed to authorize organizer")
			return
		}
		next.ServeHTTP(w, r)
	})
}
