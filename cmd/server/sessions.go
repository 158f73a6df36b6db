package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/fabworks/printquote/internal/quote"
)

const sessionCookieName = "printquote_session"

type sessionIDKey struct{}

// sessionRegistry hands out one lifecycle manager per browser session. Each
// manager serializes its own session's mutations; the registry lock only
// guards the map.
type sessionRegistry struct {
	mu       sync.Mutex
	managers map[string]*quote.Manager
	create   func(sessionID string) *quote.Manager
}

func newSessionRegistry(create func(sessionID string) *quote.Manager) *sessionRegistry {
	return &sessionRegistry{
		managers: make(map[string]*quote.Manager),
		create:   create,
	}
}

func (r *sessionRegistry) get(sessionID string) *quote.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[sessionID]
	if !ok {
		m = r.create(sessionID)
		r.managers[sessionID] = m
	}
	return m
}

// sessionMiddleware assigns a session cookie on first contact and threads
// the session id through the request context.
func (s *server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			sessionID = cookie.Value
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDKey{}, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

func (s *server) managerFor(r *http.Request) *quote.Manager {
	return s.sessions.get(sessionIDFrom(r))
}
