package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

type contextKey int

const requestIDContextKey contextKey = iota

// authMiddleware enforces a single shared API key via the X-Api-Key
// header. An unset key disables the check entirely (local/dev use); a
// set key requires an exact constant-time match.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.APIKey)) != 1 {
			writeUnauthorizedError(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware assigns each request an id (reusing a caller-supplied
// X-Request-Id when present), echoes it on the response, and stashes it in
// the request context for handler-level logging.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)

		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
