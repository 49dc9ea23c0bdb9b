package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware_DisabledWhenAPIKeyUnset(t *testing.T) {
	mgr := new(MockContainerManager)
	s := newTestServer(t, mgr)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.authMiddleware(inner).ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_RejectsMissingOrWrongKey(t *testing.T) {
	mgr := new(MockContainerManager)
	s := newTestServer(t, mgr)
	s.cfg.APIKey = "secret"

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.authMiddleware(inner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_AcceptsMatchingKey(t *testing.T) {
	mgr := new(MockContainerManager)
	s := newTestServer(t, mgr)
	s.cfg.APIKey = "secret"

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Api-Key", "secret")
	w := httptest.NewRecorder()
	s.authMiddleware(inner).ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDMiddleware_GeneratesAndEchoesID(t *testing.T) {
	mgr := new(MockContainerManager)
	s := newTestServer(t, mgr)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.requestIDMiddleware(inner).ServeHTTP(w, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddleware_ReusesCallerSuppliedID(t *testing.T) {
	mgr := new(MockContainerManager)
	s := newTestServer(t, mgr)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "caller-id")
	w := httptest.NewRecorder()
	s.requestIDMiddleware(inner).ServeHTTP(w, req)

	assert.Equal(t, "caller-id", w.Header().Get("X-Request-Id"))
}
