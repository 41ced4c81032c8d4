package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func mustAuthMiddleware(t *testing.T, secret string) *AuthMiddleware {
	t.Helper()

	m, err := NewAuthMiddleware(secret)
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}
	return m
}

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := mustAuthMiddleware(t, "test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != "user-42" {
			t.Fatalf("user id from context = %s, want user-42", id)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+m.IssueToken("user-42"))

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutToken(t *testing.T) {
	m := mustAuthMiddleware(t, "test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_WithTamperedToken(t *testing.T) {
	m := mustAuthMiddleware(t, "test-secret")
	other := mustAuthMiddleware(t, "other-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+other.IssueToken("user-42"))

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	m := mustAuthMiddleware(t, "test-secret")

	token := m.IssueToken("c2a7e3f0-9f7a-4a3e-8f5d-1a2b3c4d5e6f")
	id, ok := m.ParseToken(token)
	if !ok {
		t.Fatalf("ParseToken rejected a freshly issued token")
	}
	if id != "c2a7e3f0-9f7a-4a3e-8f5d-1a2b3c4d5e6f" {
		t.Fatalf("ParseToken = %s", id)
	}

	for _, bad := range []string{"", "no-signature", "user.", ".abcdef", token + "ff"} {
		if _, ok := m.ParseToken(bad); ok {
			t.Fatalf("ParseToken accepted malformed token %q", bad)
		}
	}
}

func TestNewAuthMiddleware_EmptySecretGetsRandomKey(t *testing.T) {
	a := mustAuthMiddleware(t, "")
	b := mustAuthMiddleware(t, "")

	token := a.IssueToken("user-42")
	if _, ok := a.ParseToken(token); !ok {
		t.Fatalf("middleware rejected its own token")
	}
	if _, ok := b.ParseToken(token); ok {
		t.Fatalf("a token signed with one generated key must not verify under another")
	}
}
