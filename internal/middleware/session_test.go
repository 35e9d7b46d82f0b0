package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/inkbook/internal/model"
)

type mockUserResolver struct {
	currentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockUserResolver) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, sessionID)
	}
	return nil, model.NewAuthenticationError("セッションが存在しないか期限切れです", nil)
}

func TestSessionMiddleware_ValidSession_InjectsUser(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "valid-session" {
				t.Errorf("session ID = %q, want %q", sessionID, "valid-session")
			}
			return &model.User{ID: 7, Name: "Hana", Email: "hana@example.com"}, nil
		},
	}

	var gotUserID int
	handler := NewSessionMiddleware(resolver, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Fatalf("UserIDFromContext() error = %v", err)
		}
		gotUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != 7 {
		t.Errorf("user ID = %d, want 7", gotUserID)
	}
}

func TestSessionMiddleware_MissingCookie_Returns401(t *testing.T) {
	handler := NewSessionMiddleware(&mockUserResolver{}, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestSessionMiddleware_InvalidSession_Returns401(t *testing.T) {
	handler := NewSessionMiddleware(&mockUserResolver{}, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale-session"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_RedirectMode_RedirectsToLogin(t *testing.T) {
	handler := NewSessionMiddleware(&mockUserResolver{}, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestUserFromContext_WithoutUser_ReturnsError(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Fatal("expected error for context without user")
	}
}
