package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testManager() *JWTManager {
	return NewJWTManager(DefaultJWTConfig("test-secret"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := testManager()

	token, err := m.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user id = %q", claims.UserID)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	m := testManager()

	token, err := m.GenerateTokenWithExpiry("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateTokenWithExpiry: %v", err)
	}

	if _, err := m.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := testManager().GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	other := NewJWTManager(DefaultJWTConfig("different-secret"))
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected validation to fail with a different secret")
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	m := testManager()

	expired, err := m.GenerateTokenWithExpiry("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateTokenWithExpiry: %v", err)
	}

	refreshed, err := m.RefreshToken(expired)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	claims, err := m.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user id = %q", claims.UserID)
	}
}

func TestRequireUser_SetsContext(t *testing.T) {
	m := testManager()
	mw := NewMiddleware(m, "")

	token, err := m.GenerateToken("user-7")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var gotUser string
	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotUser != "user-7" {
		t.Errorf("user = %q", gotUser)
	}
}

func TestRequireUser_RejectsMissingAndBadTokens(t *testing.T) {
	mw := NewMiddleware(testManager(), "")
	handler := mw.RequireUser(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	mw := NewMiddleware(testManager(), "admin-key")
	called := false
	handler := mw.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(AdminAPIKeyHeader, "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || called {
		t.Errorf("wrong key: status = %d, called = %v", rec.Code, called)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(AdminAPIKeyHeader, "admin-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !called {
		t.Errorf("right key: status = %d, called = %v", rec.Code, called)
	}
}
