package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := CallerClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestBearerAuthValidToken(t *testing.T) {
	var gotSubject, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CallerFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in context")
		}
		gotSubject = claims.Subject
		gotRole = claims.Role
		w.WriteHeader(http.StatusOK)
	})

	handler := BearerAuth("secret")(next)
	req := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "patient-123", "patient"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotSubject != "patient-123" || gotRole != "patient" {
		t.Fatalf("unexpected claims: %s / %s", gotSubject, gotRole)
	}
}

func TestBearerAuthRejectsMissingHeader(t *testing.T) {
	handler := BearerAuth("secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuthRejectsWrongSecret(t *testing.T) {
	handler := BearerAuth("secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "patient-123", "patient"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuthDisabled(t *testing.T) {
	handler := BearerAuth("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be reached")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/triage/message", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when auth disabled, got %d", rec.Code)
	}
}
