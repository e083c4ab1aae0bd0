package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareMintsAnonID(t *testing.T) {
	var seen string
	handler := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/games/x", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !isValidAnonID(seen) {
		t.Errorf("expected a minted anon id in context, got %q", seen)
	}

	cookies := rr.Result().Cookies()
	var found *http.Cookie
	for _, c := range cookies {
		if c.Name == AnonCookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("expected the anon cookie to be set")
	}
	if found.Value != seen {
		t.Errorf("cookie %q does not match context id %q", found.Value, seen)
	}
	if !found.HttpOnly {
		t.Error("anon cookie must be HttpOnly")
	}
	if found.Secure {
		t.Error("dev mode must not set Secure")
	}
}

func TestMiddlewareKeepsExistingID(t *testing.T) {
	const existing = "anon_0123456789abcdef0123456789abcdef"

	var seen string
	handler := Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: existing})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != existing {
		t.Errorf("expected existing id %q to be kept, got %q", existing, seen)
	}
}

func TestMiddlewareReplacesForgedID(t *testing.T) {
	var seen string
	handler := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin'; DROP TABLE games;--"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !isValidAnonID(seen) {
		t.Errorf("forged cookie must be replaced with a fresh id, got %q", seen)
	}
}

func TestGenerateAnonIDUnique(t *testing.T) {
	a, err := generateAnonID()
	if err != nil {
		t.Fatalf("generateAnonID failed: %v", err)
	}
	b, err := generateAnonID()
	if err != nil {
		t.Fatalf("generateAnonID failed: %v", err)
	}
	if a == b {
		t.Error("expected distinct ids")
	}
	if !isValidAnonID(a) {
		t.Errorf("generated id %q does not match its own pattern", a)
	}
}

func TestUserIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := UserIDFromContext(req.Context()); got != "" {
		t.Errorf("expected empty id without middleware, got %q", got)
	}
}
