package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilControlAuthAllowsAll(t *testing.T) {
	var a *ControlAuth
	if a.Enabled() {
		t.Error("Nil auth should be disabled")
	}
	if !a.Authorized(httptest.NewRequest("POST", "/", nil)) {
		t.Error("Nil auth should authorize")
	}
	if NewControlAuth("") != nil {
		t.Error("Empty token should disable auth")
	}
}

func TestControlAuthHeaders(t *testing.T) {
	a := NewControlAuth("abc")

	req := httptest.NewRequest("POST", "/", nil)
	if a.Authorized(req) {
		t.Error("Request without token should be refused")
	}

	req.Header.Set(ControlTokenHeader, "abc")
	if !a.Authorized(req) {
		t.Error("Header token should authorize")
	}

	req = httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if a.Authorized(req) {
		t.Error("Wrong bearer token should be refused")
	}
}

func TestControlAuthCookie(t *testing.T) {
	a := NewControlAuth("abc")
	now := time.Unix(1_700_000_000, 0)
	a.now = func() time.Time { return now }

	value := a.encodeCookie(now.Add(time.Hour))
	req := httptest.NewRequest("POST", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: value})
	if !a.Authorized(req) {
		t.Error("Valid cookie should authorize")
	}

	now = now.Add(2 * time.Hour)
	if a.Authorized(req) {
		t.Error("Expired cookie should be refused")
	}

	if _, err := a.decodeCookie(value + "x"); err == nil {
		t.Error("Tampered cookie should be refused")
	}
}

func TestAuthSessionFlow(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Auth = NewControlAuth("abc")
	})

	resp := ts.post(t, "/api/auth/session", `{"token":"nope"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}

	resp = ts.post(t, "/api/auth/session", `{"token":"abc"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected session cookie")
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/mode", strings.NewReader(`{"mode":"focus"}`))
	req.AddCookie(cookie)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with session cookie, got %d", authed.StatusCode)
	}
}
