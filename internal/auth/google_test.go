package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func fakeGoogle(t *testing.T, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sub":            "1234",
			"email":          "alice@example.com",
			"email_verified": verified,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider("client", "secret", "http://localhost/auth/google/callback").
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, srv.URL+"/userinfo")
}

func TestGoogleAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client", "secret", "http://localhost/cb")
	u, err := url.Parse(p.AuthCodeURL("state-value"))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-value" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("client_id") != "client" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if !strings.Contains(q.Get("scope"), "email") {
		t.Errorf("scope = %q, want email", q.Get("scope"))
	}
}

func TestGoogleIdentify(t *testing.T) {
	p := newTestProvider(fakeGoogle(t, true))

	id, err := p.Identify(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id.Email != "alice@example.com" || id.Subject != "1234" {
		t.Errorf("identity = %+v", id)
	}
}

func TestGoogleIdentifyBadCode(t *testing.T) {
	p := newTestProvider(fakeGoogle(t, true))

	if _, err := p.Identify(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error for rejected code")
	}
}

func TestGoogleIdentifyUnverified(t *testing.T) {
	p := newTestProvider(fakeGoogle(t, false))

	if _, err := p.Identify(context.Background(), "good-code"); !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("err = %v, want ErrEmailNotVerified", err)
	}
}
