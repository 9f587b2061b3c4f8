package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/database"
	"github.com/dukerupert/kinkeeper/internal/model"
	"github.com/dukerupert/kinkeeper/internal/resolver"
	"github.com/dukerupert/kinkeeper/internal/store"
)

type authTestEnv struct {
	sessions   *store.SessionStore
	users      *store.UserStore
	households *store.HouseholdStore
	profiles   *store.ProfileStore
	cache      *resolver.HouseholdCache
}

func setupAuthMiddlewareDB(t *testing.T) *authTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &authTestEnv{
		sessions:   store.NewSessionStore(db, 0),
		users:      store.NewUserStore(db),
		households: store.NewHouseholdStore(db),
		profiles:   store.NewProfileStore(db),
		cache:      resolver.NewHouseholdCache(),
	}
}

func (e *authTestEnv) signIn(t *testing.T, email string) (*model.User, *model.Session) {
	t.Helper()
	u, err := e.users.Create(email, "hash", model.AuthMethodPassword)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := e.sessions.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return u, sess
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthNoCookie(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	handler := RequireAuth(env.sessions, env.users)(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestRequireAuthAPIReturns401(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	handler := RequireAuth(env.sessions, env.users)(unreachable(t))

	req := httptest.NewRequest("GET", "/api/expenses", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["route"] != "/login" {
		t.Errorf("route = %q, want /login", body["route"])
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	u, sess := env.signIn(t, "alice@example.com")

	var gotAC auth.AuthContext
	handler := RequireAuth(env.sessions, env.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", gotAC.UserID, u.ID)
	}
	if gotAC.Email != "alice@example.com" {
		t.Errorf("Email = %q", gotAC.Email)
	}
	if gotAC.HouseholdID != 0 {
		t.Errorf("HouseholdID = %d, want 0 before household check", gotAC.HouseholdID)
	}
}

func householdChain(env *authTestEnv, next http.Handler) http.Handler {
	return RequireAuth(env.sessions, env.users)(RequireHousehold(env.households, env.profiles, env.cache)(next))
}

func TestRequireHouseholdNoHousehold(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	_, sess := env.signIn(t, "alice@example.com")
	handler := householdChain(env, unreachable(t))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/household" {
		t.Errorf("Location = %q, want /household", loc)
	}
}

func TestRequireHouseholdMember(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	u, sess := env.signIn(t, "alice@example.com")
	h, err := env.households.Create("Sharma House", "pinhash", u)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	var got int64
	handler := householdChain(env, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.HouseholdID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/expenses", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got != h.ID {
		t.Errorf("HouseholdID = %d, want %d", got, h.ID)
	}
	if id, ok := env.cache.Get(u.ID); !ok || id != h.ID {
		t.Errorf("cache = (%d, %v), want (%d, true)", id, ok, h.ID)
	}
}

func TestRequireHouseholdStaleCacheRechecked(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	u, sess := env.signIn(t, "alice@example.com")
	h, err := env.households.Create("Sharma House", "pinhash", u)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	env.cache.Set(u.ID, h.ID)
	if err := env.households.Leave(h.ID, u.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	handler := householdChain(env, unreachable(t))

	req := httptest.NewRequest("GET", "/api/expenses", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if _, ok := env.cache.Get(u.ID); ok {
		t.Error("stale cache entry should be cleared")
	}
}

func TestIsAPIRequest(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/api/milk", "", true},
		{"/ws", "", true},
		{"/", "", false},
		{"/", "application/json", true},
		{"/dashboard", "text/html", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		if tt.accept != "" {
			req.Header.Set("Accept", tt.accept)
		}
		if got := IsAPIRequest(req); got != tt.want {
			t.Errorf("IsAPIRequest(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}

func TestLoadAuthPassesThrough(t *testing.T) {
	env := setupAuthMiddlewareDB(t)
	u, sess := env.signIn(t, "alice@example.com")

	var got []int64
	handler := LoadAuth(env.sessions, env.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, auth.UserID(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(got) != 2 || got[0] != 0 || got[1] != u.ID {
		t.Errorf("user ids = %v, want [0 %d]", got, u.ID)
	}
}
