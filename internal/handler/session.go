package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/resolver"
	"github.com/dukerupert/kinkeeper/internal/store"
)

// SessionHandler runs the household resolver for the current request.
type SessionHandler struct {
	profileStore *store.ProfileStore
	cache        *resolver.HouseholdCache
	logger       *slog.Logger
}

func NewSessionHandler(ps *store.ProfileStore, cache *resolver.HouseholdCache, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{profileStore: ps, cache: cache, logger: logger}
}

func (h *SessionHandler) resolve(r *http.Request, navigate func(string)) *resolver.Machine {
	m := resolver.NewMachine(navigate, h.logger)
	m.Begin()

	ac, ok := auth.FromContext(r.Context())
	if !ok {
		m.SignedOut()
		return m
	}

	m.SignedIn(r.Context(), ac.UserID, h.profileStore)
	switch m.Resolved() {
	case resolver.HasHousehold:
		h.cache.Set(ac.UserID, *m.Profile().HouseholdID)
	default:
		h.cache.Clear(ac.UserID)
	}
	return m
}

// Root redirects to wherever the session belongs.
func (h *SessionHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.resolve(r, func(route string) {
		http.Redirect(w, r, route, http.StatusSeeOther)
	})
}

// Session reports the resolver's decision without redirecting.
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	m := h.resolve(r, nil)

	resp := map[string]any{
		"state": m.Resolved().String(),
		"route": m.Route(),
	}
	if ac, ok := auth.FromContext(r.Context()); ok {
		resp["user_id"] = ac.UserID
		resp["email"] = ac.Email
	}
	if p := m.Profile(); p.HasHousehold() {
		resp["household_id"] = *p.HouseholdID
	}
	writeJSON(w, http.StatusOK, resp)
}
