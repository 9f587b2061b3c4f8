package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/resolver"
	"github.com/dukerupert/kinkeeper/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "kinkeeper_session"

// RequireAuth validates the session cookie and populates AuthContext with the
// user's identity. API requests get a 401; page requests are sent to /login.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authenticate(r, sessionStore, userStore)
			if !ok {
				deny(w, r, http.StatusUnauthorized, "not signed in", resolver.RouteLogin)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// LoadAuth populates AuthContext when the session is valid and passes the
// request through either way.
func LoadAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac, ok := authenticate(r, sessionStore, userStore); ok {
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, sessionStore *store.SessionStore, userStore *store.UserStore) (auth.AuthContext, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.AuthContext{}, false
	}

	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}

	user, err := userStore.GetByID(sess.UserID)
	if err != nil || user == nil {
		return auth.AuthContext{}, false
	}

	return auth.AuthContext{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: sess.ID,
	}, true
}

// RequireHousehold runs after RequireAuth. The cache only says which
// household to check; membership is always confirmed in the database.
func RequireHousehold(householdStore *store.HouseholdStore, profiles resolver.ProfileSource, cache *resolver.HouseholdCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.FromContext(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized, "not signed in", resolver.RouteLogin)
				return
			}

			householdID, found, err := cache.GetOrRefresh(ac.UserID, profiles)
			if err != nil {
				deny(w, r, http.StatusInternalServerError, "failed to resolve household", resolver.RouteLogin)
				return
			}
			if !found {
				deny(w, r, http.StatusForbidden, "no household", resolver.RouteHousehold)
				return
			}

			member, err := householdStore.GetMember(householdID, ac.UserID)
			if err != nil {
				deny(w, r, http.StatusInternalServerError, "failed to check membership", resolver.RouteLogin)
				return
			}
			if member == nil {
				cache.Clear(ac.UserID)
				deny(w, r, http.StatusForbidden, "no household", resolver.RouteHousehold)
				return
			}

			ac.HouseholdID = householdID
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsAPIRequest reports whether the caller expects JSON rather than a redirect.
func IsAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func deny(w http.ResponseWriter, r *http.Request, status int, msg, route string) {
	if IsAPIRequest(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": msg, "route": route})
		return
	}
	http.Redirect(w, r, route, http.StatusSeeOther)
}
