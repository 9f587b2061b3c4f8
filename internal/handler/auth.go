package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/middleware"
	"github.com/dukerupert/kinkeeper/internal/model"
	"github.com/dukerupert/kinkeeper/internal/resolver"
	"github.com/dukerupert/kinkeeper/internal/store"
)

const oauthNonceCookie = "kinkeeper_oauth_nonce"

var errInvalidCredentials = errors.New("invalid email or password")

type AuthHandler struct {
	userStore    *store.UserStore
	profileStore *store.ProfileStore
	sessionStore *store.SessionStore
	cache        *resolver.HouseholdCache
	google       *auth.GoogleProvider
	stateSigner  *auth.StateSigner
	secure       bool
	logger       *slog.Logger
}

// NewAuthHandler wires password sign-in. google may be nil when single
// sign-on is not configured.
func NewAuthHandler(
	us *store.UserStore,
	ps *store.ProfileStore,
	ss *store.SessionStore,
	cache *resolver.HouseholdCache,
	google *auth.GoogleProvider,
	stateSigner *auth.StateSigner,
	baseURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		profileStore: ps,
		sessionStore: ss,
		cache:        cache,
		google:       google,
		stateSigner:  stateSigner,
		secure:       strings.HasPrefix(baseURL, "https://"),
		logger:       logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPage stands in for the client-rendered sign-in screen.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"route":          resolver.RouteLogin,
		"google_enabled": h.google != nil,
		"error":          r.URL.Query().Get("error"),
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, auth.ErrPasswordTooShort.Error())
		return
	}

	existing, err := h.userStore.GetByEmail(email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if existing != nil {
		h.respond(w, r, resolver.AccountConflict{Email: email, ExistingMethods: []string{existing.AuthMethod}}, false)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	user, err := h.userStore.Create(email, hash, model.AuthMethodPassword)
	if errors.Is(err, store.ErrEmailTaken) {
		h.respond(w, r, resolver.AccountConflict{Email: email, ExistingMethods: []string{model.AuthMethodPassword}}, false)
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.respond(w, r, h.provision(user), false)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, h.passwordSignIn(req.Email, req.Password), false)
}

func (h *AuthHandler) passwordSignIn(emailAddr, password string) resolver.SignInOutcome {
	email, err := auth.NormalizeEmail(emailAddr)
	if err != nil {
		return resolver.OtherFailure{Err: errInvalidCredentials}
	}

	user, err := h.userStore.GetByEmail(email)
	if err != nil {
		return resolver.OtherFailure{Err: err}
	}
	if user == nil {
		return resolver.OtherFailure{Err: errInvalidCredentials}
	}
	if user.AuthMethod != model.AuthMethodPassword {
		return resolver.AccountConflict{Email: email, ExistingMethods: []string{user.AuthMethod}}
	}

	hash, err := h.userStore.GetPasswordHash(user.ID)
	if err != nil {
		return resolver.OtherFailure{Err: err}
	}
	if !auth.CheckPassword(hash, password) {
		return resolver.OtherFailure{Err: errInvalidCredentials}
	}
	return resolver.Success{User: user}
}

// GoogleStart sends the browser to Google with a signed state.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}

	state, nonce, err := h.stateSigner.Issue()
	if err != nil {
		h.logger.Error("issue oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start sign-in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthNonceCookie,
		Value:    nonce,
		Path:     "/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusSeeOther)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthNonceCookie, Path: "/auth/google", MaxAge: -1, HttpOnly: true})
	h.respond(w, r, h.googleSignIn(r), true)
}

func (h *AuthHandler) googleSignIn(r *http.Request) resolver.SignInOutcome {
	q := r.URL.Query()
	switch q.Get("error") {
	case "":
	case "access_denied", "popup_blocked", "popup_closed_by_user":
		return resolver.PopupBlocked{}
	default:
		return resolver.OtherFailure{Err: errors.New("provider error: " + q.Get("error"))}
	}

	nonce := ""
	if c, err := r.Cookie(oauthNonceCookie); err == nil {
		nonce = c.Value
	}
	if err := h.stateSigner.Verify(q.Get("state"), nonce); err != nil {
		return resolver.OtherFailure{Err: err}
	}

	id, err := h.google.Identify(r.Context(), q.Get("code"))
	if err != nil {
		return resolver.OtherFailure{Err: err}
	}
	email, err := auth.NormalizeEmail(id.Email)
	if err != nil {
		return resolver.OtherFailure{Err: err}
	}

	user, err := h.userStore.GetByEmail(email)
	if err != nil {
		return resolver.OtherFailure{Err: err}
	}
	if user != nil {
		if user.AuthMethod != model.AuthMethodGoogle {
			return resolver.AccountConflict{Email: email, ExistingMethods: []string{user.AuthMethod}}
		}
		return resolver.Success{User: user}
	}

	user, err = h.userStore.Create(email, "", model.AuthMethodGoogle)
	if err != nil {
		return resolver.OtherFailure{Err: err}
	}
	return h.provision(user)
}

// provision creates the profile for a brand-new user.
func (h *AuthHandler) provision(user *model.User) resolver.SignInOutcome {
	if _, err := h.profileStore.Ensure(user.ID, user.Email); err != nil {
		return resolver.OtherFailure{Err: err}
	}
	return resolver.Success{User: user, Created: true}
}

// respond turns a sign-in outcome into a session or an error. Browser
// flows are redirected; API calls get JSON.
func (h *AuthHandler) respond(w http.ResponseWriter, r *http.Request, outcome resolver.SignInOutcome, browser bool) {
	switch o := outcome.(type) {
	case resolver.Success:
		sess, err := h.sessionStore.Create(o.User.ID)
		if err != nil {
			h.logger.Error("create session", "user_id", o.User.ID, "error", err)
			h.fail(w, r, browser, http.StatusInternalServerError, "sign_in_failed", "failed to sign in")
			return
		}
		h.setSessionCookie(w, sess)
		h.cache.Clear(o.User.ID)

		m := resolver.NewMachine(nil, h.logger)
		m.Begin()
		route := m.SignedIn(r.Context(), o.User.ID, h.profileStore)
		if m.Resolved() == resolver.HasHousehold {
			h.cache.Set(o.User.ID, *m.Profile().HouseholdID)
		}

		h.logger.Info("signed in", "user_id", o.User.ID, "method", o.User.AuthMethod, "created", o.Created)
		if browser {
			http.Redirect(w, r, route, http.StatusSeeOther)
			return
		}
		status := http.StatusOK
		if o.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{"user": o.User, "route": route})

	case resolver.AccountConflict:
		h.logger.Warn("sign-in conflict", "email", o.Email, "methods", o.ExistingMethods)
		if browser {
			v := url.Values{"error": {"account_conflict"}, "methods": {strings.Join(o.ExistingMethods, ",")}}
			http.Redirect(w, r, resolver.RouteLogin+"?"+v.Encode(), http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            "an account with this email already exists",
			"existing_methods": o.ExistingMethods,
		})

	case resolver.PopupBlocked:
		h.fail(w, r, browser, http.StatusBadRequest, "popup_blocked", "sign-in was cancelled before it finished")

	case resolver.OtherFailure:
		if errors.Is(o.Err, errInvalidCredentials) {
			h.fail(w, r, browser, http.StatusUnauthorized, "invalid_credentials", errInvalidCredentials.Error())
			return
		}
		h.logger.Error("sign-in failed", "error", o.Err)
		h.fail(w, r, browser, http.StatusUnauthorized, "sign_in_failed", "sign-in failed")

	default:
		h.logger.Error("unhandled sign-in outcome", "outcome", outcome)
		h.fail(w, r, browser, http.StatusInternalServerError, "sign_in_failed", "sign-in failed")
	}
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, browser bool, status int, code, msg string) {
	if browser {
		http.Redirect(w, r, resolver.RouteLogin+"?error="+code, http.StatusSeeOther)
		return
	}
	writeError(w, status, msg)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
		h.cache.Clear(ac.UserID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]string{"route": resolver.RouteLogin})
}
