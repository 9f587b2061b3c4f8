// Package resolver decides where a session lands: login, household
// selection or the dashboard.
package resolver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/kinkeeper/internal/model"
)

type State int

const (
	Unauthenticated State = iota
	AuthPending
	ProfileLookupPending
	NoHousehold
	HasHousehold
	Routed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthPending:
		return "auth_pending"
	case ProfileLookupPending:
		return "profile_lookup_pending"
	case NoHousehold:
		return "no_household"
	case HasHousehold:
		return "has_household"
	case Routed:
		return "routed"
	}
	return "unknown"
}

const (
	RouteLogin     = "/login"
	RouteHousehold = "/household"
	RouteDashboard = "/dashboard"
)

// Decide is the terminal route for a completed resolution.
func Decide(authenticated, hasProfile, hasHouseholdRef bool) string {
	switch {
	case !authenticated:
		return RouteLogin
	case !hasProfile, !hasHouseholdRef:
		return RouteHousehold
	default:
		return RouteDashboard
	}
}

// ProfileSource looks up a user's profile. A nil profile with a nil error
// means none has been provisioned.
type ProfileSource interface {
	Get(userID int64) (*model.UserProfile, error)
}

// Machine walks one session through resolution. navigate is called exactly
// once per completed resolution and never while a lookup is pending.
type Machine struct {
	mu       sync.Mutex
	state    State
	resolved State
	route    string
	profile  *model.UserProfile
	navigate func(route string)
	logger   *slog.Logger
}

func NewMachine(navigate func(route string), logger *slog.Logger) *Machine {
	if navigate == nil {
		navigate = func(string) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{state: Unauthenticated, navigate: navigate, logger: logger}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Route returns the route taken, or "" while unresolved.
func (m *Machine) Route() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.route
}

// Resolved returns the state the last completed resolution decided on:
// Unauthenticated, NoHousehold or HasHousehold.
func (m *Machine) Resolved() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved
}

// Profile returns the profile found by the last lookup, if any.
func (m *Machine) Profile() *model.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Begin starts a resolution. It may be called again after Routed to
// re-resolve; a resolution already in flight is left alone.
func (m *Machine) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == AuthPending || m.state == ProfileLookupPending {
		return
	}
	m.state = AuthPending
	m.resolved = Unauthenticated
	m.route = ""
	m.profile = nil
}

// SignedOut resolves authentication to no identity.
func (m *Machine) SignedOut() string {
	m.mu.Lock()
	if m.state != AuthPending {
		route := m.route
		m.mu.Unlock()
		return route
	}
	m.mu.Unlock()
	return m.finish(Unauthenticated, RouteLogin)
}

// SignedIn resolves authentication to userID and looks up the profile.
// A lookup error routes to login.
func (m *Machine) SignedIn(ctx context.Context, userID int64, profiles ProfileSource) string {
	m.mu.Lock()
	if m.state != AuthPending {
		route := m.route
		m.mu.Unlock()
		return route
	}
	m.state = ProfileLookupPending
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		m.logger.Warn("profile lookup abandoned", "user_id", userID, "error", err)
		return m.finish(Unauthenticated, RouteLogin)
	}

	profile, err := profiles.Get(userID)
	if err != nil {
		m.logger.Error("profile lookup failed", "user_id", userID, "error", err)
		return m.finish(Unauthenticated, RouteLogin)
	}

	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()

	route := Decide(true, profile != nil, profile.HasHousehold())
	if route == RouteDashboard {
		return m.finish(HasHousehold, route)
	}
	return m.finish(NoHousehold, route)
}

// finish records the decided state, then navigates once.
func (m *Machine) finish(decided State, route string) string {
	m.mu.Lock()
	m.resolved = decided
	m.route = route
	m.state = Routed
	m.mu.Unlock()

	m.navigate(route)
	return route
}
