// Package guard decides, for every guarded navigation target, whether it
// renders, redirects to login, or redirects to a role-appropriate page. The
// decision is a small state machine with a pure transition function so each
// branch is independently testable.
package guard

import (
	"github.com/sentriview/go-session-core/rbac"
	"github.com/sentriview/go-session-core/session"
)

// State of a guarded navigation attempt.
type State int

const (
	// StateLoading holds while the session is being resolved from storage;
	// nothing renders and nothing redirects yet.
	StateLoading State = iota
	// StateUnauthenticated ends the attempt with a redirect to login,
	// preserving the originally requested path.
	StateUnauthenticated
	// StateUnauthorized ends the attempt with a redirect to the role's
	// landing page — the user has a valid identity, just not this permission.
	StateUnauthorized
	// StateAuthorized renders the target.
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateUnauthorized:
		return "unauthorized"
	case StateAuthorized:
		return "authorized"
	}
	return "unknown"
}

// RouteConfig is the declarative per-route contract supplied by the routing
// layer. It carries no mutable state.
type RouteConfig struct {
	AllowedRoles []rbac.Role // Roles permitted on the route; empty means any authenticated role
	RequireAuth  bool        // Whether the route requires a session at all
}

// Verdict is the outcome of evaluating a session against a route.
type Verdict struct {
	State            State
	RedirectTo       string // Target path for the two redirect states
	PreserveReturn   bool   // Carry the originally requested path so login can return there
	ClearCredentials bool   // Wipe the store before redirecting (corrupted session)
}

// Evaluate is the pure transition out of Loading once the session has been
// resolved. Order matters: corruption is checked before anything else so a
// partial identity can never slip through as either logged-in or
// harmlessly-anonymous.
func Evaluate(sess session.Session, cfg RouteConfig) Verdict {
	if sess.Corrupted() {
		return Verdict{
			State:            StateUnauthenticated,
			RedirectTo:       rbac.PathLogin,
			PreserveReturn:   true,
			ClearCredentials: true,
		}
	}

	if !cfg.RequireAuth {
		return Verdict{State: StateAuthorized}
	}

	if !sess.IsAuthenticated {
		return Verdict{
			State:          StateUnauthenticated,
			RedirectTo:     rbac.PathLogin,
			PreserveReturn: true,
		}
	}

	if len(cfg.AllowedRoles) == 0 || roleAllowed(sess.Role(), cfg.AllowedRoles) {
		return Verdict{State: StateAuthorized}
	}

	return Verdict{
		State:      StateUnauthorized,
		RedirectTo: rbac.LandingPath(sess.Role()),
	}
}

func roleAllowed(role rbac.Role, allowed []rbac.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
