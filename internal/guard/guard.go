// Package guard decides, for a navigation attempt, whether the requested
// view may render or where the client must be redirected instead.
package guard

import (
	"github.com/thusconnect/apiserver/internal/session"
	"github.com/thusconnect/apiserver/types"
)

// Phase is the authentication phase of a session.
type Phase int

const (
	// Initializing: session restoration from durable storage is still
	// in progress.
	Initializing Phase = iota
	// Unauthenticated: restoration finished and no identity is active.
	Unauthenticated
	// Authenticated: an identity with a valid role is active.
	Authenticated
)

// State is the guard's view of a session.
type State struct {
	Phase Phase
	Role  types.Role
}

// StateOf derives the guard state from a session snapshot.
func StateOf(s session.Session) State {
	switch {
	case s.Loading:
		return State{Phase: Initializing}
	case !s.Authenticated():
		return State{Phase: Unauthenticated}
	default:
		return State{Phase: Authenticated, Role: s.Role()}
	}
}

// Action is what the caller must do with the navigation attempt.
type Action int

const (
	// Render: the requested view may render.
	Render Action = iota
	// ShowLoading: show a neutral loading indicator, do not redirect.
	ShowLoading
	// Redirect: navigate to Target instead, replacing history.
	Redirect
)

// Decision is the outcome of guarding one navigation attempt.
type Decision struct {
	Action Action
	// Target is the redirect destination when Action is Redirect.
	Target string
	// Replace indicates the redirect replaces the history entry rather
	// than pushing a new one.
	Replace bool
}

// LoginPath is where unauthenticated navigation lands.
const LoginPath = "/login"

// HomePath maps a role to its home view. The mapping is exhaustive over
// the closed role set.
func HomePath(role types.Role) string {
	switch role {
	case types.RoleDriver:
		return "/driver"
	case types.RoleTechnician:
		return "/technician"
	case types.RoleAdmin:
		return "/admin"
	default:
		// Unreachable for parsed roles. Sending an unrecognized role to
		// login beats rendering nothing.
		return LoginPath
	}
}

// Decide applies the guard table. required is the role a route demands;
// the zero value marks a public route.
func Decide(required types.Role, state State) Decision {
	switch state.Phase {
	case Initializing:
		return Decision{Action: ShowLoading}
	case Unauthenticated:
		return Decision{Action: Redirect, Target: LoginPath, Replace: true}
	case Authenticated:
		if required == "" || required == state.Role {
			return Decision{Action: Render}
		}
		return Decision{Action: Redirect, Target: HomePath(state.Role), Replace: true}
	default:
		return Decision{Action: Redirect, Target: LoginPath, Replace: true}
	}
}
