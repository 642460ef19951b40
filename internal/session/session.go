// Package session holds the authentication state of one client and
// persists it to durable key-value storage so it survives restarts.
//
// The persisted layout is exactly two entries per session: a serialized
// identity record and the bare role string. Both must be present and
// consistent for restoration to produce a session; anything else is
// silently treated as "no session".
package session

import (
	"github.com/thusconnect/apiserver/types"
)

// Session is the authentication state of one client. At most one
// identity is active; if Identity is non-nil its Role is valid and
// matches the persisted role entry.
type Session struct {
	Identity *types.Identity
	// Loading is true while restoration from durable storage or an auth
	// operation is in progress.
	Loading bool
}

// Authenticated reports whether an identity is active.
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// Role returns the active identity's role, or "" when unauthenticated.
func (s Session) Role() types.Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}
