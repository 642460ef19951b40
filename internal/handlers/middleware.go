package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/thusconnect/apiserver/internal/auth"
	"github.com/thusconnect/apiserver/internal/guard"
	"github.com/thusconnect/apiserver/internal/session"
	"github.com/thusconnect/apiserver/types"
)

// Guard builds role-guard middleware over the session manager. One Guard
// instance backs every guarded subtree of the route table.
type Guard struct {
	sessions *session.Manager
	secret   []byte
}

// NewGuard constructs a Guard validating tokens with the given secret.
func NewGuard(sessions *session.Manager, secret []byte) *Guard {
	return &Guard{sessions: sessions, secret: secret}
}

// Require returns middleware enforcing the guard table for routes that
// demand the given role. The zero role marks a public-but-authenticated
// route.
//
// Decision mapping onto HTTP: a render passes through with claims and
// identity on the context; the loading state answers 503 with a
// Retry-After so clients poll instead of redirecting; a redirect answers
// 307 with the computed target (the closest analogue of a
// replace-navigation).
func (g *Guard) Require(required types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, claims, identity := g.resolve(r)

			switch decision := guard.Decide(required, state); decision.Action {
			case guard.Render:
				ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
				ctx = context.WithValue(ctx, contextIdentityKey, identity)
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.ShowLoading:
				w.Header().Set("Retry-After", strconv.Itoa(1))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
			case guard.Redirect:
				http.Redirect(w, r, decision.Target, http.StatusTemporaryRedirect)
			}
		})
	}
}

// resolve derives the guard state for a request: no or invalid token is
// unauthenticated; a valid token resolves the session, restoring it from
// durable storage on first touch.
func (g *Guard) resolve(r *http.Request) (guard.State, auth.Claims, types.Identity) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return guard.State{Phase: guard.Unauthenticated}, auth.Claims{}, types.Identity{}
	}

	claims, err := auth.ParseToken(tokenString, g.secret)
	if err != nil {
		return guard.State{Phase: guard.Unauthenticated}, auth.Claims{}, types.Identity{}
	}

	st := g.sessions.Store(claims.SessionID)
	if st.Current().Loading {
		// Storage failures restore to "no session"; the client just has
		// to log in again.
		_ = st.Restore(r.Context())
	}

	current := st.Current()
	if current.Identity != nil && current.Identity.ID != claims.Subject {
		// Token and persisted session disagree; trust neither.
		return guard.State{Phase: guard.Unauthenticated}, auth.Claims{}, types.Identity{}
	}

	state := guard.StateOf(current)
	if state.Phase != guard.Authenticated {
		return state, auth.Claims{}, types.Identity{}
	}
	return state, claims, *current.Identity
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
