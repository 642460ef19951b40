package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thusconnect/apiserver/internal/auth"
	"github.com/thusconnect/apiserver/types"
)

type contextKey string

const (
	contextClaimsKey   contextKey = "claims"
	contextIdentityKey contextKey = "identity"
)

// ErrorResponse is the JSON envelope for handler failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

func claimsFromContext(ctx context.Context) (auth.Claims, error) {
	claims, ok := ctx.Value(contextClaimsKey).(auth.Claims)
	if !ok {
		return auth.Claims{}, errors.New("missing claims")
	}
	return claims, nil
}

func identityFromContext(ctx context.Context) (types.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	if !ok {
		return types.Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound renders the catch-all not-found view.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"view": "not-found"})
}
