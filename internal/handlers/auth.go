package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thusconnect/apiserver/internal/auth"
	"github.com/thusconnect/apiserver/internal/guard"
	"github.com/thusconnect/apiserver/types"
)

// AuthHandler exposes login, registration, and logout over HTTP.
type AuthHandler struct {
	service *auth.Service
}

// NewAuthHandler constructs an AuthHandler with the provided service.
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// AuthRouter registers auth routes on the given router. Login and
// register are public; logout and me require an authenticated session of
// any role.
func AuthRouter(r chi.Router, service *auth.Service, authGuard *Guard) {
	handler := NewAuthHandler(service)

	r.Post("/login", handler.Login)
	r.Post("/register", handler.Register)
	r.With(authGuard.Require("")).Post("/logout", handler.Logout)
	r.With(authGuard.Require("")).Get("/me", handler.Me)
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register: the session token, the
// active identity, and the role's home view to navigate to.
type AuthResponse struct {
	Token    string         `json:"token"`
	Identity types.Identity `json:"identity"`
	Redirect string         `json:"redirect"`
}

// Login authenticates a phone number within a role partition and opens a
// fresh session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	role, err := types.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	sid := uuid.NewString()
	result, err := h.service.Login(r.Context(), sid, strings.TrimSpace(req.Phone), req.Password, role)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Token:    result.Token,
		Identity: result.Identity,
		Redirect: guard.HomePath(result.Identity.Role),
	})
}

// Register creates a new identity and opens a fresh session for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	// An absent role defaults to driver inside the service; a present
	// but unknown one is rejected here.
	var role types.Role
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := types.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}

	sid := uuid.NewString()
	result, err := h.service.Register(r.Context(), sid, auth.RegisterRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
		Role:  role,
	}, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Token:    result.Token,
		Identity: result.Identity,
		Redirect: guard.HomePath(result.Identity.Role),
	})
}

// Logout clears the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.Logout(r.Context(), claims.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": guard.LoginPath})
}

// Me returns the identity of the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrOperationInProgress):
		writeError(w, http.StatusConflict, "auth operation already in progress")
	default:
		writeError(w, http.StatusInternalServerError, "authentication failed")
	}
}
