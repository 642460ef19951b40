// Package auth performs login, registration, and logout against the
// identity directory, mutating exactly one session per operation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/thusconnect/apiserver/internal/notify"
	"github.com/thusconnect/apiserver/internal/session"
	"github.com/thusconnect/apiserver/internal/store"
	"github.com/thusconnect/apiserver/types"
)

var (
	// ErrInvalidCredentials signals that the phone number was not found
	// in the selected role partition (or the password did not match a
	// registered identity). The session is left unchanged.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrOperationInProgress signals that another auth operation is
	// already in flight on the same session.
	ErrOperationInProgress = errors.New("auth: operation already in progress")
)

const defaultTokenTTL = 24 * time.Hour

// Directory is the identity lookup/creation port the auth service
// consumes. It is backed by the directory service in production and by
// fakes in tests.
type Directory interface {
	Lookup(ctx context.Context, role types.Role, phone string) (types.Identity, error)
	Create(ctx context.Context, identity types.Identity) (types.Identity, error)
}

// Result bundles what a successful login or registration hands back to
// the client.
type Result struct {
	Token    string
	Identity types.Identity
}

// RegisterRequest contains the profile fields supplied at registration.
type RegisterRequest struct {
	Name  string
	Phone string
	Email string
	// Role is optional; absent defaults to driver.
	Role types.Role
}

// Service implements the auth operations over a directory, a session
// manager, and the notification feed.
type Service struct {
	sessions *session.Manager
	dir      Directory
	notifier *notify.Notifier
	secret   []byte
	tokenTTL time.Duration
}

// NewService constructs an auth service with the provided dependencies.
func NewService(sessions *session.Manager, dir Directory, notifier *notify.Notifier, jwtSecret string) *Service {
	return &Service{
		sessions: sessions,
		dir:      dir,
		notifier: notifier,
		secret:   []byte(jwtSecret),
		tokenTTL: defaultTokenTTL,
	}
}

// Login looks the phone number up inside the role partition and, on a
// match, activates and persists the identity on the session sid. A miss
// rejects with ErrInvalidCredentials and leaves the session untouched.
func (s *Service) Login(ctx context.Context, sid, phone, password string, role types.Role) (Result, error) {
	if !role.Valid() {
		return Result{}, fmt.Errorf("auth: unknown role %q", role)
	}
	if strings.TrimSpace(phone) == "" {
		return Result{}, errors.New("auth: phone is required")
	}

	st := s.sessions.Store(sid)
	if !st.TryBeginAuth() {
		return Result{}, ErrOperationInProgress
	}
	defer st.EndAuth()

	st.SetLoading(true)
	defer st.SetLoading(false)

	identity, err := s.dir.Lookup(ctx, role, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notifier.LoginFailed(ctx, role)
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("auth: lookup identity: %w", err)
	}

	// Seeded directory entries carry no password hash and authenticate
	// by phone lookup alone. Registered identities do carry one.
	if identity.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
			s.notifier.LoginFailed(ctx, role)
			return Result{}, ErrInvalidCredentials
		}
	}

	if err := st.Set(ctx, identity); err != nil {
		return Result{}, fmt.Errorf("auth: persist session: %w", err)
	}

	token, err := issueToken(sid, identity, s.secret, s.tokenTTL)
	if err != nil {
		return Result{}, fmt.Errorf("auth: issue token: %w", err)
	}

	s.notifier.LoginSucceeded(ctx, identity)
	return Result{Token: token, Identity: identity}, nil
}

// Register synthesizes a fresh identity from the supplied profile,
// stores it in the directory, and activates it on the session sid. An
// absent role defaults to driver.
func (s *Service) Register(ctx context.Context, sid string, req RegisterRequest, password string) (Result, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" {
		return Result{}, errors.New("auth: name and phone are required")
	}

	role := req.Role
	if role == "" {
		role = types.RoleDriver
	}
	if !role.Valid() {
		return Result{}, fmt.Errorf("auth: unknown role %q", role)
	}

	st := s.sessions.Store(sid)
	if !st.TryBeginAuth() {
		return Result{}, ErrOperationInProgress
	}
	defer st.EndAuth()

	st.SetLoading(true)
	defer st.SetLoading(false)

	var passwordHash string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return Result{}, fmt.Errorf("auth: hash password: %w", err)
		}
		passwordHash = string(hashed)
	}

	identity, err := s.dir.Create(ctx, types.Identity{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.TrimSpace(req.Email),
		Role:         role,
		Avatar:       types.DefaultAvatar,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return Result{}, fmt.Errorf("auth: create identity: %w", err)
	}

	if err := st.Set(ctx, identity); err != nil {
		return Result{}, fmt.Errorf("auth: persist session: %w", err)
	}

	token, err := issueToken(sid, identity, s.secret, s.tokenTTL)
	if err != nil {
		return Result{}, fmt.Errorf("auth: issue token: %w", err)
	}

	s.notifier.RegisterSucceeded(ctx, identity)
	return Result{Token: token, Identity: identity}, nil
}

// Logout clears the session sid in memory and in durable storage.
func (s *Service) Logout(ctx context.Context, sid string) error {
	st := s.sessions.Store(sid)
	current := st.Current()

	if err := st.Clear(ctx); err != nil {
		return fmt.Errorf("auth: clear session: %w", err)
	}
	s.sessions.Forget(sid)

	if current.Identity != nil {
		s.notifier.LoggedOut(ctx, *current.Identity)
	}
	return nil
}

// Secret exposes the signing secret for middleware that validates
// session tokens.
func (s *Service) Secret() []byte {
	return s.secret
}
