package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/thusconnect/apiserver/internal/notify"
	"github.com/thusconnect/apiserver/internal/session"
	"github.com/thusconnect/apiserver/internal/storage"
	"github.com/thusconnect/apiserver/internal/store"
	"github.com/thusconnect/apiserver/types"
)

// fakeDirectory is an in-memory role-partitioned directory.
type fakeDirectory struct {
	identities []types.Identity
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		identities: []types.Identity{
			{ID: "d1", Name: "Jean Pierre", Phone: "123456", Email: "jean@example.com", Role: types.RoleDriver, Avatar: types.DefaultAvatar},
			{ID: "t1", Name: "Paul Mèchè", Phone: "40147079", Email: "paul@example.com", Role: types.RoleTechnician, Avatar: types.DefaultAvatar},
			{ID: "a1", Name: "ThusRconnect", Phone: "40147090", Email: "admin@example.com", Role: types.RoleAdmin, Avatar: types.DefaultAvatar},
		},
	}
}

func (d *fakeDirectory) Lookup(_ context.Context, role types.Role, phone string) (types.Identity, error) {
	for _, identity := range d.identities {
		if identity.Role == role && identity.Phone == phone {
			return identity, nil
		}
	}
	return types.Identity{}, store.ErrNotFound
}

func (d *fakeDirectory) Create(_ context.Context, identity types.Identity) (types.Identity, error) {
	d.identities = append(d.identities, identity)
	return identity, nil
}

func newTestService(t *testing.T) (*Service, *session.Manager) {
	t.Helper()
	kv := storage.NewStore(storage.NewMemoryKV())
	sessions := session.NewManager(func(sid string) *session.Store {
		return session.NewStore(kv, "sessions/"+sid+"/")
	})
	notifier := notify.New(nil, "")
	return NewService(sessions, newFakeDirectory(), notifier, "test-secret"), sessions
}

func TestService_LoginKnownDriver(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	result, err := svc.Login(ctx, "s1", "123456", "whatever", types.RoleDriver)
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if result.Identity.Name != "Jean Pierre" {
		t.Fatalf("expected Jean Pierre, got %q", result.Identity.Name)
	}
	if result.Token == "" {
		t.Fatal("expected session token")
	}

	current := sessions.Store("s1").Current()
	if current.Identity == nil || current.Identity.ID != "d1" {
		t.Fatalf("expected session set to d1, got %+v", current.Identity)
	}
	if current.Loading {
		t.Fatal("expected loading cleared after login")
	}

	claims, err := ParseToken(result.Token, []byte("test-secret"))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.SessionID != "s1" || claims.Subject != "d1" || claims.Role != types.RoleDriver {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestService_LoginUnknownPhone(t *testing.T) {
	svc, sessions := newTestService(t)

	_, err := svc.Login(context.Background(), "s1", "000000", "whatever", types.RoleDriver)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	current := sessions.Store("s1").Current()
	if current.Identity != nil {
		t.Fatal("expected session unchanged on failed login")
	}
	if current.Loading {
		t.Fatal("expected loading cleared after failed login")
	}
}

func TestService_LoginWrongRolePartition(t *testing.T) {
	svc, _ := newTestService(t)

	// Jean Pierre exists, but only in the driver partition.
	_, err := svc.Login(context.Background(), "s1", "123456", "whatever", types.RoleTechnician)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_LoginRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Login(context.Background(), "s1", "123456", "pw", types.Role("pilot")); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, err := svc.Login(context.Background(), "s1", "", "pw", types.RoleDriver); err == nil {
		t.Fatal("expected error for empty phone")
	}
}

func TestService_RegisterDefaultsRoleToDriver(t *testing.T) {
	svc, sessions := newTestService(t)

	result, err := svc.Register(context.Background(), "s1", RegisterRequest{Name: "X", Phone: "1"}, "secret123")
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if result.Identity.Role != types.RoleDriver {
		t.Fatalf("expected default role driver, got %q", result.Identity.Role)
	}
	if result.Identity.ID == "" {
		t.Fatal("expected generated identity id")
	}
	if result.Identity.Avatar != types.DefaultAvatar {
		t.Fatalf("expected default avatar, got %q", result.Identity.Avatar)
	}

	current := sessions.Store("s1").Current()
	if current.Identity == nil || current.Identity.Role != types.RoleDriver {
		t.Fatalf("expected driver session, got %+v", current.Identity)
	}
}

func TestService_RegisteredIdentityRequiresItsPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "s1", RegisterRequest{Name: "Awa", Phone: "555", Role: types.RoleTechnician}, "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "s2", "555", "wrong", types.RoleTechnician); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials on wrong password, got %v", err)
	}

	result, err := svc.Login(ctx, "s3", "555", "secret123", types.RoleTechnician)
	if err != nil {
		t.Fatalf("login with correct password: %v", err)
	}
	if result.Identity.ID != registered.Identity.ID {
		t.Fatalf("expected identity %s, got %s", registered.Identity.ID, result.Identity.ID)
	}
}

func TestService_LogoutClearsSessionAndStorage(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "s1", "40147090", "pw", types.RoleAdmin); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, "s1"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// A fresh store over the same storage restores to no session.
	st := sessions.Store("s1")
	if err := st.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.Current().Identity != nil {
		t.Fatal("expected no session after logout")
	}
}

func TestService_ConcurrentAuthRejected(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	st := sessions.Store("s1")
	if !st.TryBeginAuth() {
		t.Fatal("failed to claim auth slot")
	}
	defer st.EndAuth()

	if _, err := svc.Login(ctx, "s1", "123456", "pw", types.RoleDriver); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("expected ErrOperationInProgress, got %v", err)
	}
	if _, err := svc.Register(ctx, "s1", RegisterRequest{Name: "X", Phone: "1"}, "pw"); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("expected ErrOperationInProgress, got %v", err)
	}

	// Another session is unaffected.
	if _, err := svc.Login(ctx, "s2", "123456", "pw", types.RoleDriver); err != nil {
		t.Fatalf("login on other session: %v", err)
	}
}
