package services

import (
	"context"

	"github.com/thusconnect/apiserver/types"
)

// IdentityRepository defines persistence operations for the identity
// directory.
type IdentityRepository interface {
	GetByID(ctx context.Context, id string) (types.Identity, error)
	GetByRoleAndPhone(ctx context.Context, role types.Role, phone string) (types.Identity, error)
	Create(ctx context.Context, identity types.Identity) (types.Identity, error)
	Update(ctx context.Context, identity types.Identity) (types.Identity, error)
	ListByRole(ctx context.Context, role types.Role) ([]types.Identity, error)
	Delete(ctx context.Context, id string) error
}

// DirectoryService exposes the role-partitioned identity directory to the
// rest of the application. In a real deployment the repository behind it
// is the system of record for marketplace participants.
type DirectoryService struct {
	repo IdentityRepository
}

func NewDirectoryService(repo IdentityRepository) *DirectoryService {
	return &DirectoryService{repo: repo}
}

// Lookup finds an identity by phone number inside one role partition.
func (s *DirectoryService) Lookup(ctx context.Context, role types.Role, phone string) (types.Identity, error) {
	return s.repo.GetByRoleAndPhone(ctx, role, phone)
}

func (s *DirectoryService) GetByID(ctx context.Context, id string) (types.Identity, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DirectoryService) Create(ctx context.Context, identity types.Identity) (types.Identity, error) {
	return s.repo.Create(ctx, identity)
}

func (s *DirectoryService) Update(ctx context.Context, identity types.Identity) (types.Identity, error) {
	return s.repo.Update(ctx, identity)
}

func (s *DirectoryService) ListByRole(ctx context.Context, role types.Role) ([]types.Identity, error) {
	return s.repo.ListByRole(ctx, role)
}

func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
