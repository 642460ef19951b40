package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/thusconnect/apiserver/types"
)

// IdentityRepository handles persistence for the role-partitioned
// identity directory.
type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const identityColumns = `id, name, phone, email, role, avatar, password_hash, created_at, updated_at`

func scanIdentity(row *sql.Row) (types.Identity, error) {
	var identity types.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Phone,
		&identity.Email,
		&identity.Role,
		&identity.Avatar,
		&identity.PasswordHash,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Identity{}, ErrNotFound
		}
		return types.Identity{}, err
	}
	return identity, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (types.Identity, error) {
	const query = `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE id = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, id))
}

// GetByRoleAndPhone looks an identity up inside a single role partition.
// A phone number registered under a different role is not a match.
func (r *IdentityRepository) GetByRoleAndPhone(ctx context.Context, role types.Role, phone string) (types.Identity, error) {
	const query = `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE role = $1 AND phone = $2`
	return scanIdentity(r.db.QueryRowContext(ctx, query, role, phone))
}

func (r *IdentityRepository) Create(ctx context.Context, identity types.Identity) (types.Identity, error) {
	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	const query = `
		INSERT INTO identities (id, name, phone, email, role, avatar, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		identity.ID,
		identity.Name,
		identity.Phone,
		identity.Email,
		identity.Role,
		identity.Avatar,
		identity.PasswordHash,
		identity.CreatedAt,
		identity.UpdatedAt,
	); err != nil {
		return types.Identity{}, err
	}
	return identity, nil
}

func (r *IdentityRepository) Update(ctx context.Context, identity types.Identity) (types.Identity, error) {
	identity.UpdatedAt = time.Now()

	const query = `
		UPDATE identities
		SET name = $1,
			phone = $2,
			email = $3,
			role = $4,
			avatar = $5,
			password_hash = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		identity.Name,
		identity.Phone,
		identity.Email,
		identity.Role,
		identity.Avatar,
		identity.PasswordHash,
		identity.UpdatedAt,
		identity.ID,
	)
	if err != nil {
		return types.Identity{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Identity{}, err
	}
	if affected == 0 {
		return types.Identity{}, ErrNotFound
	}
	return identity, nil
}

func (r *IdentityRepository) ListByRole(ctx context.Context, role types.Role) ([]types.Identity, error) {
	const query = `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE role = $1
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []types.Identity
	for rows.Next() {
		var identity types.Identity
		if err := rows.Scan(
			&identity.ID,
			&identity.Name,
			&identity.Phone,
			&identity.Email,
			&identity.Role,
			&identity.Avatar,
			&identity.PasswordHash,
			&identity.CreatedAt,
			&identity.UpdatedAt,
		); err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM identities WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
