package types

import "time"

// DefaultAvatar is assigned to identities created without an avatar reference.
const DefaultAvatar = "/placeholder.svg"

// Identity represents one authenticated principal in the marketplace.
// An identity belongs to exactly one role partition of the directory and
// its role never changes within a session.
type Identity struct {
	// ID is the unique identifier of the identity.
	ID string `json:"id" db:"id"`

	// Name is the display name shown to other participants.
	Name string `json:"name" db:"name"`

	// Phone is the primary login credential, unique within a role partition.
	Phone string `json:"phone" db:"phone"`

	// Email is optional contact information.
	Email string `json:"email,omitempty" db:"email"`

	// Role places the identity in one of the three directory partitions.
	Role Role `json:"role" db:"role"`

	// Avatar is a reference to the identity's avatar image.
	Avatar string `json:"avatar,omitempty" db:"avatar"`

	// PasswordHash stores the bcrypt hash set at registration. Seeded
	// directory entries carry none. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the identity was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
