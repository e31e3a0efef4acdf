package domain

import (
	"context"
	"time"
)

// User roles.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// Profile is the application-level user record.
type Profile struct {
	ID         int64     `json:"id"`
	AuthUserID string    `json:"authUserId,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Search string
	Role   string
	Page   Page
}

// UserRepository is the port for profile persistence.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*Profile, error)
	GetUserByAuthID(ctx context.Context, authUserID string) (*Profile, error)
	GetUserByEmail(ctx context.Context, email string) (*Profile, error)
	ListUsers(ctx context.Context, f UserFilter) ([]Profile, int, error)
	CreateUser(ctx context.Context, p Profile) (*Profile, error)
	UpdateUser(ctx context.Context, p Profile) (*Profile, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

// PermissionRepository is the port for per-user permission grants.
type PermissionRepository interface {
	GetPermissions(ctx context.Context, userID int64) (PermissionSet, error)
	SetPermissions(ctx context.Context, userID int64, perms PermissionSet) error
	DeletePermissions(ctx context.Context, userID int64) error
}
