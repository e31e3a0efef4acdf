package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

// ErrUserNotFound indicates that the user does not exist.
var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

// UserService manages application profiles and their permission grants.
// It also answers the profile and permission lookups of the session layer.
type UserService struct {
	users  domain.UserRepository
	perms  domain.PermissionRepository
	logger *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(users domain.UserRepository, perms domain.PermissionRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, perms: perms, logger: logger}
}

// List returns one page of users matching f.
func (s *UserService) List(ctx context.Context, f domain.UserFilter) ([]domain.Profile, domain.Pagination, error) {
	f.Page = f.Page.Normalize()
	if f.Role != "" && !domain.ValidRole(f.Role) {
		return nil, domain.Pagination{}, fieldError("role", "角色必须是：student、instructor、admin")
	}
	users, total, err := s.users.ListUsers(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list users: %w", err)
	}
	return users, domain.NewPagination(f.Page, total), nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.Profile, error) {
	p, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

// Create validates values and inserts a new user. Creating an admin also
// grants the default admin permissions.
func (s *UserService) Create(ctx context.Context, values validation.Values) (*domain.Profile, error) {
	values = validation.Sanitize(values)
	if err := validate(validation.ProfileForm(), values); err != nil {
		return nil, err
	}
	role := values["role"]
	if role == "" {
		role = domain.RoleStudent
	}
	return s.create(ctx, domain.Profile{
		Name:  values["name"],
		Email: strings.ToLower(values["email"]),
		Phone: values["phone"],
		Role:  role,
	})
}

// Provision creates the profile for a freshly registered identity. A
// profile left behind by an earlier enrollment under the same email is
// claimed instead: it is linked to the identity and keeps its details.
func (s *UserService) Provision(ctx context.Context, identity *domain.Identity, role string) (*domain.Profile, error) {
	existing, err := s.users.GetUserByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil && existing.AuthUserID == "" {
		return s.link(ctx, existing, identity.ID, role)
	}

	p := domain.Profile{
		AuthUserID: identity.ID,
		Email:      identity.Email,
		Role:       role,
	}
	if identity.Metadata.Name != nil {
		p.Name = strings.TrimSpace(*identity.Metadata.Name)
	}
	if p.Name == "" {
		p.Name, _, _ = strings.Cut(identity.Email, "@")
	}
	if identity.Metadata.Phone != nil {
		p.Phone = strings.TrimSpace(*identity.Metadata.Phone)
	}
	return s.create(ctx, p)
}

func (s *UserService) link(ctx context.Context, p *domain.Profile, identityID, role string) (*domain.Profile, error) {
	next := *p
	next.AuthUserID = identityID
	if role == domain.RoleAdmin {
		next.Role = role
	}

	linked, err := s.users.UpdateUser(ctx, next)
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, fmt.Errorf("identity %s: %w", identityID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("link user: %w", err)
	}
	if linked == nil {
		return nil, ErrUserNotFound
	}
	if linked.Role == domain.RoleAdmin && p.Role != domain.RoleAdmin {
		if err := s.perms.SetPermissions(ctx, linked.ID, domain.DefaultAdminPermissions()); err != nil {
			return nil, fmt.Errorf("grant admin permissions: %w", err)
		}
	}
	s.logger.Info("user linked", zap.Int64("id", linked.ID), zap.String("identity", identityID))
	return linked, nil
}

func (s *UserService) create(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	existing, err := s.users.GetUserByEmail(ctx, p.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("email %s: %w", p.Email, ErrConflict)
	}

	created, err := s.users.CreateUser(ctx, p)
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, fmt.Errorf("email %s: %w", p.Email, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if created.Role == domain.RoleAdmin {
		if err := s.perms.SetPermissions(ctx, created.ID, domain.DefaultAdminPermissions()); err != nil {
			return nil, fmt.Errorf("grant admin permissions: %w", err)
		}
	}
	s.logger.Info("user created", zap.Int64("id", created.ID), zap.String("role", created.Role))
	return created, nil
}

// Update applies the non-empty fields of values to user id. Promoting a
// user to admin grants the default admin permissions.
func (s *UserService) Update(ctx context.Context, id int64, values validation.Values) (*domain.Profile, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	values = validation.Sanitize(values)
	merged := validation.Values{
		"name":  current.Name,
		"email": current.Email,
		"phone": current.Phone,
		"role":  current.Role,
	}
	for k, v := range values {
		if v != "" {
			merged[k] = v
		}
	}
	if err := validate(validation.ProfileForm(), merged); err != nil {
		return nil, err
	}

	email := strings.ToLower(merged["email"])
	if email != current.Email {
		other, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
	}

	next := *current
	next.Name = merged["name"]
	next.Email = email
	next.Phone = merged["phone"]
	next.Role = merged["role"]

	updated, err := s.users.UpdateUser(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	if updated.Role == domain.RoleAdmin && current.Role != domain.RoleAdmin {
		if err := s.perms.SetPermissions(ctx, id, domain.DefaultAdminPermissions()); err != nil {
			return nil, fmt.Errorf("grant admin permissions: %w", err)
		}
	}
	return updated, nil
}

// Delete removes user id together with its permission grants.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.perms.DeletePermissions(ctx, id); err != nil {
		return fmt.Errorf("delete permissions: %w", err)
	}
	ok, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// Grant replaces the permission set of user id.
func (s *UserService) Grant(ctx context.Context, id int64, perms domain.PermissionSet) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.perms.SetPermissions(ctx, id, domain.NewPermissionSet(perms...))
}

// GetUserProfile returns the profile linked to identityID, or nil if the
// identity has none.
func (s *UserService) GetUserProfile(ctx context.Context, identityID string) (*domain.Profile, error) {
	return s.users.GetUserByAuthID(ctx, identityID)
}

// GetUserPermissions returns the grants of the profile linked to
// identityID, or nil if the identity has no profile.
func (s *UserService) GetUserPermissions(ctx context.Context, identityID string) (domain.PermissionSet, error) {
	p, err := s.users.GetUserByAuthID(ctx, identityID)
	if err != nil || p == nil {
		return nil, err
	}
	perms, err := s.perms.GetPermissions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = domain.PermissionSet{}
	}
	return perms, nil
}
