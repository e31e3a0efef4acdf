package session

import "bootcamp/internal/domain"

// State names the phase of the session state machine.
type State int

// Session states.
const (
	StateInitializing State = iota
	StateAnonymous
	StateAuthenticated
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateTransitioning:
		return "transitioning"
	}
	return "unknown"
}

// Snapshot is a point-in-time view of the session. Snapshots handed out by
// Context share no storage with it; treat them as read-only values.
type Snapshot struct {
	Identity    *domain.Identity
	Profile     *domain.Profile
	Permissions domain.PermissionSet
	Loading     bool

	restored bool
}

// NewSnapshot builds a settled snapshot for an identity resolved outside a
// Context, such as a server handling one request. The profile is dropped
// when identity is nil, and permissions when profile is nil.
func NewSnapshot(identity *domain.Identity, profile *domain.Profile, perms domain.PermissionSet) Snapshot {
	s := Snapshot{Identity: identity, Profile: profile, Permissions: perms, restored: true}
	return s.normalize()
}

// State reports the state-machine phase the snapshot is in.
func (s Snapshot) State() State {
	switch {
	case s.Loading && !s.restored:
		return StateInitializing
	case s.Loading:
		return StateTransitioning
	case s.Identity == nil:
		return StateAnonymous
	default:
		return StateAuthenticated
	}
}

// HasPermission reports whether name is among the granted permissions.
func (s Snapshot) HasPermission(name string) bool {
	return s.Permissions.Has(name)
}

// IsAdmin reports whether the profile role is admin or the system_admin
// permission is granted.
func (s Snapshot) IsAdmin() bool {
	if s.Profile != nil && s.Profile.Role == domain.RoleAdmin {
		return true
	}
	return s.HasPermission(domain.PermSystemAdmin)
}

func (s Snapshot) normalize() Snapshot {
	if s.Identity == nil {
		s.Profile = nil
	}
	if s.Profile == nil {
		s.Permissions = domain.PermissionSet{}
	}
	if s.Permissions == nil {
		s.Permissions = domain.PermissionSet{}
	}
	return s
}

func (s Snapshot) clone() Snapshot {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	s.Permissions = s.Permissions.Clone()
	return s
}
