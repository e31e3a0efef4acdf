package domain

import (
	"slices"
	"strings"
)

// Well-known permission names.
const (
	PermSystemAdmin          = "system_admin"
	PermUserManagement       = "user_management"
	PermCourseManagement     = "course_management"
	PermEnrollmentManagement = "enrollment_management"
)

// DefaultAdminPermissions is granted to every user promoted to RoleAdmin.
func DefaultAdminPermissions() PermissionSet {
	return PermissionSet{PermUserManagement, PermCourseManagement, PermEnrollmentManagement}
}

// PermissionSet is an unordered set of permission names. A nil set means
// "unknown"; an empty non-nil set means "no permissions".
type PermissionSet []string

// NewPermissionSet returns the de-duplicated, sorted set of names.
// Blank names are dropped.
func NewPermissionSet(names ...string) PermissionSet {
	out := make(PermissionSet, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Has reports whether name is in the set.
func (p PermissionSet) Has(name string) bool {
	return slices.Contains(p, name)
}

// Clone returns a copy that shares no storage with p. Clone of nil is nil.
func (p PermissionSet) Clone() PermissionSet {
	if p == nil {
		return nil
	}
	return slices.Clone(p)
}
