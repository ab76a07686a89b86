package auth

import "slices"

// Permission is an access level granted to an API token.
type Permission string

const (
	// PermissionQuery reads metric results inside the token's scope.
	PermissionQuery Permission = "query"
	// PermissionAdmin implies every other permission.
	PermissionAdmin Permission = "admin"
)

// AllPermissions lists the known permissions.
func AllPermissions() []Permission {
	return []Permission{PermissionQuery, PermissionAdmin}
}

// ParsePermission returns the empty Permission for unknown names.
// Matching is case sensitive.
func ParsePermission(s string) Permission {
	p := Permission(s)
	if slices.Contains(AllPermissions(), p) {
		return p
	}
	return ""
}

// HasPermission reports whether token carries required, directly or via admin.
func HasPermission(token *APIToken, required Permission) bool {
	if token == nil {
		return false
	}
	return slices.Contains(token.Permissions, PermissionAdmin) ||
		slices.Contains(token.Permissions, required)
}
