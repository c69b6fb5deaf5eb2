package authclient

// UserRole is the user's role
type UserRole = string

const (
	// RoleAdmin grants access to the back-office views
	RoleAdmin UserRole = "ADMIN"
	// RoleClient is a customer account (orders, cart, bookings)
	RoleClient UserRole = "CLIENT"
	// RoleInstaller is an installer account (affectations, planning)
	RoleInstaller UserRole = "INSTALLATEUR"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleClient, RoleInstaller:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAdmin,
		RoleClient,
		RoleInstaller,
	}
}

// HasAnyRole reports whether the intersection of have and want is non-empty.
// An empty want set is always false: a route must declare at least one role
// to be role-gated, public routes should not consult role data at all.
func HasAnyRole(have []UserRole, want []UserRole) bool {
	if len(want) == 0 || len(have) == 0 {
		return false
	}
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
