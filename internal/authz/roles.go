package authz

// Role is the closed set of roles a user can hold. Role values are stored
// verbatim in the users table and embedded in access-token claims.
type Role string

const (
	// RoleSuperAdmin is the platform operator. Cross-store access; its own
	// store id is only the billing home of the platform account.
	RoleSuperAdmin Role = "super_admin"
	// RoleOwner owns a store account.
	RoleOwner Role = "owner"
	// RoleAdmin administers a store account. Strict subset of owner.
	RoleAdmin Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleReception  Role = "reception"
)

// AllRoles lists every defined role. Order matters for nothing except
// deterministic iteration in tests and seed data.
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleOwner,
	RoleAdmin,
	RoleManager,
	RoleTechnician,
	RoleReception,
}

// ParseRole maps a stored string to a Role. Unknown values come back as
// ok=false so callers can fail closed instead of granting a made-up role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSuperAdmin, RoleOwner, RoleAdmin, RoleManager, RoleTechnician, RoleReception:
		return Role(s), true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// IsPlatformOperator reports whether r has cross-store access.
func (r Role) IsPlatformOperator() bool { return r == RoleSuperAdmin }

// IsStoreAdmin reports whether r has admin-level access within its store.
// Platform operators qualify as well.
func (r Role) IsStoreAdmin() bool {
	return r == RoleSuperAdmin || r == RoleOwner || r == RoleAdmin
}
