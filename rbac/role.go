package rbac

// Role represents a user role either at platform or tenant level
type Role string

const (
	// Platform-level roles
	RoleAdminMaster Role = "admin_master" // Can manage all tenants and platform configuration
	RoleAdmin       Role = "admin"        // Platform administration without destructive tenant operations
	RoleTechnician  Role = "technician"   // Field technician limited to assigned installations

	// Tenant-level roles
	RoleClientMaster  Role = "client_master"  // Full control within a single tenant
	RoleClientManager Role = "client_manager" // Manages a sector of the tenant's installations
	RoleClientViewer  Role = "client_viewer"  // Read-only live view within a tenant
)

// AllRoles returns the closed role enumeration. The permission matrix and the
// redirect resolver are validated against this list at startup.
func AllRoles() []Role {
	return []Role{
		RoleAdminMaster,
		RoleAdmin,
		RoleTechnician,
		RoleClientMaster,
		RoleClientManager,
		RoleClientViewer,
	}
}

// Valid reports whether r is part of the closed enumeration.
func (r Role) Valid() bool {
	for _, role := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// IsPlatform reports whether the role operates across tenants rather than
// inside one.
func (r Role) IsPlatform() bool {
	return r == RoleAdminMaster || r == RoleAdmin || r == RoleTechnician
}
