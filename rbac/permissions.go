package rbac

import (
	"fmt"

	inerrors "github.com/sentriview/go-session-core/internal/errors"
)

// Capability represents a named capability in the platform.
type Capability string

// Capability constants.
const (
	CapTenantManage       Capability = "tenant:manage"
	CapUserManage         Capability = "user:manage"
	CapInstallationManage Capability = "installation:manage"
	CapCameraConfigure    Capability = "camera:configure"
	CapCameraLiveView     Capability = "camera:live"
	CapCameraPlayback     Capability = "camera:playback"
	CapAlertManage        Capability = "alert:manage"
	CapAlertAcknowledge   Capability = "alert:acknowledge"
	CapReportView         Capability = "report:view"
	CapDataExport         Capability = "data:export"
)

// AllCapabilities returns every capability a PermissionSet must define.
func AllCapabilities() []Capability {
	return []Capability{
		CapTenantManage,
		CapUserManage,
		CapInstallationManage,
		CapCameraConfigure,
		CapCameraLiveView,
		CapCameraPlayback,
		CapAlertManage,
		CapAlertAcknowledge,
		CapReportView,
		CapDataExport,
	}
}

// Value is the qualifier assigned to a capability within a role's
// permission set. The qualifier form is canonical; boolean checks are
// derived through [PermissionSet.Allows].
type Value string

const (
	Granted  Value = "granted"
	Denied   Value = "denied"
	Limited  Value = "limited"   // Granted within the role's scope only
	Optional Value = "optional"  // Granted when enabled per tenant contract
	ViewOnly Value = "view-only" // Read access, no mutation
)

// ScopeType classifies how broadly a role's access applies. It is a property
// of the role's permission set, not of individual users.
type ScopeType string

const (
	ScopeGlobal           ScopeType = "global"
	ScopeGlobalLimited    ScopeType = "global_limited"
	ScopeTenantFull       ScopeType = "tenant_full"
	ScopeInstallationOnly ScopeType = "installation_only"
	ScopeSector           ScopeType = "sector"
	ScopeViewOnly         ScopeType = "view_only"
)

// PermissionSet maps every capability to a qualifier for one role.
type PermissionSet struct {
	Scope        ScopeType
	Capabilities map[Capability]Value
}

// Value returns the qualifier for a capability, failing closed to Denied for
// anything the set does not define.
func (ps PermissionSet) Value(c Capability) Value {
	if ps.Capabilities == nil {
		return Denied
	}
	v, ok := ps.Capabilities[c]
	if !ok {
		return Denied
	}
	return v
}

// Allows is the derived boolean view of a qualifier: Denied (and anything
// undefined) is false, every other qualifier grants at least scoped access.
func (ps PermissionSet) Allows(c Capability) bool {
	return ps.Value(c) != Denied
}

// rolePermissions is the single source of truth for the authorization model.
// Every enumerated role must appear here with every capability defined;
// NewMatrix enforces this at startup.
var rolePermissions = map[Role]PermissionSet{
	RoleAdminMaster: {
		Scope: ScopeGlobal,
		Capabilities: map[Capability]Value{
			CapTenantManage:       Granted,
			CapUserManage:         Granted,
			CapInstallationManage: Granted,
			CapCameraConfigure:    Granted,
			CapCameraLiveView:     Granted,
			CapCameraPlayback:     Granted,
			CapAlertManage:        Granted,
			CapAlertAcknowledge:   Granted,
			CapReportView:         Granted,
			CapDataExport:         Granted,
		},
	},
	RoleAdmin: {
		Scope: ScopeGlobalLimited,
		Capabilities: map[Capability]Value{
			CapTenantManage:       Limited,
			CapUserManage:         Granted,
			CapInstallationManage: Granted,
			CapCameraConfigure:    Granted,
			CapCameraLiveView:     Granted,
			CapCameraPlayback:     Granted,
			CapAlertManage:        Granted,
			CapAlertAcknowledge:   Granted,
			CapReportView:         Granted,
			CapDataExport:         Limited,
		},
	},
	RoleTechnician: {
		Scope: ScopeInstallationOnly,
		Capabilities: map[Capability]Value{
			CapTenantManage:       Denied,
			CapUserManage:         Denied,
			CapInstallationManage: Limited,
			CapCameraConfigure:    Granted,
			CapCameraLiveView:     Limited,
			CapCameraPlayback:     Denied,
			CapAlertManage:        Optional,
			CapAlertAcknowledge:   Denied,
			CapReportView:         Denied,
			CapDataExport:         Denied,
		},
	},
	RoleClientMaster: {
		Scope: ScopeTenantFull,
		Capabilities: map[Capability]Value{
			CapTenantManage:       Denied,
			CapUserManage:         Granted,
			CapInstallationManage: ViewOnly,
			CapCameraConfigure:    Limited,
			CapCameraLiveView:     Granted,
			CapCameraPlayback:     Granted,
			CapAlertManage:        Granted,
			CapAlertAcknowledge:   Granted,
			CapReportView:         Granted,
			CapDataExport:         Granted,
		},
	},
	RoleClientManager: {
		Scope: ScopeSector,
		Capabilities: map[Capability]Value{
			CapTenantManage:       Denied,
			CapUserManage:         Limited,
			CapInstallationManage: ViewOnly,
			CapCameraConfigure:    Denied,
			CapCameraLiveView:     Granted,
			CapCameraPlayback:     Limited,
			CapAlertManage:        Granted,
			CapAlertAcknowledge:   Granted,
			CapReportView:         ViewOnly,
			CapDataExport:         Optional,
		},
	},
	RoleClientViewer: {
		Scope: ScopeViewOnly,
		Capabilities: map[Capability]Value{
			CapTenantManage:       Denied,
			CapUserManage:         Denied,
			CapInstallationManage: Denied,
			CapCameraConfigure:    Denied,
			CapCameraLiveView:     ViewOnly,
			CapCameraPlayback:     Denied,
			CapAlertManage:        ViewOnly,
			CapAlertAcknowledge:   Denied,
			CapReportView:         Denied,
			CapDataExport:         Denied,
		},
	},
}

// Matrix is the read-only role access matrix. Built once at process start;
// no mutation path exists after construction.
type Matrix struct {
	entries map[Role]PermissionSet
}

// NewMatrix builds the matrix from the static table and verifies it is
// exhaustive: every enumerated role has an entry and every entry defines
// every capability. A missing role or capability is a startup error, not a
// runtime default.
func NewMatrix() (*Matrix, error) {
	entries := make(map[Role]PermissionSet, len(rolePermissions))

	for _, role := range AllRoles() {
		ps, ok := rolePermissions[role]
		if !ok {
			return nil, fmt.Errorf("[NewMatrix] %w: %q has no permission set", inerrors.ErrUnknownRole, role)
		}
		if ps.Scope == "" {
			return nil, fmt.Errorf("[NewMatrix] role %q has no scope classification", role)
		}
		for _, cap := range AllCapabilities() {
			if _, ok := ps.Capabilities[cap]; !ok {
				return nil, fmt.Errorf("[NewMatrix] role %q missing capability %q", role, cap)
			}
		}
		entries[role] = ps
	}

	return &Matrix{entries: entries}, nil
}

// Permissions returns the permission set for a role. The lookup is total:
// any value outside the enumeration yields an empty fail-closed set rather
// than an error. Returned sets are defensive copies.
func (m *Matrix) Permissions(role Role) PermissionSet {
	ps, ok := m.entries[role]
	if !ok {
		return PermissionSet{Capabilities: map[Capability]Value{}}
	}

	caps := make(map[Capability]Value, len(ps.Capabilities))
	for c, v := range ps.Capabilities {
		caps[c] = v
	}
	return PermissionSet{Scope: ps.Scope, Capabilities: caps}
}
