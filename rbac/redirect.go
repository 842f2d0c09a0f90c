package rbac

// Route path constants
// All guarded application routes resolve their redirects through these to
// ensure consistency and prevent typos
const (
	PathRoot           = "/"
	PathLogin          = "/login"
	PathAdminDashboard = "/admin/dashboard"
	PathInstallations  = "/installations"
	PathDashboard      = "/dashboard"
	PathLiveView       = "/live"
)

// landingPaths maps each role to its canonical landing page.
var landingPaths = map[Role]string{
	RoleAdminMaster:   PathAdminDashboard,
	RoleAdmin:         PathAdminDashboard,
	RoleTechnician:    PathInstallations,
	RoleClientMaster:  PathDashboard,
	RoleClientManager: PathDashboard,
	RoleClientViewer:  PathLiveView,
}

// LandingPath resolves a role to its canonical landing page. The function is
// pure and total: every enumerated role maps to a non-empty path and any
// unknown role falls back to the root path, never an error.
func LandingPath(role Role) string {
	if path, ok := landingPaths[role]; ok {
		return path
	}
	return PathRoot
}
