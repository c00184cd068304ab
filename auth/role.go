package auth

import "strings"

// RoleFromPath infers the role a route belongs to from its first segment.
// Route segments are the Danish ones used by the front-end.
func RoleFromPath(path string) (Role, bool) {
	seg := strings.TrimPrefix(path, "/")
	seg = strings.TrimPrefix(seg, "api/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	switch strings.ToLower(seg) {
	case "admin":
		return RoleAdmin, true
	case "saelger", "sælger":
		return RoleSeller, true
	case "maegler", "mægler":
		return RoleAgent, true
	default:
		return "", false
	}
}

// DashboardPath returns the landing route for role after login.
func DashboardPath(role Role) string {
	switch role {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleSeller:
		return "/saelger/dashboard"
	case RoleAgent:
		return "/maegler/dashboard"
	default:
		return "/"
	}
}

func isValidRole(role Role) bool {
	switch role {
	case RoleSeller, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}
