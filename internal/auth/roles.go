package auth

// Role represents a user role.
type Role string

const (
	RoleEngineer       Role = "engineer"
	RoleCoordinator    Role = "coordinator"
	RoleDepartmentHead Role = "department_head"
	RoleITHead         Role = "it_head"
	RoleAdmin          Role = "admin"
	RoleSuperadmin     Role = "superadmin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleEngineer, RoleCoordinator, RoleDepartmentHead, RoleITHead, RoleAdmin, RoleSuperadmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies the required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleEngineer:
		return 1
	case RoleCoordinator:
		return 2
	case RoleDepartmentHead:
		return 3
	case RoleITHead:
		return 4
	case RoleAdmin:
		return 5
	case RoleSuperadmin:
		return 6
	default:
		return 0
	}
}
