package directory

import "time"

// Role is a service-desk user role.
type Role string

const (
	RoleEngineer       Role = "engineer"
	RoleCoordinator    Role = "coordinator"
	RoleITHead         Role = "it_head"
	RoleAdmin          Role = "admin"
	RoleSuperadmin     Role = "superadmin"
	RoleDepartmentHead Role = "department_head"
)

// User is an addressable service-desk user.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	Designation  string
	DepartmentID string
	Active       bool
	CreatedAt    time.Time
}
