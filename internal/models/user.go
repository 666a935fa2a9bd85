package models

import "time"

// Permission levels carried in the token. Cross-company access needs
// PermissionSuperAdmin, cross-branch access needs PermissionCompanyAdmin.
const (
	PermissionUser         = 10
	PermissionCompanyAdmin = 50
	PermissionSuperAdmin   = 100
)

type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CompanyID       uint       `gorm:"index;not null" json:"company_id"`
	BranchID        uint       `gorm:"index;not null" json:"branch_id"`
	FirstName       string     `gorm:"size:100;not null" json:"first_name"`
	LastName        *string    `gorm:"size:100" json:"last_name"`
	Email           string     `gorm:"size:150;uniqueIndex;not null" json:"email"`
	PasswordHash    string     `gorm:"size:255;not null" json:"-"`
	RoleName        string     `gorm:"size:50;not null" json:"role_name"`
	PermissionLevel int        `gorm:"not null" json:"permission_level"`
	IsActive        bool       `json:"is_active"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) FullName() string {
	if u.LastName == nil || *u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + *u.LastName
}

// Role is a named permission level. Users copy the name and level when the
// role is assigned, so tokens never need a join.
type Role struct {
	ID              uint      `gorm:"primaryKey" json:"role_id"`
	RoleName        string    `gorm:"size:50;not null;uniqueIndex" json:"role_name"`
	PermissionLevel int       `gorm:"not null" json:"permission_level"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// DefaultRoles are created by the migration when missing.
var DefaultRoles = []Role{
	{RoleName: "User", PermissionLevel: PermissionUser},
	{RoleName: "Branch Admin", PermissionLevel: PermissionCompanyAdmin},
	{RoleName: "Company Admin", PermissionLevel: PermissionCompanyAdmin},
	{RoleName: "Super Admin", PermissionLevel: PermissionSuperAdmin},
}
