package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserPreference stores one JSON value per key for a user in a company,
// optionally narrowed to a branch.
type UserPreference struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index:ix_user_pref,priority:1" json:"user_id"`
	CompanyID uint           `gorm:"not null;index:ix_user_pref,priority:2" json:"company_id"`
	BranchID  *uint          `gorm:"index:ix_user_pref,priority:3" json:"branch_id"`
	PrefKey   string         `gorm:"size:100;not null;index:ix_user_pref,priority:4" json:"pref_key"`
	PrefValue datatypes.JSON `json:"pref_value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RolePreference is the fallback value for every user holding the role.
type RolePreference struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RoleID    uint           `gorm:"not null;index:ix_role_pref,priority:1" json:"role_id"`
	CompanyID uint           `gorm:"not null;index:ix_role_pref,priority:2" json:"company_id"`
	BranchID  *uint          `gorm:"index:ix_role_pref,priority:3" json:"branch_id"`
	PrefKey   string         `gorm:"size:100;not null;index:ix_role_pref,priority:4" json:"pref_key"`
	PrefValue datatypes.JSON `json:"pref_value"`
	UpdatedBy *uint          `json:"updated_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
