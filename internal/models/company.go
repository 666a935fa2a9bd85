package models

import "time"

type Company struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CompanyCode string    `gorm:"size:20;uniqueIndex;not null" json:"company_code"`
	CompanyName string    `gorm:"size:200;not null" json:"company_name"`
	GSTNum      *string   `gorm:"column:gst_num;size:25" json:"gst_num"`
	Address     *string   `gorm:"size:255" json:"address"`
	Phone       *string   `gorm:"size:20" json:"phone"`
	Email       *string   `gorm:"size:150" json:"email"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Branches []Branch `json:"branches,omitempty"`
}

type Branch struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CompanyID  uint      `gorm:"not null;uniqueIndex:ux_branch_company_code,priority:1" json:"company_id"`
	BranchCode string    `gorm:"size:20;not null;uniqueIndex:ux_branch_company_code,priority:2" json:"branch_code"`
	BranchName string    `gorm:"size:200;not null" json:"branch_name"`
	Address    *string   `gorm:"size:255" json:"address"`
	Phone      *string   `gorm:"size:20" json:"phone"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
