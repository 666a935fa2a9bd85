package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GasType struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyID       uint      `gorm:"not null;uniqueIndex:ux_gas_type_code,priority:1" json:"company_id"`
	GasCode         string    `gorm:"size:20;not null;uniqueIndex:ux_gas_type_code,priority:2" json:"gas_code" validate:"required,max=20"`
	GasName         string    `gorm:"size:100;not null" json:"gas_name" validate:"required,max=100"`
	Category        *string   `gorm:"size:50" json:"category" validate:"omitempty,max=50"`
	ChemicalFormula *string   `gorm:"size:50" json:"chemical_formula" validate:"omitempty,max=50"`
	CASNumber       *string   `gorm:"column:cas_number;size:20" json:"cas_number" validate:"omitempty,max=20"`
	UNNumber        *string   `gorm:"column:un_number;size:10" json:"un_number" validate:"omitempty,max=10"`
	GasState        *string   `gorm:"size:20" json:"gas_state" validate:"omitempty,oneof=Gas Liquid Dissolved Compressed Liquefied"`
	Description     *string   `gorm:"size:255" json:"description"`
	IsActive        bool      `gorm:"index" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CylinderFamily struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	CompanyID    uint             `gorm:"not null;uniqueIndex:ux_cylinder_family_code,priority:1" json:"company_id"`
	FamilyCode   string           `gorm:"size:50;not null;uniqueIndex:ux_cylinder_family_code,priority:2" json:"family_code" validate:"required,max=50"`
	FamilyName   string           `gorm:"size:100;not null" json:"family_name" validate:"required,max=100"`
	Capacity     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"capacity"`
	CapacityUnit *string          `gorm:"size:20" json:"capacity_unit" validate:"omitempty,max=20"`
	Description  *string          `gorm:"size:255" json:"description"`
	IsActive     bool             `gorm:"index" json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// GasTypeCylinderFamily lists which cylinder families may carry a gas type.
type GasTypeCylinderFamily struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CompanyID        uint      `gorm:"not null;index" json:"company_id"`
	GasTypeID        uint      `gorm:"not null;uniqueIndex:ux_gas_type_family,priority:1" json:"gas_type_id"`
	CylinderFamilyID uint      `gorm:"not null;uniqueIndex:ux_gas_type_family,priority:2" json:"cylinder_family_id"`
	CreatedAt        time.Time `json:"created_at"`

	CylinderFamily *CylinderFamily `json:"cylinder_family,omitempty"`
}

type UnitOfMeasure struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;uniqueIndex:ux_uom_code,priority:1" json:"company_id"`
	UOMCode   string    `gorm:"column:uom_code;size:20;not null;uniqueIndex:ux_uom_code,priority:2" json:"uom_code" validate:"required,max=20"`
	UOMName   string    `gorm:"column:uom_name;size:100;not null" json:"uom_name" validate:"required,max=100"`
	UOMType   *string   `gorm:"column:uom_type;size:30" json:"uom_type" validate:"omitempty,max=30"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UnitOfMeasure) TableName() string { return "units_of_measure" }

type Country struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CountryCode string    `gorm:"size:3;not null;uniqueIndex" json:"country_code" validate:"required,max=3"`
	CountryName string    `gorm:"size:100;not null" json:"country_name" validate:"required,max=100"`
	IsActive    bool      `gorm:"index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type State struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CountryID uint      `gorm:"not null;uniqueIndex:ux_state_code,priority:1" json:"country_id" validate:"required"`
	StateCode string    `gorm:"size:10;not null;uniqueIndex:ux_state_code,priority:2" json:"state_code" validate:"required,max=10"`
	StateName string    `gorm:"size:100;not null" json:"state_name" validate:"required,max=100"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type City struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StateID   uint      `gorm:"not null;index" json:"state_id" validate:"required"`
	CityName  string    `gorm:"size:100;not null" json:"city_name" validate:"required,max=100"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GasCategory groups gas types (industrial, medical, specialty). Shared by
// all tenants.
type GasCategory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GasCategoryCode string    `gorm:"size:20;not null;uniqueIndex" json:"gas_category_code" validate:"required,max=20"`
	GasCategoryName string    `gorm:"size:100;not null" json:"gas_category_name" validate:"required,max=100"`
	Description     *string   `gorm:"size:255" json:"description" validate:"omitempty,max=255"`
	IsActive        bool      `gorm:"index" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
