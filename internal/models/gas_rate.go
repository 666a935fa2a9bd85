package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate ownership: OWN prices cylinders the company owns, PARTY prices
// cylinders the party brings.
const (
	RateOwnershipOwn   = "OWN"
	RateOwnershipParty = "PARTY"
)

// PartyGasRate is a dated price for filling a gas. A nil PartyID is the
// company default rate; a nil CylinderFamilyID applies to every family.
// Prices are never edited; a new rate row replaces a closed one.
type PartyGasRate struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	CompanyID        uint            `gorm:"not null;index:ix_gas_rate_dims,priority:1" json:"company_id"`
	PartyID          *uint           `gorm:"index:ix_gas_rate_dims,priority:2" json:"party_id"`
	GasTypeID        uint            `gorm:"not null;index:ix_gas_rate_dims,priority:3" json:"gas_type_id"`
	CylinderFamilyID *uint           `json:"cylinder_family_id"`
	UnitOfMeasureID  uint            `gorm:"not null" json:"unit_of_measure_id"`
	OwnershipType    string          `gorm:"size:10;not null" json:"ownership_type"`
	Rate             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rate"`
	Currency         string          `gorm:"size:10;not null" json:"currency"`
	EffectiveFrom    Date            `gorm:"not null" json:"effective_from"`
	EffectiveTo      *Date           `json:"effective_to"`
	IsActive         bool            `gorm:"index" json:"is_active"`
	CreatedBy        *uint           `json:"created_by"`
	UpdatedBy        *uint           `json:"updated_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Party          *Party          `json:"party,omitempty"`
	GasType        *GasType        `json:"gas_type,omitempty"`
	CylinderFamily *CylinderFamily `json:"cylinder_family,omitempty"`
	UnitOfMeasure  *UnitOfMeasure  `json:"unit_of_measure,omitempty"`
}
