package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OwnerType string

const (
	OwnerSelf  OwnerType = "SELF"
	OwnerParty OwnerType = "PARTY"
)

type TestResult string

const (
	TestResultPass        TestResult = "Pass"
	TestResultFail        TestResult = "Fail"
	TestResultConditional TestResult = "Conditional"
)

const (
	DefaultTestType       = "Hydrostatic"
	DefaultCylinderStatus = "available"
)

// Cylinder is a physical gas cylinder owned by one company branch.
// LastTestDate and NextTestDate mirror the latest CylinderTest and are only
// written by the date recalculation.
type Cylinder struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	CompanyID            uint             `gorm:"not null;uniqueIndex:ux_cylinder_scope_code,priority:1" json:"company_id"`
	BranchID             uint             `gorm:"not null;uniqueIndex:ux_cylinder_scope_code,priority:2" json:"branch_id"`
	CylinderCode         string           `gorm:"size:50;not null;uniqueIndex:ux_cylinder_scope_code,priority:3" json:"cylinder_code"`
	SerialNumber         *string          `gorm:"size:100;index" json:"serial_number"`
	BarcodeNumber        *string          `gorm:"size:100;index" json:"barcode_number"`
	CylinderType         *string          `gorm:"size:50" json:"cylinder_type"`
	CylinderFamilyCode   string           `gorm:"size:50;not null" json:"cylinder_family_code"`
	GasContent           *string          `gorm:"size:50" json:"gas_content"`
	ManufactureNo        *string          `gorm:"size:100" json:"manufacture_no"`
	ChallanNo            *string          `gorm:"size:50" json:"challan_no"`
	Capacity             *decimal.Decimal `gorm:"type:decimal(10,2)" json:"capacity"`
	CapacityUnit         *string          `gorm:"size:20" json:"capacity_unit"`
	Manufacturer         *string          `gorm:"size:100" json:"manufacturer"`
	ManufactureDate      *Date            `json:"manufacture_date"`
	Status               string           `gorm:"size:20;not null" json:"status"`
	IsActive             bool             `gorm:"index" json:"is_active"`
	LastTestDate         *Date            `json:"last_test_date"`
	NextTestDate         *Date            `gorm:"index" json:"next_test_date"`
	OwnerType            OwnerType        `gorm:"size:10;not null" json:"owner_type"`
	OwnerPartyID         *uint            `gorm:"index" json:"owner_party_id"`
	CurrentHolderPartyID *uint            `gorm:"index" json:"current_holder_party_id"`
	OwnershipRemarks     *string          `gorm:"size:250" json:"ownership_remarks"`
	CreatedBy            *uint            `json:"created_by"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// CylinderTest is one inspection record. Rows are hard deleted.
type CylinderTest struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	CompanyID            uint             `gorm:"not null;index" json:"company_id"`
	BranchID             uint             `gorm:"not null;index" json:"branch_id"`
	CylinderID           uint             `gorm:"not null;index" json:"cylinder_id"`
	TestDate             Date             `gorm:"not null" json:"test_date"`
	TestType             string           `gorm:"size:50;not null" json:"test_type"`
	TestPressure         *decimal.Decimal `gorm:"type:decimal(10,2)" json:"test_pressure"`
	TestResult           TestResult       `gorm:"size:20;not null" json:"test_result"`
	InspectorName        *string          `gorm:"size:100" json:"inspector_name"`
	Notes                *string          `gorm:"type:text" json:"notes"`
	NextTestDate         *Date            `json:"next_test_date"`
	TestedBy             *uint            `json:"tested_by"`
	TareWeight           *decimal.Decimal `gorm:"type:decimal(10,2)" json:"tare_weight"`
	ReferenceNumber      *string          `gorm:"size:100" json:"reference_number"`
	PermissionNumber     *string          `gorm:"size:100" json:"permission_number"`
	PermissionDate       *Date            `json:"permission_date"`
	WaterFillingCapacity *decimal.Decimal `gorm:"type:decimal(10,2)" json:"water_filling_capacity"`
	Remarks              *string          `gorm:"type:text" json:"remarks"`
	CreatedAt            time.Time        `json:"created_at"`
}
