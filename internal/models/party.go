package models

import "time"

var AddressTypes = []string{"Billing", "Shipping", "Registered", "Office", "Plant", "Other"}

type PartyType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;uniqueIndex:ux_party_type_code,priority:1" json:"company_id"`
	TypeCode  string    `gorm:"size:20;not null;uniqueIndex:ux_party_type_code,priority:2" json:"type_code" validate:"required,max=20"`
	TypeName  string    `gorm:"size:100;not null" json:"type_name" validate:"required,max=100"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Party is a customer or vendor. PartyCode is the natural key inside a branch.
type Party struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyID       uint      `gorm:"not null;uniqueIndex:ux_party_scope_code,priority:1" json:"company_id"`
	BranchID        uint      `gorm:"not null;uniqueIndex:ux_party_scope_code,priority:2" json:"branch_id"`
	PartyCode       string    `gorm:"size:20;not null;uniqueIndex:ux_party_scope_code,priority:3" json:"party_code"`
	PartyName       string    `gorm:"size:200;not null" json:"party_name"`
	PartyTypeID     *uint     `json:"party_type_id"`
	PartyCategoryID *uint     `json:"party_category_id"`
	GSTNum          *string   `gorm:"column:gst_num;size:25" json:"gst_num"`
	PANNo           *string   `gorm:"column:pan_no;size:15" json:"pan_no"`
	CINNo           *string   `gorm:"column:cin_no;size:25" json:"cin_no"`
	CompanyType     *string   `gorm:"size:50" json:"company_type"`
	MSMENo          *string   `gorm:"column:msme_no;size:30" json:"msme_no"`
	MSMEType        *string   `gorm:"column:msme_type;size:50" json:"msme_type"`
	UdyamNo         *string   `gorm:"size:30" json:"udyam_no"`
	Phone           *string   `gorm:"size:20" json:"phone"`
	Email           *string   `gorm:"size:150" json:"email"`
	ContactPerson   *string   `gorm:"size:150" json:"contact_person"`
	IsActive        bool      `gorm:"index" json:"is_active"`
	CreatedBy       *uint     `json:"created_by"`
	ModifiedBy      *uint     `json:"modified_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Addresses []PartyAddress `gorm:"foreignKey:PartyID" json:"addresses,omitempty"`
	Contacts  []PartyContact `gorm:"foreignKey:PartyID" json:"contacts,omitempty"`
}

type PartyAddress struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PartyID     uint      `gorm:"not null;index" json:"party_id"`
	AddressType string    `gorm:"size:20;not null" json:"address_type"`
	Address1    string    `gorm:"column:address1;size:250;not null" json:"address1"`
	Address2    *string   `gorm:"column:address2;size:250" json:"address2"`
	Address3    *string   `gorm:"column:address3;size:250" json:"address3"`
	CityID      *uint     `json:"city_id"`
	StateID     *uint     `json:"state_id"`
	CountryID   *uint     `json:"country_id"`
	Pincode     *string   `gorm:"size:10" json:"pincode"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PartyContact struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PartyID       uint      `gorm:"not null;index" json:"party_id"`
	FirstName     string    `gorm:"size:100;not null" json:"first_name"`
	LastName      *string   `gorm:"size:100" json:"last_name"`
	Email         *string   `gorm:"size:150" json:"email"`
	MobileNo      *string   `gorm:"size:20" json:"mobile_no"`
	PhoneNo       *string   `gorm:"size:20" json:"phone_no"`
	ContactPerson *string   `gorm:"size:150" json:"contact_person"`
	IsPrimary     bool      `json:"is_primary"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
