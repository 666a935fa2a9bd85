package party

import (
	"context"
	"fmt"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityParty = "party"

	msgPartyNotFound = "Party not found"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("party")}
}

type AddressInput struct {
	ID          *uint   `json:"id"`
	AddressType string  `json:"address_type" validate:"required"`
	Address1    string  `json:"address1" validate:"required,max=250"`
	Address2    *string `json:"address2" validate:"omitempty,max=250"`
	Address3    *string `json:"address3" validate:"omitempty,max=250"`
	CityID      *uint   `json:"city_id"`
	StateID     *uint   `json:"state_id"`
	CountryID   *uint   `json:"country_id"`
	Pincode     *string `json:"pincode" validate:"omitempty,max=10"`
	IsDefault   bool    `json:"is_default"`
}

type ContactInput struct {
	ID            *uint   `json:"id"`
	FirstName     string  `json:"first_name" validate:"required,max=100"`
	LastName      *string `json:"last_name" validate:"omitempty,max=100"`
	Email         *string `json:"email" validate:"omitempty,email"`
	MobileNo      *string `json:"mobile_no" validate:"omitempty,max=20"`
	PhoneNo       *string `json:"phone_no" validate:"omitempty,max=20"`
	ContactPerson *string `json:"contact_person"`
	IsPrimary     bool    `json:"is_primary"`
}

type CreateInput struct {
	CompanyID       *uint          `json:"company_id"`
	BranchID        *uint          `json:"branch_id"`
	PartyCode       string         `json:"party_code" validate:"required,max=20"`
	PartyName       string         `json:"party_name" validate:"required,max=200"`
	PartyTypeID     *uint          `json:"party_type_id"`
	PartyCategoryID *uint          `json:"party_category_id"`
	GSTNum          *string        `json:"gst_num" validate:"omitempty,max=25"`
	PANNo           *string        `json:"pan_no" validate:"omitempty,max=15"`
	CINNo           *string        `json:"cin_no" validate:"omitempty,max=25"`
	CompanyType     *string        `json:"company_type"`
	MSMENo          *string        `json:"msme_no"`
	MSMEType        *string        `json:"msme_type"`
	UdyamNo         *string        `json:"udyam_no"`
	Phone           *string        `json:"phone" validate:"omitempty,max=20"`
	Email           *string        `json:"email" validate:"omitempty,email"`
	ContactPerson   *string        `json:"contact_person"`
	Addresses       []AddressInput `json:"addresses" validate:"dive"`
	Contacts        []ContactInput `json:"contacts" validate:"dive"`
}

// UpdateInput patches party columns; addresses and contacts with an id are
// overwritten, those without are added.
type UpdateInput struct {
	PartyCode       nullable.Field[string] `json:"party_code"`
	PartyName       nullable.Field[string] `json:"party_name"`
	PartyTypeID     nullable.Field[uint]   `json:"party_type_id"`
	PartyCategoryID nullable.Field[uint]   `json:"party_category_id"`
	GSTNum          nullable.Field[string] `json:"gst_num"`
	PANNo           nullable.Field[string] `json:"pan_no"`
	CINNo           nullable.Field[string] `json:"cin_no"`
	CompanyType     nullable.Field[string] `json:"company_type"`
	MSMENo          nullable.Field[string] `json:"msme_no"`
	MSMEType        nullable.Field[string] `json:"msme_type"`
	UdyamNo         nullable.Field[string] `json:"udyam_no"`
	Phone           nullable.Field[string] `json:"phone"`
	Email           nullable.Field[string] `json:"email"`
	ContactPerson   nullable.Field[string] `json:"contact_person"`
	IsActive        nullable.Field[bool]   `json:"is_active"`
	Addresses       []AddressInput         `json:"addresses" validate:"dive"`
	Contacts        []ContactInput         `json:"contacts" validate:"dive"`
}

func (in UpdateInput) columns() (map[string]any, error) {
	updates := map[string]any{}
	for _, f := range []struct {
		field  nullable.Field[string]
		column string
	}{{in.PartyCode, "party_code"}, {in.PartyName, "party_name"}} {
		if !f.field.Set {
			continue
		}
		if f.field.Null || strings.TrimSpace(f.field.Value) == "" {
			return nil, apperr.Validation(f.column + " cannot be empty")
		}
		updates[f.column] = strings.TrimSpace(f.field.Value)
	}
	if in.IsActive.Set {
		if in.IsActive.Null {
			return nil, apperr.Validation("is_active cannot be null")
		}
		updates["is_active"] = in.IsActive.Value
	}
	in.PartyTypeID.Apply(updates, "party_type_id")
	in.PartyCategoryID.Apply(updates, "party_category_id")
	in.GSTNum.Apply(updates, "gst_num")
	in.PANNo.Apply(updates, "pan_no")
	in.CINNo.Apply(updates, "cin_no")
	in.CompanyType.Apply(updates, "company_type")
	in.MSMENo.Apply(updates, "msme_no")
	in.MSMEType.Apply(updates, "msme_type")
	in.UdyamNo.Apply(updates, "udyam_no")
	in.Phone.Apply(updates, "phone")
	in.Email.Apply(updates, "email")
	in.ContactPerson.Apply(updates, "contact_person")
	return updates, nil
}

// NormalizeAddressType matches raw against the known address types
// case-insensitively and returns the canonical spelling.
func NormalizeAddressType(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	for _, t := range models.AddressTypes {
		if strings.EqualFold(t, v) {
			return t, nil
		}
	}
	return "", apperr.Validation("address_type must be one of " + strings.Join(models.AddressTypes, ", "))
}

func scoped(q *gorm.DB, s auth.Scope) *gorm.DB {
	return q.Where("company_id = ? AND branch_id = ?", s.CompanyID, s.BranchID)
}

func codeTaken(tx *gorm.DB, s auth.Scope, code string, exceptID uint) (bool, error) {
	var n int64
	q := scoped(tx.Model(&models.Party{}), s).Where("party_code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func loadParty(tx *gorm.DB, id uint, s auth.Scope) (*models.Party, error) {
	var p models.Party
	if err := scoped(tx, s).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, apperr.FromDB(err, msgPartyNotFound)
	}
	return &p, nil
}

func (s *Service) Create(ctx context.Context, actor audit.Actor, scope auth.Scope, createdBy *uint, in CreateInput) (*models.Party, error) {
	p := models.Party{
		CompanyID:       scope.CompanyID,
		BranchID:        scope.BranchID,
		PartyCode:       strings.TrimSpace(in.PartyCode),
		PartyName:       strings.TrimSpace(in.PartyName),
		PartyTypeID:     in.PartyTypeID,
		PartyCategoryID: in.PartyCategoryID,
		GSTNum:          in.GSTNum,
		PANNo:           in.PANNo,
		CINNo:           in.CINNo,
		CompanyType:     in.CompanyType,
		MSMENo:          in.MSMENo,
		MSMEType:        in.MSMEType,
		UdyamNo:         in.UdyamNo,
		Phone:           in.Phone,
		Email:           in.Email,
		ContactPerson:   in.ContactPerson,
		IsActive:        true,
		CreatedBy:       createdBy,
	}
	if p.PartyCode == "" || p.PartyName == "" {
		return nil, apperr.Validation("party_code and party_name are required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := codeTaken(tx, scope, p.PartyCode, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict(fmt.Sprintf("Party code %s already exists in this branch", p.PartyCode))
		}
		if err := tx.Create(&p).Error; err != nil {
			return apperr.FromDB(err, msgPartyNotFound)
		}
		if err := saveChildren(tx, p.ID, in.Addresses, in.Contacts); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityParty,
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: "Party " + p.PartyCode + " created",
			After:       p,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Party could not be created")
	}
	return s.Get(ctx, p.ID, scope)
}

// saveChildren writes address and contact rows of a party. A row flagged
// default (or primary) takes the flag from its siblings, so the last flagged
// row of a request wins.
func saveChildren(tx *gorm.DB, partyID uint, addresses []AddressInput, contacts []ContactInput) error {
	for _, a := range addresses {
		if _, err := saveAddress(tx, partyID, a); err != nil {
			return err
		}
	}
	for _, c := range contacts {
		if _, err := saveContact(tx, partyID, c); err != nil {
			return err
		}
	}
	return nil
}

func saveAddress(tx *gorm.DB, partyID uint, in AddressInput) (*models.PartyAddress, error) {
	addrType, err := NormalizeAddressType(in.AddressType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Address1) == "" {
		return nil, apperr.Validation("address1 is required")
	}
	a := models.PartyAddress{
		PartyID:     partyID,
		AddressType: addrType,
		Address1:    strings.TrimSpace(in.Address1),
		Address2:    in.Address2,
		Address3:    in.Address3,
		CityID:      in.CityID,
		StateID:     in.StateID,
		CountryID:   in.CountryID,
		Pincode:     in.Pincode,
		IsDefault:   in.IsDefault,
		IsActive:    true,
	}
	if in.ID == nil {
		if err := tx.Create(&a).Error; err != nil {
			return nil, err
		}
	} else {
		var existing models.PartyAddress
		if err := tx.Where("id = ? AND party_id = ?", *in.ID, partyID).First(&existing).Error; err != nil {
			return nil, apperr.FromDB(err, "Address not found for this party")
		}
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		if err := tx.Save(&a).Error; err != nil {
			return nil, err
		}
	}
	if a.IsDefault {
		if err := makeDefault(tx, &a); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func saveContact(tx *gorm.DB, partyID uint, in ContactInput) (*models.PartyContact, error) {
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, apperr.Validation("contact first_name is required")
	}
	c := models.PartyContact{
		PartyID:       partyID,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      in.LastName,
		Email:         in.Email,
		MobileNo:      in.MobileNo,
		PhoneNo:       in.PhoneNo,
		ContactPerson: in.ContactPerson,
		IsPrimary:     in.IsPrimary,
		IsActive:      true,
	}
	if in.ID == nil {
		if err := tx.Create(&c).Error; err != nil {
			return nil, err
		}
	} else {
		var existing models.PartyContact
		if err := tx.Where("id = ? AND party_id = ?", *in.ID, partyID).First(&existing).Error; err != nil {
			return nil, apperr.FromDB(err, "Contact not found for this party")
		}
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		if err := tx.Save(&c).Error; err != nil {
			return nil, err
		}
	}
	if c.IsPrimary {
		if err := makePrimary(tx, &c); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// makeDefault clears the default flag of the other addresses of the same type.
func makeDefault(tx *gorm.DB, keep *models.PartyAddress) error {
	return tx.Model(&models.PartyAddress{}).
		Where("party_id = ? AND address_type = ? AND is_active = ? AND id <> ?", keep.PartyID, keep.AddressType, true, keep.ID).
		Update("is_default", false).Error
}

func makePrimary(tx *gorm.DB, keep *models.PartyContact) error {
	return tx.Model(&models.PartyContact{}).
		Where("party_id = ? AND is_active = ? AND id <> ?", keep.PartyID, true, keep.ID).
		Update("is_primary", false).Error
}

// Get returns the party with its active addresses and contacts.
func (s *Service) Get(ctx context.Context, id uint, scope auth.Scope) (*models.Party, error) {
	var p models.Party
	err := scoped(s.db.WithContext(ctx), scope).
		Preload("Addresses", "is_active = ?", true, func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Contacts", "is_active = ?", true, func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, apperr.FromDB(err, msgPartyNotFound)
	}
	return &p, nil
}

type ListFilter struct {
	Scope    auth.Scope
	Search   string
	IsActive *bool
	Offset   int
	Limit    int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Party, int64, error) {
	q := scoped(s.db.WithContext(ctx).Model(&models.Party{}), f.Scope)
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(party_code) LIKE ? OR LOWER(party_name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(err, "Parties could not be listed")
	}
	var out []models.Party
	if err := q.Order("party_name, id").Offset(f.Offset).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, apperr.Wrap(err, "Parties could not be listed")
	}
	return out, total, nil
}

func (s *Service) Update(ctx context.Context, actor audit.Actor, id uint, scope auth.Scope, modifiedBy *uint, in UpdateInput) (*models.Party, error) {
	updates, err := in.columns()
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := loadParty(tx, id, scope)
		if err != nil {
			return err
		}
		if code, ok := updates["party_code"].(string); ok && code != before.PartyCode {
			taken, err := codeTaken(tx, scope, code, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict(fmt.Sprintf("Party code %s already exists in this branch", code))
			}
		}
		if len(updates) > 0 {
			updates["modified_by"] = modifiedBy
			if err := tx.Model(&models.Party{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, msgPartyNotFound)
			}
		}
		if err := saveChildren(tx, id, in.Addresses, in.Contacts); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityParty,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Party " + before.PartyCode + " updated",
			Before:      before,
			After:       updates,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Party could not be updated")
	}
	return s.Get(ctx, id, scope)
}

// Delete deactivates the party together with its addresses and contacts.
func (s *Service) Delete(ctx context.Context, actor audit.Actor, id uint, scope auth.Scope) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := loadParty(tx, id, scope)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Party{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PartyAddress{}).Where("party_id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PartyContact{}).Where("party_id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityParty,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "Party " + before.PartyCode + " deactivated",
			Before:      before,
		})
	})
	return apperr.Wrap(err, "Party could not be deleted")
}

func (s *Service) ListTypes(ctx context.Context, companyID uint) ([]models.PartyType, error) {
	var out []models.PartyType
	err := s.db.WithContext(ctx).Where("company_id = ? AND is_active = ?", companyID, true).
		Order("type_name").Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Party types could not be listed")
	}
	return out, nil
}

func (s *Service) CreateType(ctx context.Context, companyID uint, code, name string) (*models.PartyType, error) {
	pt := models.PartyType{
		CompanyID: companyID,
		TypeCode:  strings.ToUpper(strings.TrimSpace(code)),
		TypeName:  strings.TrimSpace(name),
		IsActive:  true,
	}
	if pt.TypeCode == "" || pt.TypeName == "" {
		return nil, apperr.Validation("type_code and type_name are required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.PartyType{}).Where("company_id = ? AND type_code = ?", companyID, pt.TypeCode).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("Party type " + pt.TypeCode + " already exists")
		}
		return tx.Create(&pt).Error
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Party type could not be created")
	}
	return &pt, nil
}
