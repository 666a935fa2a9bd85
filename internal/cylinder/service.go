package cylinder

import (
	"context"
	"fmt"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityCylinder = "cylinder"
	entityTest     = "cylinder_test"
)

type Service struct {
	db   *gorm.DB
	repo *Repository
	log  *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, repo: NewRepository(db), log: log.Named("cylinder")}
}

type CreateInput struct {
	Scope                auth.Scope
	CreatedBy            *uint
	CylinderCode         string
	SerialNumber         *string
	BarcodeNumber        *string
	CylinderType         *string
	CylinderFamilyCode   string
	GasContent           *string
	ManufactureNo        *string
	ChallanNo            *string
	Capacity             *decimal.Decimal
	CapacityUnit         *string
	Manufacturer         *string
	ManufactureDate      *models.Date
	Status               string
	OwnerType            string
	OwnerPartyID         *uint
	CurrentHolderPartyID *uint
	OwnershipRemarks     *string

	// FirstTest is recorded together with the cylinder when set.
	FirstTest *TestInput
}

type CreateResult struct {
	CylinderID uint  `json:"cylinder_id"`
	TestID     *uint `json:"test_id"`
}

// FirstTestFrom returns a test input only when date, type and result are all
// given; anything less means the cylinder is created without a test.
func FirstTestFrom(date *models.Date, testType string, result *models.TestResult, rest TestInput) *TestInput {
	if date == nil || date.IsZero() || strings.TrimSpace(testType) == "" || result == nil {
		return nil
	}
	rest.TestDate = *date
	rest.TestType = strings.TrimSpace(testType)
	rest.TestResult = *result
	return &rest
}

func (s *Service) validateParties(tx *gorm.DB, companyID uint, o Ownership) error {
	for _, ref := range []struct {
		id    *uint
		field string
	}{{o.OwnerPartyID, "owner_party_id"}, {o.HolderPartyID, "current_holder_party_id"}} {
		if ref.id == nil {
			continue
		}
		ok, err := s.repo.PartyInCompany(tx, companyID, *ref.id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation(fmt.Sprintf("%s %d is not an active party of this company", ref.field, *ref.id))
		}
	}
	return nil
}

// changedParties keeps only the party links that differ from the stored ones.
// Links already on the cylinder stay valid after their party is deactivated.
func changedParties(before, after Ownership) Ownership {
	out := Ownership{Type: after.Type}
	if !sameID(before.OwnerPartyID, after.OwnerPartyID) {
		out.OwnerPartyID = after.OwnerPartyID
	}
	if !sameID(before.HolderPartyID, after.HolderPartyID) {
		out.HolderPartyID = after.HolderPartyID
	}
	return out
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Create inserts a cylinder and, when requested, its first test record in
// one transaction; a failing test insert rolls back the cylinder too.
func (s *Service) Create(ctx context.Context, actor audit.Actor, in CreateInput) (*CreateResult, error) {
	if in.Scope.CompanyID == 0 || in.Scope.BranchID == 0 || strings.TrimSpace(in.CylinderCode) == "" {
		return nil, apperr.Validation("Company ID, Branch ID, and Cylinder Code are required")
	}
	family := strings.TrimSpace(in.CylinderFamilyCode)
	if family == "" {
		return nil, apperr.Validation("cylinder_family_code is required")
	}
	own, err := ValidateForCreate(in.OwnerType, in.OwnerPartyID, in.CurrentHolderPartyID)
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.DefaultCylinderStatus
	}

	c := models.Cylinder{
		CompanyID:            in.Scope.CompanyID,
		BranchID:             in.Scope.BranchID,
		CylinderCode:         strings.TrimSpace(in.CylinderCode),
		SerialNumber:         in.SerialNumber,
		BarcodeNumber:        in.BarcodeNumber,
		CylinderType:         in.CylinderType,
		CylinderFamilyCode:   family,
		GasContent:           in.GasContent,
		ManufactureNo:        in.ManufactureNo,
		ChallanNo:            in.ChallanNo,
		Capacity:             in.Capacity,
		CapacityUnit:         in.CapacityUnit,
		Manufacturer:         in.Manufacturer,
		ManufactureDate:      in.ManufactureDate,
		Status:               status,
		IsActive:             true,
		OwnerType:            own.Type,
		OwnerPartyID:         own.OwnerPartyID,
		CurrentHolderPartyID: own.HolderPartyID,
		OwnershipRemarks:     in.OwnershipRemarks,
		CreatedBy:            in.CreatedBy,
	}

	res := &CreateResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.repo.CodeTaken(tx, c.CylinderCode, in.Scope, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict(fmt.Sprintf("Cylinder code %s already exists in this branch", c.CylinderCode))
		}
		if err := s.validateParties(tx, in.Scope.CompanyID, own); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return apperr.FromDB(err, msgCylinderNotFound)
		}
		res.CylinderID = c.ID

		if in.FirstTest != nil {
			first := *in.FirstTest
			if first.TestedBy == nil {
				first.TestedBy = in.CreatedBy
			}
			t, err := s.repo.CreateTest(tx, in.Scope, c.ID, first)
			if err != nil {
				return err
			}
			res.TestID = &t.ID
			if err := s.repo.RecalculateDates(tx, c.ID); err != nil {
				return err
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   c.CompanyID,
			BranchID:    &c.BranchID,
			Actor:       actor,
			EntityType:  entityCylinder,
			EntityID:    c.ID,
			Action:      models.AuditActionCreate,
			Description: "Cylinder " + c.CylinderCode + " created",
			After:       c,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Cylinder could not be created")
	}
	if res.TestID != nil {
		metrics.TestMutations.WithLabelValues("create").Inc()
	}
	s.log.Info("cylinder created",
		zap.Uint("cylinder_id", res.CylinderID),
		zap.Uint("company_id", in.Scope.CompanyID),
		zap.Uint("branch_id", in.Scope.BranchID),
		zap.Bool("with_test", res.TestID != nil))
	return res, nil
}

// UpdateInput is a partial update; see package nullable for the absent/null
// convention. Cached test dates are not part of it.
type UpdateInput struct {
	CylinderCode         nullable.Field[string]          `json:"cylinder_code"`
	SerialNumber         nullable.Field[string]          `json:"serial_number"`
	BarcodeNumber        nullable.Field[string]          `json:"barcode_number"`
	CylinderType         nullable.Field[string]          `json:"cylinder_type"`
	CylinderFamilyCode   nullable.Field[string]          `json:"cylinder_family_code"`
	GasContent           nullable.Field[string]          `json:"gas_content"`
	ManufactureNo        nullable.Field[string]          `json:"manufacture_no"`
	ChallanNo            nullable.Field[string]          `json:"challan_no"`
	Capacity             nullable.Field[decimal.Decimal] `json:"capacity"`
	CapacityUnit         nullable.Field[string]          `json:"capacity_unit"`
	Manufacturer         nullable.Field[string]          `json:"manufacturer"`
	ManufactureDate      nullable.Field[models.Date]     `json:"manufacture_date"`
	Status               nullable.Field[string]          `json:"status"`
	IsActive             nullable.Field[bool]            `json:"is_active"`
	OwnerType            nullable.Field[string]          `json:"owner_type"`
	OwnerPartyID         nullable.Field[uint]            `json:"owner_party_id"`
	CurrentHolderPartyID nullable.Field[uint]            `json:"current_holder_party_id"`
	OwnershipRemarks     nullable.Field[string]          `json:"ownership_remarks"`
}

func requiredText(f nullable.Field[string], name string) (string, error) {
	if f.Null || strings.TrimSpace(f.Value) == "" {
		return "", apperr.Validation(name + " cannot be empty")
	}
	return strings.TrimSpace(f.Value), nil
}

func (in UpdateInput) columns() (map[string]any, error) {
	updates := map[string]any{}
	if in.CylinderCode.Set {
		v, err := requiredText(in.CylinderCode, "cylinder_code")
		if err != nil {
			return nil, err
		}
		updates["cylinder_code"] = v
	}
	if in.CylinderFamilyCode.Set {
		v, err := requiredText(in.CylinderFamilyCode, "cylinder_family_code")
		if err != nil {
			return nil, err
		}
		updates["cylinder_family_code"] = v
	}
	if in.Status.Set {
		v, err := requiredText(in.Status, "status")
		if err != nil {
			return nil, err
		}
		updates["status"] = strings.ToLower(v)
	}
	if in.IsActive.Set {
		if in.IsActive.Null {
			return nil, apperr.Validation("is_active cannot be null")
		}
		updates["is_active"] = in.IsActive.Value
	}

	in.SerialNumber.Apply(updates, "serial_number")
	in.BarcodeNumber.Apply(updates, "barcode_number")
	in.CylinderType.Apply(updates, "cylinder_type")
	in.GasContent.Apply(updates, "gas_content")
	in.ManufactureNo.Apply(updates, "manufacture_no")
	in.ChallanNo.Apply(updates, "challan_no")
	in.Capacity.Apply(updates, "capacity")
	in.CapacityUnit.Apply(updates, "capacity_unit")
	in.Manufacturer.Apply(updates, "manufacturer")
	in.ManufactureDate.Apply(updates, "manufacture_date")
	in.OwnershipRemarks.Apply(updates, "ownership_remarks")
	return updates, nil
}

func (s *Service) Update(ctx context.Context, actor audit.Actor, id uint, scope auth.Scope, in UpdateInput) (*models.Cylinder, error) {
	updates, err := in.columns()
	if err != nil {
		return nil, err
	}

	var after models.Cylinder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.LockCylinder(tx, id, scope)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(msgCylinderNotFound)
			}
			return err
		}

		own, err := ValidateForUpdate(ownershipOf(before), OwnershipPatch{
			OwnerType:     in.OwnerType,
			OwnerPartyID:  in.OwnerPartyID,
			HolderPartyID: in.CurrentHolderPartyID,
		})
		if err != nil {
			return err
		}
		if err := s.validateParties(tx, scope.CompanyID, changedParties(ownershipOf(before), own)); err != nil {
			return err
		}
		updates["owner_type"] = own.Type
		updates["owner_party_id"] = own.OwnerPartyID
		updates["current_holder_party_id"] = own.HolderPartyID

		if code, ok := updates["cylinder_code"].(string); ok && code != before.CylinderCode {
			taken, err := s.repo.CodeTaken(tx, code, scope, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict(fmt.Sprintf("Cylinder code %s already exists in this branch", code))
			}
		}

		if err := tx.Model(&models.Cylinder{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, msgCylinderNotFound)
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityCylinder,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Cylinder " + after.CylinderCode + " updated",
			Before:      before,
			After:       after,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Cylinder could not be updated")
	}
	return &after, nil
}

// Delete deactivates the cylinder; its tests are kept.
func (s *Service) Delete(ctx context.Context, actor audit.Actor, id uint, scope auth.Scope) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.LockCylinder(tx, id, scope)
		if err != nil {
			if isNotFound(err) {
				return apperr.NotFound(msgCylinderNotFound)
			}
			return err
		}
		if err := tx.Model(&models.Cylinder{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityCylinder,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "Cylinder " + before.CylinderCode + " deactivated",
			Before:      before,
		})
	})
	return apperr.Wrap(err, "Cylinder could not be deleted")
}

// AddTest records a test and refreshes the cylinder's cached dates.
func (s *Service) AddTest(ctx context.Context, actor audit.Actor, scope auth.Scope, cylinderID uint, in TestInput) (*models.CylinderTest, error) {
	if in.TestDate.IsZero() {
		return nil, apperr.Validation("test_date is required")
	}

	var created *models.CylinderTest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.repo.CreateTest(tx, scope, cylinderID, in)
		if err != nil {
			return err
		}
		created = t
		if err := s.repo.RecalculateDates(tx, cylinderID); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityTest,
			EntityID:    t.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Test %s recorded for cylinder %d", t.TestDate, cylinderID),
			After:       t,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Cylinder test could not be recorded")
	}
	metrics.TestMutations.WithLabelValues("create").Inc()
	return created, nil
}

// UpdateTest overwrites a test record and refreshes the cached dates.
func (s *Service) UpdateTest(ctx context.Context, actor audit.Actor, scope auth.Scope, testID uint, in TestInput) error {
	if in.TestDate.IsZero() {
		return apperr.Validation("test_date is required")
	}
	if strings.TrimSpace(string(in.TestResult)) == "" {
		return apperr.Validation("test_status (or test_result) is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.UpdateTest(tx, testID, scope, in)
		if err != nil {
			return err
		}
		if err := s.repo.RecalculateDates(tx, before.CylinderID); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityTest,
			EntityID:    testID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Test %d of cylinder %d updated", testID, before.CylinderID),
			Before:      before,
			After:       in.columns(),
		})
	})
	if err != nil {
		return apperr.Wrap(err, "Cylinder test could not be updated")
	}
	metrics.TestMutations.WithLabelValues("update").Inc()
	return nil
}

// DeleteTest removes a test record and refreshes the cached dates from the
// tests that remain.
func (s *Service) DeleteTest(ctx context.Context, actor audit.Actor, scope auth.Scope, testID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.DeleteTest(tx, testID, scope)
		if err != nil {
			return err
		}
		if err := s.repo.RecalculateDates(tx, before.CylinderID); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   scope.CompanyID,
			BranchID:    &scope.BranchID,
			Actor:       actor,
			EntityType:  entityTest,
			EntityID:    testID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Test %d of cylinder %d deleted", testID, before.CylinderID),
			Before:      before,
		})
	})
	if err != nil {
		return apperr.Wrap(err, "Cylinder test could not be deleted")
	}
	metrics.TestMutations.WithLabelValues("delete").Inc()
	return nil
}

func (s *Service) ListTests(ctx context.Context, f TestFilter) ([]TestView, error) {
	if f.CompanyID == 0 {
		return nil, apperr.Validation("Company ID is required")
	}
	out, err := s.repo.ListTests(s.db.WithContext(ctx), f)
	if err != nil {
		return nil, apperr.Wrap(err, "Cylinder tests could not be listed")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint, scope auth.Scope) (*models.Cylinder, error) {
	return s.repo.Get(s.db.WithContext(ctx), id, scope)
}

func (s *Service) GetByCode(ctx context.Context, code string, scope auth.Scope) (*models.Cylinder, error) {
	return s.repo.GetBy(s.db.WithContext(ctx), "cylinder_code", code, scope)
}

func (s *Service) GetBySerial(ctx context.Context, serial string, scope auth.Scope) (*models.Cylinder, error) {
	return s.repo.GetBy(s.db.WithContext(ctx), "serial_number", serial, scope)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Cylinder, int64, error) {
	out, total, err := s.repo.List(s.db.WithContext(ctx), f)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "Cylinders could not be listed")
	}
	return out, total, nil
}

func (s *Service) Stats(ctx context.Context, scope auth.Scope) ([]StatusCount, error) {
	out, err := s.repo.CountByStatus(s.db.WithContext(ctx), scope)
	if err != nil {
		return nil, apperr.Wrap(err, "Cylinder statistics could not be loaded")
	}
	return out, nil
}

type DueCylinder struct {
	models.Cylinder
	DaysUntilDue int  `json:"days_until_due"`
	Overdue      bool `json:"overdue"`
}

// DueForTest lists active cylinders due within days from today, overdue ones included.
func (s *Service) DueForTest(ctx context.Context, scope auth.Scope, days int) ([]DueCylinder, error) {
	return s.dueForTestOn(ctx, scope, days, models.Today())
}

func (s *Service) dueForTestOn(ctx context.Context, scope auth.Scope, days int, today models.Date) ([]DueCylinder, error) {
	if days < 0 {
		return nil, apperr.Validation("days must not be negative")
	}
	rows, err := s.repo.DueBy(s.db.WithContext(ctx), scope, today.AddDays(days))
	if err != nil {
		return nil, apperr.Wrap(err, "Due cylinders could not be loaded")
	}
	out := make([]DueCylinder, 0, len(rows))
	for _, c := range rows {
		left := int(c.NextTestDate.Sub(today.Time).Hours() / 24)
		out = append(out, DueCylinder{Cylinder: c, DaysUntilDue: left, Overdue: left < 0})
	}
	return out, nil
}
