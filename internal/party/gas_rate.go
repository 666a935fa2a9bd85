package party

import (
	"context"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	entityGasRate = "party_gas_rate"

	msgGasRateNotFound = "Gas rate not found"
	defaultCurrency    = "INR"
)

type GasRateInput struct {
	PartyID          *uint            `json:"party_id"`
	GasTypeID        uint             `json:"gas_type_id" validate:"required"`
	CylinderFamilyID *uint            `json:"cylinder_family_id"`
	UnitOfMeasureID  uint             `json:"unit_of_measure_id" validate:"required"`
	OwnershipType    string           `json:"ownership_type" validate:"required"`
	Rate             *decimal.Decimal `json:"rate" validate:"required"`
	Currency         string           `json:"currency" validate:"omitempty,max=10"`
	EffectiveFrom    models.Date      `json:"effective_from"`
	EffectiveTo      *models.Date     `json:"effective_to"`
}

// GasRatePatch closes or reactivates a rate. The price dimensions are
// immutable; a price change is a new rate.
type GasRatePatch struct {
	EffectiveTo nullable.Field[models.Date] `json:"effective_to"`
	IsActive    nullable.Field[bool]        `json:"is_active"`
}

// ImmutableRateFields are rejected in an update body.
var ImmutableRateFields = []string{
	"party_id", "gas_type_id", "cylinder_family_id", "unit_of_measure_id",
	"ownership_type", "rate", "currency", "effective_from", "company_id",
}

type GasRateFilter struct {
	CompanyID uint
	// AllParties lists every rate; otherwise PartyID nil lists the company defaults.
	AllParties bool
	PartyID    *uint
	GasTypeID  *uint
	// nil lists active and inactive rates
	Active *bool
}

func normalizeOwnership(raw string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v != models.RateOwnershipOwn && v != models.RateOwnershipParty {
		return "", apperr.Validation("ownership_type must be OWN or PARTY")
	}
	return v, nil
}

func checkRange(from models.Date, to *models.Date) error {
	if from.IsZero() {
		return apperr.Validation("effective_from is required")
	}
	if to != nil && !to.IsZero() && to.Before(from.Time) {
		return apperr.Validation("effective_to cannot be earlier than effective_from")
	}
	return nil
}

func (in *GasRateInput) normalize() error {
	own, err := normalizeOwnership(in.OwnershipType)
	if err != nil {
		return err
	}
	in.OwnershipType = own
	if in.GasTypeID == 0 || in.UnitOfMeasureID == 0 || in.Rate == nil {
		return apperr.Validation("gas_type_id, unit_of_measure_id, ownership_type, rate, effective_from are required")
	}
	if in.Rate.IsNegative() {
		return apperr.Validation("rate cannot be negative")
	}
	if in.EffectiveTo != nil && in.EffectiveTo.IsZero() {
		in.EffectiveTo = nil
	}
	if err := checkRange(in.EffectiveFrom, in.EffectiveTo); err != nil {
		return err
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	return nil
}

// checkRateRefs verifies that every referenced row belongs to the company.
func checkRateRefs(tx *gorm.DB, companyID uint, in *GasRateInput) error {
	refs := []struct {
		model any
		id    *uint
		msg   string
	}{
		{&models.GasType{}, &in.GasTypeID, "Invalid gas_type_id"},
		{&models.UnitOfMeasure{}, &in.UnitOfMeasureID, "Invalid unit_of_measure_id"},
		{&models.CylinderFamily{}, in.CylinderFamilyID, "Invalid cylinder_family_id"},
		{&models.Party{}, in.PartyID, "Invalid party_id"},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		var n int64
		if err := tx.Model(ref.model).
			Where("id = ? AND company_id = ? AND is_active = ?", *ref.id, companyID, true).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.Validation(ref.msg)
		}
	}
	return nil
}

// overlapping reports an active rate on the same dimensions whose date range
// intersects r. Open ended ranges run forever.
func overlapping(tx *gorm.DB, r *models.PartyGasRate) (bool, error) {
	q := tx.Model(&models.PartyGasRate{}).
		Where("company_id = ? AND gas_type_id = ? AND ownership_type = ? AND is_active = ?",
			r.CompanyID, r.GasTypeID, r.OwnershipType, true).
		Where("effective_to IS NULL OR effective_to >= ?", r.EffectiveFrom)
	if r.ID != 0 {
		q = q.Where("id <> ?", r.ID)
	}
	if r.PartyID == nil {
		q = q.Where("party_id IS NULL")
	} else {
		q = q.Where("party_id = ?", *r.PartyID)
	}
	if r.CylinderFamilyID == nil {
		q = q.Where("cylinder_family_id IS NULL")
	} else {
		q = q.Where("cylinder_family_id = ?", *r.CylinderFamilyID)
	}
	if r.EffectiveTo != nil {
		q = q.Where("effective_from <= ?", *r.EffectiveTo)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func (s *Service) CreateGasRate(ctx context.Context, actor audit.Actor, companyID uint, createdBy *uint, in GasRateInput) (*models.PartyGasRate, error) {
	r, err := s.createGasRate(ctx, actor, companyID, createdBy, in, models.AuditActionCreate)
	if err != nil {
		return nil, err
	}
	return s.GetGasRate(ctx, companyID, r.ID)
}

func (s *Service) createGasRate(ctx context.Context, actor audit.Actor, companyID uint, createdBy *uint, in GasRateInput, action models.AuditAction) (*models.PartyGasRate, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	r := models.PartyGasRate{
		CompanyID:        companyID,
		PartyID:          in.PartyID,
		GasTypeID:        in.GasTypeID,
		CylinderFamilyID: in.CylinderFamilyID,
		UnitOfMeasureID:  in.UnitOfMeasureID,
		OwnershipType:    in.OwnershipType,
		Rate:             in.Rate.Round(2),
		Currency:         in.Currency,
		EffectiveFrom:    in.EffectiveFrom,
		EffectiveTo:      in.EffectiveTo,
		IsActive:         true,
		CreatedBy:        createdBy,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkRateRefs(tx, companyID, &in); err != nil {
			return err
		}
		clash, err := overlapping(tx, &r)
		if err != nil {
			return err
		}
		if clash {
			return apperr.Conflict("Overlapping gas rate already exists")
		}
		if err := tx.Create(&r).Error; err != nil {
			return apperr.FromDB(err, msgGasRateNotFound)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   companyID,
			Actor:       actor,
			EntityType:  entityGasRate,
			EntityID:    r.ID,
			Action:      action,
			Description: "Gas rate " + r.Rate.StringFixed(2) + " " + r.Currency + " from " + r.EffectiveFrom.String(),
			After:       r,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Gas rate could not be created")
	}
	return &r, nil
}

func loadGasRate(tx *gorm.DB, companyID, id uint) (*models.PartyGasRate, error) {
	var r models.PartyGasRate
	if err := tx.Where("id = ? AND company_id = ?", id, companyID).First(&r).Error; err != nil {
		return nil, apperr.FromDB(err, msgGasRateNotFound)
	}
	return &r, nil
}

func withRateRefs(q *gorm.DB) *gorm.DB {
	return q.Preload("Party").Preload("GasType").Preload("CylinderFamily").Preload("UnitOfMeasure")
}

func (s *Service) GetGasRate(ctx context.Context, companyID, id uint) (*models.PartyGasRate, error) {
	return loadGasRate(withRateRefs(s.db.WithContext(ctx)), companyID, id)
}

func (s *Service) ListGasRates(ctx context.Context, f GasRateFilter) ([]models.PartyGasRate, error) {
	q := withRateRefs(s.db.WithContext(ctx)).Where("company_id = ?", f.CompanyID)
	switch {
	case f.AllParties:
	case f.PartyID == nil:
		q = q.Where("party_id IS NULL")
	default:
		q = q.Where("party_id = ?", *f.PartyID)
	}
	if f.GasTypeID != nil {
		q = q.Where("gas_type_id = ?", *f.GasTypeID)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	var out []models.PartyGasRate
	if err := q.Order("effective_from DESC, id DESC").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, "Gas rates could not be listed")
	}
	return out, nil
}

// UpdateGasRate closes a rate with effective_to or toggles it. A rate being
// reactivated must not overlap another active rate.
func (s *Service) UpdateGasRate(ctx context.Context, actor audit.Actor, companyID, id uint, updatedBy *uint, in GasRatePatch) (*models.PartyGasRate, error) {
	if !in.IsActive.Set || in.IsActive.Null {
		return nil, apperr.Validation("is_active is required (effective_to optional)")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := loadGasRate(tx, companyID, id)
		if err != nil {
			return err
		}
		after := *before
		after.IsActive = in.IsActive.Value
		after.EffectiveTo = in.EffectiveTo.Ptr()
		if !in.EffectiveTo.Set {
			after.EffectiveTo = before.EffectiveTo
		} else if after.EffectiveTo != nil && after.EffectiveTo.IsZero() {
			after.EffectiveTo = nil
		}
		if err := checkRange(after.EffectiveFrom, after.EffectiveTo); err != nil {
			return err
		}
		if after.IsActive {
			clash, err := overlapping(tx, &after)
			if err != nil {
				return err
			}
			if clash {
				return apperr.Conflict("Overlapping gas rate already exists")
			}
		}
		if err := tx.Model(&models.PartyGasRate{}).Where("id = ?", id).Updates(map[string]any{
			"effective_to": after.EffectiveTo,
			"is_active":    after.IsActive,
			"updated_by":   updatedBy,
		}).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   companyID,
			Actor:       actor,
			EntityType:  entityGasRate,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Gas rate updated",
			Before:      before,
			After:       after,
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Gas rate could not be updated")
	}
	return s.GetGasRate(ctx, companyID, id)
}

func (s *Service) DeactivateGasRate(ctx context.Context, actor audit.Actor, companyID, id uint, updatedBy *uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := loadGasRate(tx, companyID, id)
		if err != nil {
			return err
		}
		if !before.IsActive {
			return apperr.NotFound("Active gas rate not found for this company")
		}
		if err := tx.Model(&models.PartyGasRate{}).Where("id = ?", id).
			Updates(map[string]any{"is_active": false, "updated_by": updatedBy}).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   companyID,
			Actor:       actor,
			EntityType:  entityGasRate,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "Gas rate deactivated",
			Before:      before,
		})
	})
	return apperr.Wrap(err, "Gas rate could not be deactivated")
}
