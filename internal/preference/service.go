// Package preference stores UI settings (column layouts, favourites) as
// JSON values keyed by name, per user with a per-role fallback.
package preference

import (
	"context"
	"encoding/json"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("preference")}
}

// Key identifies one preference. A nil BranchID applies to every branch of
// the company and is stored separately from branch specific values.
type Key struct {
	UserID    uint
	CompanyID uint
	BranchID  *uint
	Name      string
}

func (k Key) validate() error {
	if k.CompanyID == 0 {
		return apperr.Validation("company_id is required")
	}
	if strings.TrimSpace(k.Name) == "" {
		return apperr.Validation("pref_key is required")
	}
	return nil
}

func (k Key) where(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ? AND company_id = ? AND pref_key = ?", k.UserID, k.CompanyID, strings.TrimSpace(k.Name))
	if k.BranchID == nil {
		return q.Where("branch_id IS NULL")
	}
	return q.Where("branch_id = ?", *k.BranchID)
}

// Get returns nil without error when nothing is stored.
func (s *Service) Get(ctx context.Context, k Key) (*models.UserPreference, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	var rows []models.UserPreference
	if err := k.where(s.db.WithContext(ctx)).Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(err, "Preference could not be loaded")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Put stores value under k, replacing an existing value.
func (s *Service) Put(ctx context.Context, k Key, value json.RawMessage) (*models.UserPreference, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, apperr.Validation("pref_value is required")
	}
	if !json.Valid(value) {
		return nil, apperr.Validation("pref_value must be valid JSON")
	}

	var out models.UserPreference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.UserPreference
		if err := k.where(tx).Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			out = models.UserPreference{
				UserID:    k.UserID,
				CompanyID: k.CompanyID,
				BranchID:  k.BranchID,
				PrefKey:   strings.TrimSpace(k.Name),
				PrefValue: datatypes.JSON(value),
			}
			return tx.Create(&out).Error
		}
		out = rows[0]
		out.PrefValue = datatypes.JSON(value)
		return tx.Model(&out).Update("pref_value", out.PrefValue).Error
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Preference could not be saved")
	}
	return &out, nil
}

func (s *Service) Delete(ctx context.Context, k Key) error {
	if err := k.validate(); err != nil {
		return err
	}
	res := k.where(s.db.WithContext(ctx)).Delete(&models.UserPreference{})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "Preference could not be deleted")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Preference not found")
	}
	return nil
}
