package preference

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sources reported by Effective.
const (
	SourceUser    = "user"
	SourceRole    = "role"
	SourceDefault = "default"
)

// RoleKey identifies a preference shared by every user holding a role.
type RoleKey struct {
	RoleID    uint
	CompanyID uint
	BranchID  *uint
	Name      string
}

func (k RoleKey) validate() error {
	if k.RoleID == 0 {
		return apperr.Validation("role_id is required")
	}
	return Key{CompanyID: k.CompanyID, Name: k.Name}.validate()
}

func (k RoleKey) where(q *gorm.DB) *gorm.DB {
	q = q.Where("role_id = ? AND company_id = ? AND pref_key = ?", k.RoleID, k.CompanyID, strings.TrimSpace(k.Name))
	if k.BranchID == nil {
		return q.Where("branch_id IS NULL")
	}
	return q.Where("branch_id = ?", *k.BranchID)
}

func (s *Service) GetRole(ctx context.Context, k RoleKey) (*models.RolePreference, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	return latestRole(s.db.WithContext(ctx), k)
}

func latestRole(q *gorm.DB, k RoleKey) (*models.RolePreference, error) {
	var rows []models.RolePreference
	if err := k.where(q).Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(err, "Role preference could not be loaded")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// PutRole stores value under k, replacing an existing value.
func (s *Service) PutRole(ctx context.Context, k RoleKey, value json.RawMessage, updatedBy *uint) (*models.RolePreference, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, apperr.Validation("pref_value is required")
	}
	if !json.Valid(value) {
		return nil, apperr.Validation("pref_value must be valid JSON")
	}

	var out models.RolePreference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND is_active = ?", k.RoleID, true).First(&models.Role{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("Invalid role_id")
			}
			return err
		}
		existing, err := latestRole(tx, k)
		if err != nil {
			return err
		}
		if existing == nil {
			out = models.RolePreference{
				RoleID:    k.RoleID,
				CompanyID: k.CompanyID,
				BranchID:  k.BranchID,
				PrefKey:   strings.TrimSpace(k.Name),
				PrefValue: datatypes.JSON(value),
				UpdatedBy: updatedBy,
			}
			return tx.Create(&out).Error
		}
		out = *existing
		out.PrefValue = datatypes.JSON(value)
		out.UpdatedBy = updatedBy
		return tx.Model(&out).Updates(map[string]any{"pref_value": out.PrefValue, "updated_by": updatedBy}).Error
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Role preference could not be saved")
	}
	return &out, nil
}

func (s *Service) DeleteRole(ctx context.Context, k RoleKey) error {
	if err := k.validate(); err != nil {
		return err
	}
	res := k.where(s.db.WithContext(ctx)).Delete(&models.RolePreference{})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "Role preference could not be deleted")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Role preference not found")
	}
	return nil
}

// RoleID looks up an active role by name; zero when none matches.
func (s *Service) RoleID(ctx context.Context, name string) (uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Role{}).
		Where("role_name = ? AND is_active = ?", name, true).
		Limit(1).Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, apperr.Wrap(err, "Role could not be loaded")
	}
	return ids[0], nil
}

type Effective struct {
	PrefKey   string          `json:"pref_key"`
	PrefValue json.RawMessage `json:"pref_value"`
	Source    string          `json:"source"`
}

// Effective resolves k for a user: the user's own value wins, then the
// role's, then an empty list. At each level a branch value beats the
// company wide one. roleID zero skips the role level.
func (s *Service) Effective(ctx context.Context, k Key, roleID uint) (*Effective, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	out := &Effective{PrefKey: strings.TrimSpace(k.Name)}
	branches := []*uint{nil}
	if k.BranchID != nil {
		branches = []*uint{k.BranchID, nil}
	}

	for _, b := range branches {
		uk := k
		uk.BranchID = b
		p, err := s.Get(ctx, uk)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out.PrefValue, out.Source = json.RawMessage(p.PrefValue), SourceUser
			return out, nil
		}
	}
	if roleID != 0 {
		for _, b := range branches {
			p, err := latestRole(s.db.WithContext(ctx), RoleKey{RoleID: roleID, CompanyID: k.CompanyID, BranchID: b, Name: k.Name})
			if err != nil {
				return nil, err
			}
			if p != nil {
				out.PrefValue, out.Source = json.RawMessage(p.PrefValue), SourceRole
				return out, nil
			}
		}
	}
	out.PrefValue, out.Source = json.RawMessage("[]"), SourceDefault
	return out, nil
}
