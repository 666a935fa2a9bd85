package audit

import (
	"encoding/json"
	"fmt"

	"cylinder-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor identifies who performed a change.
type Actor struct {
	UserID   uint
	UserName string
}

type LogOptions struct {
	CompanyID   uint
	BranchID    *uint
	Actor       Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog stores an audit row with tx so it commits or rolls back with the
// change it describes.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		CompanyID:   opts.CompanyID,
		BranchID:    opts.BranchID,
		UserID:      opts.Actor.UserID,
		UserName:    opts.Actor.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

type Filter struct {
	CompanyID  uint
	BranchID   *uint
	EntityType string
	EntityID   *uint
	UserID     *uint
	Offset     int
	Limit      int
}

func List(db *gorm.DB, f Filter) ([]models.AuditLog, int64, error) {
	q := db.Model(&models.AuditLog{}).Where("company_id = ?", f.CompanyID)
	if f.BranchID != nil {
		q = q.Where("branch_id = ?", *f.BranchID)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		q = q.Where("entity_id = ?", *f.EntityID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Offset(f.Offset).Limit(f.Limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
