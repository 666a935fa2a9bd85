// Package master serves the reference tables behind the cylinder and party
// screens: gas types and their categories, cylinder families, units of
// measure and geography.
package master

import (
	"context"
	"fmt"
	"strings"

	"cylinder-backend/internal/apperr"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("master")}
}

// Option is the dropdown shape of a master row.
type Option struct {
	Label string `json:"label"`
	Value uint   `json:"value"`
}

// Def describes one master table. Company scoped tables carry company_id;
// the geography tables are shared by all tenants.
type Def[T any] struct {
	Name   string
	Scoped bool
	// KeyColumn is unique per company (or globally); empty disables the check.
	KeyColumn string
	Search    []string
	Order     string
	// ParentColumn narrows list results, e.g. states by country_id.
	ParentColumn string

	Key     func(*T) string
	ID      func(*T) uint
	Option  func(*T) Option
	Prepare func(row *T, companyID uint)
}

type Filter struct {
	CompanyID uint
	Search    string
	// nil lists active and inactive rows
	Active   *bool
	ParentID *uint
}

func (d *Def[T]) scoped(q *gorm.DB, companyID uint) *gorm.DB {
	if d.Scoped {
		return q.Where("company_id = ?", companyID)
	}
	return q
}

func (d *Def[T]) notFound() string { return d.Name + " not found" }

func (d *Def[T]) keyTaken(tx *gorm.DB, companyID uint, key string, exceptID uint) (bool, error) {
	if d.KeyColumn == "" {
		return false, nil
	}
	var n int64
	q := d.scoped(tx.Model(new(T)), companyID).Where(d.KeyColumn+" = ?", key)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func List[T any](ctx context.Context, s *Service, d *Def[T], f Filter) ([]T, error) {
	q := d.scoped(s.db.WithContext(ctx).Model(new(T)), f.CompanyID)
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" && len(d.Search) > 0 {
		like := "%" + term + "%"
		clauses := make([]string, len(d.Search))
		args := make([]any, len(d.Search))
		for i, col := range d.Search {
			clauses[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = like
		}
		q = q.Where(strings.Join(clauses, " OR "), args...)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.ParentID != nil && d.ParentColumn != "" {
		q = q.Where(d.ParentColumn+" = ?", *f.ParentID)
	}
	var out []T
	if err := q.Order(d.Order).Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, d.Name+" list could not be loaded")
	}
	return out, nil
}

func Options[T any](rows []T, d *Def[T]) []Option {
	out := make([]Option, len(rows))
	for i := range rows {
		out[i] = d.Option(&rows[i])
	}
	return out
}

func Get[T any](ctx context.Context, s *Service, d *Def[T], companyID, id uint) (*T, error) {
	return load(s.db.WithContext(ctx), d, companyID, id)
}

func load[T any](tx *gorm.DB, d *Def[T], companyID, id uint) (*T, error) {
	var row T
	if err := d.scoped(tx, companyID).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, apperr.FromDB(err, d.notFound())
	}
	return &row, nil
}

// Create inserts row as active after a duplicate key check.
func Create[T any](ctx context.Context, s *Service, d *Def[T], companyID uint, row *T) (*T, error) {
	d.Prepare(row, companyID)
	key := d.Key(row)
	if d.KeyColumn != "" && key == "" {
		return nil, apperr.Validation(d.KeyColumn + " is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := d.keyTaken(tx, companyID, key, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict(fmt.Sprintf("%s %s already exists", d.Name, key))
		}
		return apperr.FromDB(tx.Create(row).Error, d.notFound())
	})
	if err != nil {
		return nil, apperr.Wrap(err, d.Name+" could not be created")
	}
	s.log.Info("master row created", zap.String("master", d.Name), zap.Uint("id", d.ID(row)))
	return row, nil
}

// Update applies a column patch and returns the stored row.
func Update[T any](ctx context.Context, s *Service, d *Def[T], companyID, id uint, updates map[string]any) (*T, error) {
	var out *T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := load(tx, d, companyID, id); err != nil {
			return err
		}
		if key, ok := updates[d.KeyColumn].(string); ok && d.KeyColumn != "" {
			taken, err := d.keyTaken(tx, companyID, key, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict(fmt.Sprintf("%s %s already exists", d.Name, key))
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(new(T)).Where("id = ?", id).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, d.notFound())
			}
		}
		row, err := load(tx, d, companyID, id)
		out = row
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(err, d.Name+" could not be updated")
	}
	return out, nil
}

func Deactivate[T any](ctx context.Context, s *Service, d *Def[T], companyID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := load(tx, d, companyID, id); err != nil {
			return err
		}
		return tx.Model(new(T)).Where("id = ?", id).Update("is_active", false).Error
	})
	return apperr.Wrap(err, d.Name+" could not be deactivated")
}
