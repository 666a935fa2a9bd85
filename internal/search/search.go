// Package search runs one free text query across cylinders, users, parties,
// branches and companies within the caller's permitted scope.
package search

import (
	"context"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("search")}
}

// Query is a resolved search request. A nil BranchID searches every branch
// of the company.
type Query struct {
	Text      string
	Limit     int
	CompanyID uint
	BranchID  *uint
}

type CylinderHit struct {
	ID            uint    `json:"id"`
	CylinderCode  string  `json:"cylinder_code"`
	BarcodeNumber *string `json:"barcode_number"`
	SerialNumber  *string `json:"serial_number"`
}

type UserHit struct {
	ID        uint    `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     string  `json:"email"`
}

type PartyHit struct {
	ID        uint   `json:"id"`
	BranchID  uint   `json:"branch_id"`
	PartyCode string `json:"party_code"`
	PartyName string `json:"party_name"`
}

type BranchHit struct {
	ID         uint   `json:"id"`
	BranchName string `json:"branch_name"`
	BranchCode string `json:"branch_code"`
}

type CompanyHit struct {
	ID          uint   `json:"id"`
	CompanyName string `json:"company_name"`
	CompanyCode string `json:"company_code"`
}

type Result struct {
	Cylinders []CylinderHit `json:"cylinders"`
	Users     []UserHit     `json:"users"`
	Parties   []PartyHit    `json:"parties"`
	Branches  []BranchHit   `json:"branches"`
	Companies []CompanyHit  `json:"companies"`
}

// ClampLimit maps a missing or out of range limit into 1..MaxLimit.
func ClampLimit(raw *int) int {
	switch {
	case raw == nil:
		return DefaultLimit
	case *raw < 1:
		return 1
	case *raw > MaxLimit:
		return MaxLimit
	}
	return *raw
}

// Resolve applies the caller's permissions to the requested company and
// branch. Users below company admin level are pinned to their own branch.
func Resolve(p *auth.Principal, text string, limit *int, companyID, branchID *uint) (Query, error) {
	q := Query{Text: strings.TrimSpace(text), Limit: ClampLimit(limit), CompanyID: p.CompanyID, BranchID: branchID}
	if q.Text == "" {
		return Query{}, apperr.Validation("q is required")
	}
	if companyID != nil {
		q.CompanyID = *companyID
	}
	if q.CompanyID == 0 {
		return Query{}, apperr.Validation("company_id is required (or must be present in token)")
	}
	var b uint
	if branchID != nil {
		b = *branchID
	}
	if err := p.EnforceScope(q.CompanyID, b); err != nil {
		return Query{}, err
	}
	if q.BranchID == nil && p.PermissionLevel < models.PermissionCompanyAdmin && p.BranchID != 0 {
		own := p.BranchID
		q.BranchID = &own
	}
	return q, nil
}

func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(text)) + "%"
}

// matchAny is a scope adding "(LOWER(a) LIKE ? OR LOWER(b) LIKE ? ...)".
func matchAny(pattern string, columns ...string) func(*gorm.DB) *gorm.DB {
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		clauses[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

func (q Query) branch(db *gorm.DB) *gorm.DB {
	if q.BranchID == nil {
		return db
	}
	return db.Where("branch_id = ?", *q.BranchID)
}

// Search returns up to Limit active rows per entity. Companies other than
// the query's own are only searched for super admins.
func (s *Service) Search(ctx context.Context, p *auth.Principal, q Query) (*Result, error) {
	db := s.db.WithContext(ctx)
	like := likePattern(q.Text)
	res := &Result{
		Cylinders: []CylinderHit{},
		Users:     []UserHit{},
		Parties:   []PartyHit{},
		Branches:  []BranchHit{},
		Companies: []CompanyHit{},
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"cylinders", func() error {
			return q.branch(db.Model(&models.Cylinder{})).
				Where("company_id = ? AND is_active = ?", q.CompanyID, true).
				Scopes(matchAny(like, "cylinder_code", "serial_number", "barcode_number")).
				Order("created_at DESC, id DESC").Limit(q.Limit).
				Find(&res.Cylinders).Error
		}},
		{"users", func() error {
			return q.branch(db.Model(&models.User{})).
				Where("company_id = ? AND is_active = ?", q.CompanyID, true).
				Scopes(matchAny(like, "email", "first_name", "last_name")).
				Order("created_at DESC, id DESC").Limit(q.Limit).
				Find(&res.Users).Error
		}},
		{"parties", func() error {
			return q.branch(db.Model(&models.Party{})).
				Where("company_id = ? AND is_active = ?", q.CompanyID, true).
				Scopes(matchAny(like, "party_code", "party_name")).
				Order("party_name, id").Limit(q.Limit).
				Find(&res.Parties).Error
		}},
		{"branches", func() error {
			return db.Model(&models.Branch{}).
				Where("company_id = ? AND is_active = ?", q.CompanyID, true).
				Scopes(matchAny(like, "branch_name", "branch_code")).
				Order("branch_name, id").Limit(q.Limit).
				Find(&res.Branches).Error
		}},
		{"companies", func() error {
			cq := db.Model(&models.Company{}).Where("is_active = ?", true)
			if p.PermissionLevel < models.PermissionSuperAdmin {
				cq = cq.Where("id = ?", q.CompanyID)
			}
			return cq.Scopes(matchAny(like, "company_name", "company_code")).
				Order("company_name, id").Limit(q.Limit).
				Find(&res.Companies).Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			s.log.Error("search failed", zap.String("entity", step.name), zap.Error(err))
			return nil, apperr.Wrap(err, "Failed to search")
		}
	}
	return res, nil
}
