// Package testutil builds in-memory databases and seed rows for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/database"
	"cylinder-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const Secret = "test-secret-test-secret-test-secret-0123"

var dbSeq atomic.Int64

// NewDB returns a migrated sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenMemory(fmt.Sprintf("%s_%d", name, dbSeq.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type Tenant struct {
	Company models.Company
	Branch  models.Branch
	User    models.User
}

func (tn Tenant) Scope() auth.Scope {
	return auth.Scope{CompanyID: tn.Company.ID, BranchID: tn.Branch.ID}
}

// SeedTenant creates a company with one branch and a user of the given level.
func SeedTenant(t *testing.T, db *gorm.DB, code string, level int) Tenant {
	t.Helper()
	tn := Tenant{
		Company: models.Company{CompanyCode: code, CompanyName: code + " Gases", IsActive: true},
	}
	require.NoError(t, db.Create(&tn.Company).Error)

	tn.Branch = models.Branch{CompanyID: tn.Company.ID, BranchCode: code + "-B1", BranchName: code + " Main", IsActive: true}
	require.NoError(t, db.Create(&tn.Branch).Error)

	tn.User = models.User{
		CompanyID:       tn.Company.ID,
		BranchID:        tn.Branch.ID,
		FirstName:       "Test",
		Email:           strings.ToLower(code) + "@example.com",
		PasswordHash:    "x",
		RoleName:        "User",
		PermissionLevel: level,
		IsActive:        true,
	}
	require.NoError(t, db.Create(&tn.User).Error)
	return tn
}

// SeedBranch adds a second branch to a tenant's company.
func SeedBranch(t *testing.T, db *gorm.DB, companyID uint, code string) models.Branch {
	t.Helper()
	b := models.Branch{CompanyID: companyID, BranchCode: code, BranchName: code, IsActive: true}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func SeedParty(t *testing.T, db *gorm.DB, s auth.Scope, code string) models.Party {
	t.Helper()
	p := models.Party{
		CompanyID: s.CompanyID,
		BranchID:  s.BranchID,
		PartyCode: code,
		PartyName: "Party " + code,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// Token signs a bearer token for u with Secret.
func Token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(Secret, time.Hour, &u)
	require.NoError(t, err)
	return "Bearer " + tok
}
