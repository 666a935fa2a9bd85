package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func principal(tn testutil.Tenant, level int) *auth.Principal {
	return &auth.Principal{
		UserID:          tn.User.ID,
		CompanyID:       tn.Company.ID,
		BranchID:        tn.Branch.ID,
		PermissionLevel: level,
	}
}

func seedCylinder(t *testing.T, db *gorm.DB, s auth.Scope, code, barcode string, active bool) {
	t.Helper()
	c := models.Cylinder{
		CompanyID: s.CompanyID, BranchID: s.BranchID,
		CylinderCode: code, BarcodeNumber: &barcode, CylinderFamilyCode: "B-47L",
		Status: models.DefaultCylinderStatus, OwnerType: models.OwnerSelf, IsActive: true,
	}
	require.NoError(t, db.Create(&c).Error)
	if !active {
		require.NoError(t, db.Model(&c).Update("is_active", false).Error)
	}
}

func intp(v int) *int    { return &v }
func uintp(v uint) *uint { return &v }

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(nil))
	assert.Equal(t, 1, ClampLimit(intp(0)))
	assert.Equal(t, 1, ClampLimit(intp(-4)))
	assert.Equal(t, 25, ClampLimit(intp(25)))
	assert.Equal(t, MaxLimit, ClampLimit(intp(500)))
}

func TestResolve(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	other := testutil.SeedBranch(t, db, tn.Company.ID, "ACME-B2")

	_, err := Resolve(principal(tn, models.PermissionUser), "  ", nil, nil, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	q, err := Resolve(principal(tn, models.PermissionUser), " gas ", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "gas", q.Text)
	require.NotNil(t, q.BranchID)
	assert.Equal(t, tn.Branch.ID, *q.BranchID)

	_, err = Resolve(principal(tn, models.PermissionUser), "gas", nil, nil, &other.ID)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	_, err = Resolve(principal(tn, models.PermissionCompanyAdmin), "gas", nil, uintp(tn.Company.ID+1), nil)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	q, err = Resolve(principal(tn, models.PermissionCompanyAdmin), "gas", nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, q.BranchID)

	q, err = Resolve(principal(tn, models.PermissionSuperAdmin), "gas", nil, uintp(tn.Company.ID+1), nil)
	require.NoError(t, err)
	assert.Equal(t, tn.Company.ID+1, q.CompanyID)
}

func TestSearch_ScopedPerEntity(t *testing.T) {
	db := testutil.NewDB(t)
	acme := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	beta := testutil.SeedTenant(t, db, "BETA", models.PermissionUser)
	b2 := testutil.SeedBranch(t, db, acme.Company.ID, "ACME-B2")
	b2Scope := auth.Scope{CompanyID: acme.Company.ID, BranchID: b2.ID}

	seedCylinder(t, db, acme.Scope(), "OX-001", "8901", true)
	seedCylinder(t, db, acme.Scope(), "OX-002", "8902", false)
	seedCylinder(t, db, b2Scope, "OX-100", "8903", true)
	seedCylinder(t, db, beta.Scope(), "OX-900", "8904", true)
	testutil.SeedParty(t, db, acme.Scope(), "OXYCORP")

	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	user := principal(acme, models.PermissionUser)
	q, err := Resolve(user, "ox", nil, nil, nil)
	require.NoError(t, err)
	res, err := svc.Search(ctx, user, q)
	require.NoError(t, err)
	require.Len(t, res.Cylinders, 1)
	assert.Equal(t, "OX-001", res.Cylinders[0].CylinderCode)
	require.Len(t, res.Parties, 1)
	assert.Equal(t, "OXYCORP", res.Parties[0].PartyCode)

	admin := principal(acme, models.PermissionCompanyAdmin)
	q, err = Resolve(admin, "OX-", nil, nil, nil)
	require.NoError(t, err)
	res, err = svc.Search(ctx, admin, q)
	require.NoError(t, err)
	assert.Len(t, res.Cylinders, 2)

	q.Limit = 1
	res, err = svc.Search(ctx, admin, q)
	require.NoError(t, err)
	assert.Len(t, res.Cylinders, 1)

	// underscore is literal, not a wildcard
	q, err = Resolve(admin, "OX_", nil, nil, nil)
	require.NoError(t, err)
	res, err = svc.Search(ctx, admin, q)
	require.NoError(t, err)
	assert.Empty(t, res.Cylinders)

	q, err = Resolve(admin, "8901", nil, nil, nil)
	require.NoError(t, err)
	res, err = svc.Search(ctx, admin, q)
	require.NoError(t, err)
	require.Len(t, res.Cylinders, 1)
	assert.Equal(t, "OX-001", res.Cylinders[0].CylinderCode)
}

func TestSearch_CompaniesAndUsers(t *testing.T) {
	db := testutil.NewDB(t)
	acme := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	testutil.SeedTenant(t, db, "ACMEX", models.PermissionUser)
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	admin := principal(acme, models.PermissionCompanyAdmin)
	q, err := Resolve(admin, "acme", nil, nil, nil)
	require.NoError(t, err)
	res, err := svc.Search(ctx, admin, q)
	require.NoError(t, err)
	require.Len(t, res.Companies, 1)
	assert.Equal(t, "ACME", res.Companies[0].CompanyCode)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "acme@example.com", res.Users[0].Email)
	assert.Len(t, res.Branches, 1)

	root := principal(acme, models.PermissionSuperAdmin)
	res, err = svc.Search(ctx, root, q)
	require.NoError(t, err)
	assert.Len(t, res.Companies, 2)
}

func TestHandler(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	seedCylinder(t, db, tn.Scope(), "OX-001", "8901", true)

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	app.Get("/search", auth.JWTMiddleware(testutil.Secret), Handler(NewService(db, zap.NewNop())))
	get := func(path string) (int, map[string]any) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", testutil.Token(t, tn.User))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, _ := get("/search")
	assert.Equal(t, http.StatusBadRequest, status)

	status, out := get("/search?q=ox&limit=0")
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Len(t, data["cylinders"], 1)
	assert.Empty(t, data["companies"])

	other := testutil.SeedBranch(t, db, tn.Company.ID, "ACME-B2")
	status, _ = get("/search?q=ox&branch_id=" + jsonID(other.ID))
	assert.Equal(t, http.StatusForbidden, status)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
