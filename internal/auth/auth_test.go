package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToken_RoundTrip(t *testing.T) {
	u := models.User{ID: 7, CompanyID: 2, BranchID: 3, Email: "a@b.c", RoleName: "User", PermissionLevel: models.PermissionUser}
	tok, err := auth.GenerateToken(testutil.Secret, time.Hour, &u)
	require.NoError(t, err)

	claims, err := auth.ParseToken(testutil.Secret, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(2), claims.CompanyID)
	assert.Equal(t, uint(3), claims.BranchID)
	assert.Equal(t, models.PermissionUser, claims.PermissionLevel)

	_, err = auth.ParseToken("another-secret-another-secret-0000", tok)
	assert.Error(t, err)

	expired, err := auth.GenerateToken(testutil.Secret, -time.Minute, &u)
	require.NoError(t, err)
	_, err = auth.ParseToken(testutil.Secret, expired)
	assert.Error(t, err)
}

func TestEnforceScope(t *testing.T) {
	user := &auth.Principal{CompanyID: 1, BranchID: 10, PermissionLevel: models.PermissionUser}
	admin := &auth.Principal{CompanyID: 1, BranchID: 10, PermissionLevel: models.PermissionCompanyAdmin}
	super := &auth.Principal{CompanyID: 1, BranchID: 10, PermissionLevel: models.PermissionSuperAdmin}

	assert.NoError(t, user.EnforceScope(1, 10))
	assert.NoError(t, user.EnforceScope(0, 0))
	assert.True(t, apperr.Is(user.EnforceScope(1, 11), apperr.CodeForbidden))
	assert.True(t, apperr.Is(user.EnforceScope(2, 10), apperr.CodeForbidden))

	assert.NoError(t, admin.EnforceScope(1, 11))
	assert.True(t, apperr.Is(admin.EnforceScope(2, 20), apperr.CodeForbidden))

	assert.NoError(t, super.EnforceScope(2, 20))
}

func TestResolve(t *testing.T) {
	p := &auth.Principal{CompanyID: 1, BranchID: 10, PermissionLevel: models.PermissionCompanyAdmin}

	s, err := p.Resolve(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, auth.Scope{CompanyID: 1, BranchID: 10}, s)

	other := uint(11)
	s, err = p.Resolve(nil, &other)
	require.NoError(t, err)
	assert.Equal(t, uint(11), s.BranchID)

	missing := &auth.Principal{PermissionLevel: models.PermissionSuperAdmin}
	_, err = missing.Resolve(nil, nil)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	app.Use(auth.JWTMiddleware(testutil.Secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		return c.SendString(p.Email)
	})
	app.Get("/admin", auth.RequirePermission(models.PermissionSuperAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	u := models.User{ID: 1, CompanyID: 1, BranchID: 1, Email: "u@example.com", PermissionLevel: models.PermissionUser}
	token := testutil.Token(t, u)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/whoami", "", http.StatusUnauthorized},
		{"wrong scheme", "/whoami", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/whoami", "Bearer nope", http.StatusUnauthorized},
		{"valid", "/whoami", token, http.StatusOK},
		{"low permission", "/admin", token, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestService_RegisterOnce(t *testing.T) {
	db := testutil.NewDB(t)
	company := models.Company{CompanyCode: "ACME", CompanyName: "Acme", IsActive: true}
	require.NoError(t, db.Create(&company).Error)
	branch := models.Branch{CompanyID: company.ID, BranchCode: "HQ", BranchName: "HQ", IsActive: true}
	require.NoError(t, db.Create(&branch).Error)

	svc := auth.NewService(db, testutil.Secret, time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterInput{FirstName: "A", Email: "a@example.com", Password: "password1"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	res, err := svc.Register(ctx, auth.RegisterInput{
		CompanyID: &company.ID, BranchID: &branch.ID,
		FirstName: "A", Email: " A@Example.com ", Password: "password1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "a@example.com", res.User.Email)
	assert.Equal(t, models.PermissionCompanyAdmin, res.User.PermissionLevel)

	_, err = svc.Register(ctx, auth.RegisterInput{
		CompanyID: &company.ID, BranchID: &branch.ID,
		FirstName: "B", Email: "b@example.com", Password: "password1",
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.Login(ctx, "a@example.com", "password1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "a@example.com", "bad")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestService_Bootstrap(t *testing.T) {
	db := testutil.NewDB(t)
	svc := auth.NewService(db, testutil.Secret, time.Hour, zap.NewNop())

	u, err := svc.Bootstrap(context.Background(), auth.BootstrapInput{
		CompanyCode: "ROOT", CompanyName: "Root", BranchCode: "HQ", BranchName: "HQ",
		FirstName: "Admin", Email: "root@example.com", Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PermissionSuperAdmin, u.PermissionLevel)

	_, err = svc.Bootstrap(context.Background(), auth.BootstrapInput{
		CompanyCode: "ROOT", CompanyName: "Root", BranchCode: "HQ", BranchName: "HQ",
		Email: "other@example.com", Password: "password1",
	})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}
