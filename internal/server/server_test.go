package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cylinder-backend/internal/config"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:       "0",
		DBDriver:       config.DriverSQLite,
		JWTSecret:      testutil.Secret,
		JWTTTL:         time.Hour,
		CORSOrigins:    "*",
		ImportMaxRows:  100,
		DueDaysDefault: 30,
		MetricsEnabled: true,
	}
}

func newApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return New(testConfig(), db, zap.NewNop()), db
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	app, _ := newApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cylinder_http_requests_total")
}

func TestRegisterLoginMe(t *testing.T) {
	app, db := newApp(t)
	company := models.Company{CompanyCode: "ACME", CompanyName: "Acme Gases", IsActive: true}
	require.NoError(t, db.Create(&company).Error)
	branch := models.Branch{CompanyID: company.ID, BranchCode: "HQ", BranchName: "Head Office", IsActive: true}
	require.NoError(t, db.Create(&branch).Error)

	resp, out := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"company_name": "Acme Gases",
		"branch_name":  "Head Office",
		"first_name":   "Asha",
		"email":        "Asha@Example.com",
		"password":     "secret-pass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)

	resp, out = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "asha@example.com", "password": "secret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	token := out["data"].(map[string]any)["token"].(string)

	resp, out = call(t, app, http.MethodGet, "/api/v1/auth/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	me := out["data"].(map[string]any)
	assert.Equal(t, "ACME", me["company"].(map[string]any)["company_code"])

	resp, _ = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "asha@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouteProtection(t *testing.T) {
	app, db := newApp(t)
	user := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	companyAdmin := testutil.SeedTenant(t, db, "BETA", models.PermissionCompanyAdmin)
	super := testutil.SeedTenant(t, db, "ROOT", models.PermissionSuperAdmin)

	resp, _ := call(t, app, http.MethodGet, "/api/v1/cylinders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/v1/public/cylinder/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, out := call(t, app, http.MethodGet, "/api/v1/cylinders/stats", testutil.Token(t, user.User), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, out)

	resp, _ = call(t, app, http.MethodGet, "/api/v1/companies", testutil.Token(t, user.User), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, out = call(t, app, http.MethodGet, "/api/v1/companies", testutil.Token(t, super.User), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Len(t, out["data"], 3)

	country := map[string]any{"country_code": "IN", "country_name": "India"}
	resp, _ = call(t, app, http.MethodPost, "/api/v1/countries", testutil.Token(t, companyAdmin.User), country)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, out = call(t, app, http.MethodPost, "/api/v1/countries", testutil.Token(t, super.User), country)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, out)
	resp, _ = call(t, app, http.MethodGet, "/api/v1/countries", testutil.Token(t, user.User), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/v1/no-such-route", testutil.Token(t, user.User), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutes_CatalogueSearchAndUsers(t *testing.T) {
	app, db := newApp(t)
	user := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	companyAdmin := testutil.SeedTenant(t, db, "BETA", models.PermissionCompanyAdmin)
	super := testutil.SeedTenant(t, db, "ROOT", models.PermissionSuperAdmin)
	userToken := testutil.Token(t, user.User)

	category := map[string]any{"gas_category_code": "ind", "gas_category_name": "Industrial"}
	resp, _ := call(t, app, http.MethodPost, "/api/v1/gas-categories", testutil.Token(t, companyAdmin.User), category)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, out := call(t, app, http.MethodPost, "/api/v1/gas-categories", testutil.Token(t, super.User), category)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	resp, out = call(t, app, http.MethodGet, "/api/v1/gas-categories", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	resp, out = call(t, app, http.MethodGet, "/api/v1/search?q=acme", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Len(t, out["data"].(map[string]any)["companies"], 1)

	resp, out = call(t, app, http.MethodGet, "/api/v1/party-gas-rates?party_id=all", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, out)

	resp, out = call(t, app, http.MethodGet, "/api/v1/preferences/effective?pref_key=grid", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "default", out["data"].(map[string]any)["source"])

	resp, _ = call(t, app, http.MethodGet, "/api/v1/roles", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = call(t, app, http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = call(t, app, http.MethodGet, "/api/v1/role-preferences?role_id=1&pref_key=grid", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, out = call(t, app, http.MethodGet, "/api/v1/users", testutil.Token(t, companyAdmin.User), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Len(t, out["data"], 1)
}
