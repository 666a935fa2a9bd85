package preference

import (
	"bytes"
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
)

func TestPutGetDelete(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	companyWide := Key{UserID: tn.User.ID, CompanyID: tn.Company.ID, Name: "cylinders.columns"}
	branch := companyWide
	branch.BranchID = &tn.Branch.ID

	got, err := svc.Get(ctx, companyWide)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.Put(ctx, companyWide, json.RawMessage(`["code","status"]`))
	require.NoError(t, err)
	_, err = svc.Put(ctx, companyWide, json.RawMessage(`["code"]`))
	require.NoError(t, err)
	_, err = svc.Put(ctx, branch, json.RawMessage(`{"compact":true}`))
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Model(&models.UserPreference{}).Count(&n).Error)
	assert.Equal(t, int64(2), n, "put replaces the value stored under the same key")

	got, err = svc.Get(ctx, companyWide)
	require.NoError(t, err)
	assert.JSONEq(t, `["code"]`, string(got.PrefValue))

	got, err = svc.Get(ctx, branch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"compact":true}`, string(got.PrefValue))

	_, err = svc.Put(ctx, companyWide, json.RawMessage(`{broken`))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	_, err = svc.Get(ctx, Key{UserID: tn.User.ID, CompanyID: tn.Company.ID})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	require.NoError(t, svc.Delete(ctx, branch))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(svc.Delete(ctx, branch)))
	got, err = svc.Get(ctx, companyWide)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestHandlers_DefaultToTokenCompany(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	svc := NewService(db, zap.NewNop())

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	api := app.Group("/", auth.JWTMiddleware(testutil.Secret))
	api.Get("/user-preferences", GetHandler(svc))
	api.Put("/user-preferences", PutHandler(svc))
	token := testutil.Token(t, tn.User)

	call := func(method, path string, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, out := call(http.MethodGet, "/user-preferences?pref_key=grid", "")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, out["data"])

	status, _ = call(http.MethodPut, "/user-preferences", `{"pref_key":"grid","pref_value":{"rows":50}}`)
	require.Equal(t, http.StatusOK, status)

	status, out = call(http.MethodGet, "/user-preferences?pref_key=grid", "")
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, map[string]any{"rows": float64(50)}, data["pref_value"])

	status, _ = call(http.MethodGet, "/user-preferences?pref_key=grid&company_id=999", "")
	assert.Equal(t, http.StatusForbidden, status)
}
