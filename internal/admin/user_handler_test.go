package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newUserApp(db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	api := app.Group("/", auth.JWTMiddleware(testutil.Secret))
	api.Get("/roles", ListRolesHandler(db))
	users := api.Group("/users", auth.RequirePermission(models.PermissionCompanyAdmin))
	users.Get("/", ListUsersHandler(db))
	users.Post("/", CreateUserHandler(db))
	users.Get("/:id", GetUserHandler(db))
	users.Put("/:id", UpdateUserHandler(db))
	users.Delete("/:id", DeleteUserHandler(db))
	return app
}

func sendAs(t *testing.T, app *fiber.App, token, method, path string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func roleIDs(t *testing.T, db *gorm.DB) map[string]uint {
	t.Helper()
	var roles []models.Role
	require.NoError(t, db.Find(&roles).Error)
	out := map[string]uint{}
	for _, r := range roles {
		out[r.RoleName] = r.ID
	}
	return out
}

func TestListRoles(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	app := newUserApp(db)

	status, out := sendAs(t, app, testutil.Token(t, tn.User), http.MethodGet, "/roles", nil)
	require.Equal(t, http.StatusOK, status)
	roles := out["data"].([]any)
	require.Len(t, roles, len(models.DefaultRoles))
	assert.Equal(t, "User", roles[0].(map[string]any)["role_name"])
	assert.Equal(t, "Super Admin", roles[len(roles)-1].(map[string]any)["role_name"])
}

func TestUserLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionCompanyAdmin)
	app := newUserApp(db)
	token := testutil.Token(t, tn.User)
	roles := roleIDs(t, db)

	status, out := sendAs(t, app, token, http.MethodPost, "/users", map[string]any{
		"branch_id": tn.Branch.ID, "role_id": roles["User"],
		"first_name": "Meera", "email": " Meera@Acme.com ", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, out)
	data := out["data"].(map[string]any)
	assert.Equal(t, "meera@acme.com", data["email"])
	assert.Equal(t, "User", data["role_name"])
	assert.Nil(t, data["password_hash"])
	userID := idOf(out)

	var u models.User
	require.NoError(t, db.Where("email = ?", "meera@acme.com").First(&u).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")))

	status, _ = sendAs(t, app, token, http.MethodPost, "/users", map[string]any{
		"branch_id": tn.Branch.ID, "role_id": roles["User"],
		"first_name": "Again", "email": "meera@acme.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = sendAs(t, app, token, http.MethodPost, "/users", map[string]any{
		"branch_id": tn.Branch.ID, "role_id": roles["User"],
		"first_name": "Short", "email": "short@acme.com", "password": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = sendAs(t, app, token, http.MethodPost, "/users", map[string]any{
		"branch_id": tn.Branch.ID, "role_id": roles["Super Admin"],
		"first_name": "Boss", "email": "boss@acme.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, out = sendAs(t, app, token, http.MethodPut, "/users/"+userID, map[string]any{
		"role_id": roles["Branch Admin"], "last_name": "Iyer",
	})
	require.Equal(t, http.StatusOK, status, out)
	data = out["data"].(map[string]any)
	assert.Equal(t, "Branch Admin", data["role_name"])
	assert.Equal(t, float64(models.PermissionCompanyAdmin), data["permission_level"])
	assert.Equal(t, "Iyer", data["last_name"])

	status, out = sendAs(t, app, token, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 2)

	status, _ = sendAs(t, app, token, http.MethodDelete, "/users/"+jsonID(tn.User.ID), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = sendAs(t, app, token, http.MethodDelete, "/users/"+userID, nil)
	require.Equal(t, http.StatusOK, status)

	status, out = sendAs(t, app, token, http.MethodGet, "/users?is_active=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)
}

func TestUsers_TenantScope(t *testing.T) {
	db := testutil.NewDB(t)
	acme := testutil.SeedTenant(t, db, "ACME", models.PermissionCompanyAdmin)
	other := testutil.SeedTenant(t, db, "BETA", models.PermissionUser)
	app := newUserApp(db)
	token := testutil.Token(t, acme.User)

	status, _ := sendAs(t, app, token, http.MethodGet, "/users/"+jsonID(other.User.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = sendAs(t, app, token, http.MethodGet, "/users?company_id="+jsonID(other.Company.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)

	// a branch of another company is rejected
	status, _ = sendAs(t, app, token, http.MethodPost, "/users", map[string]any{
		"branch_id": other.Branch.ID, "role_id": roleIDs(t, db)["User"],
		"first_name": "X", "email": "x@acme.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = sendAs(t, app, testutil.Token(t, other.User), http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, status)
}
