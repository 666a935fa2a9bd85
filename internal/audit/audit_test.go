package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

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

func TestWriteLog_RollsBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	actor := ActorFrom(&auth.Principal{UserID: tn.User.ID, Email: tn.User.Email})

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return WriteLog(tx, LogOptions{
			CompanyID: tn.Company.ID, BranchID: &tn.Branch.ID, Actor: actor,
			EntityType: "cylinder", EntityID: 5, Action: models.AuditActionUpdate,
			Before: map[string]any{"status": "available"},
			After:  map[string]any{"status": "filled"},
		})
	}))
	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, WriteLog(tx, LogOptions{CompanyID: tn.Company.ID, Actor: actor, EntityType: "party", EntityID: 1}))
		return errors.New("abort")
	})

	logs, total, err := List(db, Filter{CompanyID: tn.Company.ID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, tn.User.Email, logs[0].UserName)
	assert.JSONEq(t, `{"status":"filled"}`, string(logs[0].AfterData))
}

func TestList_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	other := testutil.SeedBranch(t, db, tn.Company.ID, "B2")

	write := func(branch uint, entity string, id uint) {
		require.NoError(t, WriteLog(db, LogOptions{
			CompanyID: tn.Company.ID, BranchID: &branch, EntityType: entity, EntityID: id,
			Action: models.AuditActionCreate,
		}))
	}
	write(tn.Branch.ID, "cylinder", 1)
	write(tn.Branch.ID, "cylinder", 2)
	write(other.ID, "party", 1)

	_, total, err := List(db, Filter{CompanyID: tn.Company.ID, BranchID: &tn.Branch.ID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	id := uint(2)
	logs, total, err := List(db, Filter{CompanyID: tn.Company.ID, EntityType: "cylinder", EntityID: &id, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, uint(2), logs[0].EntityID)

	_, total, err = List(db, Filter{CompanyID: tn.Company.ID + 100, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListHandler_BranchUserSeesOwnBranch(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	other := testutil.SeedBranch(t, db, tn.Company.ID, "B2")
	for _, b := range []uint{tn.Branch.ID, other.ID} {
		require.NoError(t, WriteLog(db, LogOptions{CompanyID: tn.Company.ID, BranchID: &b, EntityType: "cylinder", EntityID: 1}))
	}

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	app.Get("/audit-logs", auth.JWTMiddleware(testutil.Secret), ListAuditLogsHandler(db))
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

	status, out := get("/audit-logs")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, _ = get("/audit-logs?branch_id=" + strconv.FormatUint(uint64(other.ID), 10))
	assert.Equal(t, http.StatusForbidden, status)
}

