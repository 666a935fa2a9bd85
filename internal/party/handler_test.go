package party

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
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
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	api := app.Group("/", auth.JWTMiddleware(testutil.Secret))
	api.Post("/parties", CreatePartyHandler(f.svc))
	api.Get("/parties", ListPartiesHandler(f.svc))
	api.Post("/parties/upload", UploadPartiesHandler(f.svc, 100))
	api.Get("/parties/:id", GetPartyHandler(f.svc))
	api.Put("/parties/:id", UpdatePartyHandler(f.svc))
	api.Delete("/parties/:id", DeletePartyHandler(f.svc))
	api.Post("/parties/:id/addresses", AddAddressHandler(f.svc))
	api.Put("/party-addresses/:addressId", UpdateAddressHandler(f.svc))
	api.Get("/party-types", ListTypesHandler(f.svc))
	api.Post("/party-types", CreateTypeHandler(f.svc))
	return app
}

func send(t *testing.T, app *fiber.App, req *http.Request, token string) (int, envelope) {
	t.Helper()
	req.Header.Set("Authorization", token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandlers_PartyLifecycle(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	token := testutil.Token(t, f.tenant.User)

	status, env := send(t, app, jsonRequest(t, http.MethodPost, "/parties", map[string]any{
		"party_code": "P-1",
		"party_name": "Blue Star",
		"email":      "not-an-email",
	}), token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	status, env = send(t, app, jsonRequest(t, http.MethodPost, "/parties", map[string]any{
		"party_code": "P-1",
		"party_name": "Blue Star",
		"addresses":  []map[string]any{{"address_type": "Office", "address1": "1 Main Rd"}},
	}), token)
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created models.Party
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Addresses, 1)

	path := fmt.Sprintf("/parties/%d", created.ID)
	status, env = send(t, app, jsonRequest(t, http.MethodPut, path, map[string]any{"gst_num": nil, "phone": "12345"}), token)
	require.Equal(t, http.StatusOK, status, env.Message)
	var updated models.Party
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "12345", *updated.Phone)

	status, env = send(t, app, jsonRequest(t, http.MethodPut,
		fmt.Sprintf("/party-addresses/%d", created.Addresses[0].ID),
		map[string]any{"address_type": "Plant", "address1": "Unit 4"}), token)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = send(t, app, httptest.NewRequest(http.MethodDelete, path, nil), token)
	require.Equal(t, http.StatusOK, status)

	status, env = send(t, app, httptest.NewRequest(http.MethodGet, "/parties?is_active=0", nil), token)
	require.Equal(t, http.StatusOK, status)
	var rows []models.Party
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows, 1)
}

func TestHandlers_UploadParties(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "parties.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Party Code,Party Name,Address Type,Address1\nP-1,Blue Star,Billing,1 Main Rd\nP-2,,,\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/parties/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, env := send(t, app, req, testutil.Token(t, f.tenant.User))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Upload complete. 1 inserted, 0 updated, 1 failed.", env.Message)
}

func TestHandlers_PartyTypesScope(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	token := testutil.Token(t, f.tenant.User)

	status, env := send(t, app, jsonRequest(t, http.MethodPost, "/party-types",
		map[string]any{"type_code": "VEN", "type_name": "Vendor"}), token)
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, _ = send(t, app, httptest.NewRequest(http.MethodGet, "/party-types?company_id=999", nil), token)
	assert.Equal(t, http.StatusForbidden, status)
}
