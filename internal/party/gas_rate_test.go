package party

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"
	"cylinder-backend/internal/sheet"
	"cylinder-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type rateRefs struct {
	gas    models.GasType
	family models.CylinderFamily
	kg     models.UnitOfMeasure
}

func (f *fixture) seedRateRefs(t *testing.T) rateRefs {
	t.Helper()
	cid := f.tenant.Company.ID
	refs := rateRefs{
		gas:    models.GasType{CompanyID: cid, GasCode: "O2", GasName: "Oxygen", IsActive: true},
		family: models.CylinderFamily{CompanyID: cid, FamilyCode: "B-47L", FamilyName: "Type B", IsActive: true},
		kg:     models.UnitOfMeasure{CompanyID: cid, UOMCode: "KG", UOMName: "Kilogram", IsActive: true},
	}
	require.NoError(t, f.db.Create(&refs.gas).Error)
	require.NoError(t, f.db.Create(&refs.family).Error)
	require.NoError(t, f.db.Create(&refs.kg).Error)
	return refs
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func day(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dayPtr(s string) *models.Date {
	d := day(s)
	return &d
}

func (r rateRefs) input(from string) GasRateInput {
	return GasRateInput{
		GasTypeID:       r.gas.ID,
		UnitOfMeasureID: r.kg.ID,
		OwnershipType:   "own",
		Rate:            dec("120.456"),
		EffectiveFrom:   day(from),
	}
}

func TestGasRate_CreateAndOverlap(t *testing.T) {
	f := newFixture(t)
	refs := f.seedRateRefs(t)
	cid := f.tenant.Company.ID

	in := refs.input("2024-01-01")
	in.EffectiveTo = dayPtr("2024-06-30")
	r, err := f.svc.CreateGasRate(f.ctx, f.actor, cid, &f.tenant.User.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.RateOwnershipOwn, r.OwnershipType)
	assert.Equal(t, "120.46", r.Rate.StringFixed(2))
	assert.Equal(t, "INR", r.Currency)
	require.NotNil(t, r.GasType)
	assert.Equal(t, "O2", r.GasType.GasCode)

	// same dimensions, intersecting range
	_, err = f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, refs.input("2024-06-30"))
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	// next period starts after the close date
	_, err = f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, refs.input("2024-07-01"))
	require.NoError(t, err)

	// a family specific rate is a separate dimension
	fam := refs.input("2024-03-01")
	fam.CylinderFamilyID = &refs.family.ID
	_, err = f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, fam)
	require.NoError(t, err)

	// a party rate does not clash with the company default
	party := testutil.SeedParty(t, f.db, f.scope, "P-1")
	pr := refs.input("2024-03-01")
	pr.PartyID = &party.ID
	_, err = f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, pr)
	require.NoError(t, err)

	defaults, err := f.svc.ListGasRates(f.ctx, GasRateFilter{CompanyID: cid})
	require.NoError(t, err)
	assert.Len(t, defaults, 3)
	partyRates, err := f.svc.ListGasRates(f.ctx, GasRateFilter{CompanyID: cid, PartyID: &party.ID})
	require.NoError(t, err)
	require.Len(t, partyRates, 1)
	require.NotNil(t, partyRates[0].Party)
	all, err := f.svc.ListGasRates(f.ctx, GasRateFilter{CompanyID: cid, AllParties: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestGasRate_Validation(t *testing.T) {
	f := newFixture(t)
	refs := f.seedRateRefs(t)
	other := testutil.SeedTenant(t, f.db, "OTHER", models.PermissionUser)
	cid := f.tenant.Company.ID

	cases := map[string]func(in *GasRateInput){
		"ownership":     func(in *GasRateInput) { in.OwnershipType = "LEASED" },
		"negative rate": func(in *GasRateInput) { in.Rate = dec("-1") },
		"missing rate":  func(in *GasRateInput) { in.Rate = nil },
		"missing from":  func(in *GasRateInput) { in.EffectiveFrom = models.Date{} },
		"bad range":     func(in *GasRateInput) { in.EffectiveTo = dayPtr("2023-12-31") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := refs.input("2024-01-01")
			mutate(&in)
			_, err := f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, in)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}

	// references must belong to the company
	_, err := f.svc.CreateGasRate(f.ctx, f.actor, other.Company.ID, nil, refs.input("2024-01-01"))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestGasRate_CloseDeactivateReactivate(t *testing.T) {
	f := newFixture(t)
	refs := f.seedRateRefs(t)
	cid := f.tenant.Company.ID

	first, err := f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, refs.input("2024-01-01"))
	require.NoError(t, err)

	_, err = f.svc.UpdateGasRate(f.ctx, f.actor, cid, first.ID, nil, GasRatePatch{EffectiveTo: nullable.Of(day("2024-03-31"))})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err), "is_active is required")

	_, err = f.svc.UpdateGasRate(f.ctx, f.actor, cid, first.ID, nil, GasRatePatch{
		EffectiveTo: nullable.Of(day("2023-01-01")), IsActive: nullable.Of(true),
	})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	closed, err := f.svc.UpdateGasRate(f.ctx, f.actor, cid, first.ID, &f.tenant.User.ID, GasRatePatch{
		EffectiveTo: nullable.Of(day("2024-03-31")), IsActive: nullable.Of(true),
	})
	require.NoError(t, err)
	require.NotNil(t, closed.EffectiveTo)
	assert.Equal(t, "2024-03-31", closed.EffectiveTo.String())

	second, err := f.svc.CreateGasRate(f.ctx, f.actor, cid, nil, refs.input("2024-04-01"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeactivateGasRate(f.ctx, f.actor, cid, second.ID, nil))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(f.svc.DeactivateGasRate(f.ctx, f.actor, cid, second.ID, nil)))

	// reopening the first rate is fine while the second is inactive
	_, err = f.svc.UpdateGasRate(f.ctx, f.actor, cid, first.ID, nil, GasRatePatch{
		EffectiveTo: nullable.Null[models.Date](), IsActive: nullable.Of(true),
	})
	require.NoError(t, err)

	// reactivating the second now overlaps the open first rate
	_, err = f.svc.UpdateGasRate(f.ctx, f.actor, cid, second.ID, nil, GasRatePatch{IsActive: nullable.Of(true)})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	_, err = f.svc.GetGasRate(f.ctx, cid+100, first.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestImportGasRates(t *testing.T) {
	f := newFixture(t)
	refs := f.seedRateRefs(t)
	testutil.SeedParty(t, f.db, f.scope, "P-1")
	p := f.principal()

	res, err := f.svc.ImportGasRates(f.ctx, p, f.scope, []sheet.Row{
		{"gas_code": "o2", "uom_code": "kg", "ownership_type": "OWN", "rate": "100", "effective_from": "2024-01-01"},
		{},
		{"cust_code": "p-1", "gas_code": "O2", "cylinder_family_code": "b-47l", "uom_code": "KG",
			"ownership_type": "party", "rate": "80.5", "currency": "usd", "effective_from": "01/02/2024", "effective_to": "2024-12-31"},
		{"gas_code": "O2", "uom_code": "KG", "ownership_type": "OWN", "rate": "110", "effective_from": "2024-05-01"},
		{"gas_code": "N2", "uom_code": "KG", "ownership_type": "OWN", "rate": "50", "effective_from": "2024-01-01"},
		{"party_code": "NOPE", "gas_code": "O2", "uom_code": "KG", "ownership_type": "OWN", "rate": "50", "effective_from": "2024-01-01"},
		{"gas_code": "O2", "uom_code": "KG", "ownership_type": "OWN", "rate": "abc", "effective_from": "2024-01-01"},
		{"gas_code": "O2", "uom_code": "KG", "ownership_type": "OWN", "rate": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, res.Total, res.Inserted+res.Failed)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Errors, 5)

	assert.Equal(t, 5, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Error, "Overlapping")
	assert.Equal(t, "Invalid gas_code: N2", res.Errors[1].Error)
	assert.Equal(t, "Invalid party_code: NOPE", res.Errors[2].Error)
	assert.Equal(t, "rate must be a valid number", res.Errors[3].Error)
	assert.Contains(t, res.Errors[4].Error, "required")

	require.Len(t, res.InsertedRecords, 2)
	party := res.InsertedRecords[1]
	assert.Equal(t, models.RateOwnershipParty, party.OwnershipType)
	assert.Equal(t, "2024-02-01", party.EffectiveFrom.String())

	stored, err := f.svc.GetGasRate(f.ctx, f.tenant.Company.ID, party.PartyGasRateID)
	require.NoError(t, err)
	assert.Equal(t, "USD", stored.Currency)
	require.NotNil(t, stored.CylinderFamilyID)
	assert.Equal(t, refs.family.ID, *stored.CylinderFamilyID)

	_, err = f.svc.ImportGasRates(f.ctx, p, f.scope, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestHandlers_GasRates(t *testing.T) {
	f := newFixture(t)
	refs := f.seedRateRefs(t)
	other := testutil.SeedTenant(t, f.db, "OTHER", models.PermissionUser)

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	api := app.Group("/", auth.JWTMiddleware(testutil.Secret))
	api.Post("/party-gas-rates/upload", UploadGasRatesHandler(f.svc, 100))
	api.Get("/party-gas-rates", ListGasRatesHandler(f.svc))
	api.Post("/party-gas-rates", CreateGasRateHandler(f.svc))
	api.Get("/party-gas-rates/:id", GetGasRateHandler(f.svc))
	api.Put("/party-gas-rates/:id", UpdateGasRateHandler(f.svc))
	api.Delete("/party-gas-rates/:id", DeleteGasRateHandler(f.svc))
	token := testutil.Token(t, f.tenant.User)

	status, env := send(t, app, jsonRequest(t, http.MethodPost, "/party-gas-rates", map[string]any{
		"gas_type_id": refs.gas.ID, "unit_of_measure_id": refs.kg.ID,
		"ownership_type": "OWN", "rate": "99.9", "effective_from": "2024-01-01",
	}), token)
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created models.PartyGasRate
	require.NoError(t, json.Unmarshal(env.Data, &created))

	path := fmt.Sprintf("/party-gas-rates/%d", created.ID)
	status, env = send(t, app, jsonRequest(t, http.MethodPut, path, map[string]any{"rate": "120", "is_active": true}), token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Message, "create a new row")

	status, env = send(t, app, jsonRequest(t, http.MethodPut, path, map[string]any{"effective_to": "2024-06-30", "is_active": true}), token)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = send(t, app, httptest.NewRequest(http.MethodGet, path+fmt.Sprintf("?company_id=%d", other.Company.ID), nil), token)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = send(t, app, httptest.NewRequest(http.MethodGet, "/party-gas-rates?active=maybe", nil), token)
	assert.Equal(t, http.StatusBadRequest, status)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "rates.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Gas Code,UOM Code,Ownership Type,Rate,Effective From\nO2,KG,OWN,105,2024-07-01\nO2,KG,LEASED,1,2024-07-01\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/party-gas-rates/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, env = send(t, app, req, token)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, "Upload complete. 1 row(s) inserted successfully, 1 failed.", env.Message)

	status, env = send(t, app, httptest.NewRequest(http.MethodGet, "/party-gas-rates?active=all", nil), token)
	require.Equal(t, http.StatusOK, status)
	var rows []models.PartyGasRate
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows, 2)

	status, _ = send(t, app, httptest.NewRequest(http.MethodDelete, path, nil), token)
	assert.Equal(t, http.StatusOK, status)
}
