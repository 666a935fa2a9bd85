package party

import (
	"encoding/json"
	"fmt"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/sheet"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Party gas rates
// -------------------------

// rateCompany returns the requested company, defaulting to the caller's own.
func rateCompany(c *fiber.Ctx, requested *uint) (*auth.Principal, uint, error) {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return nil, 0, err
	}
	companyID := p.CompanyID
	if requested != nil {
		companyID = *requested
	}
	if companyID == 0 {
		return nil, 0, apperr.Validation("Company context missing in token")
	}
	return p, companyID, p.EnforceScope(companyID, 0)
}

// GET /api/v1/party-gas-rates?party_id=|all&gas_type_id=&active=1|0|all
func ListGasRatesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, companyID, err := rateCompany(c, httpx.QueryUint(c, "company_id"))
		if err != nil {
			return err
		}
		f := GasRateFilter{
			CompanyID:  companyID,
			AllParties: strings.EqualFold(c.Query("party_id"), "all"),
			PartyID:    httpx.QueryUint(c, "party_id"),
			GasTypeID:  httpx.QueryUint(c, "gas_type_id"),
		}
		switch raw := strings.TrimSpace(c.Query("active")); {
		case raw == "":
			on := true
			f.Active = &on
		case strings.EqualFold(raw, "all"):
		default:
			if f.Active = httpx.ParseBool(raw); f.Active == nil {
				return apperr.Validation("active must be 1, 0 or all")
			}
		}
		rows, err := svc.ListGasRates(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", rows)
	}
}

// GET /api/v1/party-gas-rates/:id
func GetGasRateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		_, companyID, err := rateCompany(c, httpx.QueryUint(c, "company_id"))
		if err != nil {
			return err
		}
		r, err := svc.GetGasRate(c.UserContext(), companyID, id)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", r)
	}
}

type CreateGasRateRequest struct {
	CompanyID *uint `json:"company_id"`
	GasRateInput
}

// POST /api/v1/party-gas-rates
func CreateGasRateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateGasRateRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, companyID, err := rateCompany(c, body.CompanyID)
		if err != nil {
			return err
		}
		r, err := svc.CreateGasRate(c.UserContext(), audit.ActorFrom(p), companyID, &p.UserID, body.GasRateInput)
		if err != nil {
			return err
		}
		return httpx.Created(c, "Gas rate created successfully", r)
	}
}

// PUT /api/v1/party-gas-rates/:id
func UpdateGasRateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, companyID, err := rateCompany(c, httpx.QueryUint(c, "company_id"))
		if err != nil {
			return err
		}
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &keys); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}
		for _, k := range ImmutableRateFields {
			if _, ok := keys[k]; ok {
				return apperr.Validation("Update is only for closing/deactivating a rate (effective_to, is_active). For price change, create a new row.")
			}
		}
		var body GasRatePatch
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}
		r, err := svc.UpdateGasRate(c.UserContext(), audit.ActorFrom(p), companyID, id, &p.UserID, body)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Gas rate updated successfully", r)
	}
}

// DELETE /api/v1/party-gas-rates/:id
func DeleteGasRateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, companyID, err := rateCompany(c, httpx.QueryUint(c, "company_id"))
		if err != nil {
			return err
		}
		if err := svc.DeactivateGasRate(c.UserContext(), audit.ActorFrom(p), companyID, id, &p.UserID); err != nil {
			return err
		}
		return httpx.Success(c, "Gas rate deactivated", nil)
	}
}

// POST /api/v1/party-gas-rates/upload (multipart: file, branch_id)
func UploadGasRatesHandler(svc *Service, maxRows int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		scope, err := p.Resolve(httpx.ParseUint(c.FormValue("company_id")), httpx.ParseUint(c.FormValue("branch_id")))
		if err != nil {
			return err
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("No file uploaded. Please upload a CSV or Excel file.")
		}
		f, err := fh.Open()
		if err != nil {
			return apperr.Wrap(err, "Uploaded file could not be read")
		}
		defer f.Close()

		rows, err := sheet.Read(fh.Filename, f, maxRows)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		res, err := svc.ImportGasRates(c.UserContext(), p, scope, rows)
		if err != nil {
			return err
		}
		return httpx.Success(c,
			fmt.Sprintf("Upload complete. %d row(s) inserted successfully, %d failed.", res.Inserted, res.Failed),
			res)
	}
}
