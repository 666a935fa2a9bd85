package party

import (
	"fmt"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/sheet"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Parties
// -------------------------

// POST /api/v1/parties
func CreatePartyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, scope, err := auth.BodyScope(c, body.CompanyID, body.BranchID)
		if err != nil {
			return err
		}
		party, err := svc.Create(c.UserContext(), audit.ActorFrom(p), scope, &p.UserID, body)
		if err != nil {
			return err
		}
		return httpx.Created(c, "Party created successfully", party)
	}
}

// GET /api/v1/parties?search=&is_active=&page=&limit=
func ListPartiesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		paging := httpx.ResolvePaging(c, 20, 200)
		rows, total, err := svc.List(c.UserContext(), ListFilter{
			Scope:    scope,
			Search:   c.Query("search"),
			IsActive: httpx.QueryBool(c, "is_active"),
			Offset:   paging.Offset,
			Limit:    paging.Limit,
		})
		if err != nil {
			return err
		}
		return httpx.Page(c, rows, paging, total)
	}
}

// GET /api/v1/parties/:id
func GetPartyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		party, err := svc.Get(c.UserContext(), id, scope)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", party)
	}
}

// PUT /api/v1/parties/:id?company_id=&branch_id=
func UpdatePartyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		var body UpdateInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}
		if err := httpx.Validate(body); err != nil {
			return err
		}
		party, err := svc.Update(c.UserContext(), audit.ActorFrom(p), id, scope, &p.UserID, body)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Party updated successfully", party)
	}
}

// DELETE /api/v1/parties/:id?company_id=&branch_id=
func DeletePartyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), audit.ActorFrom(p), id, scope); err != nil {
			return err
		}
		return httpx.Success(c, "Party deactivated successfully", nil)
	}
}

// POST /api/v1/parties/upload (multipart: file)
func UploadPartiesHandler(svc *Service, maxRows int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
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
		res, err := svc.Import(c.UserContext(), p, rows)
		if err != nil {
			return err
		}
		return httpx.Success(c,
			fmt.Sprintf("Upload complete. %d inserted, %d updated, %d failed.", res.Inserted, res.Updated, res.Failed),
			res)
	}
}

// -------------------------
// Addresses
// -------------------------

// GET /api/v1/parties/:id/addresses
func ListAddressesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		rows, err := svc.ListAddresses(c.UserContext(), id, scope)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", rows)
	}
}

// POST /api/v1/parties/:id/addresses
func AddAddressHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		var body AddressInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		a, err := svc.AddAddress(c.UserContext(), id, scope, body)
		if err != nil {
			return err
		}
		return httpx.Created(c, "Address added successfully", a)
	}
}

// PUT /api/v1/party-addresses/:addressId
func UpdateAddressHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "addressId")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		var body AddressInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		a, err := svc.UpdateAddress(c.UserContext(), id, scope, body)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Address updated successfully", a)
	}
}

// DELETE /api/v1/party-addresses/:addressId
func DeleteAddressHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "addressId")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteAddress(c.UserContext(), id, scope); err != nil {
			return err
		}
		return httpx.Success(c, "Address deleted successfully", nil)
	}
}

// -------------------------
// Party types
// -------------------------

type CreateTypeRequest struct {
	CompanyID *uint  `json:"company_id"`
	TypeCode  string `json:"type_code" validate:"required,max=20"`
	TypeName  string `json:"type_name" validate:"required,max=100"`
}

// GET /api/v1/party-types?company_id=
func ListTypesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		companyID := p.CompanyID
		if id := httpx.QueryUint(c, "company_id"); id != nil {
			companyID = *id
		}
		if err := p.EnforceScope(companyID, 0); err != nil {
			return err
		}
		rows, err := svc.ListTypes(c.UserContext(), companyID)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", rows)
	}
}

// POST /api/v1/party-types
func CreateTypeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		var body CreateTypeRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		companyID := p.CompanyID
		if body.CompanyID != nil {
			companyID = *body.CompanyID
		}
		if err := p.EnforceScope(companyID, 0); err != nil {
			return err
		}
		pt, err := svc.CreateType(c.UserContext(), companyID, body.TypeCode, body.TypeName)
		if err != nil {
			return err
		}
		return httpx.Created(c, "Party type created successfully", pt)
	}
}
