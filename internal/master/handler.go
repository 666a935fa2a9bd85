package master

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// companyOf returns ?company_id= or the caller's own company.
func companyOf(c *fiber.Ctx) (uint, error) {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return 0, err
	}
	companyID := p.CompanyID
	if id := httpx.QueryUint(c, "company_id"); id != nil {
		companyID = *id
	}
	if err := p.EnforceScope(companyID, 0); err != nil {
		return 0, err
	}
	return companyID, nil
}

// activeFilter reads active=1|0|all; missing means active rows only.
func activeFilter(c *fiber.Ctx) (*bool, error) {
	raw := strings.TrimSpace(c.Query("active"))
	switch strings.ToLower(raw) {
	case "":
		on := true
		return &on, nil
	case "all":
		return nil, nil
	}
	v := httpx.ParseBool(raw)
	if v == nil {
		return nil, apperr.Validation("active must be 1, 0 or all")
	}
	return v, nil
}

// -------------------------
// Generic master endpoints
// -------------------------

// GET /api/v1/<master>?search=&active=1|0|all&dropdown=true
func ListHandler[T any](svc *Service, d *Def[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		active, err := activeFilter(c)
		if err != nil {
			return err
		}
		f := Filter{CompanyID: companyID, Search: c.Query("search"), Active: active}
		if d.ParentColumn != "" {
			f.ParentID = httpx.QueryUint(c, d.ParentColumn)
		}
		rows, err := List(c.UserContext(), svc, d, f)
		if err != nil {
			return err
		}
		if c.QueryBool("dropdown") {
			return httpx.Success(c, "", Options(rows, d))
		}
		return httpx.Success(c, "", rows)
	}
}

// GET /api/v1/<master>/:id
func GetHandler[T any](svc *Service, d *Def[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		row, err := Get(c.UserContext(), svc, d, companyID, id)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", row)
	}
}

// POST /api/v1/<master>
func CreateHandler[T any](svc *Service, d *Def[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		row := new(T)
		if err := httpx.Bind(c, row); err != nil {
			return err
		}
		created, err := Create(c.UserContext(), svc, d, companyID, row)
		if err != nil {
			return err
		}
		return httpx.Created(c, d.Name+" created successfully", created)
	}
}

// PUT /api/v1/<master>/:id
func UpdateHandler[T any, P Patch](svc *Service, d *Def[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		var body P
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}
		updates, err := body.Columns()
		if err != nil {
			return err
		}
		row, err := Update(c.UserContext(), svc, d, companyID, id, updates)
		if err != nil {
			return err
		}
		return httpx.Success(c, d.Name+" updated successfully", row)
	}
}

// DELETE /api/v1/<master>/:id
func DeactivateHandler[T any](svc *Service, d *Def[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		if err := Deactivate(c.UserContext(), svc, d, companyID, id); err != nil {
			return err
		}
		return httpx.Success(c, d.Name+" deactivated successfully", nil)
	}
}

// Mount registers the five endpoints of one master under path. write guards
// the mutating routes.
func Mount[T any, P Patch](r fiber.Router, path string, svc *Service, d *Def[T], write ...fiber.Handler) {
	guarded := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, write...), h)
	}
	r.Get(path, ListHandler(svc, d))
	r.Get(path+"/:id", GetHandler(svc, d))
	r.Post(path, guarded(CreateHandler(svc, d))...)
	r.Put(path+"/:id", guarded(UpdateHandler[T, P](svc, d))...)
	r.Delete(path+"/:id", guarded(DeactivateHandler(svc, d))...)
}

// -------------------------
// Gas type to family map
// -------------------------

type MapFamilyRequest struct {
	CylinderFamilyID uint `json:"cylinder_family_id" validate:"required"`
}

// GET /api/v1/gas-types/:id/cylinder-families
func ListGasTypeFamiliesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		rows, err := svc.GasTypeFamilies(c.UserContext(), companyID, id)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", rows)
	}
}

// POST /api/v1/gas-types/:id/cylinder-families
func MapFamilyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		var body MapFamilyRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		link, err := svc.MapFamily(c.UserContext(), companyID, id, body.CylinderFamilyID)
		if err != nil {
			return err
		}
		return httpx.Created(c, "Cylinder family mapped successfully", link)
	}
}

// DELETE /api/v1/gas-types/:id/cylinder-families/:familyId
func UnmapFamilyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		familyID, err := httpx.ParamID(c, "familyId")
		if err != nil {
			return err
		}
		companyID, err := companyOf(c)
		if err != nil {
			return err
		}
		if err := svc.UnmapFamily(c.UserContext(), companyID, id, familyID); err != nil {
			return err
		}
		return httpx.Success(c, "Cylinder family unmapped successfully", nil)
	}
}
