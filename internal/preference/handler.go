package preference

import (
	"encoding/json"

	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type View struct {
	PrefKey   string          `json:"pref_key"`
	BranchID  *uint           `json:"branch_id"`
	PrefValue json.RawMessage `json:"pref_value"`
}

func toView(p *models.UserPreference) *View {
	if p == nil {
		return nil
	}
	return &View{PrefKey: p.PrefKey, BranchID: p.BranchID, PrefValue: json.RawMessage(p.PrefValue)}
}

type PutRequest struct {
	CompanyID *uint           `json:"company_id"`
	BranchID  *uint           `json:"branch_id"`
	PrefKey   string          `json:"pref_key" validate:"required,max=100"`
	PrefValue json.RawMessage `json:"pref_value"`
}

// keyFor resolves the caller's preference key; company defaults to the token.
func keyFor(p *auth.Principal, companyID, branchID *uint, name string) (Key, error) {
	k := Key{UserID: p.UserID, CompanyID: p.CompanyID, BranchID: branchID, Name: name}
	if companyID != nil {
		k.CompanyID = *companyID
	}
	var b uint
	if branchID != nil {
		b = *branchID
	}
	return k, p.EnforceScope(k.CompanyID, b)
}

// GET /api/v1/user-preferences?pref_key=&company_id=&branch_id=
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		k, err := keyFor(p, httpx.QueryUint(c, "company_id"), httpx.QueryUint(c, "branch_id"), c.Query("pref_key"))
		if err != nil {
			return err
		}
		pref, err := svc.Get(c.UserContext(), k)
		if err != nil {
			return err
		}
		// data is null when nothing is stored
		return c.JSON(fiber.Map{"status": "success", "data": toView(pref)})
	}
}

// PUT /api/v1/user-preferences
func PutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		var body PutRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		k, err := keyFor(p, body.CompanyID, body.BranchID, body.PrefKey)
		if err != nil {
			return err
		}
		pref, err := svc.Put(c.UserContext(), k, body.PrefValue)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Preference saved", toView(pref))
	}
}

// DELETE /api/v1/user-preferences?pref_key=&company_id=&branch_id=
func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		k, err := keyFor(p, httpx.QueryUint(c, "company_id"), httpx.QueryUint(c, "branch_id"), c.Query("pref_key"))
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), k); err != nil {
			return err
		}
		return httpx.Success(c, "Preference deleted", nil)
	}
}

// -------------------------
// Role preferences
// -------------------------

type RoleView struct {
	RoleID    uint            `json:"role_id"`
	PrefKey   string          `json:"pref_key"`
	BranchID  *uint           `json:"branch_id"`
	PrefValue json.RawMessage `json:"pref_value"`
}

func toRoleView(p *models.RolePreference) *RoleView {
	if p == nil {
		return nil
	}
	return &RoleView{RoleID: p.RoleID, PrefKey: p.PrefKey, BranchID: p.BranchID, PrefValue: json.RawMessage(p.PrefValue)}
}

type PutRoleRequest struct {
	RoleID uint `json:"role_id" validate:"required"`
	PutRequest
}

func roleKeyFor(p *auth.Principal, roleID uint, companyID, branchID *uint, name string) (RoleKey, error) {
	k, err := keyFor(p, companyID, branchID, name)
	return RoleKey{RoleID: roleID, CompanyID: k.CompanyID, BranchID: k.BranchID, Name: k.Name}, err
}

func roleKeyFromQuery(c *fiber.Ctx) (RoleKey, error) {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return RoleKey{}, err
	}
	var roleID uint
	if id := httpx.QueryUint(c, "role_id"); id != nil {
		roleID = *id
	}
	return roleKeyFor(p, roleID, httpx.QueryUint(c, "company_id"), httpx.QueryUint(c, "branch_id"), c.Query("pref_key"))
}

// GET /api/v1/role-preferences?role_id=&pref_key=&company_id=&branch_id=
func GetRoleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		k, err := roleKeyFromQuery(c)
		if err != nil {
			return err
		}
		pref, err := svc.GetRole(c.UserContext(), k)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "data": toRoleView(pref)})
	}
}

// PUT /api/v1/role-preferences
func PutRoleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		var body PutRoleRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		k, err := roleKeyFor(p, body.RoleID, body.CompanyID, body.BranchID, body.PrefKey)
		if err != nil {
			return err
		}
		pref, err := svc.PutRole(c.UserContext(), k, body.PrefValue, &p.UserID)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Role preference saved", toRoleView(pref))
	}
}

// DELETE /api/v1/role-preferences?role_id=&pref_key=&company_id=&branch_id=
func DeleteRoleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		k, err := roleKeyFromQuery(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteRole(c.UserContext(), k); err != nil {
			return err
		}
		return httpx.Success(c, "Role preference reset", nil)
	}
}

// GET /api/v1/preferences/effective?pref_key=&company_id=&branch_id=
// The branch defaults to the caller's own.
func EffectiveHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		branchID := httpx.QueryUint(c, "branch_id")
		if branchID == nil && p.BranchID != 0 {
			b := p.BranchID
			branchID = &b
		}
		k, err := keyFor(p, httpx.QueryUint(c, "company_id"), branchID, c.Query("pref_key"))
		if err != nil {
			return err
		}
		roleID, err := svc.RoleID(c.UserContext(), p.RoleName)
		if err != nil {
			return err
		}
		eff, err := svc.Effective(c.UserContext(), k, roleID)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", eff)
	}
}
