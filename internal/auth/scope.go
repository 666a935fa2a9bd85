package auth

import (
	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Scope is the (company, branch) pair every tenant query is filtered by.
type Scope struct {
	CompanyID uint `json:"company_id"`
	BranchID  uint `json:"branch_id"`
}

// EnforceScope rejects access outside the caller's own company or branch
// unless the permission level allows it.
func (p *Principal) EnforceScope(companyID, branchID uint) error {
	if companyID != 0 && companyID != p.CompanyID && p.PermissionLevel < models.PermissionSuperAdmin {
		return apperr.Forbidden("Forbidden (cross-company access not allowed)")
	}
	if branchID != 0 && branchID != p.BranchID && p.PermissionLevel < models.PermissionCompanyAdmin {
		return apperr.Forbidden("Forbidden (cross-branch access not allowed)")
	}
	return nil
}

// Resolve picks the requested scope, falling back to the token's own
// company and branch for values that are missing.
func (p *Principal) Resolve(companyID, branchID *uint) (Scope, error) {
	s := Scope{CompanyID: p.CompanyID, BranchID: p.BranchID}
	if companyID != nil {
		s.CompanyID = *companyID
	}
	if branchID != nil {
		s.BranchID = *branchID
	}
	if s.CompanyID == 0 || s.BranchID == 0 {
		return Scope{}, apperr.Validation("company_id and branch_id are required")
	}
	if err := p.EnforceScope(s.CompanyID, s.BranchID); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// QueryScope resolves the scope from ?company_id= and ?branch_id=.
func QueryScope(c *fiber.Ctx) (*Principal, Scope, error) {
	p, err := MustPrincipal(c)
	if err != nil {
		return nil, Scope{}, err
	}
	s, err := p.Resolve(httpx.QueryUint(c, "company_id"), httpx.QueryUint(c, "branch_id"))
	return p, s, err
}

// BodyScope resolves the scope from values decoded out of a request body,
// with query values as a second source.
func BodyScope(c *fiber.Ctx, companyID, branchID *uint) (*Principal, Scope, error) {
	p, err := MustPrincipal(c)
	if err != nil {
		return nil, Scope{}, err
	}
	if companyID == nil || *companyID == 0 {
		companyID = httpx.QueryUint(c, "company_id")
	}
	if branchID == nil || *branchID == 0 {
		branchID = httpx.QueryUint(c, "branch_id")
	}
	s, err := p.Resolve(companyID, branchID)
	return p, s, err
}
