package audit

import (
	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GET /api/v1/audit-logs?entity_type=cylinder&entity_id=1&branch_id=1
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}

		companyID := p.CompanyID
		if q := httpx.QueryUint(c, "company_id"); q != nil {
			companyID = *q
		}
		// branch users only see their own branch
		branchID := httpx.QueryUint(c, "branch_id")
		if branchID == nil && p.PermissionLevel < models.PermissionCompanyAdmin {
			branchID = &p.BranchID
		}
		var branchForCheck uint
		if branchID != nil {
			branchForCheck = *branchID
		}
		if err := p.EnforceScope(companyID, branchForCheck); err != nil {
			return err
		}

		paging := httpx.ResolvePaging(c, 50, 200)
		logs, total, err := List(db.WithContext(c.UserContext()), Filter{
			CompanyID:  companyID,
			BranchID:   branchID,
			EntityType: c.Query("entity_type"),
			EntityID:   httpx.QueryUint(c, "entity_id"),
			UserID:     httpx.QueryUint(c, "user_id"),
			Offset:     paging.Offset,
			Limit:      paging.Limit,
		})
		if err != nil {
			return apperr.Wrap(err, "Audit logs could not be listed")
		}
		return httpx.Page(c, logs, paging, total)
	}
}

// ActorFrom names the caller in audit rows.
func ActorFrom(p *auth.Principal) Actor {
	return Actor{UserID: p.UserID, UserName: p.Email}
}
