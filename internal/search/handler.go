package search

import (
	"strconv"
	"strings"

	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /api/v1/search?q=&limit=&company_id=&branch_id=
func Handler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		var limit *int
		if n, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil {
			limit = &n
		}
		q, err := Resolve(p, c.Query("q"), limit, httpx.QueryUint(c, "company_id"), httpx.QueryUint(c, "branch_id"))
		if err != nil {
			return err
		}
		res, err := svc.Search(c.UserContext(), p, q)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", res)
	}
}
