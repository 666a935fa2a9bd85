package dashboard

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/v1/dashboard/summary?days=&company_id=&branch_id=
func SummaryHandler(svc *Service, defaultDays int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		days := c.QueryInt("days", defaultDays)
		summary, err := svc.Summary(c.UserContext(), scope, days, models.Today())
		if err != nil {
			return err
		}
		return httpx.Success(c, "", summary)
	}
}

// GET /api/v1/dashboard/test-chart?period=daily|weekly|monthly&count=
func TestChartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		period := strings.ToLower(c.Query("period", PeriodDaily))
		switch period {
		case PeriodDaily, PeriodWeekly, PeriodMonthly:
		default:
			return apperr.Validation("period must be daily, weekly or monthly")
		}
		chart, err := svc.TestChart(c.UserContext(), scope, period, c.QueryInt("count"), models.Today())
		if err != nil {
			return err
		}
		return httpx.Success(c, "", chart)
	}
}
