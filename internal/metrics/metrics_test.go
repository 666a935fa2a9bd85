package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cylinder-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads one sample of a counter family from Registry.
func counterValue(t *testing.T, family string, labels map[string]string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMiddleware_LabelsByRoute(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperr.HTTPStatus(err))
		},
	})
	app.Use(Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "0" {
			return apperr.NotFound("missing")
		}
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/metrics", Handler())

	ok := map[string]string{"route": "/items/:id", "method": http.MethodGet, "status": "200"}
	missing := map[string]string{"route": "/items/:id", "method": http.MethodGet, "status": "404"}
	okBefore := counterValue(t, "cylinder_http_requests_total", ok)
	missingBefore := counterValue(t, "cylinder_http_requests_total", missing)

	for _, path := range []string{"/items/1", "/items/2", "/items/0"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
	}
	assert.Equal(t, okBefore+2, counterValue(t, "cylinder_http_requests_total", ok))
	assert.Equal(t, missingBefore+1, counterValue(t, "cylinder_http_requests_total", missing))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImportRowsCounter(t *testing.T) {
	labels := map[string]string{"entity": "party", "outcome": "inserted"}
	before := counterValue(t, "cylinder_import_rows_total", labels)
	ImportRows.WithLabelValues("party", "inserted").Inc()
	assert.Equal(t, before+1, counterValue(t, "cylinder_import_rows_total", labels))
}
