// Package server builds the fiber application and wires every route.
package server

import (
	"time"

	"cylinder-backend/internal/admin"
	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/config"
	"cylinder-backend/internal/cylinder"
	"cylinder-backend/internal/dashboard"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/master"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/party"
	"cylinder-backend/internal/preference"
	"cylinder-backend/internal/search"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const requestIDHeader = "X-Request-ID"

// New returns an app with middleware and routes registered. It does not listen.
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          httpx.ErrorHandler(log),
		DisableStartupMessage: true,
		BodyLimit:             20 * 1024 * 1024,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + requestIDHeader,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(requestLogger(log))
	if cfg.MetricsEnabled {
		app.Use(metrics.Middleware())
		app.Get("/metrics", metrics.Handler())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	Register(app, cfg, db, log)
	return app
}

// requestLogger tags each request with an id and logs one line when it ends.
func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Locals(httpx.RequestIDKey, id)

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.HTTPStatus(err)
		}
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("request", fields...)
		} else {
			log.Debug("request", fields...)
		}
		return err
	}
}

// Register mounts the /api/v1 routes on app.
func Register(app *fiber.App, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	authSvc := auth.NewService(db, cfg.JWTSecret, cfg.JWTTTL, log)
	cylinderSvc := cylinder.NewService(db, log)
	partySvc := party.NewService(db, log)
	masterSvc := master.NewService(db, log)
	prefSvc := preference.NewService(db, log)
	dashSvc := dashboard.NewService(db)
	searchSvc := search.NewService(db, log)

	api := app.Group("/api/v1")

	// Public
	api.Post("/auth/register", auth.RegisterHandler(authSvc))
	api.Post("/auth/login", auth.LoginHandler(authSvc))
	api.Get("/public/cylinder/:barcode", cylinder.PublicBarcodeHandler(cylinderSvc))

	// Protected
	protected := api.Group("", auth.JWTMiddleware(cfg.JWTSecret))
	protected.Get("/auth/me", auth.MeHandler(authSvc))

	// Cylinders; fixed paths before /:id
	protected.Get("/cylinders/stats", cylinder.CylinderStatsHandler(cylinderSvc))
	protected.Get("/cylinders/due-for-test", cylinder.DueForTestHandler(cylinderSvc, cfg.DueDaysDefault))
	protected.Get("/cylinders/due-for-test/export", cylinder.ExportDueForTestHandler(cylinderSvc, cfg.DueDaysDefault))
	protected.Post("/cylinders/upload", cylinder.UploadCylindersHandler(cylinderSvc, cfg.ImportMaxRows))
	protected.Get("/cylinders/code/:code", cylinder.GetCylinderByCodeHandler(cylinderSvc))
	protected.Get("/cylinders/serial/:serial", cylinder.GetCylinderBySerialHandler(cylinderSvc))
	protected.Post("/cylinders", cylinder.CreateCylinderHandler(cylinderSvc))
	protected.Get("/cylinders", cylinder.ListCylindersHandler(cylinderSvc))
	protected.Get("/cylinders/:id", cylinder.GetCylinderHandler(cylinderSvc))
	protected.Put("/cylinders/:id", cylinder.UpdateCylinderHandler(cylinderSvc))
	protected.Delete("/cylinders/:id", cylinder.DeleteCylinderHandler(cylinderSvc))

	// Cylinder tests
	protected.Get("/cylinders/:id/tests", cylinder.ListCylinderTestsHandler(cylinderSvc))
	protected.Post("/cylinders/:id/tests", cylinder.AddCylinderTestHandler(cylinderSvc))
	protected.Put("/cylinder-tests/:testId", cylinder.UpdateCylinderTestHandler(cylinderSvc))
	protected.Delete("/cylinder-tests/:testId", cylinder.DeleteCylinderTestHandler(cylinderSvc))

	// Parties
	protected.Post("/parties/upload", party.UploadPartiesHandler(partySvc, cfg.ImportMaxRows))
	protected.Post("/parties", party.CreatePartyHandler(partySvc))
	protected.Get("/parties", party.ListPartiesHandler(partySvc))
	protected.Get("/parties/:id", party.GetPartyHandler(partySvc))
	protected.Put("/parties/:id", party.UpdatePartyHandler(partySvc))
	protected.Delete("/parties/:id", party.DeletePartyHandler(partySvc))
	protected.Get("/parties/:id/addresses", party.ListAddressesHandler(partySvc))
	protected.Post("/parties/:id/addresses", party.AddAddressHandler(partySvc))
	protected.Put("/party-addresses/:addressId", party.UpdateAddressHandler(partySvc))
	protected.Delete("/party-addresses/:addressId", party.DeleteAddressHandler(partySvc))
	protected.Get("/party-types", party.ListTypesHandler(partySvc))
	protected.Post("/party-types", party.CreateTypeHandler(partySvc))

	// Party gas rates
	protected.Post("/party-gas-rates/upload", party.UploadGasRatesHandler(partySvc, cfg.ImportMaxRows))
	protected.Get("/party-gas-rates", party.ListGasRatesHandler(partySvc))
	protected.Post("/party-gas-rates", party.CreateGasRateHandler(partySvc))
	protected.Get("/party-gas-rates/:id", party.GetGasRateHandler(partySvc))
	protected.Put("/party-gas-rates/:id", party.UpdateGasRateHandler(partySvc))
	protected.Delete("/party-gas-rates/:id", party.DeleteGasRateHandler(partySvc))

	// Masters
	superAdmin := auth.RequirePermission(models.PermissionSuperAdmin)
	master.Mount[models.GasType, master.GasTypePatch](protected, "/gas-types", masterSvc, master.GasTypes)
	master.Mount[models.CylinderFamily, master.CylinderFamilyPatch](protected, "/cylinder-families", masterSvc, master.CylinderFamilies)
	master.Mount[models.UnitOfMeasure, master.UnitOfMeasurePatch](protected, "/units-of-measure", masterSvc, master.UnitsOfMeasure)
	master.Mount[models.GasCategory, master.GasCategoryPatch](protected, "/gas-categories", masterSvc, master.GasCategories, superAdmin)
	master.Mount[models.Country, master.CountryPatch](protected, "/countries", masterSvc, master.Countries, superAdmin)
	master.Mount[models.State, master.StatePatch](protected, "/states", masterSvc, master.States, superAdmin)
	master.Mount[models.City, master.CityPatch](protected, "/cities", masterSvc, master.Cities, superAdmin)
	protected.Get("/gas-types/:id/cylinder-families", master.ListGasTypeFamiliesHandler(masterSvc))
	protected.Post("/gas-types/:id/cylinder-families", master.MapFamilyHandler(masterSvc))
	protected.Delete("/gas-types/:id/cylinder-families/:familyId", master.UnmapFamilyHandler(masterSvc))

	// User preferences
	protected.Get("/user-preferences", preference.GetHandler(prefSvc))
	protected.Put("/user-preferences", preference.PutHandler(prefSvc))
	protected.Delete("/user-preferences", preference.DeleteHandler(prefSvc))
	protected.Get("/preferences/effective", preference.EffectiveHandler(prefSvc))

	// Role preferences
	companyAdmin := auth.RequirePermission(models.PermissionCompanyAdmin)
	rolePrefs := guardedRouter{protected, companyAdmin}
	rolePrefs.Get("/role-preferences", preference.GetRoleHandler(prefSvc))
	rolePrefs.Put("/role-preferences", preference.PutRoleHandler(prefSvc))
	rolePrefs.Delete("/role-preferences", preference.DeleteRoleHandler(prefSvc))

	// Search
	protected.Get("/search", search.Handler(searchSvc))

	// Users and roles
	protected.Get("/roles", admin.ListRolesHandler(db))
	users := guardedRouter{protected, companyAdmin}
	users.Get("/users", admin.ListUsersHandler(db))
	users.Post("/users", admin.CreateUserHandler(db))
	users.Get("/users/:id", admin.GetUserHandler(db))
	users.Put("/users/:id", admin.UpdateUserHandler(db))
	users.Delete("/users/:id", admin.DeleteUserHandler(db))

	// Dashboard
	protected.Get("/dashboard/summary", dashboard.SummaryHandler(dashSvc, cfg.DueDaysDefault))
	protected.Get("/dashboard/test-chart", dashboard.TestChartHandler(dashSvc))

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	// Super admin
	adminRoutes := guardedRouter{protected, superAdmin}
	adminRoutes.Post("/companies", admin.CreateCompanyHandler(db))
	adminRoutes.Get("/companies", admin.ListCompaniesHandler(db))
	adminRoutes.Put("/companies/:id", admin.UpdateCompanyHandler(db))
	adminRoutes.Post("/companies/:id/branches", admin.CreateBranchHandler(db))
	adminRoutes.Get("/companies/:id/branches", admin.ListBranchesHandler(db))
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler(db))
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler(db))
	adminRoutes.Post("/branches/:id/admins", admin.CreateBranchAdminHandler(db))
	adminRoutes.Get("/branches/:id/users", admin.ListBranchUsersHandler(db))
}

// guardedRouter prefixes every route with guard. A guarded group would also
// catch unmatched paths below the same prefix.
type guardedRouter struct {
	r     fiber.Router
	guard fiber.Handler
}

func (g guardedRouter) Get(path string, h fiber.Handler)    { g.r.Get(path, g.guard, h) }
func (g guardedRouter) Post(path string, h fiber.Handler)   { g.r.Post(path, g.guard, h) }
func (g guardedRouter) Put(path string, h fiber.Handler)    { g.r.Put(path, g.guard, h) }
func (g guardedRouter) Delete(path string, h fiber.Handler) { g.r.Delete(path, g.guard, h) }
