package http

import (
	"github.com/gofiber/fiber/v2"

	appaudit "github.com/jhoicas/Auditoria-api/internal/application/audit"
	"github.com/jhoicas/Auditoria-api/internal/application/auth"
	"github.com/jhoicas/Auditoria-api/internal/application/usecase"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	CompanyUC *usecase.CompanyUseCase
	AuditUC   *appaudit.UseCase
	ReportUC  *appaudit.ReportUseCase
	ModuleSvc *usecase.ModuleService
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Companies (bootstrap de tenants; creación pública, consulta protegida)
	companies := api.Group("/companies")
	companyHandler := NewCompanyHandler(deps.CompanyUC)
	companies.Post("/", companyHandler.Create)
	companies.Get("/", AuthMiddleware(deps.JWTSecret), companyHandler.List)
	companies.Get("/:id", AuthMiddleware(deps.JWTSecret), companyHandler.GetByID)

	// Audits (protegido: JWT + rol de bodega + módulo inventory contratado)
	audits := api.Group("/audits",
		AuthMiddleware(deps.JWTSecret),
		RequireRole(entity.RoleAdmin, entity.RoleBodeguero),
		RequireModule(entity.ModuleInventory, deps.ModuleSvc),
	)
	auditHandler := NewAuditHandler(deps.AuditUC, deps.ReportUC)
	audits.Post("/", auditHandler.Start)
	audits.Post("/join", auditHandler.Join)
	audits.Get("/:id", auditHandler.GetSummary)
	audits.Get("/:id/restore", auditHandler.Restore)
	audits.Post("/:id/scan", auditHandler.Scan)
	audits.Post("/:id/finish", auditHandler.Finish)
	audits.Post("/:id/cancel", auditHandler.Cancel)
	audits.Get("/:id/report", auditHandler.Report)
}
