package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	appaudit "github.com/jhoicas/Auditoria-api/internal/application/audit"
	"github.com/jhoicas/Auditoria-api/internal/application/auth"
	"github.com/jhoicas/Auditoria-api/internal/application/usecase"
	infrapdf "github.com/jhoicas/Auditoria-api/internal/infrastructure/pdf"
	"github.com/jhoicas/Auditoria-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Auditoria-api/internal/interfaces/http"
	"github.com/jhoicas/Auditoria-api/internal/interfaces/ws"
	"github.com/jhoicas/Auditoria-api/pkg/config"
	"github.com/jhoicas/Auditoria-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewAuditSessionRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)

	companyUC := usecase.NewCompanyUseCase(companyRepo)
	moduleSvc := usecase.NewModuleService(companyRepo)
	authUC := auth.NewAuthUseCase(userRepo, companyRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	// Hub de tiempo real: una sala por sesión de auditoría.
	hub := ws.NewHub(log)

	auditUC := appaudit.NewUseCase(sessionRepo, catalogRepo, hub, appaudit.Policy{
		SingleActivePerCompany: cfg.Audit.SingleActivePerCompany,
	})
	reportUC := appaudit.NewReportUseCase(sessionRepo, companyRepo, infrapdf.NewMarotoReportGenerator())

	// Barrido de sesiones abandonadas: ACTIVE sin actividad más allá del TTL
	// se cancelan y la sala recibe audit_closed(expired).
	sweeper := appaudit.NewSweeper(sessionRepo, hub, cfg.Audit.StaleTTL, log)
	scheduler := cron.New()
	if err := sweeper.Register(scheduler, cfg.Audit.SweepSpec); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Audit.SweepSpec).Msg("programar barrido de sesiones")
	}
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Auditoria API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:    authUC,
		CompanyUC: companyUC,
		AuditUC:   auditUC,
		ReportUC:  reportUC,
		ModuleSvc: moduleSvc,
		JWTSecret: cfg.JWT.Secret,
	})

	// Websockets: suscripción a la sala de una sesión.
	ws.NewHandler(hub, sessionRepo, cfg.JWT.Secret, log).Register(app)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
