package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/property360-2/richwell-portal-api/api/swagger"
	"github.com/property360-2/richwell-portal-api/internal/handler"
	"github.com/property360-2/richwell-portal-api/internal/middleware"
	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/internal/repository"
	"github.com/property360-2/richwell-portal-api/internal/service"
	"github.com/property360-2/richwell-portal-api/pkg/cache"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	"github.com/property360-2/richwell-portal-api/pkg/database"
	"github.com/property360-2/richwell-portal-api/pkg/logger"
	corsmiddleware "github.com/property360-2/richwell-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/property360-2/richwell-portal-api/pkg/middleware/requestid"
)

// @title Richwell Portal API
// @version 1.0.0
// @description Academic progression and enrollment eligibility engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient)
		}
	}

	validate := validator.New()

	// Repositories.
	termRepo := repository.NewTermRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	ledgerRepo := repository.NewStudentSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	eligibilitySvc := service.NewEligibilityService(ledgerRepo, catalogRepo, studentRepo, cfg.Academic, logr)
	enrollmentSvc := service.NewEnrollmentService(ledgerRepo, studentRepo, catalogRepo, sectionRepo, termRepo, eligibilitySvc, cfg.Academic, validate, logr)
	plannerSvc := service.NewPlannerService(catalogRepo, sectionRepo, ledgerRepo, studentRepo, studentRepo, termRepo, eligibilitySvc, auditRepo, cfg.Academic, logr)
	gradeSvc := service.NewGradeService(gradeRepo, ledgerRepo, studentRepo, termRepo, cfg.Academic, validate, logr)
	archiveSvc := service.NewArchiveService(db, archiveRepo, ledgerRepo, sectionRepo, studentRepo, termRepo, auditRepo, logr)
	termSvc := service.NewTermService(termRepo, cacheRepo, auditRepo, cfg.Cache, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, cacheRepo, auditRepo, cfg.Cache, validate, logr)

	// Handlers.
	termHandler := handler.NewTermHandler(termSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	plannerHandler := handler.NewPlannerHandler(plannerSvc, metricsSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, metricsSvc)
	archiveHandler := handler.NewArchiveHandler(archiveSvc, metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, termHandler, catalogHandler, enrollmentHandler, plannerHandler, gradeHandler, archiveHandler)

	sweeper := startSweep(cfg.Sweep, gradeSvc, metricsSvc, logr)
	if sweeper != nil {
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	terms *handler.TermHandler,
	catalog *handler.CatalogHandler,
	enrollments *handler.EnrollmentHandler,
	planner *handler.PlannerHandler,
	grades *handler.GradeHandler,
	archives *handler.ArchiveHandler,
) {
	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT))

	staff := middleware.RequireRoles(models.RoleRegistrar, models.RoleAdmin)
	enrollmentStaff := middleware.RequireRoles(models.RoleRegistrar, models.RoleAdmission, models.RoleAdmin)

	termGroup := api.Group("/terms")
	{
		termGroup.GET("", terms.List)
		termGroup.GET("/active", terms.GetActive)
		termGroup.GET("/:id", terms.Get)
		termGroup.PUT("/:id/activate", staff, terms.Activate)
		termGroup.PUT("/:id/deactivate", staff, terms.Deactivate)
		termGroup.POST("/:id/close", staff, archives.CloseTerm)
	}

	api.GET("/programs/:id", catalog.GetProgram)
	api.GET("/subjects", catalog.ListSubjects)
	api.GET("/subjects/:id", catalog.GetSubject)
	api.GET("/curriculum/plan", catalog.CurriculumPlan)
	api.POST("/prerequisites", middleware.RequireRoles(models.RoleRegistrar, models.RoleDean, models.RoleAdmin), catalog.AddPrerequisite)

	enrollmentGroup := api.Group("/enrollments")
	{
		enrollmentGroup.GET("", enrollments.List)
		enrollmentGroup.GET("/eligibility", enrollments.CheckEligibility)
		enrollmentGroup.GET("/:id", enrollments.Get)
		enrollmentGroup.POST("", middleware.RBAC(string(models.RoleStudent), string(models.RoleRegistrar), string(models.RoleAdmission), string(models.RoleAdmin)), enrollments.Create)
		enrollmentGroup.DELETE("/:id", middleware.RBAC(string(models.RoleStudent), string(models.RoleRegistrar), string(models.RoleAdmission), string(models.RoleAdmin)), enrollments.Delete)
	}

	studentGroup := api.Group("/students")
	{
		studentGroup.GET("/:id/enrollment-plan", middleware.RBAC("SELF", string(models.RoleRegistrar), string(models.RoleAdmission), string(models.RoleAdmin)), planner.Plan)
		studentGroup.POST("/:id/auto-enroll", enrollmentStaff, planner.Enact)
		studentGroup.POST("/:id/graduate", staff, archives.Graduate)
	}

	api.POST("/grades", middleware.RequireRoles(models.RoleProfessor, models.RoleRegistrar, models.RoleAdmin), grades.Apply)
	api.POST("/grades/sweep", staff, grades.Sweep)

	archiveGroup := api.Group("/archives")
	archiveGroup.Use(middleware.RequireRoles(models.RoleRegistrar, models.RoleDean, models.RoleAdmin))
	{
		archiveGroup.GET("", archives.List)
		archiveGroup.GET("/:id", archives.Get)
	}
}

// startSweep schedules the INC expiration sweep when enabled. The sweep also
// runs on demand through the grades endpoint.
func startSweep(cfg config.SweepConfig, grades *service.GradeService, metrics *service.MetricsService, logr *zap.Logger) *cron.Cron {
	if !cfg.Enabled || cfg.Cron == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(cfg.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		report, err := grades.ExpireIncompletes(ctx, time.Now().UTC())
		if err != nil {
			logr.Sugar().Errorw("inc expiration sweep failed", "error", err)
			return
		}
		metrics.RecordIncExpirations(report.Expired)
		logr.Sugar().Infow("inc expiration sweep finished", "checked", report.Checked, "expired", report.Expired)
	})
	if err != nil {
		logr.Sugar().Errorw("invalid sweep schedule, sweep disabled", "cron", cfg.Cron, "error", err)
		return nil
	}
	c.Start()
	return c
}
