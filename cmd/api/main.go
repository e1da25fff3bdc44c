package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-admin-api/api/swagger"
	"github.com/noah-isme/school-admin-api/internal/handler"
	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/repository"
	"github.com/noah-isme/school-admin-api/internal/router"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/cache"
	"github.com/noah-isme/school-admin-api/pkg/config"
	"github.com/noah-isme/school-admin-api/pkg/database"
	"github.com/noah-isme/school-admin-api/pkg/jobs"
	"github.com/noah-isme/school-admin-api/pkg/logger"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

// @title School Admin API
// @version 1.0.0
// @description Administración escolar: usuarios, matrículas, cursos de vacaciones y preinscripciones.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	store := cache.NewStore(redisClient, "school")

	uploader, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	mail, err := mailer.New(*cfg, logr)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	txManager := repository.NewTxManager(db)
	sequences := repository.NewSequenceRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	structureRepo := repository.NewStructureRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	vacationRepo := repository.NewVacationRepository(db)
	preEnrollmentRepo := repository.NewPreEnrollmentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activity := service.NewActivityService(activityRepo, logr)

	notifications := service.NewNotificationService(mail, metrics, logr)
	mailQueue := jobs.NewQueue("mail", notifications.Handle, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	notifications.UseQueue(mailQueue)
	mailQueue.Start(context.Background())
	defer mailQueue.Stop()

	authSvc := service.NewAuthService(userRepo, sessionRepo, store, activity, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		BcryptCost:         cfg.Security.BcryptCost,
		MaxLoginAttempts:   cfg.Security.MaxLoginAttempts,
		LockoutDuration:    cfg.Security.LockoutDuration,
		LoginRateLimit:     cfg.Security.LoginRateLimit,
		LoginRateWindow:    cfg.Security.LoginRateWindow,
	}).WithMetrics(metrics)

	userSvc := service.NewUserService(userRepo, roleRepo, sessionRepo, txManager, activity, notifications, validate, logr, cfg.Security.BcryptCost)
	if err := userSvc.BootstrapAdmin(ctx, cfg.Bootstrap); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	roleSvc := service.NewRoleService(roleRepo, txManager, activity, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, txManager, activity, validate, logr)
	structureSvc := service.NewStructureService(structureRepo, activity, validate, logr)
	guardianSvc := service.NewGuardianService(guardianRepo, userRepo, txManager, notifications, activity, validate, logr, cfg.Security.BcryptCost)

	studentSvc := service.NewStudentService(service.StudentServiceDeps{
		Students:    studentRepo,
		Guardians:   guardianRepo,
		Enrollments: enrollmentRepo,
		Users:       userRepo,
		Sequences:   sequences,
		Tx:          txManager,
		Storage:     uploader,
		Notifier:    notifications,
		Audit:       activity,
		Validator:   validate,
		Logger:      logr,
		BcryptCost:  cfg.Security.BcryptCost,
	})
	teacherSvc := service.NewTeacherService(service.TeacherServiceDeps{
		Teachers:   teacherRepo,
		Structure:  structureRepo,
		Periods:    periodRepo,
		Users:      userRepo,
		Sequences:  sequences,
		Tx:         txManager,
		Storage:    uploader,
		Notifier:   notifications,
		Audit:      activity,
		Validator:  validate,
		Logger:     logr,
		BcryptCost: cfg.Security.BcryptCost,
	})
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Enrollments: enrollmentRepo,
		Sections:    structureRepo,
		Periods:     periodRepo,
		Students:    studentRepo,
		Sequences:   sequences,
		Tx:          txManager,
		Storage:     uploader,
		Cache:       store,
		Metrics:     metrics,
		Audit:       activity,
		Validator:   validate,
		Logger:      logr,
		School:      cfg.School,
		StatsTTL:    cfg.Stats.CacheTTL,
	})
	vacationSvc := service.NewVacationService(service.VacationServiceDeps{
		Vacations: vacationRepo,
		Sequences: sequences,
		Tx:        txManager,
		Notifier:  notifications,
		Metrics:   metrics,
		Audit:     activity,
		Validator: validate,
		Logger:    logr,
		School:    cfg.School,
	})
	preEnrollmentSvc := service.NewPreEnrollmentService(service.PreEnrollmentServiceDeps{
		PreEnrollments: preEnrollmentRepo,
		Students:       studentRepo,
		Guardians:      guardianRepo,
		Sections:       structureRepo,
		Periods:        periodRepo,
		Users:          userRepo,
		Enrollments:    enrollmentSvc,
		Sequences:      sequences,
		Tx:             txManager,
		Storage:        uploader,
		Notifier:       notifications,
		Metrics:        metrics,
		Audit:          activity,
		Validator:      validate,
		Logger:         logr,
		BcryptCost:     cfg.Security.BcryptCost,
	})

	cookies := middleware.NewCookies(cfg.Cookie, cfg.Env)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	ops := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"postgres": db,
		"redis":    store,
	})
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Storage.Driver == "" || cfg.Storage.Driver == config.StorageDriverLocal {
		if strings.HasPrefix(cfg.Storage.PublicURL, "/") {
			r.Static(cfg.Storage.PublicURL, cfg.Storage.LocalDir)
		}
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Register(r, router.Options{
		Prefix:        cfg.APIPrefix,
		Authenticator: authSvc,
		Cookies:       cookies,
		Audit:         activity,
		Logger:        logr,
	}, router.Handlers{
		Auth:           handler.NewAuthHandler(authSvc, cookies),
		Users:          handler.NewUserHandler(userSvc),
		Roles:          handler.NewRoleHandler(roleSvc),
		Periods:        handler.NewPeriodHandler(periodSvc),
		Structure:      handler.NewStructureHandler(structureSvc),
		Students:       handler.NewStudentHandler(studentSvc),
		Guardians:      handler.NewGuardianHandler(guardianSvc),
		Teachers:       handler.NewTeacherHandler(teacherSvc),
		Enrollments:    handler.NewEnrollmentHandler(enrollmentSvc),
		Vacation:       handler.NewVacationHandler(vacationSvc),
		PreEnrollments: handler.NewPreEnrollmentHandler(preEnrollmentSvc),
		Activity:       handler.NewActivityHandler(activity),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
