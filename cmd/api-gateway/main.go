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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/workshop-orchestrator/api/swagger"
	"github.com/noah-isme/workshop-orchestrator/internal/handler"
	internalmiddleware "github.com/noah-isme/workshop-orchestrator/internal/middleware"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	"github.com/noah-isme/workshop-orchestrator/internal/service"
	"github.com/noah-isme/workshop-orchestrator/pkg/cache"
	"github.com/noah-isme/workshop-orchestrator/pkg/config"
	"github.com/noah-isme/workshop-orchestrator/pkg/database"
	"github.com/noah-isme/workshop-orchestrator/pkg/eventbrite"
	"github.com/noah-isme/workshop-orchestrator/pkg/gcal"
	"github.com/noah-isme/workshop-orchestrator/pkg/jobs"
	"github.com/noah-isme/workshop-orchestrator/pkg/logger"
	corsmiddleware "github.com/noah-isme/workshop-orchestrator/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/workshop-orchestrator/pkg/middleware/requestid"
	"github.com/noah-isme/workshop-orchestrator/pkg/notify"
	"github.com/noah-isme/workshop-orchestrator/pkg/sheets"
	"github.com/noah-isme/workshop-orchestrator/pkg/slack"
	"github.com/noah-isme/workshop-orchestrator/pkg/storage"
	"github.com/noah-isme/workshop-orchestrator/pkg/zoom"
)

// @title Workshop Orchestrator API
// @version 1.0.0
// @description Keeps the workshop calendar in sync with registration, webinar, chat and calendar platforms and audits attendance.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.Migrate(db, cfg.Database.MigrationsDir); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	loc := cfg.Location()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, audit cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logger.Named(logr, "cache"))
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Redis.CacheTTL, logger.Named(logr, "cache"), redisClient != nil)

	trainers, err := repository.LoadTrainerFile(cfg.Trainers.DBPath)
	if err != nil {
		logr.Fatal("failed to load trainer directory", zap.Error(err))
	}

	reconciler, err := service.NewReconciler(cfg.Presence.Threshold, cfg.Presence.IgnoredEmailDomains)
	if err != nil {
		logr.Fatal("invalid presence configuration", zap.Error(err))
	}

	sheetClient, err := sheets.New(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID)
	if err != nil {
		logr.Fatal("failed to init spreadsheet client", zap.Error(err))
	}
	calendars := service.NewCalendarSource(sheetClient, calendarRange(cfg.Google), metrics)

	privateCalendar, err := gcal.New(ctx, cfg.Google.CredentialsFile, cfg.Google.CalendarID, loc.String(), cfg.Google.SendCalendarUpdates)
	if err != nil {
		logr.Fatal("failed to init calendar client", zap.Error(err))
	}

	eventbriteClient := eventbrite.New(cfg.Eventbrite.APIKey, cfg.Eventbrite.OrganizationID, cfg.Eventbrite.Timeout, eventbrite.WithBaseURL(cfg.Eventbrite.BaseURL))
	zoomClient := zoom.New(ctx, zoom.Config{
		BaseURL:      cfg.Zoom.BaseURL,
		TokenURL:     cfg.Zoom.TokenURL,
		AccountID:    cfg.Zoom.AccountID,
		ClientID:     cfg.Zoom.ClientID,
		ClientSecret: cfg.Zoom.ClientSecret,
		User:         cfg.Zoom.User,
		Timeout:      cfg.Zoom.Timeout,
	})
	slackClient := slack.New(cfg.Slack.BotToken, "")

	fileStore, err := storage.NewLocalStorage(cfg.Audits.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Audits.SignedURLSecret, cfg.Audits.SignedURLTTL)
	exporter := service.NewExportService(fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Audits.SignedURLTTL,
	}, logger.Named(logr, "export"), nil, nil)

	auditRepo := repository.NewAuditRepository(db)
	workerDeps := service.AuditWorkerDeps{
		Repo:              auditRepo,
		Events:            eventbriteClient,
		Webinars:          zoomClient,
		Trainers:          trainers,
		Reconciler:        reconciler,
		Exporter:          exporter,
		Cache:             cacheSvc,
		Metrics:           metrics,
		Logger:            logger.Named(logr, "audit-worker"),
		MaxRetries:        cfg.Audits.WorkerRetries,
		CheckedInStatuses: cfg.Presence.CheckedInStatuses,
	}
	if cfg.RabbitMQ.Enabled {
		publisher, err := notify.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, logger.Named(logr, "notify"))
		if err != nil {
			logr.Warn("notifications disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			workerDeps.Notifier = publisher
		}
	}
	worker := service.NewAuditWorker(workerDeps)

	queue := jobs.NewQueue("audits", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Audits.WorkerConcurrency,
		MaxRetries: cfg.Audits.WorkerRetries,
		RetryDelay: cfg.Audits.RetryDelay,
		Logger:     logger.Named(logr, "jobs"),
		OnExhausted: func(job jobs.Job, err error) {
			logr.Error("audit job exhausted retries", zap.String("audit_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		},
	})
	queue.Start(ctx)
	defer queue.Stop()

	auditSvc := service.NewAttendanceAuditService(auditRepo, calendars, trainers, reconciler, queue, exporter, cacheSvc, validate, logger.Named(logr, "attendance"), service.AuditServiceConfig{
		ResultTTL:         cfg.Audits.SignedURLTTL,
		CleanupInterval:   cfg.Audits.CleanupInterval,
		CheckedInStatuses: cfg.Presence.CheckedInStatuses,
	})
	auditSvc.RecoverPendingAudits(ctx)
	auditSvc.StartCleanup(ctx)

	integrationLogger := logger.Named(logr, "integrations")
	channels := service.NewChannelService(calendars, slackClient, zoomClient, trainers, service.ChannelConfig{
		NameTemplate:     cfg.Templates.SlackChannel,
		MagicCastleURL:   cfg.Templates.MagicCastleURL,
		SurveyURLEnglish: cfg.Templates.SurveyURLEnglish,
		SurveyURLFrench:  cfg.Templates.SurveyURLFrench,
	}, metrics, integrationLogger)
	privateEvents := service.NewPrivateCalendarService(calendars, privateCalendar, trainers, service.PrivateCalendarConfig{
		StartOffsetMinutes: cfg.Google.StartOffsetMinutes,
		PostMortemDuration: cfg.Google.PostMortemDuration,
		CourseEventTitle:   cfg.Templates.CourseEventTitle,
		PostMortemTitle:    cfg.Templates.PostMortemTitle,
		Location:           loc,
	}, metrics, integrationLogger)
	certificates := service.NewCertificateService(calendars, eventbriteClient, nil, exporter, service.CertificateConfig{
		Issuer:            cfg.Templates.CertificateIssuer,
		Location:          loc,
		CheckedInStatuses: cfg.Presence.CheckedInStatuses,
	}, metrics, logger.Named(logr, "certificates"))

	routes := handler.Routes{
		Courses:    handler.NewCourseHandler(service.NewCourseService(calendars, validate, logger.Named(logr, "courses"))),
		Attendance: handler.NewAttendanceHandler(auditSvc),
		Metrics:    handler.NewMetricsHandler(metrics),
		Integrations: handler.NewIntegrationHandler(handler.IntegrationServices{
			Events:       service.NewEventLinkService(calendars, eventbriteClient, metrics, integrationLogger),
			Webinars:     service.NewWebinarService(calendars, zoomClient, trainers, loc, metrics, integrationLogger),
			Channels:     channels,
			Calendar:     privateEvents,
			Certificates: certificates,
		}),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", routes.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		cacheState := "disabled"
		if cacheSvc.Enabled() {
			cacheState = "up"
			if err := cacheRepo.Ping(pingCtx); err != nil {
				cacheState = "down"
			}
		}
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "cache": cacheState, "queue_depth": queue.Depth()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "cache": cacheState, "queue_depth": queue.Depth()})
	})
	r.GET("/metrics", routes.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	routes.Register(r.Group(cfg.APIPrefix), internalmiddleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// calendarRange qualifies the configured range with the sheet name.
func calendarRange(g config.GoogleConfig) string {
	if g.SheetName == "" {
		return g.Range
	}
	return g.SheetName + "!" + g.Range
}
