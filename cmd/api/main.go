package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/digilearn/moodle-sync-api/internal/config"
	"github.com/digilearn/moodle-sync-api/internal/database"
	"github.com/digilearn/moodle-sync-api/internal/handler"
	"github.com/digilearn/moodle-sync-api/internal/middleware"
	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/internal/observability"
	"github.com/digilearn/moodle-sync-api/internal/repository"
	"github.com/digilearn/moodle-sync-api/internal/router"
	"github.com/digilearn/moodle-sync-api/internal/service"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.MoodleConfigured() {
		log.Fatalf("failed to load configuration: %v", config.ErrMoodleNotConfigured)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Course{},
		&models.Account{},
		&models.MoodleUser{},
		&models.Enrollment{},
		&models.GradeItem{},
		&models.Assignment{},
		&models.Submission{},
		&models.CourseTeacher{},
		&models.ActivityProgress{},
		&models.SyncRun{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis backs the per-pipeline run lock; without it pipelines still
	// run, just without overlap protection.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, sync run locking disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not set, sync completion events disabled")
	}

	moodleClient, err := moodle.New(moodle.Config{
		BaseURL:     cfg.MoodleURL,
		Token:       cfg.MoodleToken,
		Timeout:     cfg.MoodleTimeout,
		BulkTimeout: cfg.MoodleBulkTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create moodle client: %v", err)
	}

	observability.RegisterMetrics()

	courseRepo := repository.NewCourseRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	moodleUserRepo := repository.NewMoodleUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeItemRepo := repository.NewGradeItemRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	courseTeacherRepo := repository.NewCourseTeacherRepository(db)
	progressRepo := repository.NewActivityProgressRepository(db)
	syncRunRepo := repository.NewSyncRunRepository(db)

	resolver := service.NewIdentityService(accountRepo, moodleUserRepo, logger)

	courseSync := service.NewCourseSyncService(moodleClient, courseRepo, logger)
	userSync := service.NewUserSyncService(moodleClient, accountRepo, moodleUserRepo, logger)
	enrollmentSync := service.NewEnrollmentSyncService(moodleClient, accountRepo, courseRepo, enrollmentRepo, gradeItemRepo, resolver, logger)
	assignmentSync := service.NewAssignmentSyncService(moodleClient, courseRepo, assignmentRepo, submissionRepo, accountRepo, logger)
	teacherSync := service.NewTeacherSyncService(moodleClient, courseRepo, courseTeacherRepo, resolver, cfg.TeacherRoleIDs, logger)
	progressSync := service.NewProgressSyncService(moodleClient, courseRepo, accountRepo, progressRepo, logger)
	connectionService := service.NewConnectionService(moodleClient, logger)

	runner := service.NewSyncRunner(syncRunRepo, redisClient, natsConn, cfg.SyncLockTTL, logger)

	syncHandler := handler.NewSyncHandler(runner, courseSync, userSync, enrollmentSync, assignmentSync, teacherSync, progressSync, logger)
	debugHandler := handler.NewDebugHandler(connectionService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SyncHandler:   syncHandler,
		DebugHandler:  debugHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
