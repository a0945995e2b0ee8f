package main

import (
	"bimbel_go/config"
	"bimbel_go/database"
	"bimbel_go/database/seeders"
	"bimbel_go/handlers"
	"bimbel_go/i18n"
	"bimbel_go/middleware"
	"bimbel_go/routes"
	"bimbel_go/services"
	"bimbel_go/services/session"
	"bimbel_go/services/websocket"
	"bimbel_go/storage"
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	setupLogging(cfg)

	database.Connect()
	defer database.Close()
	db := database.GetDB()

	if cfg.SeedOnStart {
		if err := seeders.SeedAll(db); err != nil {
			logrus.WithError(err).Error("Seeding failed")
		}
	}

	rdb := database.GetRedisClient()
	loc := cfg.Location()
	defaultLang, ok := i18n.Parse(cfg.DefaultLanguage)
	if !ok {
		defaultLang = i18n.DefaultLanguage
	}

	// Client stores live in Redis when it is reachable
	var store session.Store = session.NewMemoryStore()
	if rdb != nil {
		store = session.NewRedisStore(rdb, session.RedisKeyPrefix)
	}

	adminAuth := services.NewAdminAuth(db, rdb, store, cfg.JWTSecret, cfg.JWTExpiresIn)
	sessions := session.NewManager(store, adminAuth.ClientProvider, session.GormStudents{DB: db}, cfg.SessionIdleTTL)
	defer sessions.Close()

	var files storage.FileStorage
	if cfg.S3BucketName != "" {
		s3svc, err := storage.NewStorageService(storage.Options{
			Region:            cfg.AWSRegion,
			AccessKeyID:       cfg.AWSAccessKeyID,
			SecretAccessKey:   cfg.AWSSecretAccessKey,
			Bucket:            cfg.S3BucketName,
			AllowedExtensions: cfg.AllowedExtensionList(),
			MaxFileSize:       cfg.MaxFileSize,
		})
		if err != nil {
			logrus.WithError(err).Warn("S3 storage unavailable, photo uploads disabled")
		} else {
			files = s3svc
		}
	}

	activity := services.NewActivityLogger(db, rdb)
	archive := services.NewLogArchiveService(db, rdb, cfg.AWSRegion, cfg.S3BucketName)
	line := services.NewLineMessagingService(cfg.LineChannelSecret, cfg.LineChannelToken)

	health := services.NewHealthService(db, rdb, cfg.AppEnv, services.HealthFlags{
		SkipMigrate:   cfg.SkipMigrate,
		SeedOnStart:   cfg.SeedOnStart,
		LineRecap:     line.Enabled() && cfg.LineAdminGroupID != "",
		ObjectStorage: files != nil,
		RedisSessions: rdb != nil,
	}).WithSessionCounter(sessions.Len)

	// Create WebSocket hub first
	wsHub := websocket.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()
	routes.WireSessionPush(sessions, wsHub)

	scheduler, err := services.NewScheduler(services.JobDeps{
		Archive:     archive,
		Sessions:    sessions,
		Attendance:  services.NewAttendanceService(db),
		Line:        line,
		LineGroupID: cfg.LineAdminGroupID,
		RecapSpec:   cfg.AttendanceRecapCron,
		Language:    defaultLang,
		Location:    loc,
	})
	if err != nil {
		log.Fatal("Failed to build job scheduler:", err)
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.MaxFileSize) + 1<<20,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Accept-Language,X-Client-ID,X-Confirm-Delete,X-Request-ID",
		ExposeHeaders:    "X-Client-ID,X-Request-ID",
		AllowCredentials: true,
	}))
	app.Use(middleware.Metrics())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.ClientIdentity(cfg.ClientCookieName))
	app.Use(middleware.Language(sessions, defaultLang))

	routes.SetupRoutes(app, routes.Deps{
		DB:          db,
		Sessions:    sessions,
		Auth:        adminAuth,
		Activity:    activity,
		Archive:     archive,
		Health:      health,
		Hub:         wsHub,
		Files:       files,
		Location:    loc,
		CountryCode: cfg.CountryCode,
		AdminPhone:  cfg.AdminPhone,
	})
	routes.SetupStaticRoutes(app)

	if line.Enabled() {
		lineHandler := handlers.NewLineWebhookHandler(handlers.LineWebhookConfig{
			ChannelSecret: cfg.LineChannelSecret,
			AdminGroupID:  cfg.LineAdminGroupID,
			Bot:           line,
			Attendance:    services.NewAttendanceService(db),
			Language:      defaultLang,
			Location:      loc,
		})
		app.Post("/line/webhook", lineHandler.Handle)
		log.Println("LINE webhook enabled at /line/webhook")
	} else {
		log.Println("LINE webhook disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
	}

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  middleware.T(c, "not_found"),
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(ctx)
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Println("Server shutdown error:", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Bimbel API v1.0.0")
	log.Printf("Environment: %s", cfg.AppEnv)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.AppEnv == "development" || cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Warning: Could not open log file, logging to stdout: %v", err)
		return
	}
	logrus.SetOutput(file)
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := middleware.T(c, "internal_error")

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
