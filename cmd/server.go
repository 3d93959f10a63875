// server.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/database"
	"github.com/Abraxas-365/chatmemory/pkg/httpx"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
)

func main() {
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	skipMigrations := pflag.Bool("skip-migrations", false, "start without applying database migrations")
	pflag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger with config
	logx.SetOutput(os.Stderr, cfg.Server.LogFormat)
	logx.SetLevel(logx.ParseLevel(cfg.Server.LogLevel))

	if *migrateOnly {
		runMigrationsAndExit(cfg)
		return
	}

	logx.Info("Starting chat memory server...")
	logx.Infof("Environment: %s", cfg.Server.Environment)

	// 3. Initialize Dependency Container
	container := NewContainer(cfg, containerOptions{skipMigrations: *skipMigrations})
	defer container.Cleanup()

	// 4. Create Fiber App with Config
	app := fiber.New(fiber.Config{
		AppName:               "Chat Memory API",
		DisableStartupMessage: true,
		ErrorHandler:          httpx.ErrorHandler(cfg.IsDevelopment()),
		BodyLimit:             cfg.Server.BodyLimit,
		IdleTimeout:           120 * time.Second,
	})

	// 5. Global Middleware
	setupMiddleware(app, cfg)

	// 6. Health Check & Info Endpoints
	app.Get("/health", healthCheckHandler(container))
	app.Get("/", infoHandler(cfg))

	// 7. Register Routes
	registerRoutes(app, container)

	// 8. 404 Handler
	app.Use(httpx.NotFound)

	// 9. Start Server with Graceful Shutdown
	startServer(app, cfg)
}

func runMigrationsAndExit(cfg *config.Config) {
	db, err := connectDatabase(&cfg.Database)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db.DB); err != nil {
		logx.Fatalf("Failed to run migrations: %v", err)
	}
	version, err := database.Version(db.DB)
	if err != nil {
		logx.Fatalf("Failed to read schema version: %v", err)
	}
	logx.Infof("Migrations applied, schema at version %d", version)
}

// ============================================================================
// Setup Functions
// ============================================================================

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	// Panic recovery
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.IsDevelopment(),
	}))

	// Request ID
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: httpx.NewRequestID,
	}))

	// CORS
	corsOrigins := "*"
	if len(cfg.Server.CORSOrigins) > 0 {
		corsOrigins = strings.Join(cfg.Server.CORSOrigins, ",")
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:     "GET, POST, PUT, DELETE, HEAD, OPTIONS",
		AllowCredentials: corsOrigins != "*",
		ExposeHeaders:    "X-Request-ID",
	}))

	// Request logger
	logFormat := "${time} | ${status} | ${latency} | ${method} ${path}"
	if cfg.IsDevelopment() {
		logFormat += " | ${ip} | ${reqHeader:X-Request-ID}\n"
	} else {
		logFormat += "\n"
	}

	app.Use(logger.New(logger.Config{
		Format:     logFormat,
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))
}

func registerRoutes(app *fiber.App, container *Container) {
	logx.Info("Registering routes...")

	api := app.Group("/api/v1")

	// Conversations: /api/v1/conversations/*
	container.ConversationHandlers.RegisterRoutes(api, container.AuthMiddleware)

	// History: /api/v1/conversations/:id/messages
	container.MemoryHandlers.RegisterRoutes(api, container.AuthMiddleware)

	// Chat: /api/v1/chat
	container.ChatHandlers.RegisterRoutes(api, container.AuthMiddleware)

	logx.Info("All routes registered")
}

// ============================================================================
// Handler Functions
// ============================================================================

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":      "healthy",
			"service":     "chatmemory-api",
			"environment": container.Config.Server.Environment,
			"backend":     container.Config.Memory.Backend,
			"timestamp":   time.Now().Unix(),
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		if container.DB != nil {
			if err := container.DB.PingContext(ctx); err != nil {
				health["db"] = "unhealthy"
				health["db_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["db"] = "healthy"
			}
		}

		if container.Redis != nil {
			if _, err := container.Redis.Ping(ctx).Result(); err != nil {
				health["redis"] = "unhealthy"
				health["redis_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["redis"] = "healthy"
			}
		}

		// Storage check is opt-in, S3 round trips are slow
		if c.QueryBool("check_storage", false) {
			if exists, err := container.FileSystem.Exists(ctx, ".health-check"); err != nil {
				health["storage"] = "unhealthy"
				health["storage_error"] = err.Error()
			} else {
				health["storage"] = "healthy"
				health["storage_accessible"] = exists
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(health)
	}
}

func infoHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":     "Chat Memory API",
			"version":     "1.0.0",
			"description": "Conversation history with a bounded cache window over a durable log",
			"environment": cfg.Server.Environment,
			"endpoints": fiber.Map{
				"health":       "GET /health",
				"start":        "POST /api/v1/conversations",
				"get":          "GET /api/v1/conversations/:id",
				"delete":       "DELETE /api/v1/conversations/:id",
				"export":       "POST /api/v1/conversations/:id/export",
				"get_messages": "GET /api/v1/conversations/:id/messages",
				"put_messages": "PUT /api/v1/conversations/:id/messages",
				"chat":         "POST /api/v1/chat",
			},
			"memory": fiber.Map{
				"cache_window": cfg.Memory.CacheWindow,
				"rebuild_size": cfg.Memory.RebuildSize,
				"cache_ttl":    cfg.Memory.CacheTTL.String(),
			},
			"chat_enabled": cfg.AI.Enabled(),
		})
	}
}

// startServer starts the server with graceful shutdown
func startServer(app *fiber.App, cfg *config.Config) {
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	go func() {
		logx.Infof("Server listening on %s", addr)
		logx.Infof("Health Check: http://localhost%s/health", addr)
		if err := app.Listen(addr); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

// gracefulShutdown handles graceful server shutdown
func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logx.Infof("Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("Server exited")
}
