// container.go
package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/toolx"
	"github.com/Abraxas-365/chatmemory/pkg/ai/prompt"
	aiopenai "github.com/Abraxas-365/chatmemory/pkg/ai/providers/openai"
	"github.com/Abraxas-365/chatmemory/pkg/chat/chatapi"
	"github.com/Abraxas-365/chatmemory/pkg/chat/chatsrv"
	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/conversation/conversationapi"
	"github.com/Abraxas-365/chatmemory/pkg/conversation/conversationinfra"
	"github.com/Abraxas-365/chatmemory/pkg/conversation/conversationsrv"
	"github.com/Abraxas-365/chatmemory/pkg/database"
	"github.com/Abraxas-365/chatmemory/pkg/fsx"
	"github.com/Abraxas-365/chatmemory/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/chatmemory/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/chatmemory/pkg/iam/auth"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/Abraxas-365/chatmemory/pkg/memory/memoryapi"
	"github.com/Abraxas-365/chatmemory/pkg/memory/memoryinfra"
	"github.com/Abraxas-365/chatmemory/pkg/memory/memorysrv"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure (DB and Redis are nil with the in-memory backend)
	DB         *sqlx.DB
	Redis      *redis.Client
	FileSystem fsx.FileSystem
	S3Client   *s3.Client

	// Core Services
	Prompt              *prompt.Provider
	MemoryEngine        *memorysrv.Engine
	ConversationService *conversationsrv.ConversationService
	ChatService         *chatsrv.ChatService
	TokenService        auth.TokenService

	// API Handlers
	MemoryHandlers       *memoryapi.MemoryHandlers
	ConversationHandlers *conversationapi.ConversationHandlers
	ChatHandlers         *chatapi.ChatHandlers

	// Middleware
	AuthMiddleware *auth.AuthMiddleware
}

type containerOptions struct {
	skipMigrations bool
}

// NewContainer initializes the dependency injection container
func NewContainer(cfg *config.Config, opts containerOptions) *Container {
	logx.Info("Initializing dependency container...")

	c := &Container{
		Config: cfg,
	}

	c.initInfrastructure(opts)
	c.initServices()

	logx.Info("Container initialized")
	return c
}

func (c *Container) usesInMemoryBackend() bool {
	return c.Config.Memory.Backend == "memory"
}

func (c *Container) initInfrastructure(opts containerOptions) {
	logx.Info("Initializing infrastructure...")

	if c.usesInMemoryBackend() {
		logx.Warn("Using in-memory conversation store (state is lost on restart)")
	} else {
		c.initDatabase()
		if !opts.skipMigrations {
			c.runMigrations()
		}
		c.initRedis()
	}

	c.initFileStorage()

	logx.Info("Infrastructure initialized")
}

func (c *Container) initDatabase() {
	db, err := connectDatabase(&c.Config.Database)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	c.DB = db
	logx.Info("Database connected")
}

func connectDatabase(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func (c *Container) runMigrations() {
	if err := database.Migrate(c.DB.DB); err != nil {
		logx.Fatalf("Failed to run migrations: %v", err)
	}
	version, err := database.Version(c.DB.DB)
	if err != nil {
		logx.Warnf("Could not read schema version: %v", err)
		return
	}
	logx.Infof("Schema at version %d", version)
}

func (c *Container) initRedis() {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	// The cache degrades to the log when Redis is down, so this is not fatal.
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Warnf("Redis not reachable at %s: %v", c.Config.Redis.Address(), err)
	} else {
		logx.Info("Redis connected")
	}
}

func (c *Container) initFileStorage() {
	storage := c.Config.Storage

	switch storage.Mode {
	case "s3":
		cfg, err := awsConfig.LoadDefaultConfig(context.TODO(), awsConfig.WithRegion(storage.S3.Region))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.S3Client = s3.NewFromConfig(cfg)
		c.FileSystem = fsxs3.NewS3FileSystem(c.S3Client, storage.S3.Bucket, storage.S3.Prefix)
		logx.Infof("S3 file system configured (bucket: %s, region: %s)", storage.S3.Bucket, storage.S3.Region)

	case "local":
		localFS, err := fsxlocal.NewLocalFileSystem(storage.LocalDir)
		if err != nil {
			logx.Fatalf("Failed to initialize local file system: %v", err)
		}
		c.FileSystem = localFS
		logx.Infof("Local file system configured (path: %s)", localFS.Root())

	default:
		logx.Fatalf("Unknown STORAGE_MODE: %s (use 'local' or 's3')", storage.Mode)
	}
}

func (c *Container) initServices() {
	logx.Info("Initializing repositories and services...")

	// --- Repositories ---
	var (
		cacheBackend     memory.Cache
		conversationLog  memory.Log
		conversationRepo conversation.Repository
	)
	if c.usesInMemoryBackend() {
		cacheBackend = memory.NewInMemoryCache()
		conversationLog = memory.NewInMemoryLog()
		conversationRepo = conversationinfra.NewInMemoryConversationRepository()
	} else {
		cacheBackend = memoryinfra.NewRedisCache(c.Redis)
		conversationLog = memoryinfra.NewPostgresLog(c.DB)
		conversationRepo = conversationinfra.NewPostgresConversationRepository(c.DB)
	}

	// --- Memory ---
	c.Prompt = prompt.Load(c.Config.AI.PromptPath)
	logx.Infof("System prompt loaded from %s", c.Prompt.Source())

	c.MemoryEngine = memorysrv.NewEngine(cacheBackend, conversationLog, c.Prompt, &c.Config.Memory)

	// --- Conversations ---
	c.ConversationService = conversationsrv.NewConversationService(
		conversationRepo,
		c.MemoryEngine,
		c.FileSystem,
	)

	// --- Chat ---
	var model llm.LLM
	if c.Config.AI.Enabled() {
		model = aiopenai.NewOpenAIProvider(c.Config.AI.OpenAIAPIKey, c.Config.AI.Model)
		logx.Infof("OpenAI provider enabled (model: %s)", c.Config.AI.Model)
	} else {
		logx.Warn("OPENAI_API_KEY not set, /chat will answer 503")
	}
	c.ChatService = chatsrv.NewChatService(
		model,
		c.MemoryEngine,
		c.ConversationService,
		toolx.FromToolx(toolx.NewCurrentTime()),
		c.Config.AI,
	)

	// --- Auth ---
	c.TokenService = auth.NewJWTServiceFromConfig(&c.Config.Auth.JWT)
	c.AuthMiddleware = auth.NewAuthMiddleware(c.TokenService)

	// --- API Handlers ---
	c.MemoryHandlers = memoryapi.NewMemoryHandlers(c.MemoryEngine, c.ConversationService)
	c.ConversationHandlers = conversationapi.NewConversationHandlers(c.ConversationService)
	c.ChatHandlers = chatapi.NewChatHandlers(c.ChatService)

	logx.Info("All services and handlers initialized")
}

// Cleanup closes all connections
func (c *Container) Cleanup() {
	logx.Info("Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("Redis connection closed")
		}
	}

	logx.Info("Cleanup completed")
}
