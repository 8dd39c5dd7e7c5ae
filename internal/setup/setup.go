package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/robalyx/chorus/internal/ai"
	"github.com/robalyx/chorus/internal/database"
	"github.com/robalyx/chorus/internal/database/migrations"
	"github.com/robalyx/chorus/internal/gate"
	"github.com/robalyx/chorus/internal/intent"
	"github.com/robalyx/chorus/internal/persona"
	"github.com/robalyx/chorus/internal/pipeline"
	"github.com/robalyx/chorus/internal/quality"
	"github.com/robalyx/chorus/internal/redis"
	"github.com/robalyx/chorus/internal/setup/config"
	"github.com/robalyx/chorus/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	LLM          *ai.Client         // Remote model capabilities
	Gate         *gate.Gate         // Eligibility gate
	Filter       *quality.Filter    // Reply quality filter
	Prompts      *persona.Builder   // System prompt builder
	Topics       *persona.TopicDetector
	LogManager   *telemetry.Manager // Log management system
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, &cfg.Common.Telemetry)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Initialize database with migration check
	db, err := checkAndRunMigrations(ctx, &cfg.Common, dbLogger)
	if err != nil {
		return nil, err
	}

	ledger, err := newLedger(cfg, redisManager)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	provider, err := ai.NewProvider(ctx, &cfg.Common.LLM)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	llm := ai.NewClient(provider, &cfg.Common.LLM, cfg.Bot.Persona.Name, logger)
	classifier := intent.NewClassifier(intent.NewHeuristic(intent.DefaultQuestionKeywords), llm, logger)

	eligibility := gate.New("", cfg.Bot.Discord.OwnerID, gate.NewRuleBook(cfg), ledger, classifier, logger)

	banned := append(append([]string{}, quality.DefaultBannedPhrases...), cfg.Bot.Persona.NeverSay...)
	filter := quality.NewFilter(banned, quality.DefaultLimits(), llm, logger)

	logger.Info("Application initialized",
		zap.String("database", cfg.Common.Database.Driver),
		zap.String("ratelimit", cfg.Common.RateLimit.Backend),
		zap.String("llm", cfg.Common.LLM.Provider),
		zap.Int("communities", len(cfg.Bot.Communities)))

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		LLM:          llm,
		Gate:         eligibility,
		Filter:       filter,
		Prompts:      persona.NewBuilder(&cfg.Bot.Persona),
		Topics:       persona.NewTopicDetector(cfg.Bot.TopicKeywords),
		LogManager:   logManager,
	}, nil
}

// NewPipeline wires the orchestrator around a transport sender.
func (s *App) NewPipeline(sender pipeline.Sender, selfID string) *pipeline.Orchestrator {
	s.Gate.SetSelfID(selfID)

	repo := s.DB.Model()
	orchestrator := pipeline.New(pipeline.Dependencies{
		Messages:    repo.Message(),
		Users:       repo.User(),
		Feedback:    repo.Feedback(),
		Gate:        s.Gate,
		Generator:   s.LLM,
		Filter:      s.Filter,
		Sender:      sender,
		Prompts:     s.Prompts,
		Topics:      s.Topics,
		Communities: s.Config,
	}, pipeline.SettingsFromConfig(&s.Config.Bot), s.Logger)
	orchestrator.SetSelfID(selfID)

	return orchestrator
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(_ context.Context) {
	if err := s.LLM.Close(); err != nil {
		s.Logger.Error("Failed to close model client", zap.Error(err))
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// newLedger selects where rate windows and cooldowns are kept.
func newLedger(cfg *config.Config, redisManager *redis.Manager) (gate.Ledger, error) {
	if cfg.Common.RateLimit.Backend != "redis" {
		return gate.NewMemoryLedger(), nil
	}

	client, err := redisManager.GetClient(redis.RatelimitDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit client: %w", err)
	}

	return gate.NewRedisLedger(client), nil
}

// checkAndRunMigrations runs database migrations if needed. A sqlite
// database is migrated without asking.
func checkAndRunMigrations(ctx context.Context, cfg *config.CommonConfig, dbLogger *zap.Logger) (database.Client, error) {
	opts := database.Options{Tracing: cfg.Telemetry.EnableTracing}

	if cfg.Database.Driver == "sqlite" {
		opts.AutoMigrate = true
		return database.NewConnection(ctx, cfg, dbLogger, opts)
	}

	tempDB, err := database.NewConnection(ctx, cfg, dbLogger, opts)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	if len(ms.Unapplied()) == 0 {
		return tempDB, nil
	}

	log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		tempDB.Close()
		log.Fatalf("Closing program due to incomplete migrations")
	}

	if err := database.Migrate(ctx, tempDB.DB(), dbLogger); err != nil {
		tempDB.Close()
		return nil, err
	}

	return tempDB, nil
}
