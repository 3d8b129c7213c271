// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	router "metawallet/internal/api"
	"metawallet/internal/api/handler"
	"metawallet/internal/cache"
	"metawallet/internal/config"
	"metawallet/internal/repository"
	"metawallet/internal/repository/postgres"
	"metawallet/internal/service"
	"metawallet/internal/util"
	"metawallet/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	AccountRepository    repository.AccountRepository
	WalletRepository     repository.WalletRepository
	TopUpEntryRepository repository.TopUpEntryRepository

	// Services
	TopUpService service.TopUpService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.AdminAccountID == "" {
		return fmt.Errorf("ADMIN_ACCOUNT_ID must be set; run cmd/seed to provision the admin account")
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Wallet cache: Redis when configured, otherwise a no-op.
	var walletCache cache.WalletCache = cache.NewNoopWalletCache()
	if app.Config.RedisAddr != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     app.Config.RedisAddr,
			Password: app.Config.RedisPass,
			DB:       app.Config.RedisDB,
		})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		walletCache = cache.NewRedisWalletCache(app.Redis)
		app.Logger.Info("Redis wallet cache enabled.", "addr", app.Config.RedisAddr)
	}

	// 5. Initialize Repositories
	app.AccountRepository = postgres.NewAccountRepository()
	app.WalletRepository = postgres.NewWalletRepository()
	app.TopUpEntryRepository = postgres.NewTopUpEntryRepository()
	app.Logger.Info("Repositories initialized.")

	// 6. Initialize Services
	app.TopUpService = service.NewTopUpService(
		app.DB, // DBTxBeginner
		app.DB, // DBExecutor for non-transactional reads
		app.AccountRepository,
		app.WalletRepository,
		app.TopUpEntryRepository,
		walletCache,
		service.NewFeeCalculator(app.Config.FeeRate),
		app.Config.AdminAccountID,
		app.Logger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	walletHandler := handler.NewWalletHandler(app.TopUpService, app.Logger)
	app.HTTPHandler = router.NewRouter(walletHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close Redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
