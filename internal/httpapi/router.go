package httpapi

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"chat_gateway/internal/auth"
	"chat_gateway/internal/config"
	"chat_gateway/internal/credits"
	"chat_gateway/internal/gateway"
	"chat_gateway/internal/middleware"
	"chat_gateway/internal/registry"
	"chat_gateway/internal/storage"
	"chat_gateway/internal/usage"
	"chat_gateway/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Users      auth.UserStore
	Ledger     credits.Ledger
	Registry   *registry.Registry
	Dispatcher *gateway.Dispatcher
	Usage      *usage.Recorder
	Logger     *utils.Logger
	Config     *config.Config

	db *storage.DB
}

// NewRouter creates an HTTP router with all dependencies wired up.
// Storage backends are selected from configuration: Postgres when
// DATABASE_URL is set, otherwise in-memory, with an optional Redis-backed
// ledger.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	logger := utils.NewLogger("gateway")

	deps := &Dependencies{
		Registry: registry.New(cfg.ProviderKeys),
		Logger:   logger,
		Config:   cfg,
	}

	if cfg.Database.URL != "" {
		db, err := storage.NewDB(storage.DBConfig{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repo := storage.NewUserRepository(db)
		deps.db = db
		deps.Users = &databaseUserStore{repo: repo}
		deps.Ledger = &databaseLedger{repo: repo}
	} else {
		deps.Users = auth.NewMemoryUserStore()
		if cfg.Redis.Address != "" {
			client := redis.NewClient(&redis.Options{
				Addr:         cfg.Redis.Address,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				PoolSize:     cfg.Redis.PoolSize,
				MinIdleConns: cfg.Redis.MinIdleConns,
				DialTimeout:  cfg.Redis.DialTimeout,
				ReadTimeout:  cfg.Redis.ReadTimeout,
				WriteTimeout: cfg.Redis.WriteTimeout,
			})
			deps.Ledger = credits.NewRedisLedger(client)
		} else {
			deps.Ledger = credits.NewMemoryLedger()
		}
	}

	if cfg.Usage.FilePath != "" {
		recorder, err := usage.NewRecorder(cfg.Usage.FilePath, cfg.Usage.BufferSize, cfg.Usage.FlushInterval)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize usage recorder: %w", err)
		}
		deps.Usage = recorder
	}

	deps.Dispatcher = gateway.NewDispatcher(deps.Registry, deps.Ledger, logger, cfg.UpstreamTimeout)

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	authRequired := middleware.Authenticate(cfg.JWTSecret)

	mux.HandleFunc("/api/chat", deps.handleChat)
	mux.Handle("/api/generate-image", authRequired(http.HandlerFunc(deps.handleGenerateImage)))

	mux.HandleFunc("/api/auth/register", deps.handleRegister)
	mux.HandleFunc("/api/auth/login", deps.handleLogin)
	mux.Handle("/api/auth/user", authRequired(http.HandlerFunc(deps.handleUserProfile)))

	mux.HandleFunc("/health", deps.handleHealth)
}

// Close releases resources the router owns.
func (d *Dependencies) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
