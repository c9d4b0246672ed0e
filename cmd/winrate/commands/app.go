package commands

import (
	"fmt"

	"github.com/wonny/winrate/internal/qualitative"
	"github.com/wonny/winrate/internal/winrate"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/database"
	"github.com/wonny/winrate/pkg/logger"
	"github.com/wonny/winrate/pkg/redis"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	service *winrate.Service
}

// loadConfig loads config and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp connects to Postgres and Redis and wires the prediction service
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to redis (disabled client when REDIS_ENABLED=false)
	rc, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Qualitative gateway (LLM, 실패 시 fallback)
	httpClient := qualitative.NewHTTPClient(cfg, log, rc)
	gateway := qualitative.NewGatewayFromConfig(cfg, httpClient, log.Zerolog())

	// 6. Repository + service
	repo := winrate.NewRepository(db.Pool)
	cache := redis.NewCache(rc, "winrate").WithLogger(log.Zerolog())
	svc := winrate.NewService(repo, gateway, cache, cfg.Prediction, log.Zerolog())

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   rc,
		service: svc,
	}, nil
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
