package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chat-llm/internal/config"
	"chat-llm/internal/db"
	apihttp "chat-llm/internal/http"
	"chat-llm/internal/llm"
	"chat-llm/internal/repository"
	"chat-llm/internal/search"
	"chat-llm/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		store repository.ChatSessionRepository
		ping  apihttp.Pinger
	)
	if cfg.UsesSQLite() {
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath())
		if err != nil {
			logger.Fatal("sqlite open", zap.Error(err))
		}
		defer sqlDB.Close()
		repo := repository.NewSQLiteChatSessionRepository(sqlDB)
		if err := repo.Migrate(ctx); err != nil {
			logger.Fatal("sqlite migrate", zap.Error(err))
		}
		store, ping = repo, sqlDB.PingContext
	} else {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		repo := repository.NewPgChatSessionRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store = repo
		ping = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	}

	var (
		sessionCache = repository.NewMemorySessionListCache(cfg.SessionCacheTTL())
		limiter      = service.NewMemoryRateLimiter(cfg.ChatRateLimitPerMinute)
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			sessionCache = repository.NewRedisSessionListCache(redisClient, cfg.SessionCacheTTL())
			if rl := service.NewRedisRateLimiter(redisClient, time.Minute, cfg.ChatRateLimitPerMinute); rl != nil {
				limiter = rl
			}
		}
		cancel()
	}
	store = repository.NewCachedChatSessionRepository(store, sessionCache)

	catalog, err := llm.LoadCatalog(cfg.ModelsFile)
	if err != nil {
		logger.Fatal("load models", zap.Error(err))
	}
	creds := make(map[string]llm.ProviderCredentials)
	for name, p := range cfg.Providers() {
		if p.APIKey == "" {
			logger.Warn("provider not configured", zap.String("provider", name))
		}
		creds[name] = llm.ProviderCredentials{BaseURL: p.BaseURL, APIKey: p.APIKey}
	}
	registry, err := llm.NewRegistry(catalog, llm.NewClientFactory(creds))
	if err != nil {
		logger.Fatal("model registry", zap.Error(err))
	}

	var searcher search.Searcher
	if cfg.TavilyAPIKey != "" {
		searcher = search.NewTavilyClient(cfg.TavilyBaseURL, cfg.TavilyAPIKey, cfg.SearchTimeout())
	} else {
		logger.Warn("tavily api key not configured, search will return no results")
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTTL())
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	chatSvc := service.NewChatService(store, registry, searcher, limiter, logger)
	sessionSvc := service.NewSessionService(store)

	router := apihttp.NewRouter(
		logger,
		jwtSvc,
		apihttp.NewChatHandler(logger, chatSvc),
		apihttp.NewSessionHandler(logger, sessionSvc),
		apihttp.NewMetaHandler(logger, registry, ping),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.Bool("sqlite", cfg.UsesSQLite()),
		zap.String("default_model", registry.DefaultID()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
