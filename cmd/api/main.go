package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lifesync-engine/internal/config"
	"lifesync-engine/internal/db"
	apihttp "lifesync-engine/internal/http"
	"lifesync-engine/internal/llm"
	"lifesync-engine/internal/metrics"
	"lifesync-engine/internal/persona"
	"lifesync-engine/internal/questionbank"
	"lifesync-engine/internal/quota"
	"lifesync-engine/internal/ratelimit"
	"lifesync-engine/internal/repository"
	"lifesync-engine/internal/scorer"
	"lifesync-engine/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	defer logger.Sync()

	bank, err := questionbank.Load()
	if err != nil {
		return err
	}
	personas, err := persona.Load()
	if err != nil {
		return err
	}

	manager := db.Manager()
	if err := manager.Initialize(ctx, cfg); err != nil {
		logger.Error("db connect failed", zap.Error(err))
		return err
	}
	defer manager.Close()
	pool, err := manager.Client()
	if err != nil {
		return err
	}

	caches := db.NewCacheSet()
	assessmentRepo := repository.NewPgAssessmentRepository(pool, caches, logger, cfg.DBQueryTimeout)
	profileRepo := repository.NewPgProfileRepository(pool, cfg.DBQueryTimeout)
	userRepo := repository.NewPgUserRepository(pool, cfg.DBAuthTimeout)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, distributed limits disabled", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	limiter := ratelimit.New()
	var quotaTracker quota.Limiter = quota.NewTracker()
	if redisClient != nil {
		logger.Info("redis connected, layering distributed quota")
		// El tracker en memoria sigue activo; Redis agrega la capa
		// compartida entre instancias.
		quotaTracker = quota.NewRedisLayeredTracker(redisClient, quota.NewTracker())
	}

	var providers []llm.Provider
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.DefaultGeminiModel, cfg.GeminiAlternateModels, logger)
		if err != nil {
			logger.Warn("gemini provider init failed", zap.Error(err))
		} else {
			providers = append(providers, gemini)
		}
	}
	if cfg.OpenAIAPIKey != "" {
		openaiProvider, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.DefaultOpenAIModel, logger)
		if err != nil {
			logger.Warn("openai provider init failed", zap.Error(err))
		} else {
			providers = append(providers, openaiProvider)
		}
	}
	if len(providers) == 0 {
		logger.Warn("no LLM provider configured, explanations will use the static fallback")
	}
	router := llm.NewRouter(logger, providers...)

	sc := scorer.New(bank)
	jwtSvc := service.NewJWTService(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	authSvc := service.NewAuthService(logger, userRepo, jwtSvc)
	assessmentSvc := service.NewAssessmentService(logger, bank, sc, personas, assessmentRepo, profileRepo, router, quotaTracker, caches)

	metricsReg := metrics.New(caches.Stats)

	engine := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:      logger,
		Config:      cfg,
		Metrics:     metricsReg,
		Limiter:     limiter,
		JWT:         jwtSvc,
		Assessments: apihttp.NewAssessmentHandler(logger, assessmentSvc, metricsReg),
		Auth:        apihttp.NewAuthHandler(logger, authSvc, jwtSvc),
		Questions:   apihttp.NewQuestionHandler(bank),
		Profiles:    apihttp.NewProfileHandler(logger, assessmentSvc),
		Health:      apihttp.NewHealthHandler(pool, caches, router, metricsReg),
	})

	server := &http.Server{
		Addr:              cfg.APIHost + ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	// Los handlers en vuelo terminan acotados por el presupuesto de request;
	// el pool se cierra después vía defer.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	return nil
}
