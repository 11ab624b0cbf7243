package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/gate-access-service/internal/api/http"
	"github.com/spec-kit/gate-access-service/internal/api/http/handlers"
	"github.com/spec-kit/gate-access-service/internal/auth"
	"github.com/spec-kit/gate-access-service/internal/biometric"
	"github.com/spec-kit/gate-access-service/internal/config"
	"github.com/spec-kit/gate-access-service/internal/events"
	"github.com/spec-kit/gate-access-service/internal/observability"
	"github.com/spec-kit/gate-access-service/internal/persistence"
	"github.com/spec-kit/gate-access-service/internal/replay"
	"github.com/spec-kit/gate-access-service/internal/repository"
	"github.com/spec-kit/gate-access-service/internal/service"
	"github.com/spec-kit/gate-access-service/internal/token"
	"github.com/spec-kit/gate-access-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	identityRepo := repository.NewIdentityRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	codec, err := token.NewCodec(token.Config{
		Secret:    []byte(cfg.Gate.SecretKey),
		Validity:  cfg.Gate.Validity(),
		ClockSkew: cfg.Gate.ClockSkew(),
		Compact:   cfg.Gate.CompactTokens,
		SigChars:  cfg.Gate.CompactSigChars,
	})
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}

	var guard replay.Guard = replay.NewNoopGuard()
	if cfg.Gate.ReplayGuard {
		guard = replay.NewRedisGuard(redis.Client)
	}

	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher(logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	accessService := service.NewAccessService(service.AccessDependencies{
		Codec:        codec,
		Matcher:      biometric.NewMatcher(cfg.Gate.SimilarityThreshold),
		Extractor:    biometric.NewHTTPExtractor(cfg.Extractor.BaseURL, cfg.Extractor.Timeout()),
		IdentityRepo: identityRepo,
		AuditRepo:    auditRepo,
		ReplayGuard:  guard,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	authService := service.NewAuthService(*cfg, identityRepo, logger)
	if err := authService.EnsureAdmin(ctx); err != nil {
		logger.Fatal("failed to bootstrap admin identity", zap.Error(err))
	}
	logService := service.NewLogService(auditRepo)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), identityRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Gate:           handlers.NewGateHandler(accessService),
		Auth:           handlers.NewAuthHandler(authService),
		Logs:           handlers.NewLogsHandler(logService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
