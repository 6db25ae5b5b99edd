package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yacqub6996/Apex-v2-sub000/internal/api/handlers"
	"github.com/yacqub6996/Apex-v2-sub000/internal/api/routes"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/copytrading"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/distribution"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/investing"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/ledger"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/notify"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/withdrawal"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/adapters"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/cache"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/config"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/database"
	infrarepo "github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/repositories"
	maturitysweep "github.com/yacqub6996/Apex-v2-sub000/internal/workers/maturity_sweep"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/graceful"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, API rate limiting disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	store := infrarepo.NewStore(db)

	// Settlement notifications go out by email when sendgrid is
	// configured, otherwise to the log.
	var notifier notify.Notifier
	if cfg.Email.Provider == "sendgrid" && cfg.Email.APIKey != "" {
		emailNotifier, err := adapters.NewEmailNotifier(cfg.Email, nil, logger)
		if err != nil {
			logger.Fatal("failed to build email notifier", zap.Error(err))
		}
		notifier = emailNotifier
	} else {
		notifier = notify.NewLogNotifier(logger)
	}
	emitter := notify.NewEmitter(notifier, logger)

	throttle := ratelimit.NewSlidingWindow(
		cfg.Engine.MutationLimit,
		cfg.Engine.MutationWindow(),
		nil,
	)

	ledgerSvc := ledger.NewService(store, logger)
	copySvc := copytrading.NewService(store, throttle, emitter, logger)
	investSvc := investing.NewService(store, throttle, emitter, nil, logger)
	distSvc := distribution.NewService(store, emitter, logger)
	withdrawalSvc := withdrawal.NewService(store, emitter, logger)

	var limiter *ratelimit.RedisLimiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client(), ratelimit.RedisConfig{
			IPLimit:    int64(cfg.Server.IPRateLimit),
			IPWindow:   time.Minute,
			UserLimit:  int64(cfg.Server.RateLimitPerMin),
			UserWindow: time.Minute,
		}, logger)
	}

	router := routes.Setup(&routes.Dependencies{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Redis:       redisClient,
		RateLimiter: limiter,
		Ledger:      handlers.NewLedgerHandler(ledgerSvc, logger),
		CopyTrading: handlers.NewCopyTradingHandler(copySvc, logger),
		Investments: handlers.NewInvestmentHandler(investSvc, logger),
		Withdrawals: handlers.NewWithdrawalHandler(withdrawalSvc, logger),
		Admin: handlers.NewAdminHandler(
			ledgerSvc, copySvc, investSvc, distSvc, withdrawalSvc, logger),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	shutdown := graceful.NewShutdownManager(server, db, logger)

	if cfg.Workers.Enabled {
		sweeper := maturitysweep.New(investSvc, cfg, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatal("failed to start maturity sweep", zap.Error(err))
		}
		shutdown.Register(sweeper)
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	shutdown.WaitForShutdown()
}

func newLogger(cfg *config.Config) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.LogLevel); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
