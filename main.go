package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/idcard-check/internal/auth"
	"github.com/example/idcard-check/internal/capture"
	"github.com/example/idcard-check/internal/config"
	"github.com/example/idcard-check/internal/handlers"
	"github.com/example/idcard-check/internal/logging"
	"github.com/example/idcard-check/internal/messages"
	"github.com/example/idcard-check/internal/policy"
	"github.com/example/idcard-check/internal/providers"
	"github.com/example/idcard-check/internal/repository"
	"github.com/example/idcard-check/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	repo := repository.NewCaptureRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)

	gateway, backend, err := providers.Open(ctx, &cfg.Checker, logger)
	if err != nil {
		logger.Fatal("failed to open detection providers", zap.Error(err))
	}
	defer backend.Close()

	store, err := capture.NewFileStore(cfg.CaptureDir)
	if err != nil {
		logger.Fatal("failed to open capture store", zap.Error(err))
	}

	catalog := messages.NewCatalog()
	validation := policy.New(gateway, policy.Keywords{Front: cfg.FrontKeywords, Back: cfg.BackKeywords}, logger)
	notifier := capture.Notifiers{
		capture.NewLogNotifier(logger),
		capture.NewRedisNotifier(redisClient, logger),
	}
	coordinator := capture.NewCoordinator(store, validation, notifier, catalog, logger)

	cache := usecase.NewRedisCache(redisClient)
	uc := usecase.NewCaptureUseCase(repo, cache, coordinator, store, cfg.CaptureTTL, logger)

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	handlers.RegisterRoutes(r, uc, authMiddleware, handlers.Config{
		MaxUploadSize: cfg.MaxUploadBytes,
		Catalog:       catalog,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("ID card check API listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
