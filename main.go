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

	"github.com/example/haneul-palette/internal/auth"
	"github.com/example/haneul-palette/internal/grpcapi"
	"github.com/example/haneul-palette/internal/handlers"
	"github.com/example/haneul-palette/internal/imageprocessor"
	"github.com/example/haneul-palette/internal/logging"
	"github.com/example/haneul-palette/internal/repository"
	"github.com/example/haneul-palette/internal/usecase"
)

type config struct {
	Addr        string
	GRPCAddr    string
	LogLevel    string
	DatabaseDSN string
	RedisAddr   string
	JWTSecret   string
	JWTAudience string
}

func loadConfig() config {
	return config{
		Addr:        net.JoinHostPort(getEnv("HOST", "0.0.0.0"), getEnv("PORT", "7860")),
		GRPCAddr:    os.Getenv("GRPC_ADDR"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),
	}
}

func main() {
	cfg := loadConfig()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo usecase.AnalysisRepository
	if cfg.DatabaseDSN != "" {
		db := initDatabase(initCtx, cfg.DatabaseDSN, logger)
		analysisRepo := repository.NewAnalysisRepository(db, logger)
		if err := analysisRepo.AutoMigrate(initCtx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		repo = analysisRepo
	} else {
		logger.Info("DATABASE_DSN not set, analysis history disabled")
	}

	var cache usecase.Cache
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(initCtx, 5*time.Second)
		cache = initRedis(redisCtx, cfg.RedisAddr, logger)
		redisCancel()
	} else {
		logger.Info("REDIS_ADDR not set, result cache disabled")
	}

	uc := usecase.NewAnalysisUseCase(repo, cache, imageprocessor.ImagingDecoder{}, logger)

	var authMiddleware gin.HandlerFunc
	if cfg.JWTSecret != "" {
		authMiddleware = auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience, logger)
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	grpcDone := startGRPC(runCtx, cfg.GRPCAddr, uc, logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(uc, logger, authMiddleware),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Haneul Palette API listening", zap.String("addr", cfg.Addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}

	stop()
	if err := <-grpcDone; err != nil {
		logger.Error("grpc server stopped with error", zap.Error(err))
	}
}

func newRouter(svc handlers.AnalysisService, logger *zap.Logger, authMiddleware gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(r, svc, logger, authMiddleware)
	return r
}

// startGRPC serves the gRPC transport when addr is set. The returned channel
// yields once the server has stopped (immediately when disabled).
func startGRPC(ctx context.Context, addr string, analyzer grpcapi.Analyzer, logger *zap.Logger) <-chan error {
	done := make(chan error, 1)
	if addr == "" {
		done <- nil
		return done
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.Error(err), zap.String("addr", addr))
	}
	srv, healthServer := grpcapi.NewGRPCServer(grpcapi.NewServer(analyzer, logger))

	logger.Info("gRPC analyzer listening", zap.String("addr", addr))
	go func() {
		done <- grpcapi.Serve(ctx, srv, lis, healthServer)
	}()
	return done
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

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *usecase.RedisCache {
	cache := usecase.NewRedisCache(redis.NewClient(&redis.Options{Addr: addr}))
	if err := cache.Ping(ctx); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return cache
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

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
