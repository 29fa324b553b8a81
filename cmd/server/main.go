package main

import (
	"context"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskpilot/api/handler"
	"github.com/fastygo/taskpilot/internal/config"
	"github.com/fastygo/taskpilot/internal/idempotency"
	"github.com/fastygo/taskpilot/internal/infrastructure/buffer"
	"github.com/fastygo/taskpilot/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskpilot/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskpilot/internal/infrastructure/redis"
	"github.com/fastygo/taskpilot/internal/router"
	"github.com/fastygo/taskpilot/internal/services"
	"github.com/fastygo/taskpilot/internal/services/lifecycle"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
	"github.com/fastygo/taskpilot/pkg/logger"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/memory"
	"github.com/fastygo/taskpilot/repository/postgres"
	redisRepo "github.com/fastygo/taskpilot/repository/redis"
	"github.com/fastygo/taskpilot/usecase"
	taskUC "github.com/fastygo/taskpilot/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	mon := monitor.New(0, zapLogger)

	var (
		taskRepo repository.TaskRepository
		idemRepo repository.IdempotencyRepository
	)

	if cfg.UsesPostgres() {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		mon.Register("postgresql", monitor.PostgresCheck(pool), true)

		if cfg.Store.Driver == config.StoreDriverPostgres {
			taskRepo = postgres.NewTaskRepository(pool)
		}
		if cfg.Idempotency.Backend == config.IdempotencyPostgres {
			idemRepo = postgres.NewIdempotencyRepository(pool)
		}
	}
	if taskRepo == nil {
		zapLogger.Warn("using in-memory task store; tasks are lost on restart")
		taskRepo = memory.NewTaskRepository()
	}

	switch cfg.Idempotency.Backend {
	case config.IdempotencyRedis:
		redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.RegisterCloser("redis", redisClient)
		mon.Register("redis", monitor.RedisCheck(redisClient), true)
		idemRepo = redisRepo.NewIdempotencyRepository(redisClient, cfg.Idempotency.Retention)
	case config.IdempotencyMemory:
		idemRepo = memory.NewIdempotencyRepository()
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.RegisterCloser("buffer", bufferStore)
	mon.Register("buffer", monitor.BufferCheck(bufferStore), false)

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	settings := config.SchedulingProvider{Source: config.Env()}
	purger, _ := idemRepo.(repository.IdempotencyPurger)

	bufferProcessor, err := services.NewBufferProcessor(
		bufferStore,
		mon,
		taskRepo,
		purger,
		settings,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  cfg.Idempotency.Retention,
		},
	)
	if err != nil {
		zapLogger.Fatal("failed to create buffer processor", zap.Error(err))
	}
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	bufferBridge := services.NewBufferBridge(bufferProcessor)
	taskUseCase := taskUC.New(taskRepo, settings, usecase.SystemClock{}, bufferBridge, zapLogger)
	gate := idempotency.NewGate(idemRepo, idempotency.Options{
		ClaimTTL:    cfg.Idempotency.ClaimTTL,
		EnforceHash: cfg.Idempotency.EnforceHash,
		Logger:      zapLogger,
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Task:      apiHandler.NewTaskHandler(taskUseCase, gate, ctxAdapter, zapLogger),
		Analytics: apiHandler.NewAnalyticsHandler(taskUseCase, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, bufferProcessor, ctxAdapter, zapLogger),
	}
	r := router.New(handlers)

	server := &fasthttp.Server{
		Handler:      router.Handler(r, zapLogger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.Store.Driver),
			zap.String("idempotency", cfg.Idempotency.Backend),
		)
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
