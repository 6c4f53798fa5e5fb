package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stragan/stragan/internal/app"
	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/day"
	"github.com/stragan/stragan/internal/expiry"
	"github.com/stragan/stragan/internal/observability"
	"github.com/stragan/stragan/internal/platform/cache"
	"github.com/stragan/stragan/internal/platform/db"
	"github.com/stragan/stragan/internal/recon"
	"github.com/stragan/stragan/internal/sales"
	"github.com/stragan/stragan/internal/shared"
	"github.com/stragan/stragan/internal/shift"
	"github.com/stragan/stragan/internal/stock"
	"github.com/stragan/stragan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.New()
	idempotencyStore := shared.NewIdempotencyStore(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, catalogService, logger)
	stockHandler := stock.NewHandler(logger, stockService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	expiryCache := expiry.NewCache(redisClient, cfg.ExpiryCacheTTL)
	expiryMonitor := expiry.NewMonitor(stockService, expiryCache)
	expiryHandler := expiry.NewHandler(logger, expiryMonitor, jobsClient)

	dayRepo := day.NewRepository(pool)
	dayService := day.NewService(dayRepo, catalogService, logger)
	dayHandler := day.NewHandler(logger, dayService)

	var salesStock sales.StockPort
	if cfg.RealTimeDepletion {
		salesStock = stockService
	}
	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, catalogService, salesStock, idempotencyStore, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	reconRepo := recon.NewRepository(pool)
	reconService := recon.NewService(dayService, catalogService, reconRepo, logger)
	reconHandler := recon.NewHandler(logger, reconService)

	shiftRepo := shift.NewRepository(pool)
	shiftService := shift.NewService(shiftRepo, logger)
	shiftHandler := shift.NewHandler(logger, shiftService)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Pool:           pool,
		CatalogHandler: catalogHandler,
		StockHandler:   stockHandler,
		ExpiryHandler:  expiryHandler,
		DayHandler:     dayHandler,
		SalesHandler:   salesHandler,
		ReconHandler:   reconHandler,
		ShiftHandler:   shiftHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
