package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/grademonitor-api/api/swagger"
	"github.com/noah-isme/grademonitor-api/internal/handler"
	"github.com/noah-isme/grademonitor-api/internal/repository"
	"github.com/noah-isme/grademonitor-api/internal/service"
	"github.com/noah-isme/grademonitor-api/pkg/cache"
	"github.com/noah-isme/grademonitor-api/pkg/config"
	"github.com/noah-isme/grademonitor-api/pkg/database"
	"github.com/noah-isme/grademonitor-api/pkg/export"
	"github.com/noah-isme/grademonitor-api/pkg/i18n"
	"github.com/noah-isme/grademonitor-api/pkg/logger"
)

// @title Grade Monitor API
// @version 1.0.0
// @description Interactive grade projections for students, with debounced persistence of their what-if edits.
// @BasePath /
// @schemes http

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.NewPostgres(connectCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.SchemeCache.Enabled {
		redisClient, err = cache.NewRedis(connectCtx, cfg.Redis)
		if err != nil {
			logr.Warn("scheme cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, repository.DefaultCachePrefix, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.SchemeCache.TTL, logr, redisClient != nil)

	gradebook := repository.NewGradebookRepository(db)
	records := repository.NewMonitorRecordRepository(db)

	datasetCfg := service.DatasetConfig{
		DefaultGoal:     cfg.Monitor.DefaultGoal,
		DefaultEstimate: cfg.Monitor.DefaultEstimate,
	}
	datasets := service.NewDatasetService(gradebook, records, cacheSvc, metrics, logr, datasetCfg)
	persistence := service.NewPersistenceService(records, metrics, logr, datasetCfg)

	delivery := service.NewDeliveryService(persistence, metrics, logr, service.DeliveryConfig{
		Workers: cfg.Delivery.Workers,
		Buffer:  cfg.Delivery.Buffer,
		Timeout: cfg.Delivery.Timeout,
	})
	// Delivery runs on its own context; Stop drains it after sessions flush.
	delivery.Start(context.Background())
	defer delivery.Stop()

	catalog, err := i18n.Default(cfg.Monitor.DefaultLocale)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	monitors := service.NewMonitorService(datasets, catalog, delivery, metrics, logr, service.MonitorConfig{
		FlushDelay:    cfg.Monitor.FlushDelay,
		IdleTTL:       cfg.Monitor.SessionIdleTTL,
		DefaultLocale: cfg.Monitor.DefaultLocale,
	})
	exports := service.NewExportService(monitors, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	checks := map[string]handler.Pinger{"database": gradebook}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	router := newRouter(cfg, logr, routes{
		monitor: handler.NewMonitorHandler(monitors, exports, validator.New(), logr),
		metrics: handler.NewMetricsHandler(metrics, checks),
		service: metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go sweep(ctx, monitors, cfg.Monitor.SweepInterval, logr)

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}

	// Flush every open session into the queue before delivery.Stop drains it.
	closed := monitors.CloseAll()
	logr.Info("sessions flushed", zap.Int("count", closed))
	return nil
}

func sweep(ctx context.Context, monitors *service.MonitorService, interval time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := monitors.Sweep(); n > 0 {
				logr.Debug("idle sessions closed", zap.Int("count", n))
			}
		}
	}
}
