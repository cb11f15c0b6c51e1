package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insiderlens/internal/adminauth"
	"insiderlens/internal/config"
	cronrunner "insiderlens/internal/cron"
	"insiderlens/internal/db"
	"insiderlens/internal/handler"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/logger"
	gormrepository "insiderlens/internal/repository/gorm"
	"insiderlens/internal/sec"
	"insiderlens/internal/service"
)

func main() {
	cfgPath := os.Getenv("IL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("IL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := dbConn.SetTimezone(cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	queue := jobqueue.New(store, cfg.Queue, log)

	secHTTP := &http.Client{Timeout: cfg.SEC.Timeout}
	secClient := sec.NewClient(secHTTP, cfg.SEC)
	poller := sec.NewPoller(secClient, queue, store, cfg.SEC, log)

	eventsSvc := &service.EventQueryService{Repo: store, TradePlan: cfg.TradePlan, Logger: log}
	monitoringSvc := &service.MonitoringService{Repo: store, Logger: log}
	adminSvc := &service.AdminService{
		Repo:     store,
		Queue:    queue,
		Versions: cfg.Versions,
		Backfill: cfg.Backfill,
		Logger:   log,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	eventHandler := &handler.EventHandler{Svc: eventsSvc}
	eventHandler.Register(engine)

	admin := engine.Group("/api/v1/admin", adminauth.Middleware(cfg.Server.AdminToken))
	jobsHandler := &handler.JobsHandler{Repo: store}
	jobsHandler.Register(admin)
	monitoringHandler := &handler.MonitoringHandler{Svc: monitoringSvc}
	monitoringHandler.Register(admin)
	adminHandler := &handler.AdminHandler{Svc: adminSvc}
	adminHandler.Register(admin)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)
	if cfg.Cron.Enabled {
		if cfg.SEC.PollerEnabled {
			if _, err := cronRunner.Add("form4_poll", cfg.Cron.Form4Poll, func(ctx context.Context) {
				if err := poller.PollOnce(ctx); err != nil {
					log.Warn("form4 poll failed", zap.Error(err))
				}
			}); err != nil {
				log.Warn("cron register form4 poll failed", zap.Error(err))
			}
		}
		if _, err := cronRunner.Add("stale_reclaim", cfg.Cron.StaleReclaim, func(ctx context.Context) {
			if _, err := queue.ReclaimStale(ctx); err != nil {
				log.Warn("stale reclaim failed", zap.Error(err))
			}
		}); err != nil {
			log.Warn("cron register stale reclaim failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("benchmark_refresh", cfg.Cron.BenchmarkRefresh, func(ctx context.Context) {
			if _, err := adminSvc.RefreshBenchmark(ctx, cfg.EODHD.BenchmarkSymbol); err != nil {
				log.Warn("benchmark refresh enqueue failed", zap.Error(err))
			}
		}); err != nil {
			log.Warn("cron register benchmark refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	// First boot: make sure a benchmark series lands before outcomes need it.
	go func() {
		bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		count, err := store.CountBenchmarkPrices(bootCtx, cfg.EODHD.BenchmarkSymbol)
		if err != nil || count > 0 {
			return
		}
		if _, err := adminSvc.RefreshBenchmark(bootCtx, cfg.EODHD.BenchmarkSymbol); err != nil {
			log.Warn("benchmark bootstrap enqueue failed", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Admin-Token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
