package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"insiderlens/internal/ai"
	"insiderlens/internal/compute"
	"insiderlens/internal/config"
	"insiderlens/internal/db"
	"insiderlens/internal/eodhd"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/logger"
	gormrepository "insiderlens/internal/repository/gorm"
	"insiderlens/internal/sec"
	"insiderlens/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)
	queue := jobqueue.New(store, cfg.Queue, log)

	secHTTP := &http.Client{Timeout: cfg.SEC.Timeout}
	secClient := sec.NewClient(secHTTP, cfg.SEC)
	eodhdHTTP := &http.Client{Timeout: cfg.EODHD.Timeout}
	eodhdClient := eodhd.NewClient(eodhdHTTP, cfg.EODHD)

	var judge *ai.Judge
	if cfg.AI.APIKey != "" {
		gen, err := ai.NewGeminiClient(ctx, cfg.AI)
		if err != nil {
			log.Fatal("gemini client init failed", zap.Error(err))
		}
		judge = ai.NewJudge(store, gen, cfg.AI.Model, cfg.AI,
			cfg.Versions.Prompt, cfg.EODHD.BenchmarkSymbol, log)
	} else {
		log.Warn("no ai api key configured, ai jobs will fail until one is set")
	}

	pool := worker.NewPool(worker.Deps{
		Repo:   store,
		Queue:  queue,
		SEC:    secClient,
		EODHD:  eodhdClient,
		Judge:  judge,
		Agg:    compute.NewAggregator(store, cfg.Versions.Parse, log),
		Trend:  compute.NewTrendComputer(store, log),
		Out:    compute.NewOutcomeComputer(store, queue, cfg.EODHD, cfg.Versions.Outcomes, log),
		Stats:  compute.NewStatsComputer(store, cfg.Versions.Stats, log),
		Clust:  compute.NewClusterComputer(store, cfg.Versions.Cluster, log),
		Config: cfg,
		Log:    log,
	})
	pool.Run(ctx)
}
