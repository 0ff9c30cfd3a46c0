package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/ledger-book/internal/app"
	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/processor"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/prom"
	"github.com/nimasrn/ledger-book/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := app.Init(os.Args); err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting ledger event processor", "version", version, "commit", commit, "date", date)

	redisAdap, err := app.OpenRedis()
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}
	if redisAdap == nil {
		logger.Error("the event processor needs REDIS_ADDR")
		return
	}
	defer redis.Close("default")

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.MetricsListenAddr, cfg.MetricsURI)

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyConfig.ProcessedTTL = cfg.EventDedupTTL
	idempotencyConfig.MaxRetries = cfg.EventMaxRetries
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	service := processor.NewProcessorService(redisAdap, processor.Options{
		Stream:  app.EventsConfig(),
		Workers: cfg.EventWorkers,
	})
	service.RegisterProcessor(processor.NewLedgerEventProcessor(idempotencyService))

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}
