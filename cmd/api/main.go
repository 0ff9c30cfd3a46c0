package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/ledger-book/internal/app"
	"github.com/nimasrn/ledger-book/internal/applock"
	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/handlers"
	"github.com/nimasrn/ledger-book/internal/services"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
	"github.com/nimasrn/ledger-book/pkg/logger"
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
	logger.Info("starting ledger api", "version", version, "commit", commit, "date", date)

	db, err := app.OpenDB()
	if err != nil {
		logger.Error("failed connecting to db", "driver", cfg.DBDriver, "error", err)
		return
	}
	rdb, err := app.OpenRedis()
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	ledger, err := app.NewLedger(context.Background(), db, rdb)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		return
	}
	defer ledger.Close()

	// transport (tcp for now)
	s := xhttp.CreateServerWithOption(xhttp.DefaultServerOption.WithTimeouts(cfg.HttpServerReadTimeout, cfg.HttpServerWriteTimeout, cfg.HttpRequestTimeout))
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(s.RequestTimeout()))

	g := s.Router.Group("/api/v1")
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(ledger.Health))
	handlers.RegisterLedgerRoutes(g, handlers.NewLedgerHandler(ledger.Ledger, ledger.View, cfg.Location()))
	handlers.RegisterReportRoutes(g, handlers.NewReportHandler(ledger.Reports, ledger.Statements, services.StatementMarkdown))

	if rdb != nil && cfg.LockJWTSecret != "" {
		gate := applock.NewGate(rdb, []byte(cfg.LockJWTSecret), cfg.LockSessionTTL)
		handlers.RegisterLockRoutes(g, handlers.NewLockHandler(gate))
		s.Use(handlers.LockMiddleware(gate, "/health", "/lock"))
	} else {
		logger.Warn("pin lock disabled, it needs REDIS_ADDR and LOCK_JWT_SECRET")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
			c <- syscall.SIGTERM
		}
	}()

	<-c
	s.Shutdown()
}
