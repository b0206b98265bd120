package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etlcore/orchestrator/config"
	"github.com/etlcore/orchestrator/internal/connpool"
	"github.com/etlcore/orchestrator/internal/connreg"
	"github.com/etlcore/orchestrator/internal/dispatcher"
	"github.com/etlcore/orchestrator/internal/executor"
	"github.com/etlcore/orchestrator/internal/health"
	"github.com/etlcore/orchestrator/internal/metadata/postgres"
	"github.com/etlcore/orchestrator/internal/metrics"
	"github.com/etlcore/orchestrator/internal/obslog"
	"github.com/etlcore/orchestrator/internal/orchestrator"
	"github.com/etlcore/orchestrator/internal/queue"
	"github.com/etlcore/orchestrator/internal/schedule"
	httptransport "github.com/etlcore/orchestrator/internal/transport/http"
	"github.com/etlcore/orchestrator/internal/transport/http/handler"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := obslog.New(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("metadata db: %v", err)
	}
	defer pool.Close()
	logger.Info("metadata db connected")

	reg := connreg.New()
	connections, err := cfg.Connections()
	if err != nil {
		stop()
		log.Fatalf("connections: %v", err)
	}
	for _, c := range connections {
		reg.Register(c)
	}
	logger.Info("connection registry seeded", "count", len(connections))

	connMgr := connpool.NewManager(reg)
	defer connMgr.Close()

	gw := postgres.New(pool, cfg.SchemaPrefix)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	q := queue.New(gw.Requests, logger)

	execCfg := executor.DefaultConfig()
	if cfg.MaxWorkers > 0 {
		execCfg.MaxWorkers = cfg.MaxWorkers
	}
	execCfg.MinRowsForParallel = cfg.MinRowsForParallel
	execCfg.RowErrorCap = cfg.RowErrorCap
	execCfg.ProgressMinInterval = time.Duration(cfg.ProgressWriteMinIntervalMS) * time.Millisecond
	execCfg.CancelGracePeriod = time.Duration(cfg.CancelGraceS) * time.Second
	execCfg.LeaseDuration = time.Duration(cfg.LeaseDurationS) * time.Second
	execCfg.RetryMaxRetries = cfg.RetryMaxRetries
	execCfg.RetryInitialDelay = time.Duration(cfg.RetryInitialDelayMS) * time.Millisecond
	execCfg.RetryMaxDelay = time.Duration(cfg.RetryMaxDelayMS) * time.Millisecond
	execCfg.RetryMultiplier = cfg.RetryMultiplier

	ex := executor.New(execCfg, gw, q, connMgr, reg, logger)
	core := orchestrator.New(q, ex, gw.RunLogs)

	reclaimer := queue.NewReclaimer(q, time.Duration(cfg.ReclaimIntervalS)*time.Second)
	go reclaimer.Start(ctx)

	evaluator := schedule.NewEvaluator(gw.Schedules, q, logger, time.Duration(cfg.ScheduleTickS)*time.Second)
	go evaluator.Start(ctx)

	disp := dispatcher.New(q, ex, logger, 2*time.Second, execCfg.LeaseDuration, execCfg.MaxWorkers)
	go disp.Start(ctx)

	requestHandler := handler.NewRequestHandler(core, logger)
	scheduleHandler := handler.NewScheduleHandler(gw.Schedules, logger)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, requestHandler, scheduleHandler),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("orchestrator shut down")
}
