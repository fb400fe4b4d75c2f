package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wayneWudh/aiagent/config"
	"github.com/wayneWudh/aiagent/internal/api"
	"github.com/wayneWudh/aiagent/internal/engine"
	"github.com/wayneWudh/aiagent/internal/logger"
	"github.com/wayneWudh/aiagent/internal/metrics"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("alertengine", slog.LevelInfo)

	cfg := config.Load()
	log.Printf("[alertengine] symbols: %v, timeframes: %v", cfg.ParseSymbols(), cfg.ParseTimeframes())

	m := metrics.NewMetrics()
	svc, err := engine.New(cfg, m)
	if err != nil {
		log.Fatalf("[alertengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	apiSrv := api.NewServer(cfg.HTTPAddr, svc)
	apiSrv.Start()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		apiSrv.Stop(shutCtx)
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[alertengine] fatal: %v", err)
	}
}
