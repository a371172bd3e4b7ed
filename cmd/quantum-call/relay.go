package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/signaling"
)

func runRelay(configPath, listen, redisAddr, tracing string) {
	cfg, err := signaling.LoadRelayConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}

	logger, err := setupLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := setupTracing(tracing); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(metrics.Labels{"service": "quantum-call-relay"})
	metrics.SetGlobal(collector)

	mailbox := cfg.NewMailbox()
	defer func() { _ = mailbox.Close() }()

	obs := metrics.NewServer(metrics.ServerConfig{
		Collector:        collector,
		Version:          getVersion(),
		Namespace:        cfg.MetricsNamespace,
		EnablePrometheus: true,
		EnableHealth:     true,
	})
	if rm, ok := mailbox.(*signaling.RedisMailbox); ok {
		obs.AddHealthCheck("redis", rm.Ping)
	}

	relay := signaling.NewServer(signaling.ServerConfig{
		Mailbox:   mailbox,
		Collector: collector,
		Logger:    logger,
	})
	relay.Register(obs.Router())

	srv := metrics.NewHTTPServer(cfg.Listen, obs.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	mailboxKind := "memory"
	if cfg.Redis.Addr != "" {
		mailboxKind = "redis"
	}
	logger.Info("relay listening", metrics.Fields{
		"addr":    cfg.Listen,
		"mailbox": mailboxKind,
		"version": getVersion(),
	})
	fmt.Printf("✓ Relay listening on %s (rooms: %s, metrics: /metrics, health: /health)\n",
		cfg.Listen, signaling.RoomPath)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("relay server error", metrics.Fields{"error": err.Error()})
		os.Exit(1)
	}
	fmt.Println("\nRelay stopped")
}
