package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/session"
)

func setupLogger(logLevel, logFormat string) (*metrics.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}

	format, err := parseLogFormat(logFormat)
	if err != nil {
		return nil, err
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(os.Stderr),
		metrics.WithLevel(level),
		metrics.WithFormat(format),
		metrics.WithFields(metrics.Fields{"app": "quantum-call"}),
	)
	metrics.SetLogger(logger)
	return logger, nil
}

func setupTracing(tracing string) error {
	switch strings.ToLower(tracing) {
	case "none":
		metrics.SetTracer(metrics.NoOpTracer{})
	case "simple":
		metrics.SetTracer(metrics.NewMemoryTracer(0))
	case "otel":
		tracer, err := metrics.NewOTelTracer("quantum-call")
		if err != nil {
			return err
		}
		metrics.SetTracer(tracer)
	default:
		return fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", tracing)
	}
	return nil
}

func setupObservability(logLevel, logFormat, tracing string, labels metrics.Fields) (*metrics.Collector, session.ObserverFactory, *metrics.Logger, error) {
	logger, err := setupLogger(logLevel, logFormat)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := setupTracing(tracing); err != nil {
		return nil, nil, nil, err
	}

	collector := metrics.NewCollector(metrics.Labels{
		"service": "quantum-call",
	})
	metrics.SetGlobal(collector)

	room, _ := labels["room"].(string)
	peer, _ := labels["peer"].(string)

	observerFactory := func(role session.Role) session.Observer {
		return metrics.NewSessionObserver(metrics.SessionObserverConfig{
			Collector: collector,
			Logger:    logger,
			Room:      room,
			Peer:      peer,
			Role:      role.String(),
		})
	}

	return collector, observerFactory, logger, nil
}

func parseLogLevel(level string) (metrics.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return metrics.LevelDebug, nil
	case "info":
		return metrics.LevelInfo, nil
	case "warn", "warning":
		return metrics.LevelWarn, nil
	case "error":
		return metrics.LevelError, nil
	case "silent", "off", "none":
		return metrics.LevelSilent, nil
	default:
		return metrics.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}

func parseLogFormat(format string) (metrics.Format, error) {
	switch strings.ToLower(format) {
	case "text":
		return metrics.FormatText, nil
	case "json":
		return metrics.FormatJSON, nil
	default:
		return metrics.FormatText, fmt.Errorf("invalid log format: %s (use text or json)", format)
	}
}

func parseCipher(name string) (constants.CipherSuite, error) {
	switch strings.ToLower(name) {
	case "aes-gcm", "aes", "aes-256-gcm":
		return constants.CipherSuiteAES256GCM, nil
	case "chacha20", "chacha20-poly1305":
		return constants.CipherSuiteChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("invalid cipher: %s (use aes-gcm or chacha20)", name)
	}
}
