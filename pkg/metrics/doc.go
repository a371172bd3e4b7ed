// Package metrics provides observability primitives for quantum-call.
//
// # Overview
//
// The metrics package offers a complete observability solution including:
//   - Metrics collection (counters and histograms)
//   - Prometheus-compatible metrics export
//   - Distributed tracing support (OpenTelemetry-compatible interface)
//   - Structured logging with levels
//   - Health check endpoints
//
// # Quick Start
//
// Basic usage with global collector:
//
//	import "github.com/sara-star-quant/quantum-call/pkg/metrics"
//
//	// Record metrics
//	metrics.Global().SessionStarted()
//	metrics.Global().RecordHandshakeLatency(150 * time.Millisecond)
//	metrics.Global().RecordFrameEncrypted(1024)
//
// # Metrics Collection
//
// The Collector type aggregates metrics from call sessions and the relay:
//
//	collector := metrics.NewCollector(metrics.Labels{
//		"instance": "node-1",
//		"region":   "us-west-2",
//	})
//
//	// Session metrics
//	collector.SessionStarted()
//	collector.SessionEnded()
//	collector.RecordHandshakeLatency(d)
//
//	// SAS decisions
//	collector.RecordSASAccepted()
//	collector.RecordSASRejected()
//
//	// Frame metrics
//	collector.RecordFrameEncrypted(n)
//	collector.RecordFrameDecrypted(n)
//	collector.RecordFrameDropped()
//	collector.RecordAuthFailure()
//
//	// Get snapshot
//	snap := collector.Snapshot()
//
// # Prometheus Export
//
// Export metrics in Prometheus format:
//
//	exporter := metrics.NewPrometheusExporter(collector, "quantum_call")
//	http.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
// The package provides a Tracer interface compatible with OpenTelemetry:
//
//	// Keep recent spans in memory
//	tracer := metrics.NewMemoryTracer(0)
//	metrics.SetTracer(tracer)
//
//	// OpenTelemetry adapter (uses the global provider; build with -tags otel)
//	otelTracer, err := metrics.NewOTelTracer("quantum-call")
//	if err == nil {
//		metrics.SetTracer(otelTracer)
//	}
//
//	// Start spans
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanHandshakeInitiator)
//	defer end(nil) // or end(err) on error
//
// # Structured Logging
//
// The Logger provides structured logging with levels on top of zap:
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "quantum-call"}),
//	)
//
//	logger.Info("handshake completed", metrics.Fields{
//		"room":   room,
//		"cipher": "AES-256-GCM",
//	})
//
//	// Child loggers
//	frameLog := logger.Named("frame").With(metrics.Fields{"direction": "inbound"})
//	frameLog.Warn("frame dropped")
//
// Key material and frame contents are never passed to a logger.
//
// # Health Checks
//
// Provide health check endpoints for Kubernetes and load balancers:
//
//	health := metrics.NewHealthCheck(collector, "1.0.0")
//	health.AddCheck("memory", metrics.MemoryCheck(512<<20))
//	health.AddCheck("redis", metrics.ConnectivityCheck("localhost:6379", time.Second))
//
//	http.Handle("/health", health.Handler())
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler())
//
// # Session Observer
//
// SessionObserver ties the collector, tracer and logger to one call and is
// passed to session.Config and frame.WorkerConfig:
//
//	obs := metrics.NewSessionObserver(metrics.SessionObserverConfig{
//		Collector: collector,
//		Room:      "room-42",
//		Role:      "initiator",
//	})
//
// # Observability Server
//
// Start a complete observability server:
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		Collector:        collector,
//		Version:          "1.0.0",
//		Namespace:        "quantum_call",
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//
//	go server.ListenAndServe(":9090")
//
// This provides:
//   - /metrics - Prometheus metrics
//   - /health  - Detailed health status
//   - /healthz - Kubernetes liveness probe
//   - /readyz  - Kubernetes readiness probe
//
// Server.Router exposes the gorilla/mux router so the signaling relay can
// add its websocket route to the same listener.
package metrics
