package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given collector.
// The namespace is prepended to all metric names (e.g., "quantum_call").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

type promSeries struct {
	name  string
	help  string
	typ   string
	value func(Snapshot) float64
}

var promSeriesTable = []promSeries{
	{"sessions_active", "Number of calls currently in progress", "gauge", func(s Snapshot) float64 { return float64(s.SessionsActive) }},
	{"sessions_total", "Total number of call sessions started", "counter", func(s Snapshot) float64 { return float64(s.SessionsTotal) }},
	{"sessions_failed_total", "Total number of failed key agreements", "counter", func(s Snapshot) float64 { return float64(s.SessionsFailed) }},
	{"sas_accepted_total", "Total SAS codes confirmed by the user", "counter", func(s Snapshot) float64 { return float64(s.SASAccepted) }},
	{"sas_rejected_total", "Total SAS codes rejected by the user", "counter", func(s Snapshot) float64 { return float64(s.SASRejected) }},
	{"frames_encrypted_total", "Total outbound frames encrypted", "counter", func(s Snapshot) float64 { return float64(s.FramesEncrypted) }},
	{"frames_decrypted_total", "Total inbound frames decrypted", "counter", func(s Snapshot) float64 { return float64(s.FramesDecrypted) }},
	{"frames_passthrough_outbound_total", "Total outbound frames forwarded unencrypted", "counter", func(s Snapshot) float64 { return float64(s.FramesPassedOutbound) }},
	{"frames_passthrough_inbound_total", "Total inbound frames forwarded unchanged", "counter", func(s Snapshot) float64 { return float64(s.FramesPassedInbound) }},
	{"frames_dropped_total", "Total frames dropped by the transform", "counter", func(s Snapshot) float64 { return float64(s.FramesDropped) }},
	{"frame_bytes_encrypted_total", "Total media bytes encrypted", "counter", func(s Snapshot) float64 { return float64(s.BytesEncrypted) }},
	{"frame_bytes_decrypted_total", "Total media bytes decrypted", "counter", func(s Snapshot) float64 { return float64(s.BytesDecrypted) }},
	{"auth_failures_total", "Total inbound frames that failed authentication", "counter", func(s Snapshot) float64 { return float64(s.AuthFailures) }},
	{"nonce_exhaustions_total", "Total encoders halted by counter exhaustion", "counter", func(s Snapshot) float64 { return float64(s.NonceExhaustions) }},
	{"signaling_messages_relayed_total", "Total signaling messages forwarded to a connected peer", "counter", func(s Snapshot) float64 { return float64(s.MessagesRelayed) }},
	{"signaling_messages_queued_total", "Total signaling messages stored for an absent peer", "counter", func(s Snapshot) float64 { return float64(s.MessagesQueued) }},
	{"protocol_errors_total", "Total malformed or unexpected signaling messages", "counter", func(s Snapshot) float64 { return float64(s.ProtocolErrors) }},
	{"uptime_seconds", "Time since the collector was created", "gauge", func(s Snapshot) float64 { return s.Uptime.Seconds() }},
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	for _, s := range promSeriesTable {
		e.writeHelp(w, s.name, s.help)
		e.writeType(w, s.name, s.typ)
		e.writeMetric(w, s.name, labels, s.value(snap))
	}

	e.writeHistogram(w, "handshake_duration_milliseconds", "Key agreement duration in milliseconds", labels, snap.HandshakeLatency)
	e.writeHistogram(w, "frame_encrypt_duration_microseconds", "Frame encryption duration in microseconds", labels, snap.EncryptLatency)
	e.writeHistogram(w, "frame_decrypt_duration_microseconds", "Frame decryption duration in microseconds", labels, snap.DecryptLatency)
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a latency summary as a Prometheus histogram.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h LatencySummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")

	fullName := e.namespace + "_" + name
	sep := ""
	if labels != "" {
		sep = ","
	}

	for _, b := range h.Buckets {
		le := strconv.FormatFloat(b.LE, 'g', -1, 64)
		if math.IsInf(b.LE, 1) {
			le = "+Inf"
		}
		fmt.Fprintf(w, "%s_bucket{%s%sle=\"%s\"} %d\n", fullName, labels, sep, le, b.Count)
	}

	e.writeMetric(w, name+"_sum", labels, h.Sum)
	e.writeMetric(w, name+"_count", labels, float64(h.Count))
}

// formatLabels converts Labels to Prometheus label format.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		// Escape label values
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
