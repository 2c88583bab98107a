// Package metrics exposes Prometheus collectors for backup sessions,
// served on an internal-only HTTP listener — never the public
// TCP/wire listener — the same separation the teacher's server keeps
// between its chat protocol port and its :9090 promhttp mux.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the collectors a single process (server or client)
// reports.
type Registry struct {
	SessionsActive  *prometheus.GaugeVec
	SessionsTotal   *prometheus.CounterVec
	BytesPlaintext  prometheus.Counter
	BytesWire       prometheus.Counter
	SessionDuration prometheus.Histogram
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		SessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forgedbackup",
			Name:      "sessions_active",
			Help:      "Number of backup sessions currently in progress.",
		}, []string{"role"}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgedbackup",
			Name:      "sessions_total",
			Help:      "Total backup sessions completed, by terminal status.",
		}, []string{"status"}),
		BytesPlaintext: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forgedbackup",
			Name:      "bytes_plaintext_total",
			Help:      "Total plaintext bytes read from backed-up directories.",
		}),
		BytesWire: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forgedbackup",
			Name:      "bytes_wire_total",
			Help:      "Total ciphertext bytes sent or received over the network.",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forgedbackup",
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of a backup session.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// SessionStarted records the start of a session for the given role
// ("client" or "server").
func (r *Registry) SessionStarted(role string) {
	r.SessionsActive.WithLabelValues(role).Inc()
}

// SessionFinished records a session's terminal status and releases its
// active-gauge slot.
func (r *Registry) SessionFinished(role, status string, durationSeconds float64) {
	r.SessionsActive.WithLabelValues(role).Dec()
	r.SessionsTotal.WithLabelValues(status).Inc()
	r.SessionDuration.Observe(durationSeconds)
}

// RecordBytes adds a session's transferred byte counts to the running
// totals. Called with whatever was actually moved even when the
// session ended in error, since a partial transfer still used bytes.
func (r *Registry) RecordBytes(bytesPlaintext, bytesWire int64) {
	if bytesPlaintext > 0 {
		r.BytesPlaintext.Add(float64(bytesPlaintext))
	}
	if bytesWire > 0 {
		r.BytesWire.Add(float64(bytesWire))
	}
}

// Server wraps the internal promhttp listener. A zero-value addr
// disables it entirely — the server never binds :9090 unless
// configured to.
type Server struct {
	httpServer *http.Server
}

// NewServer builds (but does not start) an internal metrics listener
// bound to addr. Returns nil, nil if addr is empty.
func NewServer(addr string, reg *prometheus.Registry) (*Server, error) {
	if addr == "" {
		return nil, nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}, nil
}

// Serve blocks until the listener fails or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.httpServer.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: listener error: %w", err)
	}
}
