package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "httpay"

// Prometheus is a Recorder backed by a private Prometheus registry.
type Prometheus struct {
	registry      *prometheus.Registry
	verifications *prometheus.CounterVec
	usage         *prometheus.CounterVec
	txTotal       *prometheus.CounterVec
	txLatency     *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them on a fresh registry.
func NewPrometheus() *Prometheus {
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrow_verifications_total",
		Help:      "Escrow verifications by result",
	}, []string{"result"})

	usage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_reports_total",
		Help:      "Usage reports posted to the escrow contract",
	}, []string{"status"})

	txTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Contract executions by operation and status",
	}, []string{"operation", "status"})

	txLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transaction_duration_seconds",
		Help:      "Time from submission to inclusion",
		Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"operation"})

	r := prometheus.NewRegistry()
	r.MustRegister(verifications, usage, txTotal, txLatency)

	return &Prometheus{
		registry:      r,
		verifications: verifications,
		usage:         usage,
		txTotal:       txTotal,
		txLatency:     txLatency,
	}
}

// Registry exposes the underlying registry, e.g. to add process collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) ObserveVerification(reason string) {
	result := "valid"
	if reason != "" {
		result = reason
	}
	p.verifications.WithLabelValues(result).Inc()
}

func (p *Prometheus) ObserveUsage(status string) {
	p.usage.WithLabelValues(status).Inc()
}

func (p *Prometheus) ObserveTx(op, status string, d time.Duration) {
	p.txTotal.WithLabelValues(op, status).Inc()
	if status == StatusOK {
		p.txLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}
