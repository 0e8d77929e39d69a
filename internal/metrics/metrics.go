
// Package metrics exposes Prometheus instrumentation for the refresh pipeline
// and the chat path. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatbot"

type Metrics struct {
	registry *prometheus.Registry

	Refreshes       *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	PageFetches     *prometheus.CounterVec
	StoredPages     prometheus.Gauge
	StoredProducts  prometheus.Gauge
	ChatRequests    *prometheus.CounterVec
	Completions     *prometheus.CounterVec
}

// New registers all collectors on a private registry so several instances
// can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Knowledge refresh passes by result.",
		}, []string{"result"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a knowledge refresh pass.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PageFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Page fetch attempts by result.",
		}, []string{"result"}),
		StoredPages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_pages",
			Help:      "Pages in the published knowledge store.",
		}),
		StoredProducts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_products",
			Help:      "Product mentions in the published snapshot.",
		}),
		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat messages by classified intent.",
		}, []string{"intent"}),
		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Completion service calls by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is the private registry every collector of m is registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRefresh(ok bool, d time.Duration, pages, products int) {
	if m == nil {
		return
	}
	if !ok {
		m.Refreshes.WithLabelValues("failure").Inc()
		return
	}
	m.Refreshes.WithLabelValues("success").Inc()
	m.RefreshDuration.Observe(d.Seconds())
	m.StoredPages.Set(float64(pages))
	m.StoredProducts.Set(float64(products))
}

func (m *Metrics) ObserveFetch(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.PageFetches.WithLabelValues("ok").Inc()
		return
	}
	m.PageFetches.WithLabelValues("failed").Inc()
}

func (m *Metrics) ObserveChat(intent string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(intent).Inc()
}

// ObserveCompletion takes one of "ok", "error", "unconfigured".
func (m *Metrics) ObserveCompletion(result string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(result).Inc()
}
