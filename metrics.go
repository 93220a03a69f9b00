package pagecms

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/pagecms/amp"
)

type metrics struct {
	registry      *prometheus.Registry
	served        *prometheus.CounterVec
	renderSeconds *prometheus.HistogramVec
	renderErrors  *prometheus.CounterVec
	published     prometheus.Counter
	unpublished   prometheus.Counter
}

// newMetrics registers the app's collectors on a registry of its own, so
// several apps in one process (tests) do not collide.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		served: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecms_pages_served_total",
			Help: "Pages rendered, by rendering mode and page type.",
		}, []string{"mode", "page_type"}),
		renderSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagecms_page_render_seconds",
			Help:    "Time spent executing page templates.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		renderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecms_render_errors_total",
			Help: "Page renders that failed, by rendering mode.",
		}, []string{"mode"}),
		published: f.NewCounter(prometheus.CounterOpts{
			Name: "pagecms_scheduled_publishes_total",
			Help: "Pages published by the scheduler.",
		}),
		unpublished: f.NewCounter(prometheus.CounterOpts{
			Name: "pagecms_scheduled_expiries_total",
			Help: "Pages unpublished by the scheduler after expiry.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func modeLabel(ctx context.Context) string {
	if amp.Active(ctx) {
		return "amp"
	}
	return "standard"
}
