package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the relation engine and the
// notification broker.
type Metrics struct {
	TogglesTotal        *prometheus.CounterVec
	CounterRepairsTotal *prometheus.CounterVec
	NotificationsTotal  prometheus.Counter
	DeliveriesTotal     prometheus.Counter
	EvictionsTotal      prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
	RelayFallbacksTotal prometheus.Counter
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			TogglesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toggles_total",
					Help: "Relation toggles by kind and result (added, removed, error)",
				},
				[]string{"kind", "result"},
			),
			CounterRepairsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "counter_repairs_total",
					Help: "Denormalized counter rows repaired by reconciliation",
				},
				[]string{"kind"},
			),
			NotificationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notifications_published_total",
				Help: "Payloads handed to the notification broker",
			}),
			DeliveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notification_deliveries_total",
				Help: "Payloads delivered to live subscriptions",
			}),
			EvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notification_subscribers_evicted_total",
				Help: "Subscriptions dropped because their buffer was full",
			}),
			ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "notification_subscriptions_active",
				Help: "Currently open notification subscriptions",
			}),
			RelayFallbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notification_relay_fallbacks_total",
				Help: "Publishes delivered locally because the relay failed",
			}),
		}
	})
	return instance
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
