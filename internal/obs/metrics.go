package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cart",
		Name:      "checkout_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"status"})

	LockContentionTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cart",
		Name:      "lock_contention_total",
		Help:      "Lock acquisitions rejected because another holder was live.",
	})

	CacheHitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cart",
		Name:      "cache_hit_total",
		Help:      "Cache lookups by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(CheckoutTotal, LockContentionTotal, CacheHitTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
