package carddb

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on the Registerer passed in Options, or on a
// private registry when none is given.
type metrics struct {
	remoteRequests *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	catalogLoads   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &metrics{
		remoteRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mtgls_remote_requests_total",
			Help: "Requests issued to the remote card API, by kind.",
		}, []string{"kind"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mtgls_cache_lookups_total",
			Help: "In-memory cache lookups, by cache and result.",
		}, []string{"cache", "result"}),
		catalogLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mtgls_catalog_loads_total",
			Help: "Catalog loads, by catalog and source.",
		}, []string{"catalog", "source"}),
	}
}

func (m *metrics) lookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// countingRemote counts every call before delegating.
type countingRemote struct {
	Remote
	m *metrics
}

func (r countingRemote) Catalog(ctx context.Context, endpoint string) ([]byte, error) {
	r.m.remoteRequests.WithLabelValues("catalog").Inc()
	return r.Remote.Catalog(ctx, endpoint)
}

func (r countingRemote) NamedCard(ctx context.Context, name string) ([]byte, error) {
	r.m.remoteRequests.WithLabelValues("named").Inc()
	return r.Remote.NamedCard(ctx, name)
}

func (r countingRemote) Search(ctx context.Context, query string) ([]byte, error) {
	r.m.remoteRequests.WithLabelValues("search").Inc()
	return r.Remote.Search(ctx, query)
}

func (r countingRemote) Get(ctx context.Context, uri string) ([]byte, error) {
	r.m.remoteRequests.WithLabelValues("rulings").Inc()
	return r.Remote.Get(ctx, uri)
}
