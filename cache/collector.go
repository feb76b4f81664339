package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything that can report Stats, usually a Store.
type StatsSource interface {
	Stats() Stats
}

// Collector exports a StatsSource as prometheus metrics. Values are read on
// every scrape so no bookkeeping happens on the request path.
type Collector struct {
	source StatsSource

	entries     *prometheus.Desc
	capacity    *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector reporting under the given namespace.
func NewCollector(namespace string, source StatsSource) *Collector {
	return &Collector{
		source: source,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Number of entries held by the response cache, by state.",
			[]string{"state"}, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "capacity"),
			"Maximum number of entries the response cache may hold.",
			nil, nil,
		),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hits_total"),
			"Total number of cache lookups served from the store.",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "misses_total"),
			"Total number of cache lookups that fell through.",
			nil, nil,
		),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "evictions_total"),
			"Total number of entries evicted to respect capacity.",
			nil, nil,
		),
		expirations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "expirations_total"),
			"Total number of entries removed after their TTL elapsed.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacity
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expirations
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Active), "active")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Expired), "expired")
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.MaxSize))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(s.Expirations))
}
