package metrics

import (
	"sync"

	"github.com/pagekit/undo/memutils"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name when CollectorOptions does not provide a namespace
const DefaultNamespace = "undo"

// CollectorOptions contains optional settings when creating a collector
type CollectorOptions struct {
	// Namespace prefixes every metric name. If left blank, DefaultNamespace is used.
	Namespace string
	// Lock, if provided, is held while statistics are gathered. Pools and histories are not
	// safe for concurrent use, so consumers that scrape from another goroutine must provide the
	// lock that guards them.
	Lock sync.Locker
}

func (o CollectorOptions) namespace() string {
	if o.Namespace == "" {
		return DefaultNamespace
	}
	return o.Namespace
}

func (o CollectorOptions) lock() func() {
	if o.Lock == nil {
		return func() {}
	}
	o.Lock.Lock()
	return o.Lock.Unlock
}

// PoolStats is implemented by *pagepool.Pool
type PoolStats interface {
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
}

// PoolCollector is a prometheus.Collector reporting the page usage of a pool
type PoolCollector struct {
	pool    PoolStats
	options CollectorOptions

	leafBlocks *prometheus.Desc
	leafBytes  *prometheus.Desc
	livePages  *prometheus.Desc
	liveBytes  *prometheus.Desc
	freePages  *prometheus.Desc
	freeBytes  *prometheus.Desc
}

var _ prometheus.Collector = &PoolCollector{}

// NewPoolCollector creates a PoolCollector for pool. Every metric carries a pool label set to
// name.
func NewPoolCollector(name string, pool PoolStats, options CollectorOptions) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	describe := func(metric string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(options.namespace(), "pool", metric), help, nil, labels)
	}

	return &PoolCollector{
		pool:    pool,
		options: options,

		leafBlocks: describe("leaf_blocks", "Number of leaf blocks obtained from the page source."),
		leafBytes:  describe("leaf_bytes", "Bytes of leaf blocks obtained from the page source."),
		livePages:  describe("live_pages", "Number of pages handed out by the pool."),
		liveBytes:  describe("live_bytes", "Bytes of pages handed out by the pool."),
		freePages:  describe("free_pages", "Number of pages waiting on the pool's free lists."),
		freeBytes:  describe("free_bytes", "Bytes of pages waiting on the pool's free lists."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.leafBlocks
	ch <- c.leafBytes
	ch <- c.livePages
	ch <- c.liveBytes
	ch <- c.freePages
	ch <- c.freeBytes
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	unlock := c.options.lock()
	c.pool.AddDetailedStatistics(&stats)
	unlock()

	ch <- prometheus.MustNewConstMetric(c.leafBlocks, prometheus.GaugeValue, float64(stats.LeafBlockCount))
	ch <- prometheus.MustNewConstMetric(c.leafBytes, prometheus.GaugeValue, float64(stats.LeafBlockBytes))
	ch <- prometheus.MustNewConstMetric(c.livePages, prometheus.GaugeValue, float64(stats.PageCount))
	ch <- prometheus.MustNewConstMetric(c.liveBytes, prometheus.GaugeValue, float64(stats.PageBytes))
	ch <- prometheus.MustNewConstMetric(c.freePages, prometheus.GaugeValue, float64(stats.FreePageCount))
	ch <- prometheus.MustNewConstMetric(c.freeBytes, prometheus.GaugeValue, float64(stats.FreePageBytes))
}
