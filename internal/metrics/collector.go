package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// QueueStats provides the collector access to the inbox worker pool.
type QueueStats interface {
	Pending() int
	Workers() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	queue QueueStats

	queuePending    *prometheus.Desc
	queueWorkers    *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool and queue may be nil (metrics will report 0).
func NewCollector(pool *pgxpool.Pool, queue QueueStats) *Collector {
	return &Collector{
		pool:  pool,
		queue: queue,
		queuePending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "inbox", "queue_pending"),
			"Inbox files waiting for a worker.",
			nil, nil,
		),
		queueWorkers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "inbox", "workers"),
			"Inbox worker goroutines.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuePending
	ch <- c.queueWorkers
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var pending, workers float64
	if c.queue != nil {
		pending = float64(c.queue.Pending())
		workers = float64(c.queue.Workers())
	}
	ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, pending)
	ch <- prometheus.MustNewConstMetric(c.queueWorkers, prometheus.GaugeValue, workers)

	var total, acquired, idle float64
	if c.pool != nil {
		stat := c.pool.Stat()
		total = float64(stat.TotalConns())
		acquired = float64(stat.AcquiredConns())
		idle = float64(stat.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}
