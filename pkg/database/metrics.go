package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolStat struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool.Stat on every scrape.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	stats   []poolStat
}

// NewPoolStatsCollector describes the pool gauges and counters. Describe
// works with a nil pool; Collect does not.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	stat := func(name, help string, kind prometheus.ValueType, value func(*pgxpool.Stat) float64) poolStat {
		return poolStat{
			desc:  prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil),
			kind:  kind,
			value: value,
		}
	}
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		stats: []poolStat{
			stat("acquired_connections", "Connections currently checked out.", prometheus.GaugeValue,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			stat("idle_connections", "Connections currently idle.", prometheus.GaugeValue,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			stat("total_connections", "Connections open in the pool.", prometheus.GaugeValue,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			stat("max_connections", "Configured pool size.", prometheus.GaugeValue,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			stat("acquire_count_total", "Connection acquisitions.", prometheus.CounterValue,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			stat("acquire_duration_seconds_total", "Time spent waiting to acquire connections.", prometheus.CounterValue,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
		},
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.pool.Stat()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, s.kind, s.value(snap), c.service)
	}
}

// RegisterPoolMetrics registers a collector for pool with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
