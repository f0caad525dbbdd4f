package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBConnectionsOpen = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Open connections in the pool",
	})
	DBConnectionsInUse = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_in_use",
		Help:      "Connections currently acquired",
	})
	DBConnectionsIdle = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_idle",
		Help:      "Idle connections in the pool",
	})
)

// DBCollector samples pgxpool statistics on an interval.
type DBCollector struct {
	pool *pgxpool.Pool
}

// NewDBCollector creates a pool statistics collector.
func NewDBCollector(pool *pgxpool.Pool) *DBCollector {
	return &DBCollector{pool: pool}
}

// Run samples immediately and then every interval until ctx is done.
func (c *DBCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-ctx.Done():
			return
		}
	}
}

func (c *DBCollector) collect() {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	DBConnectionsOpen.Set(float64(stat.TotalConns()))
	DBConnectionsInUse.Set(float64(stat.AcquiredConns()))
	DBConnectionsIdle.Set(float64(stat.IdleConns()))
}
