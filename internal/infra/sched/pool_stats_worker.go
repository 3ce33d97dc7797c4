package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"discount-code-service/internal/infra/metrics"
)

// PoolSnapshot is a point-in-time view of a connection pool.
type PoolSnapshot struct {
	Total, Idle, InUse, Max int32
}

// PoolStatsFunc samples the pool.
type PoolStatsFunc func() PoolSnapshot

// PgxPoolStats adapts a pgxpool.Pool to PoolStatsFunc.
func PgxPoolStats(pool *pgxpool.Pool) PoolStatsFunc {
	return func() PoolSnapshot {
		st := pool.Stat()
		return PoolSnapshot{
			Total: st.TotalConns(),
			Idle:  st.IdleConns(),
			InUse: st.AcquiredConns(),
			Max:   st.MaxConns(),
		}
	}
}

// PoolStatsWorker periodically publishes pool stats to the db_pool_stats gauge.
type PoolStatsWorker struct {
	interval time.Duration
	stats    PoolStatsFunc
	log      *zerolog.Logger
}

func NewPoolStatsWorker(interval time.Duration, stats PoolStatsFunc, logger *zerolog.Logger) *PoolStatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	wl := logger.With().Str("component", "PoolStatsWorker").Logger()
	return &PoolStatsWorker{interval: interval, stats: stats, log: &wl}
}

// Run samples once immediately, then on every tick until ctx is cancelled.
func (w *PoolStatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting pool stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sample()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pool stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *PoolStatsWorker) sample() {
	s := w.stats()
	metrics.SetDBPoolStats(s.Total, s.Idle, s.InUse, s.Max)
	if s.Max > 0 && s.InUse == s.Max {
		w.log.Warn().Int32("in_use", s.InUse).Msg("connection pool saturated")
	}
}
