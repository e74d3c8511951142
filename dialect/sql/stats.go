package sql

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements, in
	// nanoseconds.
	TotalDuration atomic.Int64
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	n := s.TotalQueries + s.TotalExecs
	if n == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(n)
}

// DebugOption configures the Debug driver wrapper.
type DebugOption func(*debugQuerier)

// WithLogger sets the logger statements are reported to.
// Defaults to slog.Default.
func WithLogger(l *slog.Logger) DebugOption {
	return func(d *debugQuerier) { d.log = l }
}

// WithSlowThreshold sets the duration above which a statement is logged at
// warn level and counted as slow. Zero disables slow detection.
func WithSlowThreshold(t time.Duration) DebugOption {
	return func(d *debugQuerier) { d.slow = t }
}

// WithStats attaches a shared QueryStats collector.
func WithStats(s *QueryStats) DebugOption {
	return func(d *debugQuerier) { d.stats = s }
}

// Debug returns a Driver that logs every statement with a correlation id,
// its duration and outcome. This is the injectable observability sink;
// nothing in the core keeps global mutable debug state.
func Debug(d *Driver, opts ...DebugOption) *Driver {
	dq := &debugQuerier{inner: d.ExecQuerier, log: slog.Default(), stats: &QueryStats{}}
	for _, opt := range opts {
		opt(dq)
	}
	return NewDriver(d.dialect, Conn{dq})
}

type debugQuerier struct {
	inner ExecQuerier
	log   *slog.Logger
	stats *QueryStats
	slow  time.Duration
}

// DB unwraps to the underlying *sql.DB.
func (d *debugQuerier) DB() *sql.DB { return d.inner.(*sql.DB) }

func (d *debugQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := d.inner.ExecContext(ctx, query, args...)
	d.stats.TotalExecs.Add(1)
	d.report(ctx, "exec", query, args, start, err)
	return res, err
}

func (d *debugQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.inner.QueryContext(ctx, query, args...)
	d.stats.TotalQueries.Add(1)
	d.report(ctx, "query", query, args, start, err)
	return rows, err
}

func (d *debugQuerier) report(ctx context.Context, op, query string, args []any, start time.Time, err error) {
	elapsed := time.Since(start)
	d.stats.TotalDuration.Add(int64(elapsed))
	attrs := []any{
		slog.String("id", uuid.NewString()),
		slog.String("op", op),
		slog.String("query", query),
		slog.Any("args", args),
		slog.Duration("duration", elapsed),
	}
	switch {
	case err != nil:
		d.stats.Errors.Add(1)
		d.log.ErrorContext(ctx, "statement failed", append(attrs, slog.Any("error", err))...)
	case d.slow > 0 && elapsed >= d.slow:
		d.stats.SlowQueries.Add(1)
		d.log.WarnContext(ctx, "slow statement", attrs...)
	default:
		d.log.DebugContext(ctx, "statement", attrs...)
	}
}

// Stats returns the stats collector of a Debug driver, or nil when the
// driver is not instrumented.
func Stats(d *Driver) *QueryStats {
	if dq, ok := d.ExecQuerier.(*debugQuerier); ok {
		return dq.stats
	}
	return nil
}
