package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	applogger "MDK/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHCandleSource implements DatasetSource over a ClickHouse table with
// columns bucket, symbol, open, high, low, close, vol.
type CHCandleSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleSource(db *sql.DB, table string, l *applogger.Logger) (*CHCandleSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid candles table name %q", table)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleSource{db: db, table: table, l: l}, nil
}

// SchemaDDL creates the candles table when it is missing.
func (s *CHCandleSource) SchemaDDL() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            bucket DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            vol    Float64
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (symbol, bucket)
    `, s.table)}
}

func (s *CHCandleSource) rangeQuery() string {
	return fmt.Sprintf(`
        SELECT bucket, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `, s.table)
}

// latestQuery reads the newest rows and flips them back to ascending order.
func (s *CHCandleSource) latestQuery() string {
	return fmt.Sprintf(`
        SELECT bucket, open, high, low, close, vol FROM (
            SELECT bucket, open, high, low, close, vol
            FROM %s
            WHERE symbol = ?
            ORDER BY bucket DESC
            LIMIT ?
        ) ORDER BY bucket ASC
    `, s.table)
}

func (s *CHCandleSource) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	return s.query(ctx, "get_candles", symbol, s.rangeQuery(), symbol, from, to)
}

func (s *CHCandleSource) GetLatestNCandles(ctx context.Context, symbol string, n int) ([]models.Candle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("latest candles: n must be positive, got %d", n)
	}
	return s.query(ctx, "latest_candles", symbol, s.latestQuery(), symbol, n)
}

func (s *CHCandleSource) query(ctx context.Context, op, symbol, q string, args ...interface{}) ([]models.Candle, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.DatasetSource = (*CHCandleSource)(nil)
