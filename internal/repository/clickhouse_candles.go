package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	pkgch "RSIBoard/pkg/clickhouse"
	applogger "RSIBoard/pkg/logger"
)

// CHCandleSource implements CandleSource over ClickHouse candle tables
// (database.candles_1m, candles_1h, candles_1d).
type CHCandleSource struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHCandleSource(ch *pkgch.Client, database string, l *applogger.Logger) *CHCandleSource {
	return &CHCandleSource{db: ch.DB(), database: database, l: l}
}

// CandleSchema returns the DDL for the tables CHCandleSource reads.
func CandleSchema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, suffix := range []string{"1m", "1h", "1d"} {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s.candles_%s (symbol LowCardinality(String), bucket DateTime('UTC'), close Decimal(18, 6)) "+
				"ENGINE = ReplacingMergeTree ORDER BY (symbol, bucket)",
			database, suffix))
	}
	return stmts
}

func (s *CHCandleSource) Candles(ctx context.Context, id, interval string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	table, err := s.tableFor(interval)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT bucket, toString(close)
        FROM %s FINAL
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `, table)

	fields := []applogger.Field{
		applogger.String("table", table),
		applogger.String("symbol", id),
		applogger.String("interval", interval),
	}

	rows, err := s.db.QueryContext(ctx, q, id, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse candles query error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var (
			bucket time.Time
			closeS string
		)
		if err := rows.Scan(&bucket, &closeS); err != nil {
			s.l.Error("clickhouse candles scan error", append(fields, applogger.Error(err))...)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c, err := candleFromRow(bucket, closeS)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse candles rows error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse candles ok", append(fields,
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)...)
	if len(out) == 0 {
		return nil, domrepo.ErrNoData
	}
	return out, nil
}

func (s *CHCandleSource) tableFor(interval string) (string, error) {
	switch interval {
	case "1m", "1h", "1d":
		return fmt.Sprintf("%s.candles_%s", s.database, interval), nil
	default:
		return "", fmt.Errorf("unsupported clickhouse interval: %s", interval)
	}
}

var _ domrepo.CandleSource = (*CHCandleSource)(nil)
