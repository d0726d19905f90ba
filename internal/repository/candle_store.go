package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CoilScan/internal/domain/models"
	domrepo "CoilScan/internal/domain/repository"
	pkgch "CoilScan/pkg/clickhouse"
	applogger "CoilScan/pkg/logger"
)

// CHCandleStore implements CandleStore backed by ClickHouse, one table per
// timeframe. Replace writes go through a staging table swapped in with
// EXCHANGE TABLES, so readers always see either the old snapshot or the new
// one, never a partial write.
type CHCandleStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

// NewCHCandleStore creates a candle store over an existing ClickHouse client.
func NewCHCandleStore(ch *pkgch.Client, l *applogger.Logger) *CHCandleStore {
	return &CHCandleStore{ch: ch, db: ch.DB(), l: l}
}

const candleTableDDL = `
    CREATE TABLE IF NOT EXISTS %s (
        symbol LowCardinality(String),
        ts     DateTime('UTC'),
        open   Float64,
        high   Float64,
        low    Float64,
        close  Float64,
        vol    Float64
    ) ENGINE = MergeTree()
    ORDER BY (symbol, ts)
`

// Init ensures the per-timeframe candle tables exist (idempotent).
func (s *CHCandleStore) Init(ctx context.Context) error {
	stmts := make([]string, 0, len(domrepo.All()))
	for _, tf := range domrepo.All() {
		stmts = append(stmts, fmt.Sprintf(candleTableDDL, tableForTF(tf)))
	}
	return s.ch.InitSchema(ctx, stmts)
}

// Load reads the entire candle table for a timeframe ordered by (symbol, ts).
func (s *CHCandleStore) Load(ctx context.Context, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	table := tableForTF(tf)
	q := fmt.Sprintf(`
        SELECT symbol, ts, open, high, low, close, vol
        FROM %s
        ORDER BY symbol ASC, ts ASC
    `, table)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse load query error",
			applogger.String("table", table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load candles: %w", err)
	}
	defer rows.Close()

	out, err := scanCandles(rows, tf)
	if err != nil {
		s.l.Error("clickhouse load scan error",
			applogger.String("table", table),
			applogger.Error(err),
		)
		return nil, err
	}
	s.l.Debug("clickhouse load ok",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// LoadSymbol reads up to limit most recent candles for one symbol in a time
// range, returned in ascending order. Zero from/to bounds are open-ended.
func (s *CHCandleStore) LoadSymbol(ctx context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	table := tableForTF(tf)
	q := fmt.Sprintf(`
        SELECT symbol, ts, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
    `, table)
	args := []interface{}{symbol}
	if !from.IsZero() {
		q += " AND ts >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		q += " AND ts <= ?"
		args = append(args, to)
	}
	q += " ORDER BY ts DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse load_symbol query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load symbol candles: %w", err)
	}
	defer rows.Close()

	out, err := scanCandles(rows, tf)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MaxTimestamps returns the newest stored candle time per symbol, used to
// resume ingestion incrementally.
func (s *CHCandleStore) MaxTimestamps(ctx context.Context, tf domrepo.Timeframe) (map[string]time.Time, error) {
	table := tableForTF(tf)
	q := fmt.Sprintf(`
        SELECT symbol, max(ts)
        FROM %s
        GROUP BY symbol
    `, table)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse max_timestamps query error",
			applogger.String("table", table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("max timestamps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var symbol string
		var ts time.Time
		if err := rows.Scan(&symbol, &ts); err != nil {
			return nil, fmt.Errorf("scan max timestamp: %w", err)
		}
		out[symbol] = ts.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Replace atomically replaces the full candle table for a timeframe with the
// given rows.
func (s *CHCandleStore) Replace(ctx context.Context, tf domrepo.Timeframe, candles []models.Candle) error {
	start := time.Now()
	table := tableForTF(tf)
	staging := table + "_staging"

	if err := s.ch.DropTable(ctx, staging); err != nil {
		return err
	}
	if err := s.ch.CreateTableLike(ctx, staging, table); err != nil {
		return err
	}

	if err := s.insertAll(ctx, staging, candles); err != nil {
		_ = s.ch.DropTable(ctx, staging)
		return err
	}

	if err := s.ch.ExchangeTables(ctx, staging, table); err != nil {
		_ = s.ch.DropTable(ctx, staging)
		return err
	}
	if err := s.ch.DropTable(ctx, staging); err != nil {
		s.l.Warn("drop old candle table failed",
			applogger.String("table", staging),
			applogger.Error(err),
		)
	}

	s.l.Info("candle table replaced",
		applogger.String("table", table),
		applogger.Int("rows", len(candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHCandleStore) insertAll(ctx context.Context, table string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	q := fmt.Sprintf(`
        INSERT INTO %s (symbol, ts, open, high, low, close, vol)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert candle %s %s: %w", c.Symbol, c.Timestamp, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// Health performs a connection check.
func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close closes the underlying connection pool.
func (s *CHCandleStore) Close() error {
	return s.ch.Close()
}

func scanCandles(rows *sql.Rows, tf domrepo.Timeframe) ([]models.Candle, error) {
	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Symbol, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timeframe = string(tf)
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func tableForTF(tf domrepo.Timeframe) string {
	return "candles_" + string(tf)
}
