package repository

import (
	"context"
	"time"

	"CoilScan/internal/domain/models"
)

// CandleSource is the upstream paginated candle query. One call returns at
// most pageSize candles for (symbol, tf) starting at the cursor. Transient
// failures are retryable; permanent ones are not (see the source package's
// error classification).
type CandleSource interface {
	FetchPage(ctx context.Context, symbol string, tf Timeframe, cursor time.Time, pageSize int) ([]models.Candle, error)
	Catalog(ctx context.Context) ([]models.Instrument, error)
}

// CandleStore is the canonical per-timeframe candle table. It is read and
// replaced wholesale by the merge step; nothing else writes to it during a run.
type CandleStore interface {
	Init(ctx context.Context) error
	Load(ctx context.Context, tf Timeframe) ([]models.Candle, error)
	LoadSymbol(ctx context.Context, symbol string, tf Timeframe, from, to time.Time, limit int) ([]models.Candle, error)
	MaxTimestamps(ctx context.Context, tf Timeframe) (map[string]time.Time, error)
	Replace(ctx context.Context, tf Timeframe, candles []models.Candle) error
	Health(ctx context.Context) error
	Close() error
}

// CandleStream is a live feed of closed candles used to tail the market
// between scan runs.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ReportPublisher hands scan results to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.ScanReport) error
	PublishBatch(ctx context.Context, rs []*models.ScanReport) error
	Close() error
}

// Metrics records operational measurements for a scan run.
type Metrics interface {
	RecordFetch(tf string, result string) // result: ok|failed|retried
	RecordCandles(tf string, n int)
	RecordError(kind string)
	RecordLastClose(symbol string, price float64)
	RecordUniverseSize(n int)
	RecordStagePass(stage string)
	RecordScanDuration(seconds float64)
}
