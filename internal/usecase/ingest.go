package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/internal/service/binance"
	"CoilScan/pkg/config"
	applogger "CoilScan/pkg/logger"
	"CoilScan/pkg/pool"
	xutil "CoilScan/pkg/util"
)

// Ingestor pulls paginated candle history from the source and merges it into
// the store. Symbols are fetched concurrently; the store table is only
// replaced once per timeframe, after every symbol has finished, so a crash
// mid-run leaves the previous snapshot intact.
type Ingestor struct {
	source   drepo.CandleSource
	store    drepo.CandleStore
	cfg      config.ScanConfig
	pageSize int
	metrics  drepo.Metrics
	logger   *applogger.Logger
}

// NewIngestor creates a new Ingestor instance.
func NewIngestor(source drepo.CandleSource, store drepo.CandleStore, cfg config.ScanConfig, pageSize int, metrics drepo.Metrics, lgr *applogger.Logger) *Ingestor {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Ingestor{
		source:   source,
		store:    store,
		cfg:      cfg,
		pageSize: pageSize,
		metrics:  metrics,
		logger:   lgr,
	}
}

// IngestStats summarizes one timeframe's ingestion pass.
type IngestStats struct {
	Timeframe     drepo.Timeframe
	SymbolsOK     int
	SymbolsFailed int
	RowsFetched   int
	RowsStored    int
}

// IngestTimeframe fetches all symbols for one timeframe and atomically
// replaces the stored table with the merged result. A symbol whose retries
// are exhausted is skipped; its previously stored candles survive the merge.
func (ing *Ingestor) IngestTimeframe(ctx context.Context, tf drepo.Timeframe, symbols []string, fullRefresh bool) (IngestStats, error) {
	stats := IngestStats{Timeframe: tf}

	var maxTS map[string]time.Time
	if !fullRefresh && !ing.cfg.FullRefresh {
		var err error
		maxTS, err = ing.store.MaxTimestamps(ctx, tf)
		if err != nil {
			return stats, fmt.Errorf("ingest %s: %w", tf, err)
		}
	}
	origin := ing.originFor(tf)

	var mu sync.Mutex
	fetched := make([]models.Candle, 0, len(symbols)*ing.pageSize)

	p := pool.New(ctx, ing.logger, pool.Config{Workers: ing.cfg.Workers})
	for _, symbol := range symbols {
		symbol := symbol
		cursor := origin
		if ts, ok := maxTS[symbol]; ok {
			cursor = tf.Next(ts)
		}
		err := p.Submit(ctx, func(ctx context.Context) error {
			candles, err := ing.fetchSymbol(ctx, symbol, tf, cursor)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.SymbolsFailed++
				return fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
			}
			stats.SymbolsOK++
			stats.RowsFetched += len(candles)
			fetched = append(fetched, candles...)
			return nil
		})
		if err != nil {
			return stats, err
		}
	}
	for _, err := range p.Wait() {
		ing.metrics.RecordError("ingest")
		ing.logger.Warn("symbol ingest failed", applogger.String("tf", string(tf)), applogger.Error(err))
	}

	// A full refresh discards what the store holds; incremental runs union
	// with it so failed symbols keep their previous rows.
	var existing []models.Candle
	if !fullRefresh && !ing.cfg.FullRefresh {
		loaded, err := ing.store.Load(ctx, tf)
		if err != nil {
			return stats, fmt.Errorf("ingest %s: %w", tf, err)
		}
		existing = loaded
	}
	merged := MergeCandles(existing, fetched)
	if err := ing.store.Replace(ctx, tf, merged); err != nil {
		return stats, fmt.Errorf("ingest %s: %w", tf, err)
	}
	stats.RowsStored = len(merged)
	ing.metrics.RecordCandles(string(tf), len(merged))

	ing.logger.Info("timeframe ingested",
		applogger.String("tf", string(tf)),
		applogger.Int("symbols_ok", stats.SymbolsOK),
		applogger.Int("symbols_failed", stats.SymbolsFailed),
		applogger.Int("rows_fetched", stats.RowsFetched),
		applogger.Int("rows_stored", stats.RowsStored),
	)
	return stats, nil
}

// fetchSymbol pages through the source until a short page signals the end of
// history. The cursor always advances past the last received candle, so a
// repeated candle at the page boundary cannot stall the loop.
func (ing *Ingestor) fetchSymbol(ctx context.Context, symbol string, tf drepo.Timeframe, cursor time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for {
		page, err := ing.fetchPageRetry(ctx, symbol, tf, cursor)
		if err != nil {
			return out, err
		}
		out = append(out, page...)
		if len(page) < ing.pageSize {
			return out, nil
		}
		cursor = tf.Next(page[len(page)-1].Timestamp)
	}
}

func (ing *Ingestor) fetchPageRetry(ctx context.Context, symbol string, tf drepo.Timeframe, cursor time.Time) ([]models.Candle, error) {
	var lastErr error
	for attempt := 0; attempt < ing.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			ing.metrics.RecordFetch(string(tf), "retried")
			select {
			case <-time.After(backoffDelay(ing.cfg.BackoffBase, attempt-1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		page, err := ing.source.FetchPage(ctx, symbol, tf, cursor, ing.pageSize)
		if err == nil {
			ing.metrics.RecordFetch(string(tf), "ok")
			return page, nil
		}
		lastErr = err
		if !binance.IsTransient(err) {
			break
		}
	}
	ing.metrics.RecordFetch(string(tf), "failed")
	return nil, lastErr
}

func (ing *Ingestor) originFor(tf drepo.Timeframe) time.Time {
	if s, ok := ing.cfg.OriginByTF[string(tf)]; ok {
		return xutil.ParseTimeDefault(s, time.Time{})
	}
	return xutil.ParseTimeDefault(ing.cfg.Origin, time.Time{})
}

// MergeCandles unions two candle sets, keeping the most recently fetched row
// on key collision, sorted by (symbol, ts). It is pure and idempotent.
func MergeCandles(existing, fresh []models.Candle) []models.Candle {
	byKey := make(map[models.Key]models.Candle, len(existing)+len(fresh))
	for _, c := range existing {
		byKey[models.KeyOf(c)] = c
	}
	for _, c := range fresh {
		byKey[models.KeyOf(c)] = c
	}

	out := make([]models.Candle, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// backoffDelay is base×2^attempt plus up to one second of jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	return d + time.Duration(rand.Int63n(int64(time.Second)))
}
