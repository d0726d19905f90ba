package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/internal/service/binance"
	applogger "CoilScan/pkg/logger"
)

var (
	errTransient = &binance.APIError{Status: 500, Body: "upstream unavailable"}
	errPermanent = &binance.APIError{Status: 400, Body: "invalid symbol"}
)

// nopMetrics satisfies the metrics sink for tests.
type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)      {}
func (nopMetrics) RecordCandles(string, int)       {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastClose(string, float64) {}
func (nopMetrics) RecordUniverseSize(int)          {}
func (nopMetrics) RecordStagePass(string)          {}
func (nopMetrics) RecordScanDuration(float64)      {}

func newTestLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return lgr
}

// fakeSource serves canned pages and a canned catalog.
type fakeSource struct {
	pages   map[string][]models.Candle // full history per symbol
	fail    map[string]error           // error per symbol, every attempt
	failFor map[string]int             // error per symbol for the first N attempts
	catalog []models.Instrument

	calls   map[string]int
	cursors map[string][]time.Time
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:   make(map[string][]models.Candle),
		fail:    make(map[string]error),
		failFor: make(map[string]int),
		calls:   make(map[string]int),
		cursors: make(map[string][]time.Time),
	}
}

func (s *fakeSource) FetchPage(_ context.Context, symbol string, _ drepo.Timeframe, cursor time.Time, pageSize int) ([]models.Candle, error) {
	s.calls[symbol]++
	s.cursors[symbol] = append(s.cursors[symbol], cursor)
	if err, ok := s.fail[symbol]; ok {
		return nil, err
	}
	if n, ok := s.failFor[symbol]; ok && s.calls[symbol] <= n {
		return nil, errTransient
	}

	var page []models.Candle
	for _, c := range s.pages[symbol] {
		if c.Timestamp.Before(cursor) {
			continue
		}
		page = append(page, c)
		if len(page) == pageSize {
			break
		}
	}
	return page, nil
}

func (s *fakeSource) Catalog(context.Context) ([]models.Instrument, error) {
	return s.catalog, nil
}

// fakeStore is an in-memory per-timeframe candle table.
type fakeStore struct {
	tables   map[drepo.Timeframe][]models.Candle
	replaced map[drepo.Timeframe]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:   make(map[drepo.Timeframe][]models.Candle),
		replaced: make(map[drepo.Timeframe]int),
	}
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) Load(_ context.Context, tf drepo.Timeframe) ([]models.Candle, error) {
	return s.tables[tf], nil
}

func (s *fakeStore) LoadSymbol(_ context.Context, symbol string, tf drepo.Timeframe, _, _ time.Time, _ int) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range s.tables[tf] {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) MaxTimestamps(_ context.Context, tf drepo.Timeframe) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for _, c := range s.tables[tf] {
		if ts, ok := out[c.Symbol]; !ok || c.Timestamp.After(ts) {
			out[c.Symbol] = c.Timestamp
		}
	}
	return out, nil
}

func (s *fakeStore) Replace(_ context.Context, tf drepo.Timeframe, candles []models.Candle) error {
	s.tables[tf] = candles
	s.replaced[tf]++
	return nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

func candleAt(symbol string, tf drepo.Timeframe, ts time.Time, close float64) models.Candle {
	return models.Candle{
		Symbol:    symbol,
		Timeframe: string(tf),
		Timestamp: ts,
		Open:      close,
		High:      close * 1.01,
		Low:       close * 0.99,
		Close:     close,
		Volume:    100,
	}
}
