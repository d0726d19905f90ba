package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/pkg/config"
)

func testScanConfig() config.ScanConfig {
	return config.ScanConfig{
		Interval:    time.Hour,
		Timeframes:  []string{"1h"},
		Workers:     2,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Origin:      "2025-06-01T00:00:00Z",
	}
}

func TestMergeCandles(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	existing := []models.Candle{
		candleAt("BTCUSDT", tf, t0, 100),
		candleAt("BTCUSDT", tf, t1, 101),
		candleAt("ETHUSDT", tf, t0, 10),
	}
	fresh := []models.Candle{
		candleAt("BTCUSDT", tf, t1, 999), // same key, fresher row wins
		candleAt("BTCUSDT", tf, t2, 102),
	}

	merged := MergeCandles(existing, fresh)
	require.Len(t, merged, 4)

	// Sorted by symbol then timestamp.
	assert.Equal(t, "BTCUSDT", merged[0].Symbol)
	assert.Equal(t, t0, merged[0].Timestamp)
	assert.Equal(t, t1, merged[1].Timestamp)
	assert.Equal(t, t2, merged[2].Timestamp)
	assert.Equal(t, "ETHUSDT", merged[3].Symbol)

	// The fresh row replaced the stale one.
	assert.InDelta(t, 999.0, merged[1].Close, 1e-12)

	// Idempotent: merging the result with the same fresh set is a no-op.
	again := MergeCandles(merged, fresh)
	assert.Equal(t, merged, again)
}

func TestMergeCandlesEmptyInputs(t *testing.T) {
	assert.Empty(t, MergeCandles(nil, nil))

	one := []models.Candle{candleAt("BTCUSDT", drepo.TF1h, time.Now().UTC(), 100)}
	assert.Equal(t, one, MergeCandles(one, nil))
	assert.Equal(t, one, MergeCandles(nil, one))
}

func TestBackoffDelayBounds(t *testing.T) {
	base := 500 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		d := backoffDelay(base, attempt)
		lo := base << uint(attempt)
		assert.GreaterOrEqual(t, d, lo)
		assert.Less(t, d, lo+time.Second)
	}
}

func TestIngestTimeframeIncremental(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.tables[tf] = []models.Candle{
		candleAt("BTCUSDT", tf, t0, 100),
		candleAt("BTCUSDT", tf, t0.Add(time.Hour), 101),
	}

	source := newFakeSource()
	source.pages["BTCUSDT"] = []models.Candle{
		candleAt("BTCUSDT", tf, t0.Add(2*time.Hour), 102),
		candleAt("BTCUSDT", tf, t0.Add(3*time.Hour), 103),
	}

	ing := NewIngestor(source, store, testScanConfig(), 1000, nopMetrics{}, newTestLogger(t))
	stats, err := ing.IngestTimeframe(context.Background(), tf, []string{"BTCUSDT"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SymbolsOK)
	assert.Equal(t, 0, stats.SymbolsFailed)
	assert.Equal(t, 2, stats.RowsFetched)
	assert.Equal(t, 4, stats.RowsStored)

	// The cursor starts one bucket past the stored maximum, not at the origin.
	require.NotEmpty(t, source.cursors["BTCUSDT"])
	assert.Equal(t, t0.Add(2*time.Hour), source.cursors["BTCUSDT"][0])

	stored, _ := store.Load(context.Background(), tf)
	assert.Len(t, stored, 4)
	assert.Equal(t, 1, store.replaced[tf])
}

func TestIngestTimeframeFullRefreshStartsAtOrigin(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.tables[tf] = []models.Candle{candleAt("BTCUSDT", tf, t0.Add(5*time.Hour), 105)}

	source := newFakeSource()
	source.pages["BTCUSDT"] = []models.Candle{candleAt("BTCUSDT", tf, t0, 100)}

	ing := NewIngestor(source, store, testScanConfig(), 1000, nopMetrics{}, newTestLogger(t))
	_, err := ing.IngestTimeframe(context.Background(), tf, []string{"BTCUSDT"}, true)
	require.NoError(t, err)

	require.NotEmpty(t, source.cursors["BTCUSDT"])
	assert.Equal(t, t0, source.cursors["BTCUSDT"][0])

	// The stale 05:00 row is gone: a full refresh keeps only fetched rows.
	stored, _ := store.Load(context.Background(), tf)
	require.Len(t, stored, 1)
	assert.Equal(t, t0, stored[0].Timestamp)
	assert.Equal(t, 100.0, stored[0].Close)
}

func TestIngestTimeframePerTFOrigin(t *testing.T) {
	cfg := testScanConfig()
	cfg.OriginByTF = map[string]string{"1h": "2025-07-01T00:00:00Z"}

	source := newFakeSource()
	ing := NewIngestor(source, newFakeStore(), cfg, 1000, nopMetrics{}, newTestLogger(t))
	_, err := ing.IngestTimeframe(context.Background(), drepo.TF1h, []string{"BTCUSDT"}, true)
	require.NoError(t, err)

	require.NotEmpty(t, source.cursors["BTCUSDT"])
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), source.cursors["BTCUSDT"][0])
}

func TestIngestTimeframeFailureIsolation(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.tables[tf] = []models.Candle{candleAt("ETHUSDT", tf, t0, 10)}

	source := newFakeSource()
	source.pages["BTCUSDT"] = []models.Candle{candleAt("BTCUSDT", tf, t0, 100)}
	source.fail["ETHUSDT"] = errPermanent

	ing := NewIngestor(source, store, testScanConfig(), 1000, nopMetrics{}, newTestLogger(t))
	stats, err := ing.IngestTimeframe(context.Background(), tf, []string{"BTCUSDT", "ETHUSDT"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SymbolsOK)
	assert.Equal(t, 1, stats.SymbolsFailed)

	// A permanent error stops after a single attempt.
	assert.Equal(t, 1, source.calls["ETHUSDT"])

	// The failed symbol's previously stored candles survive the replace.
	eth, _ := store.LoadSymbol(context.Background(), "ETHUSDT", tf, time.Time{}, time.Time{}, 0)
	assert.Len(t, eth, 1)
	btc, _ := store.LoadSymbol(context.Background(), "BTCUSDT", tf, time.Time{}, time.Time{}, 0)
	assert.Len(t, btc, 1)
}

func TestIngestTimeframeRetriesTransient(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	source := newFakeSource()
	source.pages["BTCUSDT"] = []models.Candle{candleAt("BTCUSDT", tf, t0, 100)}
	source.failFor["BTCUSDT"] = 2 // two transient failures, then success

	ing := NewIngestor(source, newFakeStore(), testScanConfig(), 1000, nopMetrics{}, newTestLogger(t))
	stats, err := ing.IngestTimeframe(context.Background(), tf, []string{"BTCUSDT"}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SymbolsOK)
	assert.Equal(t, 3, source.calls["BTCUSDT"])
}

func TestIngestTimeframeRetriesExhausted(t *testing.T) {
	source := newFakeSource()
	source.fail["BTCUSDT"] = errTransient

	ing := NewIngestor(source, newFakeStore(), testScanConfig(), 1000, nopMetrics{}, newTestLogger(t))
	stats, err := ing.IngestTimeframe(context.Background(), drepo.TF1h, []string{"BTCUSDT"}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SymbolsFailed)
	assert.Equal(t, 3, source.calls["BTCUSDT"])
}

func TestIngestTimeframePaginates(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	source := newFakeSource()
	for i := 0; i < 5; i++ {
		source.pages["BTCUSDT"] = append(source.pages["BTCUSDT"],
			candleAt("BTCUSDT", tf, t0.Add(time.Duration(i)*time.Hour), 100+float64(i)))
	}

	// Page size 2 forces three pages; the last page is short and stops the loop.
	ing := NewIngestor(source, newFakeStore(), testScanConfig(), 2, nopMetrics{}, newTestLogger(t))
	stats, err := ing.IngestTimeframe(context.Background(), tf, []string{"BTCUSDT"}, true)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.RowsFetched)
	assert.Equal(t, 3, source.calls["BTCUSDT"])
	require.Len(t, source.cursors["BTCUSDT"], 3)
	assert.Equal(t, t0.Add(2*time.Hour), source.cursors["BTCUSDT"][1])
	assert.Equal(t, t0.Add(4*time.Hour), source.cursors["BTCUSDT"][2])
}
