package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/pkg/cache"
	"CoilScan/pkg/config"
)

type capturePublisher struct {
	batches [][]*models.ScanReport
}

func (p *capturePublisher) Publish(_ context.Context, r *models.ScanReport) error {
	p.batches = append(p.batches, []*models.ScanReport{r})
	return nil
}

func (p *capturePublisher) PublishBatch(_ context.Context, rs []*models.ScanReport) error {
	p.batches = append(p.batches, rs)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newTestScanner(t *testing.T, source *fakeSource, store *fakeStore, cacheSvc cache.Service, pub drepo.ReportPublisher) *Scanner {
	t.Helper()
	cfg, err := config.Parse([]byte(`
environment: test
clickhouse:
  host: localhost
scan:
  timeframes: ["1h"]
  workers: 2
mtfa:
  enabled: true
`))
	require.NoError(t, err)

	lgr := newTestLogger(t)
	m := nopMetrics{}
	resolver := NewUniverseResolver(source, cfg.Universe, m, lgr)
	ingestor := NewIngestor(source, store, cfg.Scan, cfg.Binance.PageSize, m, lgr)
	stages := NewStageEvaluator(cfg.Pipeline, m)
	mtfa := NewMTFAAggregator(cfg.MTFA)
	return NewScanner(resolver, ingestor, stages, mtfa, store, pub, cacheSvc, cfg, m, lgr)
}

func TestScannerRun(t *testing.T) {
	tf := drepo.TF1h
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	source := newFakeSource()
	source.catalog = []models.Instrument{
		{ID: "BTCUSDT", MarketType: "spot", QuoteAsset: "USDT", Active: true},
		{ID: "ETHUSDT", MarketType: "spot", QuoteAsset: "USDT", Active: true},
	}
	for i := 0; i < 30; i++ {
		ts := t0.Add(time.Duration(i) * time.Hour)
		source.pages["BTCUSDT"] = append(source.pages["BTCUSDT"], candleAt("BTCUSDT", tf, ts, 100+float64(i)))
		source.pages["ETHUSDT"] = append(source.pages["ETHUSDT"], candleAt("ETHUSDT", tf, ts, 10+float64(i)))
	}

	store := newFakeStore()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	pub := &capturePublisher{}

	s := newTestScanner(t, source, store, mc, pub)
	summary, err := s.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Universe)
	assert.Equal(t, 0, summary.FetchFailures)
	assert.NotEmpty(t, summary.ScanID)

	// One batch containing both symbol reports was published.
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)

	// Reports and the index landed in the cache.
	ctx := context.Background()
	var report models.ScanReport
	require.NoError(t, mc.Get(ctx, "report:BTCUSDT", &report))
	assert.Equal(t, "BTCUSDT", report.Symbol)
	assert.Equal(t, summary.ScanID, report.ScanID)

	var index []string
	require.NoError(t, mc.Get(ctx, "reports:index", &index))
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, index)

	var cached models.RunSummary
	require.NoError(t, mc.Get(ctx, "summary:latest", &cached))
	assert.Equal(t, summary.ScanID, cached.ScanID)

	// The run lock is released: a second run succeeds.
	_, err = s.Run(context.Background(), false)
	assert.NoError(t, err)
}

func TestScannerRunLocked(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	mc := cache.NewMemoryCache()
	defer mc.Close()

	s := newTestScanner(t, source, store, mc, &capturePublisher{})

	ok, err := mc.TryLock(context.Background(), "scan:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Run(context.Background(), false)
	assert.ErrorIs(t, err, ErrScanInProgress)
}
