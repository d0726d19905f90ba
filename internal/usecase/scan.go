package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/internal/services/features"
	"CoilScan/pkg/cache"
	"CoilScan/pkg/config"
	applogger "CoilScan/pkg/logger"
	"CoilScan/pkg/pool"
)

const (
	scanLockKey      = "scan:lock"
	reportKeyPrefix  = "report:"
	reportIndexKey   = "reports:index"
	summaryLatestKey = "summary:latest"
)

// Scanner orchestrates one full scan cycle: resolve the universe, ingest
// every timeframe, evaluate the staged gate and the cross-timeframe
// aggregator per symbol, then publish and cache the reports.
type Scanner struct {
	resolver  *UniverseResolver
	ingestor  *Ingestor
	stages    *StageEvaluator
	mtfa      *MTFAAggregator
	store     drepo.CandleStore
	publisher drepo.ReportPublisher
	cache     cache.Service
	cfg       *config.Config
	metrics   drepo.Metrics
	logger    *applogger.Logger
}

// NewScanner creates a new Scanner instance.
func NewScanner(
	resolver *UniverseResolver,
	ingestor *Ingestor,
	stages *StageEvaluator,
	mtfa *MTFAAggregator,
	store drepo.CandleStore,
	publisher drepo.ReportPublisher,
	cacheSvc cache.Service,
	cfg *config.Config,
	metrics drepo.Metrics,
	lgr *applogger.Logger,
) *Scanner {
	return &Scanner{
		resolver:  resolver,
		ingestor:  ingestor,
		stages:    stages,
		mtfa:      mtfa,
		store:     store,
		publisher: publisher,
		cache:     cacheSvc,
		cfg:       cfg,
		metrics:   metrics,
		logger:    lgr,
	}
}

// ErrScanInProgress is returned when another scan holds the run lock.
var ErrScanInProgress = fmt.Errorf("scan already in progress")

// Run executes one scan cycle and returns its summary. A true fullRefresh
// re-fetches every symbol's history from the configured origin instead of
// resuming from the stored high-water marks.
func (s *Scanner) Run(ctx context.Context, fullRefresh bool) (*models.RunSummary, error) {
	locked, err := s.cache.TryLock(ctx, scanLockKey, s.cfg.Scan.Interval)
	if err != nil {
		return nil, fmt.Errorf("scan lock: %w", err)
	}
	if !locked {
		return nil, ErrScanInProgress
	}
	defer func() { _ = s.cache.Unlock(ctx, scanLockKey) }()

	start := time.Now().UTC()
	summary := &models.RunSummary{
		ScanID:    start.Format("20060102T150405Z"),
		StartedAt: start,
	}
	s.logger.Info("scan started", applogger.String("scan_id", summary.ScanID))

	symbols, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	summary.Universe = len(symbols)

	series := make(map[drepo.Timeframe]map[string]*models.Series, len(s.cfg.Scan.Timeframes))
	for _, raw := range s.cfg.Scan.Timeframes {
		tf := drepo.Timeframe(raw)
		stats, err := s.ingestor.IngestTimeframe(ctx, tf, symbols, fullRefresh)
		summary.FetchFailures += stats.SymbolsFailed
		if err != nil {
			return nil, err
		}
		candles, err := s.store.Load(ctx, tf)
		if err != nil {
			return nil, err
		}
		series[tf] = groupBySymbol(candles, tf)
	}

	reports := s.evaluate(ctx, summary.ScanID, symbols, series)
	for _, r := range reports {
		if r.Stages.CoilPass {
			summary.CoilPasses++
		}
		if r.Stages.Overall {
			summary.OverallPasses++
		}
	}

	if err := s.publishAndCache(ctx, reports, summary); err != nil {
		s.metrics.RecordError("publish")
		s.logger.Error("report publish failed", applogger.Error(err))
	}

	summary.Duration = time.Since(start)
	s.metrics.RecordScanDuration(summary.Duration.Seconds())
	s.logger.Info("scan finished",
		applogger.String("scan_id", summary.ScanID),
		applogger.Int("universe", summary.Universe),
		applogger.Int("fetch_failures", summary.FetchFailures),
		applogger.Int("coil_passes", summary.CoilPasses),
		applogger.Int("overall_passes", summary.OverallPasses),
		applogger.Duration("duration_ms", summary.Duration),
	)
	return summary, nil
}

// evaluate computes feature sets and verdicts for every symbol in parallel.
func (s *Scanner) evaluate(ctx context.Context, scanID string, symbols []string, series map[drepo.Timeframe]map[string]*models.Series) []*models.ScanReport {
	var mu sync.Mutex
	reports := make([]*models.ScanReport, 0, len(symbols))

	p := pool.New(ctx, s.logger, pool.Config{Workers: s.cfg.Scan.Workers})
	for _, symbol := range symbols {
		symbol := symbol
		if err := p.Submit(ctx, func(ctx context.Context) error {
			report := s.evaluateSymbol(scanID, symbol, series)
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		}); err != nil {
			break
		}
	}
	for _, err := range p.Wait() {
		s.metrics.RecordError("evaluate")
		s.logger.Warn("symbol evaluation failed", applogger.Error(err))
	}
	return reports
}

func (s *Scanner) evaluateSymbol(scanID, symbol string, series map[drepo.Timeframe]map[string]*models.Series) *models.ScanReport {
	sets := make(map[drepo.Timeframe]*features.Set, len(series))
	closes := make(map[drepo.Timeframe][]float64, len(series))
	for tf, bySymbol := range series {
		sr, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		set := features.Compute(sr, s.cfg.MA)
		sets[tf] = set
		closes[tf] = set.Close
	}

	if set, ok := sets[drepo.DefaultTimeframe()]; ok && set.Len() > 0 {
		s.metrics.RecordLastClose(symbol, features.Last(set.Close))
	}

	report := &models.ScanReport{
		Symbol:    symbol,
		ScanID:    scanID,
		Timestamp: time.Now().UTC(),
		Stages:    *s.stages.Evaluate(symbol, sets),
	}
	if s.cfg.MTFA.Enabled {
		report.MTFA = s.mtfa.Aggregate(symbol, closes)
	}
	return report
}

func (s *Scanner) publishAndCache(ctx context.Context, reports []*models.ScanReport, summary *models.RunSummary) error {
	ttl := 2 * s.cfg.Scan.Interval

	values := make(map[string]interface{}, len(reports)+2)
	index := make([]string, 0, len(reports))
	for _, r := range reports {
		values[reportKeyPrefix+r.Symbol] = r
		index = append(index, r.Symbol)
	}
	values[reportIndexKey] = index
	values[summaryLatestKey] = summary
	if err := s.cache.MSet(ctx, values, ttl); err != nil {
		s.logger.Warn("report cache write failed", applogger.Error(err))
	}

	return s.publisher.PublishBatch(ctx, reports)
}

func groupBySymbol(candles []models.Candle, tf drepo.Timeframe) map[string]*models.Series {
	out := make(map[string]*models.Series)
	for _, c := range candles {
		sr, ok := out[c.Symbol]
		if !ok {
			sr = &models.Series{Symbol: c.Symbol, Timeframe: string(tf)}
			out[c.Symbol] = sr
		}
		sr.Candles = append(sr.Candles, c)
	}
	return out
}
