package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	drepo "CoilScan/internal/domain/repository"
	"CoilScan/pkg/config"
	applogger "CoilScan/pkg/logger"
)

// UniverseResolver turns the exchange catalog into a sorted list of symbols
// to scan. An explicit symbol list takes precedence over filtering; explicit
// symbols missing from the catalog are dropped silently.
type UniverseResolver struct {
	source  drepo.CandleSource
	cfg     config.UniverseConfig
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewUniverseResolver creates a new UniverseResolver instance.
func NewUniverseResolver(source drepo.CandleSource, cfg config.UniverseConfig, metrics drepo.Metrics, lgr *applogger.Logger) *UniverseResolver {
	return &UniverseResolver{source: source, cfg: cfg, metrics: metrics, logger: lgr}
}

// Resolve fetches the catalog and applies the configured universe rules.
func (r *UniverseResolver) Resolve(ctx context.Context) ([]string, error) {
	catalog, err := r.source.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w", err)
	}

	known := make(map[string]bool, len(catalog))
	for _, inst := range catalog {
		known[inst.ID] = true
	}

	var symbols []string
	if len(r.cfg.Explicit) > 0 {
		seen := make(map[string]bool, len(r.cfg.Explicit))
		for _, id := range r.cfg.Explicit {
			if !known[id] || seen[id] {
				continue
			}
			seen[id] = true
			symbols = append(symbols, id)
		}
	} else {
		include, err := regexp.Compile(r.cfg.IncludePattern)
		if err != nil {
			return nil, fmt.Errorf("universe include pattern: %w", err)
		}
		excluded := make(map[string]bool, len(r.cfg.Exclude))
		for _, id := range r.cfg.Exclude {
			excluded[id] = true
		}
		for _, inst := range catalog {
			if !inst.Active {
				continue
			}
			if r.cfg.MarketType != "" && inst.MarketType != r.cfg.MarketType {
				continue
			}
			if r.cfg.QuoteAsset != "" && inst.QuoteAsset != r.cfg.QuoteAsset {
				continue
			}
			if !include.MatchString(inst.ID) || excluded[inst.ID] {
				continue
			}
			symbols = append(symbols, inst.ID)
		}
	}

	sort.Strings(symbols)
	r.metrics.RecordUniverseSize(len(symbols))
	r.logger.Info("universe resolved",
		applogger.Int("catalog", len(catalog)),
		applogger.Int("symbols", len(symbols)),
	)
	return symbols, nil
}
