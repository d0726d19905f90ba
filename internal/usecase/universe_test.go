package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoilScan/internal/domain/models"
	"CoilScan/pkg/config"
)

func testCatalog() []models.Instrument {
	return []models.Instrument{
		{ID: "BTCUSDT", MarketType: "spot", QuoteAsset: "USDT", Active: true},
		{ID: "ETHUSDT", MarketType: "spot", QuoteAsset: "USDT", Active: true},
		{ID: "ADAUSDT", MarketType: "spot", QuoteAsset: "USDT", Active: false},
		{ID: "BTCBUSD", MarketType: "spot", QuoteAsset: "BUSD", Active: true},
		{ID: "SOLUSDT", MarketType: "margin", QuoteAsset: "USDT", Active: true},
		{ID: "XRPUSDT", MarketType: "spot", QuoteAsset: "USDT", Active: true},
	}
}

func TestResolveFiltered(t *testing.T) {
	source := newFakeSource()
	source.catalog = testCatalog()

	cfg := config.UniverseConfig{
		MarketType:     "spot",
		QuoteAsset:     "USDT",
		IncludePattern: ".*USDT$",
		Exclude:        []string{"XRPUSDT"},
	}
	r := NewUniverseResolver(source, cfg, nopMetrics{}, newTestLogger(t))

	symbols, err := r.Resolve(context.Background())
	require.NoError(t, err)

	// Inactive, wrong quote, wrong market type, and excluded symbols drop out.
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestResolveExplicitPrecedence(t *testing.T) {
	source := newFakeSource()
	source.catalog = testCatalog()

	cfg := config.UniverseConfig{
		MarketType:     "spot",
		QuoteAsset:     "USDT",
		IncludePattern: ".*USDT$",
		// Unknown and duplicate entries are dropped silently; the filter
		// rules do not apply to an explicit list.
		Explicit: []string{"SOLUSDT", "NOPEUSDT", "BTCUSDT", "BTCUSDT"},
	}
	r := NewUniverseResolver(source, cfg, nopMetrics{}, newTestLogger(t))

	symbols, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, symbols)
}

func TestResolveBadIncludePattern(t *testing.T) {
	source := newFakeSource()
	source.catalog = testCatalog()

	cfg := config.UniverseConfig{IncludePattern: "("}
	r := NewUniverseResolver(source, cfg, nopMetrics{}, newTestLogger(t))

	_, err := r.Resolve(context.Background())
	assert.Error(t, err)
}

func TestResolveRegexNarrowsUniverse(t *testing.T) {
	source := newFakeSource()
	source.catalog = testCatalog()

	cfg := config.UniverseConfig{
		MarketType:     "spot",
		QuoteAsset:     "USDT",
		IncludePattern: "^BTC.*",
	}
	r := NewUniverseResolver(source, cfg, nopMetrics{}, newTestLogger(t))

	symbols, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, symbols)
}
