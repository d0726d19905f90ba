package models

import "time"

// Candle represents one OHLCV observation for a fixed time bucket.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Timestamp time.Time `json:"ts"` // UTC, timeframe-aligned
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key identifies a candle within one timeframe store.
type Key struct {
	Symbol    string
	Timestamp int64 // unix seconds
}

// KeyOf returns the dedup key for a candle.
func KeyOf(c Candle) Key {
	return Key{Symbol: c.Symbol, Timestamp: c.Timestamp.Unix()}
}

// Series is an ordered candle sequence for one (symbol, timeframe).
// It is owned by the canonical store for that timeframe and read-only
// everywhere downstream.
type Series struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// Len returns the number of candles in the series.
func (s *Series) Len() int { return len(s.Candles) }

// Last returns the most recent candle, or false when the series is empty.
func (s *Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// MaxTimestamp returns the latest timestamp in the series (zero time if empty).
func (s *Series) MaxTimestamp() time.Time {
	if len(s.Candles) == 0 {
		return time.Time{}
	}
	return s.Candles[len(s.Candles)-1].Timestamp
}

// Instrument is one entry of the upstream market catalog.
type Instrument struct {
	ID         string `json:"id"`
	MarketType string `json:"market_type"`
	QuoteAsset string `json:"quote_asset"`
	Active     bool   `json:"active"`
}
