package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	xhttp "CoilScan/pkg/http"
	applogger "CoilScan/pkg/logger"

	"golang.org/x/time/rate"
)

// Client implements a CandleSource backed by the Binance spot REST API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithRateLimit sets the request rate limit and burst.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(timeout))
	}
}

// New creates a new Binance REST client.
func New(baseURL string, lgr *applogger.Logger, opts ...Option) drepo.CandleSource {
	c := &Client{
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:  lgr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// kline rows come back as mixed-type JSON arrays:
// [openTimeMs, "open", "high", "low", "close", "volume", closeTimeMs, ...]
type klineRow []json.RawMessage

// FetchPage returns at most pageSize candles for (symbol, tf) with open time
// at or after the cursor. A zero cursor means "from the earliest available".
func (c *Client) FetchPage(ctx context.Context, symbol string, tf drepo.Timeframe, cursor time.Time, pageSize int) ([]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string][]string{
		"symbol":   {symbol},
		"interval": {string(tf)},
		"limit":    {strconv.Itoa(pageSize)},
	}
	if !cursor.IsZero() {
		params["startTime"] = []string{strconv.FormatInt(cursor.UnixMilli(), 10)}
	}

	var rows []klineRow
	if err := c.getJSON(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, tf, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(symbol, tf, row)
		if err != nil {
			// Rows that fail price or timestamp coercion are dropped,
			// not fatal for the page.
			c.logger.Debug("kline row dropped",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol               string `json:"symbol"`
		Status               string `json:"status"`
		QuoteAsset           string `json:"quoteAsset"`
		IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
	} `json:"symbols"`
}

// Catalog lists all instruments known to the exchange.
func (c *Client) Catalog(ctx context.Context) ([]models.Instrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var info exchangeInfo
	if err := c.getJSON(ctx, "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, fmt.Errorf("fetch exchange info: %w", err)
	}

	instruments := make([]models.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		marketType := "spot"
		if !s.IsSpotTradingAllowed {
			marketType = "margin"
		}
		instruments = append(instruments, models.Instrument{
			ID:         s.Symbol,
			MarketType: marketType,
			QuoteAsset: s.QuoteAsset,
			Active:     s.Status == "TRADING",
		})
	}
	c.logger.Debug("exchange catalog fetched", applogger.Int("symbols", len(instruments)))
	return instruments, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseKline(symbol string, tf drepo.Timeframe, row klineRow) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("short kline row: %d fields", len(row))
	}

	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}

	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(row[i], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = f
	}

	return models.Candle{
		Symbol:    symbol,
		Timeframe: string(tf),
		Timestamp: time.UnixMilli(openMs).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
