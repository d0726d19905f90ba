package usecase

import (
	"context"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	applogger "CoilScan/pkg/logger"
)

// TailCollector follows the live kline stream between scan runs so the
// freshness metrics track the market without waiting for the next cycle.
type TailCollector struct {
	stream  drepo.CandleStream
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewTailCollector creates a new TailCollector instance.
func NewTailCollector(stream drepo.CandleStream, metrics drepo.Metrics, lgr *applogger.Logger) *TailCollector {
	return &TailCollector{stream: stream, metrics: metrics, logger: lgr}
}

// IsConnected returns true if the candle stream is connected.
func (t *TailCollector) IsConnected() bool {
	return t.stream.IsConnected()
}

func (t *TailCollector) Start(ctx context.Context) error {
	if err := t.stream.Connect(ctx); err != nil {
		return err
	}
	if err := t.stream.Subscribe(ctx); err != nil {
		return err
	}
	cCh, errCh := t.stream.Read(ctx)
	go t.consume(ctx, cCh, errCh)
	return nil
}

func (t *TailCollector) consume(ctx context.Context, cCh <-chan *models.Candle, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				// The read loop closed its channels; replace them after
				// the reconnect so this loop never selects on dead ones.
				cCh, errCh = t.reopen(ctx)
				if errCh == nil {
					return
				}
				continue
			}
			t.metrics.RecordError("stream")
			t.logger.Warn("candle stream error", applogger.Error(err))
		case c, ok := <-cCh:
			if !ok {
				cCh = nil
				continue
			}
			if c == nil {
				continue
			}
			t.metrics.RecordLastClose(c.Symbol, c.Close)
			t.logger.Debug("candle closed",
				applogger.String("symbol", c.Symbol),
				applogger.String("tf", c.Timeframe),
				applogger.Float64("close", c.Close),
			)
		}
	}
}

// reopen reconnects the stream and returns fresh read channels, retrying
// until the context ends.
func (t *TailCollector) reopen(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := t.stream.Reconnect(ctx); err != nil {
			t.logger.Warn("candle stream reconnect failed", applogger.Error(err))
			continue
		}
		return t.stream.Read(ctx)
	}
}

// Stop closes the underlying stream.
func (t *TailCollector) Stop() error { return t.stream.Close() }
