package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "CoilScan/internal/domain/repository"
	applogger "CoilScan/pkg/logger"
)

func newClientTestLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return lgr
}

func TestFetchPageDropsMalformedRows(t *testing.T) {
	// The second row is short and the third has a non-numeric close; both
	// drop without failing the page.
	body := `[
		[1748736000000, "100", "101", "99", "100.5", "1000", 1748739599999],
		[1748739600000, "100.5"],
		[1748743200000, "100.6", "101.2", "99.9", "not-a-number", "900", 1748746799999],
		[1748746800000, "100.8", "101.4", "100.1", "101.0", "800", 1748750399999]
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(srv.URL, newClientTestLogger(t))
	candles, err := c.FetchPage(context.Background(), "BTCUSDT", drepo.TF1h, time.Time{}, 1000)
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(1748736000000).UTC(), candles[0].Timestamp)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 101.0, candles[1].Close)
}

func TestFetchPageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"banned"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newClientTestLogger(t))
	_, err := c.FetchPage(context.Background(), "BTCUSDT", drepo.TF1h, time.Time{}, 1000)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTeapot, apiErr.Status)
}
