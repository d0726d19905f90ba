package binance

import (
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx response from the exchange.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d: %s", e.Status, e.Body)
}

// IsTransient reports whether an error is worth retrying. Rate limiting
// (429), IP bans (418), server errors, and network failures are transient;
// any other client error is permanent.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 429 || apiErr.Status == 418:
			return true
		case apiErr.Status >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unclassified errors (connection resets, unexpected EOF) are
	// treated as transient so a flaky link does not fail a whole run.
	return true
}
