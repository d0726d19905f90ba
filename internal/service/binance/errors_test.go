package binance

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &APIError{Status: 429}, true},
		{"ip ban", &APIError{Status: 418}, true},
		{"server error", &APIError{Status: 503}, true},
		{"bad request", &APIError{Status: 400}, false},
		{"not found", &APIError{Status: 404}, false},
		{"wrapped api error", fmt.Errorf("fetch: %w", &APIError{Status: 400}), false},
		{"net timeout", timeoutErr{}, true},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"unclassified", errors.New("unexpected EOF"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.transient, IsTransient(tc.err))
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Status: 429, Body: `{"code":-1003}`}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "-1003")
}
