package stockapi

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// TransportError wraps a network failure before any HTTP response arrived.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: decoding response: %v", e.Op, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// APIError is a backend-reported failure: a non-2xx status, or a 2xx body
// carrying an "error" field.
type APIError struct {
	Status  int
	Message string
	Hint    string
}

func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Hint)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// RateLimitError is an HTTP 429 response.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.RetryAfter)
}

// ValidationError rejects input before it reaches the backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }

var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-^=]{0,14}$`)

// NormalizeSymbol trims and upper-cases a ticker and checks its shape.
// Exchange suffixes such as "7203.T" and "005930.KS" are accepted.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "" {
		return "", &ValidationError{Field: "symbol", Reason: "please enter a stock symbol"}
	}
	if !symbolPattern.MatchString(sym) {
		return "", &ValidationError{Field: "symbol", Reason: fmt.Sprintf("%q is not a valid ticker", s)}
	}
	return sym, nil
}

// UserMessage renders err as a one-line message for the status bar.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		rl  *RateLimitError
		api *APIError
		tr  *TransportError
		pe  *ParseError
		ve  *ValidationError
	)
	switch {
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs > 0 {
			return fmt.Sprintf("Too many requests. Please wait %d seconds and try again.", secs)
		}
		return "Too many requests. Please wait a moment and try again."
	case errors.As(err, &api):
		if api.Hint != "" {
			return api.Message + " (" + api.Hint + ")"
		}
		return api.Message
	case errors.As(err, &ve):
		return strings.ToUpper(ve.Reason[:1]) + ve.Reason[1:]
	case errors.As(err, &tr):
		return "Cannot reach the server. Check that the backend is running."
	case errors.As(err, &pe):
		return "The server returned an unexpected response."
	}
	return err.Error()
}
