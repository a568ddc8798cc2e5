package track

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the engine's user-facing failure modes. Every error
// carries a human-readable message; configuration problems are
// distinguishable from transient outages so callers can explain setup is
// incomplete instead of implying the backend is down.
var (
	ErrInvalidInput         = errors.New("enter a product URL or a valid 10-character ASIN")
	ErrInvalidTargetPrice   = errors.New("target price must be greater than zero")
	ErrUnsupportedSource    = errors.New("only amazon links are supported")
	ErrShortLinkResolution  = errors.New("could not resolve this shared short link; open the product once and try again")
	ErrBackendNotConfigured = errors.New("backend is not configured yet")
	ErrInvalidResponse      = errors.New("unexpected server response")
	ErrScrapeBlocked        = errors.New("product page refused the price check")
	ErrPriceNotFound        = errors.New("no price found on the product page")
)

// DuplicateItemError rejects adding a catalog key that is already tracked.
type DuplicateItemError struct {
	ASIN string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("this ASIN is already tracked: %s", e.ASIN)
}

// ServerError is a domain error reported by the backend, either via a
// non-2xx envelope or an ok:false body.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// Is maps the backend's scrape-failure messages onto the matching
// sentinels, so callers classify with errors.Is instead of comparing
// strings themselves.
func (e *ServerError) Is(target error) bool {
	msg := strings.ToLower(e.Message)
	switch target {
	case ErrScrapeBlocked:
		return strings.Contains(msg, "captcha") ||
			strings.Contains(msg, "robot") ||
			strings.Contains(msg, "blocked")
	case ErrPriceNotFound:
		return strings.Contains(msg, "price not found") ||
			strings.Contains(msg, "no price")
	}
	return false
}

// RetriesExhaustedError wraps the last transient failure after the client
// has used up all attempts.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }
