package track

import (
	"errors"
	"testing"
)

func TestServerErrorClassifiesScrapeFailures(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    error
	}{
		{"captcha wall", "CAPTCHA challenge while fetching page", ErrScrapeBlocked},
		{"robot check", "Robot Check triggered", ErrScrapeBlocked},
		{"request blocked", "request blocked by upstream", ErrScrapeBlocked},
		{"price missing", "price not found on page", ErrPriceNotFound},
		{"no price variant", "no price for this listing", ErrPriceNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &ServerError{Message: tc.message}
			if !errors.Is(err, tc.want) {
				t.Fatalf("%q must classify as %v", tc.message, tc.want)
			}
		})
	}

	other := &ServerError{Message: "maintenance window"}
	if errors.Is(other, ErrScrapeBlocked) || errors.Is(other, ErrPriceNotFound) {
		t.Fatalf("unrelated server error must not classify as a scrape failure")
	}
}

func TestRetriesExhaustedErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RetriesExhaustedError{Attempts: 3, Last: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("exhaustion must unwrap to the last transport error")
	}
}
