// Package resolver turns free-form user input (a raw ASIN, a product URL,
// a shared short link) into a catalog key plus canonical product URL.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

var (
	rawASINRe  = regexp.MustCompile(`^[A-Za-z0-9]{10}$`)
	asinRe     = regexp.MustCompile(`(?i)/dp/([A-Za-z0-9]{10})|/gp/product/([A-Za-z0-9]{10})|[?&]asin=([A-Za-z0-9]{10})`)
	fallbackRe = regexp.MustCompile(`(?i)\b([A-Za-z0-9]{10})\b`)
)

const (
	userAgent      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	acceptLanguage = "en-US,en;q=0.9,ar-SA;q=0.8"
)

// Parsed is the resolved identity of a product to track.
type Parsed struct {
	ASIN         string
	CanonicalURL string
}

type Resolver struct {
	log  logx.Logger
	http *http.Client
}

func New(log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{
		log:  log.With(logx.String("component", "resolver")),
		http: &http.Client{Timeout: 20 * time.Second},
	}
}

// Parse resolves input to an ASIN and canonical URL. Raw 10-character
// ASINs never touch the network; short links are resolved by following
// redirects.
func (r *Resolver) Parse(ctx context.Context, input string) (Parsed, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Parsed{}, track.ErrInvalidInput
	}

	if rawASINRe.MatchString(trimmed) {
		asin := strings.ToUpper(trimmed)
		return Parsed{ASIN: asin, CanonicalURL: canonicalURL(asin)}, nil
	}

	u, err := urlCandidate(trimmed)
	if err != nil {
		return Parsed{}, err
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "amazon."):
		if asin, ok := extractASIN(u.String()); ok {
			return Parsed{ASIN: asin, CanonicalURL: u.String()}, nil
		}
		return r.resolveAndExtract(ctx, u)

	case isShortHost(host):
		return r.resolveAndExtract(ctx, u)
	}

	return Parsed{}, track.ErrUnsupportedSource
}

// resolveAndExtract follows redirects to the final product page, then
// tries the URL and finally the page body for an ASIN.
func (r *Resolver) resolveAndExtract(ctx context.Context, u *url.URL) (Parsed, error) {
	finalURL, body, err := r.fetch(ctx, u)
	if err != nil {
		return Parsed{}, track.ErrShortLinkResolution
	}
	finalHost := strings.ToLower(finalURL.Hostname())
	if !strings.Contains(finalHost, "amazon.") {
		return Parsed{}, track.ErrUnsupportedSource
	}
	if asin, ok := extractASIN(finalURL.String()); ok {
		return Parsed{ASIN: asin, CanonicalURL: finalURL.String()}, nil
	}
	if asin, ok := extractASIN(string(body)); ok {
		return Parsed{ASIN: asin, CanonicalURL: canonicalURL(asin)}, nil
	}
	return Parsed{}, track.ErrInvalidInput
}

func (r *Resolver) fetch(ctx context.Context, u *url.URL) (*url.URL, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	// Cap the body read; ASINs appear early in product pages.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.Request.URL, body, nil
}

// urlCandidate normalizes the input into an http(s) URL or rejects it.
func urlCandidate(input string) (*url.URL, error) {
	text := strings.Trim(input, "\"'()[]{}<>.,;!?")
	if text == "" {
		return nil, track.ErrInvalidInput
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "www.") || strings.HasPrefix(lower, "amzn.") || strings.HasPrefix(lower, "amazon.") {
		text = "https://" + text
	}
	u, err := url.Parse(text)
	if err != nil || u.Hostname() == "" {
		return nil, track.ErrUnsupportedSource
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, track.ErrUnsupportedSource
	}
	return u, nil
}

// isShortHost recognizes amazon's shared-link domains (amzn.eu, amzn.to,
// regional variants).
func isShortHost(host string) bool {
	return strings.HasPrefix(host, "amzn.") || strings.Contains(host, ".amzn.")
}

// extractASIN pulls an ASIN out of a URL or page text: explicit /dp/,
// /gp/product/ and ?asin= markers first, then any 10-character token.
func extractASIN(text string) (string, bool) {
	if m := asinRe.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return strings.ToUpper(g), true
			}
		}
	}
	if m := fallbackRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return "", false
}

func canonicalURL(asin string) string {
	return fmt.Sprintf("https://www.amazon.sa/dp/%s?language=en_AE", asin)
}
