package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

func TestParseRawASIN(t *testing.T) {
	r := New(logx.Nop())
	got, err := r.Parse(context.Background(), " b0abcd1234 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ASIN != "B0ABCD1234" {
		t.Fatalf("asin %q", got.ASIN)
	}
	if got.CanonicalURL != "https://www.amazon.sa/dp/B0ABCD1234?language=en_AE" {
		t.Fatalf("canonical %q", got.CanonicalURL)
	}
}

func TestParseAmazonURLForms(t *testing.T) {
	r := New(logx.Nop())
	cases := []struct {
		input string
		asin  string
	}{
		{"https://www.amazon.sa/dp/B0ABCD1234", "B0ABCD1234"},
		{"https://www.amazon.com/gp/product/B0XYZW5678?ref=share", "B0XYZW5678"},
		{"https://www.amazon.de/some-product?asin=b0qwer0987", "B0QWER0987"},
		{"www.amazon.sa/dp/B0ABCD1234", "B0ABCD1234"},
		{`"https://www.amazon.sa/dp/B0ABCD1234"`, "B0ABCD1234"},
	}
	for _, tc := range cases {
		got, err := r.Parse(context.Background(), tc.input)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.input, err)
		}
		if got.ASIN != tc.asin {
			t.Fatalf("parse %q: asin %q want %q", tc.input, got.ASIN, tc.asin)
		}
	}
}

func TestParseRejectsNonAmazonInput(t *testing.T) {
	r := New(logx.Nop())
	for _, input := range []string{
		"https://example.com/dp/B0ABCD1234",
		"ftp://www.amazon.sa/dp/B0ABCD1234",
		"definitely not a url or asin",
	} {
		_, err := r.Parse(context.Background(), input)
		if !errors.Is(err, track.ErrUnsupportedSource) {
			t.Fatalf("parse %q: expected unsupported source, got %v", input, err)
		}
	}
	if _, err := r.Parse(context.Background(), "   "); !errors.Is(err, track.ErrInvalidInput) {
		t.Fatalf("blank input should be invalid")
	}
}

func TestParseShortLinkFollowsRedirect(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>product</html>"))
	}))
	defer target.Close()

	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/dp/B0SHORT123", http.StatusFound)
	}))
	defer short.Close()

	r := New(logx.Nop())
	// The redirect resolves cleanly, but the target is not an amazon
	// host, so the resolver must still reject it.
	_, err := r.resolveAndExtract(context.Background(), mustParse(t, short.URL+"/d/abc"))
	if !errors.Is(err, track.ErrUnsupportedSource) {
		t.Fatalf("expected rejection for non-amazon redirect target, got %v", err)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestParseShortLinkResolutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	r := New(logx.Nop())
	_, err := r.resolveAndExtract(context.Background(), mustParse(t, dead+"/d/abc"))
	if !errors.Is(err, track.ErrShortLinkResolution) {
		t.Fatalf("expected short link resolution error, got %v", err)
	}
}

func TestExtractASINPrefersExplicitMarkers(t *testing.T) {
	asin, ok := extractASIN("https://www.amazon.sa/gp/product/B0EXPLICIT?tag=ABCDEFGH12")
	if !ok || asin != "B0EXPLICIT" {
		t.Fatalf("got %q ok=%v", asin, ok)
	}
	// No marker at all: first bare 10-character token wins.
	asin, ok = extractASIN("token B0FALLBACK here")
	if !ok || asin != "B0FALLBACK" {
		t.Fatalf("fallback got %q ok=%v", asin, ok)
	}
}
