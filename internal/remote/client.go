// Package remote is the resilient JSON client for the price-tracking
// backend. Transient failures (gateway errors, transport outages) are
// retried with a short linear backoff; everything else surfaces as a typed
// domain error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"pricehawk/internal/config"
	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

const (
	apiPrefix   = "/api/mobile"
	maxAttempts = 3
)

// Client talks to the backend with a static API token. All methods honor
// context cancellation and pace outbound requests through a shared limiter
// so bulk operations do not burst.
type Client struct {
	log     logx.Logger
	http    *http.Client
	limiter *rate.Limiter

	baseURL string
	token   string
	email   string

	// retryDelay maps an attempt number to the pause before the next try.
	// Injectable so tests do not sleep for real.
	retryDelay func(attempt int) time.Duration
}

func NewClient(cfg config.BackendConfig, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		log:     log.With(logx.String("component", "remote")),
		http:    &http.Client{Timeout: 90 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		email:   cfg.BootstrapEmail,
		retryDelay: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}
}

// Configured reports whether the backend endpoint and token are set.
// Callers must treat false as "setup incomplete", not as an outage.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

func (c *Client) BootstrapEmail() string { return c.email }

// Bootstrap creates or fetches the backend account for the configured
// email.
func (c *Client) Bootstrap(ctx context.Context, email string) (*BootstrapResponse, error) {
	var resp BootstrapResponse
	if err := c.call(ctx, http.MethodPost, "/bootstrap", nil, bootstrapRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError(resp.Error, "bootstrap failed")
	}
	return &resp, nil
}

// FetchItems returns the authoritative item snapshot for the account.
func (c *Client) FetchItems(ctx context.Context, userID int64) (*ItemsResponse, error) {
	q := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	var resp ItemsResponse
	if err := c.call(ctx, http.MethodGet, "/items", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError(resp.Error, "failed to fetch items")
	}
	return &resp, nil
}

// AddItem registers a new tracked item server-side. A nil target leaves the
// alert disarmed.
func (c *Client) AddItem(ctx context.Context, userID int64, asin, productURL string, target *float64) (*ItemResponse, error) {
	body := addItemRequest{UserID: userID, ASIN: asin, URL: productURL, TargetPriceValue: target}
	var resp ItemResponse
	if err := c.call(ctx, http.MethodPost, "/items", nil, body, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError(resp.Error, "failed to add item")
	}
	return &resp, nil
}

func (c *Client) UpdateTarget(ctx context.Context, userID, itemID int64, target float64) (*ItemResponse, error) {
	body := updateTargetRequest{UserID: userID, TargetPriceValue: target}
	var resp ItemResponse
	if err := c.call(ctx, http.MethodPatch, itemPath(itemID, "/target"), nil, body, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError(resp.Error, "failed to update target")
	}
	return &resp, nil
}

func (c *Client) DeleteItem(ctx context.Context, userID, itemID int64) error {
	q := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	var resp DeleteResponse
	if err := c.call(ctx, http.MethodDelete, itemPath(itemID, ""), q, nil, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return serverError(resp.Error, "failed to delete item")
	}
	return nil
}

// CheckItem asks the backend to re-scrape one item now.
func (c *Client) CheckItem(ctx context.Context, userID, itemID int64) (*ItemResponse, error) {
	var resp ItemResponse
	if err := c.call(ctx, http.MethodPost, itemPath(itemID, "/check"), nil, userScopedRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError(resp.Error, "failed to check item")
	}
	return &resp, nil
}

// CheckAll asks the backend to re-scrape every item for the account.
func (c *Client) CheckAll(ctx context.Context, userID int64) (*CheckAllResponse, error) {
	var resp CheckAllResponse
	if err := c.call(ctx, http.MethodPost, "/check-all", nil, userScopedRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError(resp.Error, "failed to check items")
	}
	return &resp, nil
}

func itemPath(itemID int64, suffix string) string {
	return "/items/" + strconv.FormatInt(itemID, 10) + suffix
}

// call performs one logical request with up to maxAttempts tries. Gateway
// statuses 502/503/504 and transport failures are retryable; the delay
// before retry n is n units of retryDelay. A 2xx body that fails to decode
// is ErrInvalidResponse.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if !c.Configured() {
		return track.ErrBackendNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var lastTransportErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-API-Token", c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !transportRetryable(err) {
				return err
			}
			lastTransportErr = err
			if attempt == maxAttempts {
				break
			}
			c.log.Debug("transient transport failure; retrying",
				logx.String("path", path), logx.Int("attempt", attempt), logx.Err(err))
			if err := c.pause(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastTransportErr = readErr
			if attempt == maxAttempts {
				break
			}
			if err := c.pause(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if gatewayRetryable(resp.StatusCode) && attempt < maxAttempts {
				c.log.Debug("gateway error; retrying",
					logx.String("path", path), logx.Int("status", resp.StatusCode), logx.Int("attempt", attempt))
				if err := c.pause(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return decodeServerFailure(resp.StatusCode, data)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return track.ErrInvalidResponse
		}
		return nil
	}

	return &track.RetriesExhaustedError{Attempts: maxAttempts, Last: lastTransportErr}
}

// pause waits out the linear backoff or returns early on cancellation.
func (c *Client) pause(ctx context.Context, attempt int) error {
	t := time.NewTimer(c.retryDelay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func gatewayRetryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transportRetryable classifies connection-level failures worth a second
// try: timeouts, DNS failures, refused or dropped connections.
func transportRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}

// decodeServerFailure turns a non-retryable error status into a
// ServerError, preferring the backend's own message when the body carries
// one.
func decodeServerFailure(status int, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != "" {
		return &track.ServerError{Message: env.Error}
	}
	return &track.ServerError{Message: fmt.Sprintf("backend request failed (%d)", status)}
}

func serverError(message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return &track.ServerError{Message: message}
}
