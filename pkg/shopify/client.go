package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/metrics"
)

const (
	breakerName     = "shopify"
	maxRetryBackoff = 5 * time.Second
	maxErrorBody    = 4096
	accessHeader    = "X-Shopify-Access-Token"
)

var (
	errShopRequired  = errors.New("shop domain is required")
	errTokenRequired = errors.New("access token is required")
	errOrderRequired = errors.New("external order id is required")
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// APIError is a non-2xx platform response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the call may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || (e.StatusCode >= 500 && e.StatusCode != http.StatusNotImplemented)
}

// Client pushes fulfillments and refunds to the commerce platform with
// bounded retries behind a circuit breaker.
type Client struct {
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	apiVersion string
	maxRetries int
	baseDelay  time.Duration
	baseURL    string
	logg       *logger.Logger
	metrics    *metrics.BreakerMetrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithBaseURL pins every call to one origin instead of https://<shop>.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithBreakerMetrics exports breaker state changes.
func WithBreakerMetrics(m *metrics.BreakerMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the platform client from config.
func NewClient(cfg config.ShopifyConfig, logg *logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		apiVersion: cfg.APIVersion,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		logg:       logg,
	}
	if c.apiVersion == "" {
		c.apiVersion = "2024-01"
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.baseDelay <= 0 {
		c.baseDelay = 200 * time.Millisecond
	}
	for _, opt := range opts {
		opt(c)
	}

	minRequests := cfg.BreakerMinRequests
	failRatio := cfg.BreakerFailRatio
	if failRatio <= 0 {
		failRatio = 0.5
	}
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= failRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.logg != nil {
				ctx := c.logg.WithFields(context.Background(), map[string]any{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				})
				c.logg.Warn(ctx, "circuit breaker state change")
			}
			c.metrics.SetState(name, stateValue(to))
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](settings)
	c.metrics.SetState(breakerName, metrics.BreakerClosed)
	return c
}

// CreateFulfillment marks the platform order as shipped with tracking details.
func (c *Client) CreateFulfillment(ctx context.Context, creds Credentials, externalOrderID string, req FulfillmentRequest) (*FulfillmentResponse, error) {
	if strings.TrimSpace(externalOrderID) == "" {
		return nil, errOrderRequired
	}
	var out struct {
		Fulfillment FulfillmentResponse `json:"fulfillment"`
	}
	path := fmt.Sprintf("orders/%s/fulfillments.json", externalOrderID)
	if err := c.post(ctx, creds, path, map[string]any{"fulfillment": req}, &out); err != nil {
		return nil, fmt.Errorf("create fulfillment for order %s: %w", externalOrderID, err)
	}
	return &out.Fulfillment, nil
}

// CreateRefund records a refund against the platform order.
func (c *Client) CreateRefund(ctx context.Context, creds Credentials, externalOrderID string, req RefundRequest) (*RefundResponse, error) {
	if strings.TrimSpace(externalOrderID) == "" {
		return nil, errOrderRequired
	}
	var out struct {
		Refund RefundResponse `json:"refund"`
	}
	path := fmt.Sprintf("orders/%s/refunds.json", externalOrderID)
	if err := c.post(ctx, creds, path, map[string]any{"refund": req}, &out); err != nil {
		return nil, fmt.Errorf("create refund for order %s: %w", externalOrderID, err)
	}
	return &out.Refund, nil
}

// State exposes the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) post(ctx context.Context, creds Credentials, path string, body any, out any) error {
	if strings.TrimSpace(creds.ShopDomain) == "" {
		return errShopRequired
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return errTokenRequired
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	url := c.endpoint(creds.ShopDomain, path)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return err
			}
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(accessHeader, creds.AccessToken)
			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			// 5xx counts against the breaker; 4xx is the caller's problem.
			if resp.StatusCode >= 500 {
				return nil, readAPIError(resp)
			}
			return resp, nil
		})
		if err != nil {
			lastErr = err
			if !shouldRetry(ctx, err) {
				return err
			}
			c.logRetry(ctx, url, attempt, err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := readAPIError(resp)
			lastErr = apiErr
			if apiErr.Retryable() {
				c.logRetry(ctx, url, attempt, apiErr)
				continue
			}
			return apiErr
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) endpoint(shop, path string) string {
	base := c.baseURL
	if base == "" {
		base = "https://" + strings.TrimSpace(shop)
	}
	return fmt.Sprintf("%s/admin/api/%s/%s", base, c.apiVersion, path)
}

func (c *Client) backoff(attempt int) time.Duration {
	wait := c.baseDelay * time.Duration(1<<uint(attempt-1))
	if wait > maxRetryBackoff {
		return maxRetryBackoff
	}
	return wait
}

func (c *Client) logRetry(ctx context.Context, url string, attempt int, err error) {
	if c.logg == nil {
		return
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"url":     url,
		"attempt": attempt + 1,
		"error":   err.Error(),
	})
	c.logg.Warn(logCtx, "shopify call failed, retrying")
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func readAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	default:
		return metrics.BreakerClosed
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
