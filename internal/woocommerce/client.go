// Package woocommerce verifies order payment against the WooCommerce REST API.
package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openlearnhq/coursegate/internal/credentials"
	"github.com/openlearnhq/coursegate/internal/metrics"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

var (
	// ErrNotConfigured indicates the commerce credentials are absent.
	ErrNotConfigured = errors.New("woocommerce credentials not configured")
	// ErrInvalidCredential indicates WooCommerce rejected the credentials.
	ErrInvalidCredential = errors.New("woocommerce invalid credential")
)

// Outcome is a distinguishable verification result reason. Callers branch on
// the reason; transport failures are returned as errors, never as outcomes.
type Outcome string

const (
	OutcomePaid          Outcome = "paid"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeEmailMismatch Outcome = "email_mismatch"
	OutcomeUnpaid        Outcome = "unpaid"
)

// Result carries the verification outcome plus the order details on file.
type Result struct {
	Outcome      Outcome
	OrderStatus  string
	BillingEmail string
}

// Paid reports whether the order was confirmed as paid.
func (r Result) Paid() bool {
	return r.Outcome == OutcomePaid
}

// CredentialSource supplies the current commerce credentials. Read per call
// so runtime credential rotations take effect without a client rebuild.
type CredentialSource interface {
	Commerce(ctx context.Context) (credentials.Commerce, error)
}

// Client calls the WooCommerce REST orders endpoint.
type Client struct {
	log     logger.Logger
	creds   CredentialSource
	timeout time.Duration
	http    *http.Client
	metrics *metrics.Metrics
}

// New creates a WooCommerce client with a bounded per-request timeout.
func New(creds CredentialSource, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		log:     log.WithFields(logger.StringField("component", "woocommerce")),
		creds:   creds,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// orderEnvelope mirrors the subset of the WooCommerce order payload we read.
type orderEnvelope struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Billing struct {
		Email string `json:"email"`
	} `json:"billing"`
}

// paidStatuses are the WooCommerce order states counted as payment received.
var paidStatuses = map[string]bool{
	"completed":  true,
	"processing": true,
}

// Verify checks whether the order exists, is paid, and belongs to the email.
// The call carries a bounded timeout; a timeout or other transport failure is
// returned as an error and must never be interpreted as success.
func (c *Client) Verify(ctx context.Context, orderID, email string) (Result, error) {
	creds, err := c.creds.Commerce(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve commerce credentials: %w", err)
	}
	if !creds.Configured() {
		return Result{}, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/wp-json/wc/v3/orders/%s", strings.TrimRight(creds.StoreURL, "/"), orderID)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build order request: %w", err)
	}
	req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("error", start)
		return Result{}, fmt.Errorf("order request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.observe("not_found", start)
		return Result{Outcome: OutcomeNotFound}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.observe("unauthorized", start)
		return Result{}, fmt.Errorf("%w: status %d", ErrInvalidCredential, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		c.observe("error", start)
		return Result{}, fmt.Errorf("order request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.observe("error", start)
		return Result{}, fmt.Errorf("read order response: %w", err)
	}

	var order orderEnvelope
	if err := json.Unmarshal(body, &order); err != nil {
		c.observe("error", start)
		return Result{}, fmt.Errorf("decode order response: %w", err)
	}

	c.observe("ok", start)

	result := Result{
		OrderStatus:  order.Status,
		BillingEmail: order.Billing.Email,
	}
	switch {
	case !strings.EqualFold(strings.TrimSpace(order.Billing.Email), strings.TrimSpace(email)):
		result.Outcome = OutcomeEmailMismatch
	case !paidStatuses[strings.ToLower(order.Status)]:
		result.Outcome = OutcomeUnpaid
	default:
		result.Outcome = OutcomePaid
	}
	return result, nil
}

func (c *Client) observe(status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.OracleRequests.WithLabelValues(status).Inc()
	c.metrics.OracleLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
