// Package paynow implements the mobile-money payment gateway over Paynow's
// remote transaction interface.
package paynow

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"zivai/internal/ports"
)

const defaultBaseURL = "https://www.paynow.co.zw/interface"

// Client implements ports.PaymentGateway.
type Client struct {
	integrationID  string
	integrationKey string
	returnURL      string
	resultURL      string
	method         string // mobile-money method, e.g. "ecocash"
	baseURL        string
	httpClient     *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithMethod overrides the mobile-money method.
func WithMethod(m string) Option {
	return func(c *Client) { c.method = m }
}

// New creates a Paynow client.
func New(integrationID, integrationKey, returnURL, resultURL string, opts ...Option) *Client {
	c := &Client{
		integrationID:  integrationID,
		integrationKey: integrationKey,
		returnURL:      returnURL,
		resultURL:      resultURL,
		method:         "ecocash",
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initiate pushes a payment prompt to the payer's phone and returns the
// poll URL for settlement checks.
func (c *Client) Initiate(ctx context.Context, accountRef, payerPhone string, amount float64) (ports.InitiateResult, error) {
	// Field order is part of the integrity hash contract.
	fields := [][2]string{
		{"id", c.integrationID},
		{"reference", "zivai-" + uuid.NewString()},
		{"amount", fmt.Sprintf("%.2f", amount)},
		{"additionalinfo", "1 Month Access"},
		{"returnurl", c.returnURL},
		{"resulturl", c.resultURL},
		{"authemail", accountEmail(accountRef)},
		{"phone", payerPhone},
		{"method", c.method},
		{"status", "Message"},
	}

	form := url.Values{}
	for _, f := range fields {
		form.Set(f[0], f[1])
	}
	form.Set("hash", c.hash(fields))

	values, err := c.post(ctx, c.baseURL+"/remotetransaction", form)
	if err != nil {
		return ports.InitiateResult{}, err
	}

	if !strings.EqualFold(values.Get("status"), "ok") {
		msg := values.Get("error")
		if msg == "" {
			msg = "payment was not accepted"
		}
		return ports.InitiateResult{}, fmt.Errorf("paynow: %s", msg)
	}

	pollURL := values.Get("pollurl")
	if pollURL == "" {
		return ports.InitiateResult{}, fmt.Errorf("paynow: response missing poll url")
	}
	return ports.InitiateResult{PollURL: pollURL}, nil
}

// CheckStatus polls the transaction status.
func (c *Client) CheckStatus(ctx context.Context, pollURL string) (ports.PaymentStatus, error) {
	values, err := c.post(ctx, pollURL, url.Values{})
	if err != nil {
		return ports.PaymentStatus{}, err
	}

	status := strings.ToLower(strings.TrimSpace(values.Get("status")))
	return ports.PaymentStatus{
		Paid:   status == "paid",
		Status: status,
	}, nil
}

// hash computes the SHA512 integrity hash over the field values in order,
// suffixed with the integration key, uppercase hex.
func (c *Client) hash(fields [][2]string) string {
	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(f[1])
	}
	sb.WriteString(c.integrationKey)
	sum := sha512.Sum512([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// post sends a form and parses the URL-encoded response body.
func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (url.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paynow returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse paynow response: %w", err)
	}
	return values, nil
}

// accountEmail derives the auth email Paynow expects from the sender
// identifier (e.g. "whatsapp:+263771234567" -> "263771234567@zivai.app").
func accountEmail(accountRef string) string {
	ref := strings.TrimPrefix(accountRef, "whatsapp:")
	ref = strings.TrimPrefix(ref, "+")
	if ref == "" {
		ref = "unknown"
	}
	return ref + "@zivai.app"
}
