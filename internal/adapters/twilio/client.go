// Package twilio delivers WhatsApp messages through the Twilio REST API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.twilio.com/2010-04-01"

	// maxSegmentLength splits long free-text bodies; WhatsApp rejects
	// anything bigger in a single message.
	maxSegmentLength = 1600
)

// Client implements ports.Messenger against Twilio's Messages endpoint.
type Client struct {
	accountSID string
	authToken  string
	from       string // WhatsApp-enabled sender number, without prefix
	baseURL    string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Twilio messaging client.
func New(accountSID, authToken, from string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText delivers a free-text message, segmenting bodies longer than the
// WhatsApp limit. A failed segment aborts the remainder.
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	for _, segment := range segments(text) {
		form := url.Values{}
		form.Set("To", recipient)
		form.Set("From", "whatsapp:"+c.from)
		form.Set("Body", segment)
		if err := c.post(ctx, form); err != nil {
			return fmt.Errorf("text send to %s failed: %w", recipient, err)
		}
	}
	return nil
}

// SendTemplate delivers the given content templates in order, filling the
// display-name variable.
func (c *Client) SendTemplate(ctx context.Context, recipient, displayName string, templateIDs []string) error {
	if displayName == "" {
		displayName = "there"
	}
	variables, err := json.Marshal(map[string]string{"1": displayName})
	if err != nil {
		return fmt.Errorf("failed to encode template variables: %w", err)
	}

	for _, sid := range templateIDs {
		form := url.Values{}
		form.Set("To", recipient)
		form.Set("From", "whatsapp:"+c.from)
		form.Set("ContentSid", sid)
		form.Set("ContentVariables", string(variables))
		if err := c.post(ctx, form); err != nil {
			return fmt.Errorf("template %s send to %s failed: %w", sid, recipient, err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// segments splits text into WhatsApp-sized chunks, preserving order.
func segments(text string) []string {
	if len(text) <= maxSegmentLength {
		return []string{text}
	}
	var out []string
	for len(text) > maxSegmentLength {
		out = append(out, text[:maxSegmentLength])
		text = text[maxSegmentLength:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}
