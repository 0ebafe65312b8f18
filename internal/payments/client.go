// Package payments wraps the subscription payment processor's REST API.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tradevault/platform/internal/httputil"
)

// Client talks to the payment processor.
type Client struct {
	http          *httputil.Client
	webhookSecret string
}

// Config configures the client.
type Config struct {
	APIBase       string
	SecretKey     string
	WebhookSecret string
}

// NewClient creates a payments client.
func NewClient(cfg Config) *Client {
	return &Client{
		http: httputil.NewClient(httputil.Config{
			BaseURL: cfg.APIBase,
			Bearer:  cfg.SecretKey,
			Timeout: 20 * time.Second,
		}),
		webhookSecret: cfg.WebhookSecret,
	}
}

// CheckoutSession is a hosted payment page for starting a subscription.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession starts a subscription checkout. clientRef ties the
// processor session back to our account ID; metadata is echoed back on
// webhook events.
func (c *Client) CreateCheckoutSession(ctx context.Context, clientRef, customerEmail, priceID, successURL, cancelURL string, metadata map[string]string) (CheckoutSession, error) {
	if priceID == "" {
		return CheckoutSession{}, fmt.Errorf("price id is required")
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("client_reference_id", clientRef)
	form.Set("customer_email", customerEmail)
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
		form.Set(fmt.Sprintf("subscription_data[metadata][%s]", key), value)
	}

	resp, err := c.http.PostForm(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return CheckoutSession{}, err
	}

	var session CheckoutSession
	if err := httputil.DecodeResponse(resp, &session); err != nil {
		return CheckoutSession{}, err
	}
	return session, nil
}

// PortalSession is a hosted page for managing an existing subscription.
type PortalSession struct {
	URL string `json:"url"`
}

// CreatePortalSession opens the self-service billing portal for a customer.
func (c *Client) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (PortalSession, error) {
	if customerRef == "" {
		return PortalSession{}, fmt.Errorf("customer ref is required")
	}

	form := url.Values{}
	form.Set("customer", customerRef)
	form.Set("return_url", returnURL)

	resp, err := c.http.PostForm(ctx, "/v1/billing_portal/sessions", form)
	if err != nil {
		return PortalSession{}, err
	}

	var session PortalSession
	if err := httputil.DecodeResponse(resp, &session); err != nil {
		return PortalSession{}, err
	}
	return session, nil
}

// Event is a webhook notification from the processor.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// signatureTolerance bounds webhook replay age.
const signatureTolerance = 5 * time.Minute

// VerifyAndParseEvent checks the webhook signature header
// ("t=<unix>,v1=<hmac>") and decodes the event. With no webhook secret
// configured, signature checking is skipped.
func (c *Client) VerifyAndParseEvent(payload []byte, sigHeader string, now time.Time) (Event, error) {
	if c.webhookSecret != "" {
		if err := verifySignature(payload, sigHeader, c.webhookSecret, now); err != nil {
			return Event{}, err
		}
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return Event{}, fmt.Errorf("event is missing id or type")
	}
	return event, nil
}

func verifySignature(payload []byte, sigHeader, secret string, now time.Time) error {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("bad signature timestamp")
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("signature header is malformed")
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}

// SignPayload produces a webhook signature header for payload. Used by tests
// and local tooling.
func SignPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
