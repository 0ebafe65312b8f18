package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_1" {
			t.Errorf("missing bearer auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("client_reference_id") != "acct-1" {
			t.Errorf("missing client reference")
		}
		if r.PostForm.Get("line_items[0][price]") != "price_pro" {
			t.Errorf("missing price id")
		}
		if r.PostForm.Get("metadata[plan]") != "pro" {
			t.Errorf("missing plan metadata")
		}
		w.Write([]byte(`{"id": "cs_123", "url": "https://pay.example.com/cs_123"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIBase: srv.URL, SecretKey: "sk_test_1"})
	session, err := client.CreateCheckoutSession(context.Background(), "acct-1", "u@example.com", "price_pro", "https://ok", "https://cancel", map[string]string{"plan": "pro"})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if session.ID != "cs_123" || session.URL == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestVerifyAndParseEvent(t *testing.T) {
	client := NewClient(Config{WebhookSecret: "whsec_test"})
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid", "data": {"object": {}}}`)
	now := time.Now()

	event, err := client.VerifyAndParseEvent(payload, SignPayload(payload, "whsec_test", now), now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.ID != "evt_1" || event.Type != "invoice.paid" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := client.VerifyAndParseEvent(payload, SignPayload(payload, "whsec_wrong", now), now); err == nil {
		t.Fatal("expected bad secret to fail")
	}

	stale := now.Add(-time.Hour)
	if _, err := client.VerifyAndParseEvent(payload, SignPayload(payload, "whsec_test", stale), now); err == nil {
		t.Fatal("expected stale signature to fail")
	}

	if _, err := client.VerifyAndParseEvent(payload, "garbage", now); err == nil {
		t.Fatal("expected malformed header to fail")
	}
}
