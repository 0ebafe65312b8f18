package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/tradevault/platform/internal/app/domain/pricefeed"
)

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"amount": "64250.50", "currency": "USD"}}`))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client())
	feed := domain.Feed{
		Pair:      "BTC/USD",
		SourceURL: server.URL,
		PricePath: "$.data.amount",
	}

	price, source, err := fetcher.Fetch(context.Background(), feed)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if price != 64250.50 {
		t.Errorf("expected string price to parse, got %v", price)
	}
	if source == "" {
		t.Error("expected a source name")
	}
}

func TestHTTPFetcherNumericPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": 3100.25}`))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client())
	price, _, err := fetcher.Fetch(context.Background(), domain.Feed{
		Pair:      "ETH/USD",
		SourceURL: server.URL,
		PricePath: "$.price",
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if price != 3100.25 {
		t.Errorf("unexpected price %v", price)
	}
}

func TestHTTPFetcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad-status":
			http.Error(w, "upstream down", http.StatusBadGateway)
		case "/bad-path":
			w.Write([]byte(`{"price": 10}`))
		default:
			w.Write([]byte(`{"price": "free"}`))
		}
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client())
	ctx := context.Background()

	if _, _, err := fetcher.Fetch(ctx, domain.Feed{SourceURL: server.URL + "/bad-status", PricePath: "$.price"}); err == nil {
		t.Error("expected error status to fail")
	}
	if _, _, err := fetcher.Fetch(ctx, domain.Feed{SourceURL: server.URL + "/bad-path", PricePath: "$.missing"}); err == nil {
		t.Error("expected missing path to fail")
	}
	if _, _, err := fetcher.Fetch(ctx, domain.Feed{SourceURL: server.URL + "/bad-value", PricePath: "$.price"}); err == nil {
		t.Error("expected non-numeric price to fail")
	}
}
