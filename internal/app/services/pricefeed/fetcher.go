package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/tradevault/platform/internal/app/domain/pricefeed"
	"github.com/tradevault/platform/internal/httputil"
)

// Fetcher retrieves the current price for a feed. The source string
// identifies where the price came from.
type Fetcher interface {
	Fetch(ctx context.Context, feed pricefeed.Feed) (float64, string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, feed pricefeed.Feed) (float64, string, error)

func (f FetcherFunc) Fetch(ctx context.Context, feed pricefeed.Feed) (float64, string, error) {
	if f == nil {
		return 0, "", nil
	}
	return f(ctx, feed)
}

// HTTPFetcher pulls the feed's source URL and extracts the price with the
// feed's JSON path expression.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTP price fetcher. client may be nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, feed pricefeed.Feed) (float64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.SourceURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fetch %s: %w", feed.Pair, err)
	}
	defer resp.Body.Close()

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 1<<20)
	if err != nil {
		return 0, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return 0, "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	price, err := extractPrice(body, feed.PricePath)
	if err != nil {
		return 0, "", fmt.Errorf("extract price for %s: %w", feed.Pair, err)
	}
	if price <= 0 {
		return 0, "", fmt.Errorf("source returned non-positive price %v", price)
	}
	return price, sourceName(feed.SourceURL), nil
}

// extractPrice applies a JSON path expression to the response body. Sources
// report prices as numbers or numeric strings.
func extractPrice(body []byte, path string) (float64, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	value, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, fmt.Errorf("path %q: %w", path, err)
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("price %q is not numeric", v)
		}
		return price, nil
	default:
		return 0, fmt.Errorf("path %q yielded %T, want number", path, value)
	}
}

func sourceName(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return "http"
	}
	return u.Host
}
