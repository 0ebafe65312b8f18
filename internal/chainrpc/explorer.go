package chainrpc

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/tradevault/platform/internal/httputil"
)

// Transfer is one historical value transfer touching an address, as reported
// by the block explorer.
type Transfer struct {
	Hash      string
	From      string
	To        string
	Value     decimal.Decimal
	Timestamp time.Time
}

// Explorer queries an Etherscan-compatible block explorer API for address
// history.
type Explorer struct {
	http   *httputil.Client
	apiKey string
}

// ExplorerConfig configures the explorer client.
type ExplorerConfig struct {
	APIBase string
	APIKey  string
	Timeout time.Duration
}

// NewExplorer creates an explorer client.
func NewExplorer(cfg ExplorerConfig) (*Explorer, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("explorer API base required")
	}
	return &Explorer{
		http: httputil.NewClient(httputil.Config{
			BaseURL: cfg.APIBase,
			Timeout: cfg.Timeout,
		}),
		apiKey: cfg.APIKey,
	}, nil
}

// Transactions returns the most recent transfers for an address, newest
// first.
func (e *Explorer) Transactions(ctx context.Context, address string, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 25
	}

	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", "txlist")
	query.Set("address", address)
	query.Set("page", "1")
	query.Set("offset", strconv.Itoa(limit))
	query.Set("sort", "desc")
	if e.apiKey != "" {
		query.Set("apikey", e.apiKey)
	}

	resp, err := e.http.Get(ctx, "/api?"+query.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 4<<20)
	if err != nil {
		return nil, fmt.Errorf("read explorer response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("explorer returned status %d", resp.StatusCode)
	}

	doc := gjson.ParseBytes(body)
	// status "0" with an empty result list means no transactions, not an
	// error.
	if doc.Get("status").String() != "1" && !doc.Get("result").IsArray() {
		return nil, fmt.Errorf("explorer error: %s", doc.Get("message").String())
	}

	var transfers []Transfer
	for _, item := range doc.Get("result").Array() {
		transfer, err := parseTransfer(item)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

func parseTransfer(item gjson.Result) (Transfer, error) {
	hash := item.Get("hash").String()
	if hash == "" {
		return Transfer{}, fmt.Errorf("transfer record missing hash")
	}

	valueWei, ok := new(big.Int).SetString(item.Get("value").String(), 10)
	if !ok {
		return Transfer{}, fmt.Errorf("transfer %s has malformed value", hash)
	}

	return Transfer{
		Hash:      hash,
		From:      item.Get("from").String(),
		To:        item.Get("to").String(),
		Value:     decimal.NewFromBigInt(valueWei, -nativeDecimals),
		Timestamp: time.Unix(item.Get("timeStamp").Int(), 0).UTC(),
	}, nil
}
