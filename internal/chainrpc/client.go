// Package chainrpc provides EVM JSON-RPC access for wallet portfolio
// lookups.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/httputil"
)

// nativeDecimals applies to the chain's base currency (wei per ether).
const nativeDecimals = 18

// balanceOfSelector is the 4-byte selector of ERC-20 balanceOf(address).
const balanceOfSelector = "0x70a08231"

// Client talks to an EVM node over JSON-RPC.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	nextID     atomic.Int64
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// NewClient creates an EVM JSON-RPC client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		rpcURL:     cfg.RPCURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call makes a JSON-RPC call to the node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadAllStrict(resp.Body, 4<<20)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// NativeBalance returns the address balance in the chain's base currency.
func (c *Client) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	result, err := c.Call(ctx, "eth_getBalance", []interface{}{address, "latest"})
	if err != nil {
		return decimal.Zero, err
	}
	return parseHexAmount(result, nativeDecimals)
}

// TokenBalance returns the ERC-20 balance of holder at the token contract,
// scaled by the token's decimals.
func (c *Client) TokenBalance(ctx context.Context, contract, holder string, decimals int32) (decimal.Decimal, error) {
	data := balanceOfSelector + leftPadAddress(holder)
	call := map[string]string{"to": contract, "data": data}

	result, err := c.Call(ctx, "eth_call", []interface{}{call, "latest"})
	if err != nil {
		return decimal.Zero, err
	}
	return parseHexAmount(result, decimals)
}

// BlockNumber returns the current chain head height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}
	raw, err := unquoteHex(result)
	if err != nil {
		return 0, err
	}
	n, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return 0, fmt.Errorf("malformed block number %q", raw)
	}
	return n.Uint64(), nil
}

// parseHexAmount converts a quoted 0x hex quantity into a decimal scaled by
// the given number of decimals.
func parseHexAmount(result json.RawMessage, decimals int32) (decimal.Decimal, error) {
	raw, err := unquoteHex(result)
	if err != nil {
		return decimal.Zero, err
	}
	if raw == "" {
		return decimal.Zero, nil
	}

	n, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return decimal.Zero, fmt.Errorf("malformed hex amount %q", raw)
	}
	return decimal.NewFromBigInt(n, -decimals), nil
}

func unquoteHex(result json.RawMessage) (string, error) {
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", fmt.Errorf("decode result: %w", err)
	}
	return strings.TrimPrefix(value, "0x"), nil
}

// leftPadAddress encodes an address as a 32-byte call argument.
func leftPadAddress(address string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(address, "0x"))
	return strings.Repeat("0", 64-len(trimmed)) + trimmed
}
