package chainrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNativeBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "eth_getBalance" {
			t.Errorf("unexpected method %s", req.Method)
		}
		// 1.5 ether in wei.
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x14d1120d7b160000"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	balance, err := client.NativeBalance(context.Background(), "0xabc0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if balance.String() != "1.5" {
		t.Errorf("expected 1.5, got %s", balance)
	}
}

func TestTokenBalanceBuildsCallData(t *testing.T) {
	const holder = "0xAbC0000000000000000000000000000000000001"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		call, ok := req.Params[0].(map[string]interface{})
		if !ok {
			t.Fatalf("unexpected params: %v", req.Params)
		}
		data, _ := call["data"].(string)
		want := balanceOfSelector + "000000000000000000000000abc0000000000000000000000000000000000001"
		if data != want {
			t.Errorf("unexpected call data %s", data)
		}
		// 250 units of a 6-decimal token.
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0xee6b280"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	balance, err := client.TokenBalance(context.Background(), "0xdead", holder, 6)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.String() != "250" {
		t.Errorf("expected 250, got %s", balance)
	}
}

func TestCallSurfacesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.NativeBalance(context.Background(), "0x1"); err == nil {
		t.Fatal("expected rpc error")
	}
}

func TestExplorerTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "txlist" {
			t.Errorf("unexpected action %s", r.URL.Query().Get("action"))
		}
		w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"hash":"0xaaa","from":"0x1","to":"0x2","value":"1000000000000000000","timeStamp":"1700000000"},
			{"hash":"0xbbb","from":"0x2","to":"0x1","value":"500000000000000000","timeStamp":"1699990000"}
		]}`))
	}))
	defer server.Close()

	explorer, err := NewExplorer(ExplorerConfig{APIBase: server.URL, APIKey: "key"})
	if err != nil {
		t.Fatalf("new explorer: %v", err)
	}

	transfers, err := explorer.Transactions(context.Background(), "0x1", 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}
	if transfers[0].Value.String() != "1" {
		t.Errorf("expected 1 ether, got %s", transfers[0].Value)
	}
	if transfers[1].Value.String() != "0.5" {
		t.Errorf("expected 0.5 ether, got %s", transfers[1].Value)
	}
}
