package wallets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tradevault/platform/internal/app/storage/memory"
	"github.com/tradevault/platform/internal/chainrpc"
)

const testAddress = "0xAbC0000000000000000000000000000000000001"

func TestCreateWallet(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil, nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "acct-1", "", testAddress, "cold storage")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if w.Chain != "ethereum" {
		t.Errorf("expected default chain, got %s", w.Chain)
	}

	if _, err := svc.Create(ctx, "acct-1", "ethereum", strings.ToLower(testAddress), ""); err == nil {
		t.Fatal("expected duplicate address to fail")
	}
	if _, err := svc.Create(ctx, "acct-1", "ethereum", "not-an-address", ""); err == nil {
		t.Fatal("expected malformed address to fail")
	}
	if _, err := svc.Create(ctx, "acct-1", "ethereum", "0xZZZ0000000000000000000000000000000000001", ""); err == nil {
		t.Fatal("expected non-hex address to fail")
	}
}

func TestWalletOwnership(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil, nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "acct-1", "ethereum", testAddress, "")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	if _, err := svc.Get(ctx, "acct-2", w.ID); err == nil {
		t.Fatal("expected foreign account access to fail")
	}
	if err := svc.Delete(ctx, "acct-2", w.ID); err == nil {
		t.Fatal("expected foreign account delete to fail")
	}
	if err := svc.Delete(ctx, "acct-1", w.ID); err != nil {
		t.Fatalf("delete wallet: %v", err)
	}
}

func TestBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		switch req.Method {
		case "eth_getBalance":
			// 2 ether.
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1bc16d674ec80000"}`))
		case "eth_call":
			// 100 units of a 6-decimal token.
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x5f5e100"}`))
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	chain, err := chainrpc.NewClient(chainrpc.Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new chain client: %v", err)
	}

	tokens := []Token{{Contract: "0xdead", Symbol: "USDC", Decimals: 6}}
	svc := New(memory.New(), chain, nil, tokens, nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "acct-1", "ethereum", testAddress, "")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	balance, err := svc.Balance(ctx, "acct-1", w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Native.String() != "2" {
		t.Errorf("expected native 2, got %s", balance.Native)
	}
	if len(balance.Tokens) != 1 || balance.Tokens[0].Amount.String() != "100" {
		t.Fatalf("unexpected token holdings: %+v", balance.Tokens)
	}
}

func TestTransactionsMarksDirection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"hash":"0xaaa","from":"0x9000000000000000000000000000000000000009","to":"` + strings.ToLower(testAddress) + `","value":"1000000000000000000","timeStamp":"1700000000"},
			{"hash":"0xbbb","from":"` + strings.ToLower(testAddress) + `","to":"0x9000000000000000000000000000000000000009","value":"250000000000000000","timeStamp":"1699990000"}
		]}`))
	}))
	defer server.Close()

	explorer, err := chainrpc.NewExplorer(chainrpc.ExplorerConfig{APIBase: server.URL})
	if err != nil {
		t.Fatalf("new explorer: %v", err)
	}

	svc := New(memory.New(), nil, explorer, nil, nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "acct-1", "ethereum", testAddress, "")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	txs, err := svc.Transactions(ctx, "acct-1", w.ID, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if !txs[0].Incoming {
		t.Error("expected first transfer to be incoming")
	}
	if txs[1].Incoming {
		t.Error("expected second transfer to be outgoing")
	}
}
