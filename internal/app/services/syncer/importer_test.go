package syncer

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	"github.com/tradevault/platform/internal/app/domain/trade"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseTrades(t *testing.T) {
	conn := exchange.Connection{ID: "conn-1", AccountID: "acct-1", Exchange: "binance"}
	body := []byte(`{
		"trades": [
			{
				"id": "fill-1",
				"symbol": "BTC/USDT",
				"side": "long",
				"quantity": "0.25",
				"entry_price": "60000",
				"exit_price": "62000",
				"fees": "12.5",
				"currency": "USDT",
				"opened_at": 1767225600000,
				"closed_at": 1767229200000
			},
			{
				"id": "fill-2",
				"symbol": "ETH/USDT",
				"side": "short",
				"quantity": "3",
				"entry_price": "2500",
				"exit_price": "2400",
				"opened_at": 1767225600000,
				"closed_at": 1767232800000
			}
		]
	}`)

	parsed, err := parseTrades(conn, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(parsed))
	}

	first := parsed[0]
	if first.ExternalID != "fill-1" || first.ConnectionID != "conn-1" || first.AccountID != "acct-1" {
		t.Fatalf("unexpected attribution: %+v", first)
	}
	if !first.Quantity.Equal(mustDecimal("0.25")) || !first.Fees.Equal(mustDecimal("12.5")) {
		t.Fatalf("unexpected amounts: %+v", first)
	}
	if parsed[1].Side != trade.SideShort {
		t.Fatalf("expected short side, got %s", parsed[1].Side)
	}
	if parsed[1].Fees.Sign() != 0 {
		t.Fatalf("expected zero fees default, got %s", parsed[1].Fees)
	}
}

func TestParseTradesRejectsBadPayload(t *testing.T) {
	conn := exchange.Connection{ID: "conn-1", AccountID: "acct-1"}

	if _, err := parseTrades(conn, []byte(`{"fills": []}`)); err == nil {
		t.Fatal("expected missing trades array to be rejected")
	}
	if _, err := parseTrades(conn, []byte(`{"trades": [{"symbol": "BTC/USDT"}]}`)); err == nil {
		t.Fatal("expected record without id to be rejected")
	}
}
