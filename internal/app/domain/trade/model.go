package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Source records how a trade entered the journal.
type Source string

const (
	SourceManual Source = "manual"
	SourceSync   Source = "sync"
)

// Trade is a closed position recorded in the journal. Money fields use
// decimal arithmetic; realized P&L is derived at creation when absent.
type Trade struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	ConnectionID string          `json:"connection_id,omitempty"`
	ExternalID   string          `json:"external_id,omitempty"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	ExitPrice    decimal.Decimal `json:"exit_price"`
	Fees         decimal.Decimal `json:"fees"`
	PnL          decimal.Decimal `json:"pnl"`
	Currency     string          `json:"currency"`
	Source       Source          `json:"source"`
	Tags         []string        `json:"tags,omitempty"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     time.Time       `json:"closed_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// GrossPnL computes direction-aware gross profit before fees.
func (t Trade) GrossPnL() decimal.Decimal {
	diff := t.ExitPrice.Sub(t.EntryPrice)
	if t.Side == SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(t.Quantity)
}
