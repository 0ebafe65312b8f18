package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a tracked on-chain address.
type Wallet struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Holding is one token balance held by a wallet.
type Holding struct {
	Contract string          `json:"contract"`
	Symbol   string          `json:"symbol"`
	Decimals int32           `json:"decimals"`
	Amount   decimal.Decimal `json:"amount"`
}

// Balance is a point-in-time portfolio snapshot, computed per request and
// never stored.
type Balance struct {
	Address   string          `json:"address"`
	Chain     string          `json:"chain"`
	Native    decimal.Decimal `json:"native"`
	Tokens    []Holding       `json:"tokens"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Transaction is one historical transfer involving the wallet address.
type Transaction struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
	Incoming  bool            `json:"incoming"`
}
