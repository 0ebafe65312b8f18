package affiliate

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of an affiliate enrollment.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Affiliate is a referral partner. Accrued grows as referred accounts pay
// invoices; Paid grows as payouts settle.
type Affiliate struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Code           string          `json:"code"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Status         Status          `json:"status"`
	Accrued        decimal.Decimal `json:"accrued"`
	Paid           decimal.Decimal `json:"paid"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PayoutStatus of a commission payout request.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutPaid     PayoutStatus = "paid"
	PayoutRejected PayoutStatus = "rejected"
)

// Payout is a withdrawal of accrued commission.
type Payout struct {
	ID          string          `json:"id"`
	AffiliateID string          `json:"affiliate_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PayoutStatus    `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	SettledAt   time.Time       `json:"settled_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
