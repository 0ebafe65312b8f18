package billing

import "time"

// Plan names map to price identifiers at the payment processor.
type Plan string

const (
	PlanPro   Plan = "pro"
	PlanElite Plan = "elite"
)

// SubscriptionStatus mirrors the processor's subscription lifecycle.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the local record of a processor subscription.
type Subscription struct {
	ID               string             `json:"id"`
	AccountID        string             `json:"account_id"`
	Plan             Plan               `json:"plan"`
	Status           SubscriptionStatus `json:"status"`
	CustomerRef      string             `json:"customer_ref"`
	SubscriptionRef  string             `json:"subscription_ref"`
	CurrentPeriodEnd time.Time          `json:"current_period_end,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
