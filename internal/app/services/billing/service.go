package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/domain/billing"
	"github.com/tradevault/platform/internal/app/services/accounts"
	"github.com/tradevault/platform/internal/app/services/affiliates"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/payments"
	"github.com/tradevault/platform/pkg/logger"
)

// Processor is the slice of the payment processor client the billing
// service needs.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, clientRef, customerEmail, priceID, successURL, cancelURL string, metadata map[string]string) (payments.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (payments.PortalSession, error)
	VerifyAndParseEvent(payload []byte, sigHeader string, now time.Time) (payments.Event, error)
}

// Config carries the plan price IDs and redirect URLs.
type Config struct {
	ProPriceID   string
	ElitePriceID string
	SuccessURL   string
	CancelURL    string
	ReturnURL    string
}

// Service links accounts to processor subscriptions and applies webhook
// events.
type Service struct {
	store      storage.BillingStore
	accounts   *accounts.Service
	affiliates *affiliates.Service
	processor  Processor
	cfg        Config
	log        *logger.Logger
}

// New constructs a billing service. affiliates may be nil when the referral
// program is disabled.
func New(store storage.BillingStore, accountSvc *accounts.Service, affiliateSvc *affiliates.Service, processor Processor, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("billing")
	}
	return &Service{
		store:      store,
		accounts:   accountSvc,
		affiliates: affiliateSvc,
		processor:  processor,
		cfg:        cfg,
		log:        log,
	}
}

func (s *Service) priceFor(plan billing.Plan) (string, error) {
	switch plan {
	case billing.PlanPro:
		return s.cfg.ProPriceID, nil
	case billing.PlanElite:
		return s.cfg.ElitePriceID, nil
	default:
		return "", fmt.Errorf("unknown plan %q", plan)
	}
}

func tierFor(plan billing.Plan) account.Tier {
	if plan == billing.PlanElite {
		return account.TierElite
	}
	return account.TierPro
}

// StartCheckout returns a hosted checkout URL for upgrading an account.
func (s *Service) StartCheckout(ctx context.Context, accountID string, plan billing.Plan) (string, error) {
	priceID, err := s.priceFor(plan)
	if err != nil {
		return "", err
	}
	if priceID == "" {
		return "", fmt.Errorf("plan %s has no configured price", plan)
	}

	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return "", err
	}

	session, err := s.processor.CreateCheckoutSession(ctx, acct.ID, acct.Email, priceID,
		s.cfg.SuccessURL, s.cfg.CancelURL, map[string]string{"plan": string(plan)})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// OpenPortal returns the self-service billing portal URL for an account with
// an existing subscription.
func (s *Service) OpenPortal(ctx context.Context, accountID string) (string, error) {
	sub, err := s.store.GetSubscriptionByAccount(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("no subscription on file: %w", err)
	}

	session, err := s.processor.CreatePortalSession(ctx, sub.CustomerRef, s.cfg.ReturnURL)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}

// GetSubscription returns the local subscription record for an account.
func (s *Service) GetSubscription(ctx context.Context, accountID string) (billing.Subscription, error) {
	return s.store.GetSubscriptionByAccount(ctx, accountID)
}

// HandleWebhook verifies, deduplicates and applies a processor event.
// Redelivered events are acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.processor.VerifyAndParseEvent(payload, sigHeader, time.Now())
	if err != nil {
		return err
	}

	seen, err := s.store.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if seen {
		s.log.WithField("event_id", event.ID).Debug("duplicate webhook event ignored")
		return nil
	}

	log := s.log.WithField("event_id", event.ID).WithField("event_type", event.Type)
	object := gjson.ParseBytes(event.Data.Object)

	switch event.Type {
	case "checkout.session.completed":
		err = s.applyCheckoutCompleted(ctx, object)
	case "customer.subscription.updated":
		err = s.applySubscriptionUpdated(ctx, object)
	case "customer.subscription.deleted":
		err = s.applySubscriptionDeleted(ctx, object)
	case "invoice.paid":
		err = s.applyInvoicePaid(ctx, object)
	default:
		log.Debug("unhandled webhook event type")
		return nil
	}

	if err != nil {
		// Not marked processed, so the processor's retry gets another shot.
		log.WithError(err).Error("webhook event failed")
		return err
	}
	if _, err := s.store.MarkEventProcessed(ctx, event.ID); err != nil {
		return err
	}
	log.Info("webhook event applied")
	return nil
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, object gjson.Result) error {
	accountID := object.Get("client_reference_id").String()
	if accountID == "" {
		return fmt.Errorf("checkout session missing client_reference_id")
	}
	plan := billing.Plan(object.Get("metadata.plan").String())
	if plan == "" {
		plan = billing.PlanPro
	}

	sub := billing.Subscription{
		AccountID:       accountID,
		Plan:            plan,
		Status:          billing.StatusActive,
		CustomerRef:     object.Get("customer").String(),
		SubscriptionRef: object.Get("subscription").String(),
	}

	existing, err := s.store.GetSubscriptionByAccount(ctx, accountID)
	if err == nil {
		sub.ID = existing.ID
		if _, err := s.store.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
	} else if _, err := s.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	_, err = s.accounts.SetTier(ctx, accountID, tierFor(plan))
	return err
}

func (s *Service) applySubscriptionUpdated(ctx context.Context, object gjson.Result) error {
	ref := object.Get("id").String()
	if ref == "" {
		return fmt.Errorf("subscription event missing id")
	}

	sub, err := s.store.GetSubscriptionByRef(ctx, ref)
	if err != nil {
		return fmt.Errorf("unknown subscription %s: %w", ref, err)
	}

	if status := object.Get("status").String(); status != "" {
		sub.Status = billing.SubscriptionStatus(status)
	}
	if plan := object.Get("metadata.plan").String(); plan != "" {
		sub.Plan = billing.Plan(plan)
	}
	if end := object.Get("current_period_end").Int(); end > 0 {
		sub.CurrentPeriodEnd = time.Unix(end, 0).UTC()
	}

	if _, err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	switch sub.Status {
	case billing.StatusActive, billing.StatusTrialing:
		_, err = s.accounts.SetTier(ctx, sub.AccountID, tierFor(sub.Plan))
	case billing.StatusCanceled:
		_, err = s.accounts.SetTier(ctx, sub.AccountID, account.TierFree)
	}
	// past_due keeps the current tier until the processor gives up.
	return err
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, object gjson.Result) error {
	ref := object.Get("id").String()
	sub, err := s.store.GetSubscriptionByRef(ctx, ref)
	if err != nil {
		return fmt.Errorf("unknown subscription %s: %w", ref, err)
	}

	sub.Status = billing.StatusCanceled
	if _, err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	_, err = s.accounts.SetTier(ctx, sub.AccountID, account.TierFree)
	return err
}

// applyInvoicePaid accrues affiliate commission for referred accounts.
func (s *Service) applyInvoicePaid(ctx context.Context, object gjson.Result) error {
	if s.affiliates == nil {
		return nil
	}

	ref := object.Get("subscription").String()
	if ref == "" {
		return nil
	}
	sub, err := s.store.GetSubscriptionByRef(ctx, ref)
	if err != nil {
		// Invoices can arrive before checkout completion lands.
		s.log.WithField("subscription_ref", ref).Warn("invoice for unknown subscription")
		return nil
	}

	acct, err := s.accounts.Get(ctx, sub.AccountID)
	if err != nil {
		return err
	}
	code := strings.TrimSpace(acct.ReferredBy)
	if code == "" {
		return nil
	}

	paidCents := object.Get("amount_paid").Int()
	if paidCents <= 0 {
		return nil
	}
	amount := decimal.NewFromInt(paidCents).Shift(-2)

	if _, err := s.affiliates.Accrue(ctx, code, amount); err != nil {
		return fmt.Errorf("accrue commission: %w", err)
	}
	return nil
}
