package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/account"
	billingdomain "github.com/tradevault/platform/internal/app/domain/billing"
	"github.com/tradevault/platform/internal/app/services/accounts"
	"github.com/tradevault/platform/internal/app/services/affiliates"
	"github.com/tradevault/platform/internal/app/storage/memory"
	"github.com/tradevault/platform/internal/payments"
)

type fakeProcessor struct {
	checkoutMetadata map[string]string
	checkoutPrice    string
	portalCustomer   string
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, clientRef, customerEmail, priceID, successURL, cancelURL string, metadata map[string]string) (payments.CheckoutSession, error) {
	f.checkoutPrice = priceID
	f.checkoutMetadata = metadata
	return payments.CheckoutSession{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil
}

func (f *fakeProcessor) CreatePortalSession(_ context.Context, customerRef, returnURL string) (payments.PortalSession, error) {
	f.portalCustomer = customerRef
	return payments.PortalSession{URL: "https://pay.example.com/portal"}, nil
}

func (f *fakeProcessor) VerifyAndParseEvent(payload []byte, _ string, _ time.Time) (payments.Event, error) {
	client := payments.NewClient(payments.Config{})
	return client.VerifyAndParseEvent(payload, "", time.Now())
}

func newTestService(t *testing.T) (*Service, *memory.Store, *fakeProcessor, account.Account) {
	t.Helper()
	store := memory.New()
	acct, err := store.CreateAccount(context.Background(), account.Account{
		Email: "trader@example.com",
		Role:  account.RoleUser,
		Tier:  account.TierFree,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	accountSvc := accounts.New(store, store, []byte("secret"), time.Hour, nil)
	affiliateSvc := affiliates.New(store, store, nil)
	processor := &fakeProcessor{}

	svc := New(store, accountSvc, affiliateSvc, processor, Config{
		ProPriceID:   "price_pro",
		ElitePriceID: "price_elite",
		SuccessURL:   "https://app/success",
		CancelURL:    "https://app/cancel",
		ReturnURL:    "https://app/settings",
	}, nil)
	return svc, store, processor, acct
}

func TestStartCheckout(t *testing.T) {
	svc, _, processor, acct := newTestService(t)

	url, err := svc.StartCheckout(context.Background(), acct.ID, billingdomain.PlanElite)
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if url == "" {
		t.Fatal("expected a checkout URL")
	}
	if processor.checkoutPrice != "price_elite" {
		t.Errorf("expected elite price, got %s", processor.checkoutPrice)
	}
	if processor.checkoutMetadata["plan"] != "elite" {
		t.Errorf("expected plan metadata, got %v", processor.checkoutMetadata)
	}

	if _, err := svc.StartCheckout(context.Background(), acct.ID, billingdomain.Plan("platinum")); err == nil {
		t.Fatal("expected unknown plan to fail")
	}
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	svc, store, _, acct := newTestService(t)
	ctx := context.Background()

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"client_reference_id": %q,
			"customer": "cus_1",
			"subscription": "sub_1",
			"metadata": {"plan": "pro"}
		}}
	}`, acct.ID))

	if err := svc.HandleWebhook(ctx, payload, ""); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	sub, err := store.GetSubscriptionByAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Plan != billingdomain.PlanPro || sub.Status != billingdomain.StatusActive {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if sub.SubscriptionRef != "sub_1" || sub.CustomerRef != "cus_1" {
		t.Fatalf("missing processor refs: %+v", sub)
	}

	got, err := store.GetAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Tier != account.TierPro {
		t.Errorf("expected pro tier, got %s", got.Tier)
	}

	// Redelivery is acknowledged without effect.
	if err := svc.HandleWebhook(ctx, payload, ""); err != nil {
		t.Fatalf("redelivered webhook: %v", err)
	}
}

func TestWebhookSubscriptionCanceled(t *testing.T) {
	svc, store, _, acct := newTestService(t)
	ctx := context.Background()

	if _, err := store.CreateSubscription(ctx, billingdomain.Subscription{
		AccountID:       acct.ID,
		Plan:            billingdomain.PlanPro,
		Status:          billingdomain.StatusActive,
		CustomerRef:     "cus_1",
		SubscriptionRef: "sub_1",
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	if _, err := store.UpdateAccount(ctx, withTier(acct, account.TierPro)); err != nil {
		t.Fatalf("seed tier: %v", err)
	}

	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1"}}
	}`)
	if err := svc.HandleWebhook(ctx, payload, ""); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	sub, err := store.GetSubscriptionByRef(ctx, "sub_1")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Status != billingdomain.StatusCanceled {
		t.Errorf("expected canceled status, got %s", sub.Status)
	}

	got, _ := store.GetAccount(ctx, acct.ID)
	if got.Tier != account.TierFree {
		t.Errorf("expected free tier after cancellation, got %s", got.Tier)
	}
}

func TestWebhookInvoicePaidAccruesCommission(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := store.CreateAccount(ctx, account.Account{Email: "ref@example.com", Tier: account.TierFree})
	if err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	affiliateSvc := affiliates.New(store, store, nil)
	aff, err := affiliateSvc.Enroll(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("enroll affiliate: %v", err)
	}

	referred, err := store.CreateAccount(ctx, account.Account{
		Email:      "new@example.com",
		Tier:       account.TierPro,
		ReferredBy: aff.Code,
	})
	if err != nil {
		t.Fatalf("create referred account: %v", err)
	}
	if _, err := store.CreateSubscription(ctx, billingdomain.Subscription{
		AccountID:       referred.ID,
		Plan:            billingdomain.PlanPro,
		Status:          billingdomain.StatusActive,
		SubscriptionRef: "sub_9",
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	payload := []byte(`{
		"id": "evt_3",
		"type": "invoice.paid",
		"data": {"object": {"subscription": "sub_9", "amount_paid": 4900}}
	}`)
	if err := svc.HandleWebhook(ctx, payload, ""); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	got, err := store.GetAffiliate(ctx, aff.ID)
	if err != nil {
		t.Fatalf("get affiliate: %v", err)
	}
	want := decimal.RequireFromString("9.8") // 49.00 * 0.2
	if !got.Accrued.Equal(want) {
		t.Errorf("expected accrued %s, got %s", want, got.Accrued)
	}
}

func withTier(acct account.Account, tier account.Tier) account.Account {
	acct.Tier = tier
	return acct
}

func TestWebhookFailedEventIsRetryable(t *testing.T) {
	svc, store, _, acct := newTestService(t)
	ctx := context.Background()

	// Out-of-order delivery: the subscription update lands before the
	// checkout completion that creates the record.
	update := []byte(`{
		"id": "evt_update",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"status": "past_due"
		}}
	}`)
	if err := svc.HandleWebhook(ctx, update, ""); err == nil {
		t.Fatal("expected update for unknown subscription to fail")
	}

	checkout := []byte(fmt.Sprintf(`{
		"id": "evt_checkout",
		"type": "checkout.session.completed",
		"data": {"object": {
			"client_reference_id": %q,
			"customer": "cus_1",
			"subscription": "sub_1",
			"metadata": {"plan": "pro"}
		}}
	}`, acct.ID))
	if err := svc.HandleWebhook(ctx, checkout, ""); err != nil {
		t.Fatalf("checkout webhook: %v", err)
	}

	// The processor retries the failed event; it must apply, not be
	// swallowed as a duplicate.
	if err := svc.HandleWebhook(ctx, update, ""); err != nil {
		t.Fatalf("retried update webhook: %v", err)
	}

	sub, err := store.GetSubscriptionByRef(ctx, "sub_1")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Status != billingdomain.StatusPastDue {
		t.Fatalf("expected past_due after retry, got %s", sub.Status)
	}

	// A second retry of the now-applied event is a no-op.
	if err := svc.HandleWebhook(ctx, update, ""); err != nil {
		t.Fatalf("duplicate update webhook: %v", err)
	}
}
