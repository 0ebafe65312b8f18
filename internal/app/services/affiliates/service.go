package affiliates

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/affiliate"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

// defaultCommissionRate applies to new affiliates; admins can change it.
var defaultCommissionRate = decimal.RequireFromString("0.2")

// Service manages affiliate enrollments, commission accrual and payouts.
type Service struct {
	store    storage.AffiliateStore
	accounts storage.AccountStore
	log      *logger.Logger
}

// New constructs an affiliates service.
func New(store storage.AffiliateStore, accounts storage.AccountStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("affiliates")
	}
	return &Service{store: store, accounts: accounts, log: log}
}

// codeAlphabet avoids ambiguous characters in referral codes.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Enroll makes an account an affiliate with a fresh referral code.
func (s *Service) Enroll(ctx context.Context, accountID string) (affiliate.Affiliate, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return affiliate.Affiliate{}, fmt.Errorf("account_id is required")
	}
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return affiliate.Affiliate{}, fmt.Errorf("account validation failed: %w", err)
	}
	if _, err := s.store.GetAffiliateByAccount(ctx, accountID); err == nil {
		return affiliate.Affiliate{}, fmt.Errorf("account is already an affiliate")
	}

	code, err := newCode()
	if err != nil {
		return affiliate.Affiliate{}, err
	}

	aff, err := s.store.CreateAffiliate(ctx, affiliate.Affiliate{
		AccountID:      accountID,
		Code:           code,
		CommissionRate: defaultCommissionRate,
		Status:         affiliate.StatusActive,
	})
	if err != nil {
		return affiliate.Affiliate{}, err
	}

	s.log.WithField("affiliate_id", aff.ID).WithField("account_id", accountID).Info("affiliate enrolled")
	return aff, nil
}

// Get returns one affiliate.
func (s *Service) Get(ctx context.Context, id string) (affiliate.Affiliate, error) {
	return s.store.GetAffiliate(ctx, id)
}

// GetByAccount returns the affiliate record for an account.
func (s *Service) GetByAccount(ctx context.Context, accountID string) (affiliate.Affiliate, error) {
	return s.store.GetAffiliateByAccount(ctx, accountID)
}

// List returns all affiliates. Intended for admin use.
func (s *Service) List(ctx context.Context) ([]affiliate.Affiliate, error) {
	return s.store.ListAffiliates(ctx)
}

// SetCommissionRate changes an affiliate's rate. Admin operation.
func (s *Service) SetCommissionRate(ctx context.Context, id string, rate decimal.Decimal) (affiliate.Affiliate, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return affiliate.Affiliate{}, fmt.Errorf("commission rate must be between 0 and 1")
	}
	aff, err := s.store.GetAffiliate(ctx, id)
	if err != nil {
		return affiliate.Affiliate{}, err
	}
	aff.CommissionRate = rate
	return s.store.UpdateAffiliate(ctx, aff)
}

// Accrue credits commission for a referred payment. Suspended affiliates
// accrue nothing.
func (s *Service) Accrue(ctx context.Context, code string, paymentAmount decimal.Decimal) (decimal.Decimal, error) {
	if !paymentAmount.IsPositive() {
		return decimal.Zero, fmt.Errorf("payment amount must be positive")
	}

	aff, err := s.store.GetAffiliateByCode(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if aff.Status != affiliate.StatusActive {
		return decimal.Zero, nil
	}

	commission := paymentAmount.Mul(aff.CommissionRate).Round(10)
	aff.Accrued = aff.Accrued.Add(commission)
	if _, err := s.store.UpdateAffiliate(ctx, aff); err != nil {
		return decimal.Zero, err
	}

	s.log.WithField("affiliate_id", aff.ID).
		WithField("commission", commission.String()).
		Info("commission accrued")
	return commission, nil
}

// Available reports the balance an affiliate can still withdraw: accrued
// minus paid minus pending payout requests.
func (s *Service) Available(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	aff, err := s.store.GetAffiliate(ctx, affiliateID)
	if err != nil {
		return decimal.Zero, err
	}

	payouts, err := s.store.ListPayouts(ctx, affiliateID)
	if err != nil {
		return decimal.Zero, err
	}

	pending := decimal.Zero
	for _, p := range payouts {
		if p.Status == affiliate.PayoutPending {
			pending = pending.Add(p.Amount)
		}
	}
	return aff.Accrued.Sub(aff.Paid).Sub(pending), nil
}

// RequestPayout creates a pending payout, never exceeding the available
// balance.
func (s *Service) RequestPayout(ctx context.Context, affiliateID string, amount decimal.Decimal, currency string) (affiliate.Payout, error) {
	if !amount.IsPositive() {
		return affiliate.Payout{}, fmt.Errorf("amount must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}

	available, err := s.Available(ctx, affiliateID)
	if err != nil {
		return affiliate.Payout{}, err
	}
	if amount.GreaterThan(available) {
		return affiliate.Payout{}, fmt.Errorf("amount %s exceeds available balance %s", amount, available)
	}

	return s.store.CreatePayout(ctx, affiliate.Payout{
		AffiliateID: affiliateID,
		Amount:      amount,
		Currency:    currency,
		Status:      affiliate.PayoutPending,
		RequestedAt: time.Now().UTC(),
	})
}

// SettlePayout marks a pending payout paid or rejected. Admin operation.
func (s *Service) SettlePayout(ctx context.Context, payoutID string, approved bool) (affiliate.Payout, error) {
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return affiliate.Payout{}, err
	}
	if p.Status != affiliate.PayoutPending {
		return affiliate.Payout{}, fmt.Errorf("payout %s is already %s", payoutID, p.Status)
	}

	if !approved {
		p.Status = affiliate.PayoutRejected
		p.SettledAt = time.Now().UTC()
		return s.store.UpdatePayout(ctx, p)
	}

	aff, err := s.store.GetAffiliate(ctx, p.AffiliateID)
	if err != nil {
		return affiliate.Payout{}, err
	}
	aff.Paid = aff.Paid.Add(p.Amount)
	if _, err := s.store.UpdateAffiliate(ctx, aff); err != nil {
		return affiliate.Payout{}, err
	}

	p.Status = affiliate.PayoutPaid
	p.SettledAt = time.Now().UTC()
	settled, err := s.store.UpdatePayout(ctx, p)
	if err != nil {
		return affiliate.Payout{}, err
	}

	s.log.WithField("payout_id", payoutID).
		WithField("amount", p.Amount.String()).
		Info("payout settled")
	return settled, nil
}

// ListPayouts returns an affiliate's payout history.
func (s *Service) ListPayouts(ctx context.Context, affiliateID string) ([]affiliate.Payout, error) {
	return s.store.ListPayouts(ctx, affiliateID)
}
