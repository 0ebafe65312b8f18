package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

const minPasswordLen = 8

// Service manages account registration, login and profiles.
type Service struct {
	store      storage.AccountStore
	affiliates storage.AffiliateStore
	secret     []byte
	tokenTTL   time.Duration
	log        *logger.Logger
}

// New constructs an accounts service. The affiliates store is optional and
// only used to attribute signups to referral codes.
func New(store storage.AccountStore, affiliates storage.AffiliateStore, secret []byte, tokenTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:      store,
		affiliates: affiliates,
		secret:     secret,
		tokenTTL:   tokenTTL,
		log:        log,
	}
}

// Register creates an account and returns it with a session token.
func (s *Service) Register(ctx context.Context, email, password, displayName, referralCode string) (account.Account, string, error) {
	// Normalize once so the duplicate check and the stored record agree
	// regardless of store lookup behavior.
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)
	referralCode = strings.TrimSpace(referralCode)

	if email == "" {
		return account.Account{}, "", fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return account.Account{}, "", fmt.Errorf("email is invalid")
	}
	if len(password) < minPasswordLen {
		return account.Account{}, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	if _, err := s.store.GetAccountByEmail(ctx, email); err == nil {
		return account.Account{}, "", fmt.Errorf("email is already registered")
	}

	referredBy := ""
	if referralCode != "" && s.affiliates != nil {
		aff, err := s.affiliates.GetAffiliateByCode(ctx, referralCode)
		if err != nil {
			// Unknown codes do not block signup.
			s.log.WithField("code", referralCode).Warn("referral code not found")
		} else {
			referredBy = aff.Code
		}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return account.Account{}, "", err
	}

	acct, err := s.store.CreateAccount(ctx, account.Account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         account.RoleUser,
		Tier:         account.TierFree,
		ReferredBy:   referredBy,
	})
	if err != nil {
		return account.Account{}, "", err
	}

	token, err := s.issueToken(acct)
	if err != nil {
		return account.Account{}, "", err
	}

	s.log.WithField("account_id", acct.ID).Info("account registered")
	return acct, token, nil
}

// Login authenticates by email and password and returns a session token.
func (s *Service) Login(ctx context.Context, email, password string) (account.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return account.Account{}, "", fmt.Errorf("email and password are required")
	}

	acct, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return account.Account{}, "", fmt.Errorf("invalid credentials")
	}
	if !checkPassword(password, acct.PasswordHash) {
		return account.Account{}, "", fmt.Errorf("invalid credentials")
	}

	token, err := s.issueToken(acct)
	if err != nil {
		return account.Account{}, "", err
	}
	return acct, token, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id string) (account.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// List returns all accounts. Intended for admin use.
func (s *Service) List(ctx context.Context) ([]account.Account, error) {
	return s.store.ListAccounts(ctx)
}

// UpdateProfile changes mutable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id string, displayName *string) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	if displayName != nil {
		acct.DisplayName = strings.TrimSpace(*displayName)
	}
	return s.store.UpdateAccount(ctx, acct)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if !checkPassword(current, acct.PasswordHash) {
		return fmt.Errorf("invalid credentials")
	}
	if len(next) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	_, err = s.store.UpdateAccount(ctx, acct)
	return err
}

// SetTier moves an account between subscription tiers. Billing webhooks are
// the main caller.
func (s *Service) SetTier(ctx context.Context, id string, tier account.Tier) (account.Account, error) {
	switch tier {
	case account.TierFree, account.TierPro, account.TierElite:
	default:
		return account.Account{}, fmt.Errorf("unknown tier %q", tier)
	}

	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	if acct.Tier == tier {
		return acct, nil
	}

	acct.Tier = tier
	updated, err := s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", id).WithField("tier", string(tier)).Info("account tier changed")
	return updated, nil
}

// SetRole grants or revokes the admin role. Admin operation.
func (s *Service) SetRole(ctx context.Context, id string, role account.Role) (account.Account, error) {
	switch role {
	case account.RoleUser, account.RoleAdmin:
	default:
		return account.Account{}, fmt.Errorf("unknown role %q", role)
	}

	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	if acct.Role == role {
		return acct, nil
	}

	acct.Role = role
	updated, err := s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", id).WithField("role", string(role)).Info("account role changed")
	return updated, nil
}
