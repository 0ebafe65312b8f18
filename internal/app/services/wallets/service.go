package wallets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradevault/platform/internal/app/domain/wallet"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/chainrpc"
	"github.com/tradevault/platform/pkg/logger"
)

// Token is one ERC-20 contract tracked for portfolio balances.
type Token struct {
	Contract string
	Symbol   string
	Decimals int32
}

// DefaultTokens covers the stablecoins most journals care about.
var DefaultTokens = []Token{
	{Contract: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Decimals: 6},
	{Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
	{Contract: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI", Decimals: 18},
}

// Service manages tracked wallets and computes portfolio views on demand.
type Service struct {
	store    storage.WalletStore
	chain    *chainrpc.Client
	explorer *chainrpc.Explorer
	tokens   []Token
	log      *logger.Logger
}

// New constructs a wallets service. chain and explorer are optional; without
// them balance and history lookups return an error.
func New(store storage.WalletStore, chain *chainrpc.Client, explorer *chainrpc.Explorer, tokens []Token, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wallets")
	}
	if tokens == nil {
		tokens = DefaultTokens
	}
	return &Service{
		store:    store,
		chain:    chain,
		explorer: explorer,
		tokens:   tokens,
		log:      log,
	}
}

func validateAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return fmt.Errorf("address must be a 0x-prefixed 20-byte hex string")
	}
	for _, r := range address[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("address contains non-hex character %q", r)
		}
	}
	return nil
}

// Create registers a wallet for tracking.
func (s *Service) Create(ctx context.Context, accountID, chain, address, label string) (wallet.Wallet, error) {
	accountID = strings.TrimSpace(accountID)
	chain = strings.ToLower(strings.TrimSpace(chain))
	address = strings.TrimSpace(address)
	label = strings.TrimSpace(label)

	if accountID == "" {
		return wallet.Wallet{}, fmt.Errorf("account_id is required")
	}
	if chain == "" {
		chain = "ethereum"
	}
	if err := validateAddress(address); err != nil {
		return wallet.Wallet{}, err
	}

	existing, err := s.store.ListWallets(ctx, accountID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	for _, w := range existing {
		if w.Chain == chain && strings.EqualFold(w.Address, address) {
			return wallet.Wallet{}, fmt.Errorf("wallet %s is already tracked", address)
		}
	}

	w := wallet.Wallet{
		AccountID: accountID,
		Chain:     chain,
		Address:   address,
		Label:     label,
	}
	w, err = s.store.CreateWallet(ctx, w)
	if err != nil {
		return wallet.Wallet{}, err
	}
	s.log.WithField("wallet_id", w.ID).
		WithField("account_id", accountID).
		WithField("chain", chain).
		Info("wallet tracked")
	return w, nil
}

// UpdateLabel renames a tracked wallet.
func (s *Service) UpdateLabel(ctx context.Context, accountID, walletID, label string) (wallet.Wallet, error) {
	w, err := s.getOwned(ctx, accountID, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	w.Label = strings.TrimSpace(label)
	return s.store.UpdateWallet(ctx, w)
}

// Delete removes a wallet from tracking.
func (s *Service) Delete(ctx context.Context, accountID, walletID string) error {
	if _, err := s.getOwned(ctx, accountID, walletID); err != nil {
		return err
	}
	if err := s.store.DeleteWallet(ctx, walletID); err != nil {
		return err
	}
	s.log.WithField("wallet_id", walletID).Info("wallet removed")
	return nil
}

// List returns an account's tracked wallets.
func (s *Service) List(ctx context.Context, accountID string) ([]wallet.Wallet, error) {
	return s.store.ListWallets(ctx, accountID)
}

// Get returns one wallet, enforcing ownership.
func (s *Service) Get(ctx context.Context, accountID, walletID string) (wallet.Wallet, error) {
	return s.getOwned(ctx, accountID, walletID)
}

func (s *Service) getOwned(ctx context.Context, accountID, walletID string) (wallet.Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if accountID != "" && w.AccountID != accountID {
		return wallet.Wallet{}, fmt.Errorf("wallet does not belong to account")
	}
	return w, nil
}

// Balance computes the wallet's current portfolio from the chain. Token
// contracts that fail to respond are skipped.
func (s *Service) Balance(ctx context.Context, accountID, walletID string) (wallet.Balance, error) {
	w, err := s.getOwned(ctx, accountID, walletID)
	if err != nil {
		return wallet.Balance{}, err
	}
	if s.chain == nil {
		return wallet.Balance{}, fmt.Errorf("chain RPC is not configured")
	}

	native, err := s.chain.NativeBalance(ctx, w.Address)
	if err != nil {
		return wallet.Balance{}, fmt.Errorf("native balance: %w", err)
	}

	balance := wallet.Balance{
		Address:   w.Address,
		Chain:     w.Chain,
		Native:    native,
		FetchedAt: time.Now().UTC(),
	}

	for _, token := range s.tokens {
		amount, err := s.chain.TokenBalance(ctx, token.Contract, w.Address, token.Decimals)
		if err != nil {
			s.log.WithError(err).
				WithField("wallet_id", w.ID).
				WithField("token", token.Symbol).
				Warn("token balance lookup failed")
			continue
		}
		if amount.IsZero() {
			continue
		}
		balance.Tokens = append(balance.Tokens, wallet.Holding{
			Contract: token.Contract,
			Symbol:   token.Symbol,
			Decimals: token.Decimals,
			Amount:   amount,
		})
	}
	return balance, nil
}

// Transactions returns recent transfers for a wallet, newest first.
func (s *Service) Transactions(ctx context.Context, accountID, walletID string, limit int) ([]wallet.Transaction, error) {
	w, err := s.getOwned(ctx, accountID, walletID)
	if err != nil {
		return nil, err
	}
	if s.explorer == nil {
		return nil, fmt.Errorf("explorer API is not configured")
	}

	transfers, err := s.explorer.Transactions(ctx, w.Address, limit)
	if err != nil {
		return nil, fmt.Errorf("transaction history: %w", err)
	}

	out := make([]wallet.Transaction, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, wallet.Transaction{
			Hash:      tr.Hash,
			From:      tr.From,
			To:        tr.To,
			Value:     tr.Value,
			Timestamp: tr.Timestamp,
			Incoming:  strings.EqualFold(tr.To, w.Address),
		})
	}
	return out, nil
}
