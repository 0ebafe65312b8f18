package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/domain/affiliate"
	"github.com/tradevault/platform/internal/app/domain/billing"
	"github.com/tradevault/platform/internal/app/domain/exchange"
	"github.com/tradevault/platform/internal/app/domain/journal"
	"github.com/tradevault/platform/internal/app/domain/pricefeed"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/domain/wallet"
)

// ErrNotFound is returned by store lookups for unknown IDs. Handlers map it,
// alongside sql.ErrNoRows from the postgres store, to 404 responses.
var ErrNotFound = errors.New("not found")

// AccountStore persists user accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	ListAccounts(ctx context.Context) ([]account.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// TradeFilter narrows trade listings.
type TradeFilter struct {
	AccountID    string
	ConnectionID string
	Symbol       string
	From         time.Time
	To           time.Time
}

// TradeStore persists journal trades.
type TradeStore interface {
	CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error)
	UpdateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error)
	GetTrade(ctx context.Context, id string) (trade.Trade, error)
	GetTradeByExternalID(ctx context.Context, connectionID, externalID string) (trade.Trade, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]trade.Trade, error)
	DeleteTrade(ctx context.Context, id string) error
}

// NoteStore persists journal notes.
type NoteStore interface {
	CreateNote(ctx context.Context, n journal.Note) (journal.Note, error)
	UpdateNote(ctx context.Context, n journal.Note) (journal.Note, error)
	GetNote(ctx context.Context, id string) (journal.Note, error)
	ListNotes(ctx context.Context, accountID string, from, to time.Time) ([]journal.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// ConnectionStore persists exchange connections.
type ConnectionStore interface {
	CreateConnection(ctx context.Context, conn exchange.Connection) (exchange.Connection, error)
	UpdateConnection(ctx context.Context, conn exchange.Connection) (exchange.Connection, error)
	GetConnection(ctx context.Context, id string) (exchange.Connection, error)
	ListConnections(ctx context.Context, accountID string) ([]exchange.Connection, error)
	ListAutoSyncConnections(ctx context.Context) ([]exchange.Connection, error)
	DeleteConnection(ctx context.Context, id string) error
}

// SyncStore persists sync sessions.
type SyncStore interface {
	CreateSession(ctx context.Context, s syncdomain.Session) (syncdomain.Session, error)
	UpdateSession(ctx context.Context, s syncdomain.Session) (syncdomain.Session, error)
	GetSession(ctx context.Context, id string) (syncdomain.Session, error)
	ListSessions(ctx context.Context, connectionID string) ([]syncdomain.Session, error)
	ListPendingSessions(ctx context.Context) ([]syncdomain.Session, error)
}

// AffiliateStore persists affiliates and payouts.
type AffiliateStore interface {
	CreateAffiliate(ctx context.Context, a affiliate.Affiliate) (affiliate.Affiliate, error)
	UpdateAffiliate(ctx context.Context, a affiliate.Affiliate) (affiliate.Affiliate, error)
	GetAffiliate(ctx context.Context, id string) (affiliate.Affiliate, error)
	GetAffiliateByAccount(ctx context.Context, accountID string) (affiliate.Affiliate, error)
	GetAffiliateByCode(ctx context.Context, code string) (affiliate.Affiliate, error)
	ListAffiliates(ctx context.Context) ([]affiliate.Affiliate, error)

	CreatePayout(ctx context.Context, p affiliate.Payout) (affiliate.Payout, error)
	UpdatePayout(ctx context.Context, p affiliate.Payout) (affiliate.Payout, error)
	GetPayout(ctx context.Context, id string) (affiliate.Payout, error)
	ListPayouts(ctx context.Context, affiliateID string) ([]affiliate.Payout, error)
}

// BillingStore persists subscriptions and webhook idempotency marks.
type BillingStore interface {
	CreateSubscription(ctx context.Context, sub billing.Subscription) (billing.Subscription, error)
	UpdateSubscription(ctx context.Context, sub billing.Subscription) (billing.Subscription, error)
	GetSubscriptionByAccount(ctx context.Context, accountID string) (billing.Subscription, error)
	GetSubscriptionByRef(ctx context.Context, subscriptionRef string) (billing.Subscription, error)

	// IsEventProcessed reports whether a processor event ID has been
	// recorded already.
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkEventProcessed records a processor event ID, returning false when
	// the event was seen before.
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
}

// PriceFeedStore persists price feed definitions and quotes.
type PriceFeedStore interface {
	CreateFeed(ctx context.Context, feed pricefeed.Feed) (pricefeed.Feed, error)
	UpdateFeed(ctx context.Context, feed pricefeed.Feed) (pricefeed.Feed, error)
	GetFeed(ctx context.Context, id string) (pricefeed.Feed, error)
	GetFeedByPair(ctx context.Context, pair string) (pricefeed.Feed, error)
	ListFeeds(ctx context.Context) ([]pricefeed.Feed, error)

	CreateQuote(ctx context.Context, q pricefeed.Quote) (pricefeed.Quote, error)
	LatestQuote(ctx context.Context, feedID string) (pricefeed.Quote, error)
	ListQuotes(ctx context.Context, feedID string, limit int) ([]pricefeed.Quote, error)
}

// WalletStore persists tracked wallets.
type WalletStore interface {
	CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	UpdateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	GetWallet(ctx context.Context, id string) (wallet.Wallet, error)
	ListWallets(ctx context.Context, accountID string) ([]wallet.Wallet, error)
	DeleteWallet(ctx context.Context, id string) error
}
