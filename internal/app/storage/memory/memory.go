package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
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
	"github.com/tradevault/platform/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	accounts        map[string]account.Account
	accountsByEmail map[string]string
	trades          map[string]trade.Trade
	notes           map[string]journal.Note
	connections     map[string]exchange.Connection
	sessions        map[string]syncdomain.Session
	affiliates      map[string]affiliate.Affiliate
	affiliateByAcct map[string]string
	affiliateByCode map[string]string
	payouts         map[string]affiliate.Payout
	subscriptions   map[string]billing.Subscription
	processedEvents map[string]struct{}
	feeds           map[string]pricefeed.Feed
	quotes          map[string][]pricefeed.Quote
	wallets         map[string]wallet.Wallet
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.TradeStore = (*Store)(nil)
var _ storage.NoteStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.SyncStore = (*Store)(nil)
var _ storage.AffiliateStore = (*Store)(nil)
var _ storage.BillingStore = (*Store)(nil)
var _ storage.PriceFeedStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		accounts:        make(map[string]account.Account),
		accountsByEmail: make(map[string]string),
		trades:          make(map[string]trade.Trade),
		notes:           make(map[string]journal.Note),
		connections:     make(map[string]exchange.Connection),
		sessions:        make(map[string]syncdomain.Session),
		affiliates:      make(map[string]affiliate.Affiliate),
		affiliateByAcct: make(map[string]string),
		affiliateByCode: make(map[string]string),
		payouts:         make(map[string]affiliate.Payout),
		subscriptions:   make(map[string]billing.Subscription),
		processedEvents: make(map[string]struct{}),
		feeds:           make(map[string]pricefeed.Feed),
		quotes:          make(map[string][]pricefeed.Quote),
		wallets:         make(map[string]wallet.Wallet),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(acct.Email)
	if _, exists := s.accountsByEmail[email]; exists {
		return account.Account{}, fmt.Errorf("account with email %s already exists", acct.Email)
	}
	if acct.ID == "" {
		acct.ID = s.nextIDLocked()
	} else if _, exists := s.accounts[acct.ID]; exists {
		return account.Account{}, fmt.Errorf("account %s already exists", acct.ID)
	}

	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.accounts[acct.ID] = acct
	s.accountsByEmail[email] = acct.ID
	return acct, nil
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.accounts[acct.ID]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s %w", acct.ID, storage.ErrNotFound)
	}

	acct.Email = original.Email
	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s %w", id, storage.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountsByEmail[strings.ToLower(email)]
	if !ok {
		return account.Account{}, fmt.Errorf("account with email %s %w", email, storage.ErrNotFound)
	}
	return s.accounts[id], nil
}

func (s *Store) ListAccounts(_ context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		result = append(result, acct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s %w", id, storage.ErrNotFound)
	}
	delete(s.accounts, id)
	delete(s.accountsByEmail, strings.ToLower(acct.Email))
	return nil
}

// TradeStore implementation ---------------------------------------------------

func (s *Store) CreateTrade(_ context.Context, t trade.Trade) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	} else if _, exists := s.trades[t.ID]; exists {
		return trade.Trade{}, fmt.Errorf("trade %s already exists", t.ID)
	}
	if t.ExternalID != "" {
		for _, other := range s.trades {
			if other.ConnectionID == t.ConnectionID && other.ExternalID == t.ExternalID {
				return trade.Trade{}, fmt.Errorf("trade with external id %s already exists", t.ExternalID)
			}
		}
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Tags = cloneStrings(t.Tags)

	s.trades[t.ID] = t
	return cloneTrade(t), nil
}

func (s *Store) UpdateTrade(_ context.Context, t trade.Trade) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.trades[t.ID]
	if !ok {
		return trade.Trade{}, fmt.Errorf("trade %s %w", t.ID, storage.ErrNotFound)
	}

	t.AccountID = original.AccountID
	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	t.Tags = cloneStrings(t.Tags)

	s.trades[t.ID] = t
	return cloneTrade(t), nil
}

func (s *Store) GetTrade(_ context.Context, id string) (trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return trade.Trade{}, fmt.Errorf("trade %s %w", id, storage.ErrNotFound)
	}
	return cloneTrade(t), nil
}

func (s *Store) GetTradeByExternalID(_ context.Context, connectionID, externalID string) (trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trades {
		if t.ConnectionID == connectionID && t.ExternalID == externalID {
			return cloneTrade(t), nil
		}
	}
	return trade.Trade{}, fmt.Errorf("trade with external id %s %w", externalID, storage.ErrNotFound)
}

func (s *Store) ListTrades(_ context.Context, filter storage.TradeFilter) ([]trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []trade.Trade
	for _, t := range s.trades {
		if filter.AccountID != "" && t.AccountID != filter.AccountID {
			continue
		}
		if filter.ConnectionID != "" && t.ConnectionID != filter.ConnectionID {
			continue
		}
		if filter.Symbol != "" && !strings.EqualFold(t.Symbol, filter.Symbol) {
			continue
		}
		if !filter.From.IsZero() && t.ClosedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && t.ClosedAt.After(filter.To) {
			continue
		}
		result = append(result, cloneTrade(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClosedAt.Before(result[j].ClosedAt) })
	return result, nil
}

func (s *Store) DeleteTrade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[id]; !ok {
		return fmt.Errorf("trade %s %w", id, storage.ErrNotFound)
	}
	delete(s.trades, id)
	return nil
}

// NoteStore implementation ----------------------------------------------------

func (s *Store) CreateNote(_ context.Context, n journal.Note) (journal.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	n.Tags = cloneStrings(n.Tags)

	s.notes[n.ID] = n
	return n, nil
}

func (s *Store) UpdateNote(_ context.Context, n journal.Note) (journal.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.notes[n.ID]
	if !ok {
		return journal.Note{}, fmt.Errorf("note %s %w", n.ID, storage.ErrNotFound)
	}

	n.AccountID = original.AccountID
	n.CreatedAt = original.CreatedAt
	n.UpdatedAt = time.Now().UTC()
	n.Tags = cloneStrings(n.Tags)

	s.notes[n.ID] = n
	return n, nil
}

func (s *Store) GetNote(_ context.Context, id string) (journal.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return journal.Note{}, fmt.Errorf("note %s %w", id, storage.ErrNotFound)
	}
	return n, nil
}

func (s *Store) ListNotes(_ context.Context, accountID string, from, to time.Time) ([]journal.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []journal.Note
	for _, n := range s.notes {
		if n.AccountID != accountID {
			continue
		}
		if !from.IsZero() && n.Day.Before(from) {
			continue
		}
		if !to.IsZero() && n.Day.After(to) {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result, nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("note %s %w", id, storage.ErrNotFound)
	}
	delete(s.notes, id)
	return nil
}

// ConnectionStore implementation ----------------------------------------------

func (s *Store) CreateConnection(_ context.Context, conn exchange.Connection) (exchange.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn.ID == "" {
		conn.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	s.connections[conn.ID] = conn
	return conn, nil
}

func (s *Store) UpdateConnection(_ context.Context, conn exchange.Connection) (exchange.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.connections[conn.ID]
	if !ok {
		return exchange.Connection{}, fmt.Errorf("connection %s %w", conn.ID, storage.ErrNotFound)
	}

	conn.AccountID = original.AccountID
	conn.CreatedAt = original.CreatedAt
	conn.UpdatedAt = time.Now().UTC()

	s.connections[conn.ID] = conn
	return conn, nil
}

func (s *Store) GetConnection(_ context.Context, id string) (exchange.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[id]
	if !ok {
		return exchange.Connection{}, fmt.Errorf("connection %s %w", id, storage.ErrNotFound)
	}
	return conn, nil
}

func (s *Store) ListConnections(_ context.Context, accountID string) ([]exchange.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []exchange.Connection
	for _, conn := range s.connections {
		if accountID == "" || conn.AccountID == accountID {
			result = append(result, conn)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListAutoSyncConnections(_ context.Context) ([]exchange.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []exchange.Connection
	for _, conn := range s.connections {
		if conn.AutoSync && conn.Status == exchange.StatusActive {
			result = append(result, conn)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteConnection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[id]; !ok {
		return fmt.Errorf("connection %s %w", id, storage.ErrNotFound)
	}
	delete(s.connections, id)
	return nil
}

// SyncStore implementation ----------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess syncdomain.Session) (syncdomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) UpdateSession(_ context.Context, sess syncdomain.Session) (syncdomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.sessions[sess.ID]
	if !ok {
		return syncdomain.Session{}, fmt.Errorf("session %s %w", sess.ID, storage.ErrNotFound)
	}

	sess.AccountID = original.AccountID
	sess.ConnectionID = original.ConnectionID
	sess.CreatedAt = original.CreatedAt
	sess.UpdatedAt = time.Now().UTC()

	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id string) (syncdomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return syncdomain.Session{}, fmt.Errorf("session %s %w", id, storage.ErrNotFound)
	}
	return sess, nil
}

func (s *Store) ListSessions(_ context.Context, connectionID string) ([]syncdomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []syncdomain.Session
	for _, sess := range s.sessions {
		if connectionID == "" || sess.ConnectionID == connectionID {
			result = append(result, sess)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListPendingSessions(_ context.Context) ([]syncdomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []syncdomain.Session
	for _, sess := range s.sessions {
		if sess.Status == syncdomain.StatusPending {
			result = append(result, sess)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// AffiliateStore implementation -----------------------------------------------

func (s *Store) CreateAffiliate(_ context.Context, a affiliate.Affiliate) (affiliate.Affiliate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.affiliateByAcct[a.AccountID]; exists {
		return affiliate.Affiliate{}, fmt.Errorf("account %s is already an affiliate", a.AccountID)
	}
	if _, exists := s.affiliateByCode[a.Code]; exists {
		return affiliate.Affiliate{}, fmt.Errorf("affiliate code %s already exists", a.Code)
	}
	if a.ID == "" {
		a.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	s.affiliates[a.ID] = a
	s.affiliateByAcct[a.AccountID] = a.ID
	s.affiliateByCode[a.Code] = a.ID
	return a, nil
}

func (s *Store) UpdateAffiliate(_ context.Context, a affiliate.Affiliate) (affiliate.Affiliate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.affiliates[a.ID]
	if !ok {
		return affiliate.Affiliate{}, fmt.Errorf("affiliate %s %w", a.ID, storage.ErrNotFound)
	}

	a.AccountID = original.AccountID
	a.Code = original.Code
	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	s.affiliates[a.ID] = a
	return a, nil
}

func (s *Store) GetAffiliate(_ context.Context, id string) (affiliate.Affiliate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.affiliates[id]
	if !ok {
		return affiliate.Affiliate{}, fmt.Errorf("affiliate %s %w", id, storage.ErrNotFound)
	}
	return a, nil
}

func (s *Store) GetAffiliateByAccount(_ context.Context, accountID string) (affiliate.Affiliate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.affiliateByAcct[accountID]
	if !ok {
		return affiliate.Affiliate{}, fmt.Errorf("affiliate for account %s %w", accountID, storage.ErrNotFound)
	}
	return s.affiliates[id], nil
}

func (s *Store) GetAffiliateByCode(_ context.Context, code string) (affiliate.Affiliate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.affiliateByCode[code]
	if !ok {
		return affiliate.Affiliate{}, fmt.Errorf("affiliate code %s %w", code, storage.ErrNotFound)
	}
	return s.affiliates[id], nil
}

func (s *Store) ListAffiliates(_ context.Context) ([]affiliate.Affiliate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]affiliate.Affiliate, 0, len(s.affiliates))
	for _, a := range s.affiliates {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CreatePayout(_ context.Context, p affiliate.Payout) (affiliate.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.payouts[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePayout(_ context.Context, p affiliate.Payout) (affiliate.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.payouts[p.ID]
	if !ok {
		return affiliate.Payout{}, fmt.Errorf("payout %s %w", p.ID, storage.ErrNotFound)
	}

	p.AffiliateID = original.AffiliateID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.payouts[p.ID] = p
	return p, nil
}

func (s *Store) GetPayout(_ context.Context, id string) (affiliate.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payouts[id]
	if !ok {
		return affiliate.Payout{}, fmt.Errorf("payout %s %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPayouts(_ context.Context, affiliateID string) ([]affiliate.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []affiliate.Payout
	for _, p := range s.payouts {
		if affiliateID == "" || p.AffiliateID == affiliateID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// BillingStore implementation -------------------------------------------------

func (s *Store) CreateSubscription(_ context.Context, sub billing.Subscription) (billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub billing.Subscription) (billing.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.subscriptions[sub.ID]
	if !ok {
		return billing.Subscription{}, fmt.Errorf("subscription %s %w", sub.ID, storage.ErrNotFound)
	}

	sub.AccountID = original.AccountID
	sub.CreatedAt = original.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetSubscriptionByAccount(_ context.Context, accountID string) (billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.AccountID == accountID {
			return sub, nil
		}
	}
	return billing.Subscription{}, fmt.Errorf("subscription for account %s %w", accountID, storage.ErrNotFound)
}

func (s *Store) GetSubscriptionByRef(_ context.Context, subscriptionRef string) (billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.SubscriptionRef == subscriptionRef {
			return sub, nil
		}
	}
	return billing.Subscription{}, fmt.Errorf("subscription %s %w", subscriptionRef, storage.ErrNotFound)
}

func (s *Store) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, seen := s.processedEvents[eventID]
	return seen, nil
}

func (s *Store) MarkEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.processedEvents[eventID]; seen {
		return false, nil
	}
	s.processedEvents[eventID] = struct{}{}
	return true, nil
}

// PriceFeedStore implementation -----------------------------------------------

func (s *Store) CreateFeed(_ context.Context, feed pricefeed.Feed) (pricefeed.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.feeds {
		if strings.EqualFold(other.Pair, feed.Pair) {
			return pricefeed.Feed{}, fmt.Errorf("feed for pair %s already exists", feed.Pair)
		}
	}
	if feed.ID == "" {
		feed.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	s.feeds[feed.ID] = feed
	return feed, nil
}

func (s *Store) UpdateFeed(_ context.Context, feed pricefeed.Feed) (pricefeed.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.feeds[feed.ID]
	if !ok {
		return pricefeed.Feed{}, fmt.Errorf("feed %s %w", feed.ID, storage.ErrNotFound)
	}

	feed.Symbol = original.Symbol
	feed.Quote = original.Quote
	feed.Pair = original.Pair
	feed.CreatedAt = original.CreatedAt
	feed.UpdatedAt = time.Now().UTC()

	s.feeds[feed.ID] = feed
	return feed, nil
}

func (s *Store) GetFeed(_ context.Context, id string) (pricefeed.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feed, ok := s.feeds[id]
	if !ok {
		return pricefeed.Feed{}, fmt.Errorf("feed %s %w", id, storage.ErrNotFound)
	}
	return feed, nil
}

func (s *Store) GetFeedByPair(_ context.Context, pair string) (pricefeed.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, feed := range s.feeds {
		if strings.EqualFold(feed.Pair, pair) {
			return feed, nil
		}
	}
	return pricefeed.Feed{}, fmt.Errorf("feed for pair %s %w", pair, storage.ErrNotFound)
}

func (s *Store) ListFeeds(_ context.Context) ([]pricefeed.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]pricefeed.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		result = append(result, feed)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CreateQuote(_ context.Context, q pricefeed.Quote) (pricefeed.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == "" {
		q.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	q.CreatedAt = now
	if q.CollectedAt.IsZero() {
		q.CollectedAt = now
	}

	s.quotes[q.FeedID] = append(s.quotes[q.FeedID], q)
	return q, nil
}

func (s *Store) LatestQuote(_ context.Context, feedID string) (pricefeed.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := s.quotes[feedID]
	if len(quotes) == 0 {
		return pricefeed.Quote{}, fmt.Errorf("no quotes for feed %s", feedID)
	}
	latest := quotes[0]
	for _, q := range quotes[1:] {
		if q.CollectedAt.After(latest.CollectedAt) {
			latest = q
		}
	}
	return latest, nil
}

func (s *Store) ListQuotes(_ context.Context, feedID string, limit int) ([]pricefeed.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]pricefeed.Quote, len(s.quotes[feedID]))
	copy(quotes, s.quotes[feedID])
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].CollectedAt.After(quotes[j].CollectedAt) })
	if limit > 0 && len(quotes) > limit {
		quotes = quotes[:limit]
	}
	return quotes, nil
}

// WalletStore implementation --------------------------------------------------

func (s *Store) CreateWallet(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	s.wallets[w.ID] = w
	return w, nil
}

func (s *Store) UpdateWallet(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.wallets[w.ID]
	if !ok {
		return wallet.Wallet{}, fmt.Errorf("wallet %s %w", w.ID, storage.ErrNotFound)
	}

	w.AccountID = original.AccountID
	w.CreatedAt = original.CreatedAt
	w.UpdatedAt = time.Now().UTC()

	s.wallets[w.ID] = w
	return w, nil
}

func (s *Store) GetWallet(_ context.Context, id string) (wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return wallet.Wallet{}, fmt.Errorf("wallet %s %w", id, storage.ErrNotFound)
	}
	return w, nil
}

func (s *Store) ListWallets(_ context.Context, accountID string) ([]wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []wallet.Wallet
	for _, w := range s.wallets {
		if accountID == "" || w.AccountID == accountID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteWallet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[id]; !ok {
		return fmt.Errorf("wallet %s %w", id, storage.ErrNotFound)
	}
	delete(s.wallets, id)
	return nil
}

// helpers ----------------------------------------------------------------------

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTrade(t trade.Trade) trade.Trade {
	t.Tags = cloneStrings(t.Tags)
	return t
}
