package trades

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

// EventPublisher receives trade change notifications. The realtime hub
// implements it; a nil publisher disables notifications.
type EventPublisher interface {
	Publish(accountID, event string, payload interface{})
}

// Service manages journal trades.
type Service struct {
	store  storage.TradeStore
	events EventPublisher
	log    *logger.Logger
}

// New constructs a trades service.
func New(store storage.TradeStore, events EventPublisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("trades")
	}
	return &Service{
		store:  store,
		events: events,
		log:    log,
	}
}

func validate(t trade.Trade) error {
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if t.Side != trade.SideLong && t.Side != trade.SideShort {
		return fmt.Errorf("side must be long or short")
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if t.EntryPrice.IsNegative() || t.ExitPrice.IsNegative() {
		return fmt.Errorf("prices cannot be negative")
	}
	if t.Fees.IsNegative() {
		return fmt.Errorf("fees cannot be negative")
	}
	if t.OpenedAt.IsZero() || t.ClosedAt.IsZero() {
		return fmt.Errorf("opened_at and closed_at are required")
	}
	if t.ClosedAt.Before(t.OpenedAt) {
		return fmt.Errorf("closed_at cannot precede opened_at")
	}
	return nil
}

// derivePnL fills in realized P&L when the caller did not supply one.
func derivePnL(t trade.Trade) trade.Trade {
	if t.PnL.IsZero() && !t.EntryPrice.IsZero() && !t.ExitPrice.IsZero() {
		t.PnL = t.GrossPnL().Sub(t.Fees)
	}
	return t
}

// Create records a manually entered trade.
func (s *Service) Create(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if t.Currency == "" {
		t.Currency = "USD"
	}
	t.Source = trade.SourceManual
	t.ConnectionID = ""
	t.ExternalID = ""

	if err := validate(t); err != nil {
		return trade.Trade{}, err
	}
	t = derivePnL(t)

	created, err := s.store.CreateTrade(ctx, t)
	if err != nil {
		return trade.Trade{}, err
	}
	s.publish(created.AccountID, "trade.created", created)
	return created, nil
}

// CreateImported records a trade pulled from an exchange. Trades already
// imported for the same connection and external ID are returned unchanged
// with imported=false.
func (s *Service) CreateImported(ctx context.Context, t trade.Trade) (trade.Trade, bool, error) {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if t.Currency == "" {
		t.Currency = "USD"
	}
	t.Source = trade.SourceSync

	if strings.TrimSpace(t.ConnectionID) == "" {
		return trade.Trade{}, false, fmt.Errorf("connection_id is required")
	}
	if strings.TrimSpace(t.ExternalID) == "" {
		return trade.Trade{}, false, fmt.Errorf("external_id is required")
	}
	if err := validate(t); err != nil {
		return trade.Trade{}, false, err
	}

	existing, err := s.store.GetTradeByExternalID(ctx, t.ConnectionID, t.ExternalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, sql.ErrNoRows) {
		// A transient lookup failure must not turn into a double import.
		return trade.Trade{}, false, fmt.Errorf("dedupe lookup failed: %w", err)
	}

	t = derivePnL(t)
	created, err := s.store.CreateTrade(ctx, t)
	if err != nil {
		return trade.Trade{}, false, err
	}
	s.publish(created.AccountID, "trade.created", created)
	return created, true, nil
}

// UpdateParams are the mutable trade fields. Nil pointers leave the field
// unchanged.
type UpdateParams struct {
	Symbol     *string
	Side       *trade.Side
	Quantity   *decimal.Decimal
	EntryPrice *decimal.Decimal
	ExitPrice  *decimal.Decimal
	Fees       *decimal.Decimal
	PnL        *decimal.Decimal
	Tags       *[]string
	OpenedAt   *time.Time
	ClosedAt   *time.Time
}

// Update applies params to an existing trade.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (trade.Trade, error) {
	t, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return trade.Trade{}, err
	}

	recompute := false
	if params.Symbol != nil {
		t.Symbol = strings.ToUpper(strings.TrimSpace(*params.Symbol))
	}
	if params.Side != nil {
		t.Side = *params.Side
		recompute = true
	}
	if params.Quantity != nil {
		t.Quantity = *params.Quantity
		recompute = true
	}
	if params.EntryPrice != nil {
		t.EntryPrice = *params.EntryPrice
		recompute = true
	}
	if params.ExitPrice != nil {
		t.ExitPrice = *params.ExitPrice
		recompute = true
	}
	if params.Fees != nil {
		t.Fees = *params.Fees
		recompute = true
	}
	if params.Tags != nil {
		t.Tags = *params.Tags
	}
	if params.OpenedAt != nil {
		t.OpenedAt = *params.OpenedAt
	}
	if params.ClosedAt != nil {
		t.ClosedAt = *params.ClosedAt
	}
	if params.PnL != nil {
		t.PnL = *params.PnL
	} else if recompute {
		t.PnL = t.GrossPnL().Sub(t.Fees)
	}

	if err := validate(t); err != nil {
		return trade.Trade{}, err
	}

	updated, err := s.store.UpdateTrade(ctx, t)
	if err != nil {
		return trade.Trade{}, err
	}
	s.publish(updated.AccountID, "trade.updated", updated)
	return updated, nil
}

// Get returns one trade.
func (s *Service) Get(ctx context.Context, id string) (trade.Trade, error) {
	return s.store.GetTrade(ctx, id)
}

// List returns trades matching the filter, ordered by close time.
func (s *Service) List(ctx context.Context, filter storage.TradeFilter) ([]trade.Trade, error) {
	return s.store.ListTrades(ctx, filter)
}

// Delete removes a trade.
func (s *Service) Delete(ctx context.Context, id string) error {
	t, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTrade(ctx, id); err != nil {
		return err
	}
	s.publish(t.AccountID, "trade.deleted", map[string]string{"id": id})
	return nil
}

func (s *Service) publish(accountID, event string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(accountID, event, payload)
}
