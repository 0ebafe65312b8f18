package trades

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/app/storage/memory"
)

type capturedEvent struct {
	AccountID string
	Event     string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *recordingPublisher) Publish(accountID, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{AccountID: accountID, Event: event})
}

func sampleTrade() trade.Trade {
	closed := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	return trade.Trade{
		AccountID:  "acct-1",
		Symbol:     "btc/usdt",
		Side:       trade.SideLong,
		Quantity:   decimal.NewFromInt(2),
		EntryPrice: decimal.NewFromInt(100),
		ExitPrice:  decimal.NewFromInt(130),
		Fees:       decimal.NewFromInt(10),
		OpenedAt:   closed.Add(-2 * time.Hour),
		ClosedAt:   closed,
	}
}

func TestCreateDerivesPnL(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(memory.New(), pub, nil)

	created, err := svc.Create(context.Background(), sampleTrade())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Symbol != "BTC/USDT" {
		t.Fatalf("expected symbol to be normalized, got %s", created.Symbol)
	}
	// (130-100)*2 - 10
	if !created.PnL.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected pnl 50, got %s", created.PnL)
	}
	if created.Source != trade.SourceManual {
		t.Fatalf("expected manual source, got %s", created.Source)
	}
	if len(pub.events) != 1 || pub.events[0].Event != "trade.created" {
		t.Fatalf("expected one trade.created event, got %+v", pub.events)
	}
}

func TestShortSidePnL(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	tr := sampleTrade()
	tr.Side = trade.SideShort
	created, err := svc.Create(context.Background(), tr)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// -(130-100)*2 - 10
	if !created.PnL.Equal(decimal.NewFromInt(-70)) {
		t.Fatalf("expected pnl -70, got %s", created.PnL)
	}
}

func TestCreateImportedDeduplicates(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	tr := sampleTrade()
	tr.ConnectionID = "conn-1"
	tr.ExternalID = "fill-42"

	first, imported, err := svc.CreateImported(ctx, tr)
	if err != nil {
		t.Fatalf("create imported: %v", err)
	}
	if !imported {
		t.Fatal("expected first import to be fresh")
	}
	if first.Source != trade.SourceSync {
		t.Fatalf("expected sync source, got %s", first.Source)
	}

	second, imported, err := svc.CreateImported(ctx, tr)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if imported {
		t.Fatal("expected duplicate import to be skipped")
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing trade %s, got %s", first.ID, second.ID)
	}

	list, err := svc.List(ctx, storage.TradeFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(list))
	}
}

func TestUpdateRecomputesPnL(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleTrade())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	exit := decimal.NewFromInt(150)
	updated, err := svc.Update(ctx, created.ID, UpdateParams{ExitPrice: &exit})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// (150-100)*2 - 10
	if !updated.PnL.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected pnl 90, got %s", updated.PnL)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	tr := sampleTrade()
	tr.Quantity = decimal.Zero
	if _, err := svc.Create(ctx, tr); err == nil {
		t.Fatal("expected zero quantity to be rejected")
	}

	tr = sampleTrade()
	tr.ClosedAt = tr.OpenedAt.Add(-time.Minute)
	if _, err := svc.Create(ctx, tr); err == nil {
		t.Fatal("expected closed_at before opened_at to be rejected")
	}

	tr = sampleTrade()
	tr.Side = "sideways"
	if _, err := svc.Create(ctx, tr); err == nil {
		t.Fatal("expected unknown side to be rejected")
	}
}

// flakyTradeStore fails dedupe lookups on demand to mimic a transient store
// outage during sync.
type flakyTradeStore struct {
	storage.TradeStore
	failLookup bool
}

func (f *flakyTradeStore) GetTradeByExternalID(ctx context.Context, connectionID, externalID string) (trade.Trade, error) {
	if f.failLookup {
		return trade.Trade{}, errors.New("connection reset by peer")
	}
	return f.TradeStore.GetTradeByExternalID(ctx, connectionID, externalID)
}

func TestCreateImportedLookupFailureDoesNotDuplicate(t *testing.T) {
	store := &flakyTradeStore{TradeStore: memory.New()}
	svc := New(store, nil, nil)
	ctx := context.Background()

	tr := sampleTrade()
	tr.ConnectionID = "conn-1"
	tr.ExternalID = "fill-42"

	if _, _, err := svc.CreateImported(ctx, tr); err != nil {
		t.Fatalf("create imported: %v", err)
	}

	store.failLookup = true
	if _, _, err := svc.CreateImported(ctx, tr); err == nil {
		t.Fatal("expected lookup failure to surface, not insert")
	}
	store.failLookup = false

	list, err := svc.List(ctx, storage.TradeFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 trade after failed lookup, got %d", len(list))
	}
}
