package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/app/storage/memory"
)

func seedTrades(t *testing.T, store *memory.Store, pnls ...int64) {
	t.Helper()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i, pnl := range pnls {
		_, err := store.CreateTrade(context.Background(), trade.Trade{
			AccountID:  "acct-1",
			Symbol:     "BTC/USDT",
			Side:       trade.SideLong,
			Quantity:   decimal.NewFromInt(1),
			EntryPrice: decimal.NewFromInt(100),
			ExitPrice:  decimal.NewFromInt(100 + pnl),
			PnL:        decimal.NewFromInt(pnl),
			Currency:   "USD",
			Source:     trade.SourceManual,
			OpenedAt:   base.Add(time.Duration(i) * time.Hour),
			ClosedAt:   base.Add(time.Duration(i)*time.Hour + 30*time.Minute),
		})
		if err != nil {
			t.Fatalf("seed trade: %v", err)
		}
	}
}

func TestEquityCurveEndsAtNetPnL(t *testing.T) {
	store := memory.New()
	seedTrades(t, store, 100, -40)
	svc := New(store, nil)

	points, err := svc.EquityCurve(context.Background(), storage.TradeFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("equity curve: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if !points[0].Equity.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected first equity 100, got %s", points[0].Equity)
	}
	if !points[1].Equity.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected final equity 60, got %s", points[1].Equity)
	}
}

func TestSummarize(t *testing.T) {
	store := memory.New()
	seedTrades(t, store, 100, -40, 20, -10)
	svc := New(store, nil)

	summary, err := svc.Summarize(context.Background(), storage.TradeFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if summary.TradeCount != 4 {
		t.Fatalf("expected 4 trades, got %d", summary.TradeCount)
	}
	if summary.WinCount != 2 || summary.LossCount != 2 {
		t.Fatalf("expected 2 wins and 2 losses, got %d/%d", summary.WinCount, summary.LossCount)
	}
	if !summary.TotalPnL.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected total pnl 70, got %s", summary.TotalPnL)
	}
	if !summary.WinRate.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected win rate 0.5, got %s", summary.WinRate)
	}
	// Equity path: 100, 60, 80, 70. Peak 100, trough 60.
	if !summary.MaxDrawdown.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected max drawdown 40, got %s", summary.MaxDrawdown)
	}
	if !summary.AverageWin.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected average win 60, got %s", summary.AverageWin)
	}
	if !summary.AverageLoss.Equal(decimal.NewFromInt(-25)) {
		t.Fatalf("expected average loss -25, got %s", summary.AverageLoss)
	}
	// 120 gross profit / 50 gross loss.
	if !summary.ProfitFactor.Equal(decimal.RequireFromString("2.4")) {
		t.Fatalf("expected profit factor 2.4, got %s", summary.ProfitFactor)
	}
	if !summary.BestTradePnL.Equal(decimal.NewFromInt(100)) || !summary.WorstTradePnL.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("unexpected best/worst: %s/%s", summary.BestTradePnL, summary.WorstTradePnL)
	}
	if summary.TotalPnLDisplay != "$70.00" {
		t.Fatalf("expected $70.00, got %s", summary.TotalPnLDisplay)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	svc := New(memory.New(), nil)

	summary, err := svc.Summarize(context.Background(), storage.TradeFilter{AccountID: "nobody"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TradeCount != 0 || !summary.TotalPnL.IsZero() {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
	if !summary.WinRate.IsZero() {
		t.Fatalf("expected zero win rate, got %s", summary.WinRate)
	}
}

func TestCalendar(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	day1 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		closed time.Time
		pnl    int64
	}{{day1, 50}, {day1, -20}, {day2, 10}} {
		_, err := store.CreateTrade(ctx, trade.Trade{
			AccountID:  "acct-1",
			Symbol:     "ETH/USDT",
			Side:       trade.SideLong,
			Quantity:   decimal.NewFromInt(1),
			EntryPrice: decimal.NewFromInt(10),
			ExitPrice:  decimal.NewFromInt(10),
			PnL:        decimal.NewFromInt(tc.pnl),
			Source:     trade.SourceManual,
			OpenedAt:   tc.closed.Add(-time.Hour),
			ClosedAt:   tc.closed,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := New(store, nil)
	days, err := svc.Calendar(ctx, storage.TradeFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Day != "2026-02-01" || days[0].TradeCount != 2 || !days[0].PnL.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected first day: %+v", days[0])
	}
	if days[1].Day != "2026-02-02" || !days[1].PnL.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected second day: %+v", days[1])
	}
}

func TestSymbolBreakdown(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, tc := range []struct {
		symbol string
		pnl    int64
	}{{"BTC/USDT", 100}, {"ETH/USDT", -30}, {"BTC/USDT", -40}} {
		_, err := store.CreateTrade(ctx, trade.Trade{
			AccountID:  "acct-1",
			Symbol:     tc.symbol,
			Side:       trade.SideLong,
			Quantity:   decimal.NewFromInt(1),
			EntryPrice: decimal.NewFromInt(10),
			ExitPrice:  decimal.NewFromInt(10),
			PnL:        decimal.NewFromInt(tc.pnl),
			Source:     trade.SourceManual,
			OpenedAt:   base.Add(time.Duration(i) * time.Hour),
			ClosedAt:   base.Add(time.Duration(i)*time.Hour + time.Minute),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := New(store, nil)
	stats, err := svc.SymbolBreakdown(ctx, storage.TradeFilter{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(stats))
	}
	if stats[0].Symbol != "BTC/USDT" || !stats[0].PnL.Equal(decimal.NewFromInt(60)) || stats[0].WinCount != 1 {
		t.Fatalf("unexpected leader: %+v", stats[0])
	}
}
