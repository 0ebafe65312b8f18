package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

// Service computes performance statistics over closed trades.
type Service struct {
	store storage.TradeStore
	log   *logger.Logger
}

// New constructs an analytics service.
func New(store storage.TradeStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("analytics")
	}
	return &Service{store: store, log: log}
}

// Summary aggregates headline statistics for a set of trades.
type Summary struct {
	TradeCount      int             `json:"trade_count"`
	WinCount        int             `json:"win_count"`
	LossCount       int             `json:"loss_count"`
	WinRate         decimal.Decimal `json:"win_rate"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLDisplay string          `json:"total_pnl_display"`
	AverageWin      decimal.Decimal `json:"average_win"`
	AverageLoss     decimal.Decimal `json:"average_loss"`
	ProfitFactor    decimal.Decimal `json:"profit_factor"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	BestTradePnL    decimal.Decimal `json:"best_trade_pnl"`
	WorstTradePnL   decimal.Decimal `json:"worst_trade_pnl"`
	TotalFees       decimal.Decimal `json:"total_fees"`
}

// EquityPoint is one step of the cumulative P&L curve.
type EquityPoint struct {
	TradeID  string          `json:"trade_id"`
	ClosedAt time.Time       `json:"closed_at"`
	PnL      decimal.Decimal `json:"pnl"`
	Equity   decimal.Decimal `json:"equity"`
}

// CalendarDay buckets realized P&L by close date.
type CalendarDay struct {
	Day        string          `json:"day"`
	TradeCount int             `json:"trade_count"`
	PnL        decimal.Decimal `json:"pnl"`
}

// SymbolStats aggregates per-symbol performance.
type SymbolStats struct {
	Symbol     string          `json:"symbol"`
	TradeCount int             `json:"trade_count"`
	WinCount   int             `json:"win_count"`
	PnL        decimal.Decimal `json:"pnl"`
}

func (s *Service) trades(ctx context.Context, filter storage.TradeFilter) ([]trade.Trade, error) {
	list, err := s.store.ListTrades(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ClosedAt.Before(list[j].ClosedAt) })
	return list, nil
}

// Summarize computes the headline statistics for trades matching the filter.
func (s *Service) Summarize(ctx context.Context, filter storage.TradeFilter) (Summary, error) {
	list, err := s.trades(ctx, filter)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{TradeCount: len(list)}
	if len(list) == 0 {
		summary.TotalPnLDisplay = display(decimal.Zero, "USD")
		return summary, nil
	}

	var grossProfit, grossLoss decimal.Decimal
	equity := decimal.Zero
	peak := decimal.Zero
	maxDrawdown := decimal.Zero
	best := list[0].PnL
	worst := list[0].PnL
	currency := list[0].Currency

	for _, t := range list {
		summary.TotalPnL = summary.TotalPnL.Add(t.PnL)
		summary.TotalFees = summary.TotalFees.Add(t.Fees)

		if t.PnL.IsPositive() {
			summary.WinCount++
			grossProfit = grossProfit.Add(t.PnL)
		} else if t.PnL.IsNegative() {
			summary.LossCount++
			grossLoss = grossLoss.Add(t.PnL.Abs())
		}

		if t.PnL.GreaterThan(best) {
			best = t.PnL
		}
		if t.PnL.LessThan(worst) {
			worst = t.PnL
		}

		// Drawdown is measured from the running equity peak.
		equity = equity.Add(t.PnL)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(maxDrawdown) {
			maxDrawdown = dd
		}
	}

	summary.BestTradePnL = best
	summary.WorstTradePnL = worst
	summary.MaxDrawdown = maxDrawdown
	summary.WinRate = decimal.NewFromInt(int64(summary.WinCount)).
		Div(decimal.NewFromInt(int64(len(list)))).Round(4)
	if summary.WinCount > 0 {
		summary.AverageWin = grossProfit.Div(decimal.NewFromInt(int64(summary.WinCount))).Round(8)
	}
	if summary.LossCount > 0 {
		summary.AverageLoss = grossLoss.Div(decimal.NewFromInt(int64(summary.LossCount))).Round(8).Neg()
	}
	if grossLoss.IsPositive() {
		summary.ProfitFactor = grossProfit.Div(grossLoss).Round(4)
	}
	summary.TotalPnLDisplay = display(summary.TotalPnL, currency)

	return summary, nil
}

// EquityCurve returns cumulative P&L after each closed trade, oldest first.
func (s *Service) EquityCurve(ctx context.Context, filter storage.TradeFilter) ([]EquityPoint, error) {
	list, err := s.trades(ctx, filter)
	if err != nil {
		return nil, err
	}

	points := make([]EquityPoint, 0, len(list))
	equity := decimal.Zero
	for _, t := range list {
		equity = equity.Add(t.PnL)
		points = append(points, EquityPoint{
			TradeID:  t.ID,
			ClosedAt: t.ClosedAt,
			PnL:      t.PnL,
			Equity:   equity,
		})
	}
	return points, nil
}

// Calendar buckets trades by UTC close date.
func (s *Service) Calendar(ctx context.Context, filter storage.TradeFilter) ([]CalendarDay, error) {
	list, err := s.trades(ctx, filter)
	if err != nil {
		return nil, err
	}

	byDay := map[string]*CalendarDay{}
	for _, t := range list {
		day := t.ClosedAt.UTC().Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &CalendarDay{Day: day}
			byDay[day] = bucket
		}
		bucket.TradeCount++
		bucket.PnL = bucket.PnL.Add(t.PnL)
	}

	days := make([]CalendarDay, 0, len(byDay))
	for _, bucket := range byDay {
		days = append(days, *bucket)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// SymbolBreakdown aggregates performance per traded symbol, best first.
func (s *Service) SymbolBreakdown(ctx context.Context, filter storage.TradeFilter) ([]SymbolStats, error) {
	list, err := s.trades(ctx, filter)
	if err != nil {
		return nil, err
	}

	bySymbol := map[string]*SymbolStats{}
	for _, t := range list {
		symbol := strings.ToUpper(t.Symbol)
		stats, ok := bySymbol[symbol]
		if !ok {
			stats = &SymbolStats{Symbol: symbol}
			bySymbol[symbol] = stats
		}
		stats.TradeCount++
		if t.PnL.IsPositive() {
			stats.WinCount++
		}
		stats.PnL = stats.PnL.Add(t.PnL)
	}

	result := make([]SymbolStats, 0, len(bySymbol))
	for _, stats := range bySymbol {
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PnL.GreaterThan(result[j].PnL) })
	return result, nil
}

// display renders an amount in its currency's conventional format.
func display(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if money.GetCurrency(currency) == nil {
		currency = "USD"
	}
	minor := amount.Shift(int32(money.GetCurrency(currency).Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
