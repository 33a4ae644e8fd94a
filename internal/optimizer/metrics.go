package optimizer

import (
	"math"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// maxProfitFactor caps the profit factor when a sample has no losing trades,
// keeping every metric finite.
const maxProfitFactor = 999.0

// MetricsPack is the per-window performance summary of one candidate. Ratio
// fields are nil when the underlying trade sample is empty; they are never
// NaN or infinite.
type MetricsPack struct {
	TradeCount   int      `json:"tradeCount"`
	WinRate      *float64 `json:"winRate"`
	Expectancy   *float64 `json:"expectancy"`
	ProfitFactor *float64 `json:"profitFactor"`
	NetR         *float64 `json:"netR"`
	MaxDrawdown  *float64 `json:"maxDrawdown"`
	AvgWinR      *float64 `json:"avgWinR"`
	AvgLossR     *float64 `json:"avgLossR"`
	PayoffRatio  *float64 `json:"payoffRatio"`
	EdgeMargin   *float64 `json:"edgeMargin"`
}

func fptr(v float64) *float64 { return &v }

// finite replaces NaN/Inf with a nil pointer so degenerate arithmetic can
// never leak out of the pack.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// BuildMetricsPack derives the full pack from a trade summary plus the
// resolved trades (needed for netR and drawdown). An empty sample yields
// TradeCount 0 and all ratios nil.
func BuildMetricsPack(summary types.TradeSummary, trades []types.Trade) MetricsPack {
	pack := MetricsPack{TradeCount: summary.Closed}
	if summary.Closed == 0 {
		return pack
	}

	netR := 0.0
	for _, t := range trades {
		if t.Closed {
			netR += t.RMultiple
		}
	}

	pack.WinRate = finite(summary.WinRate)
	pack.Expectancy = finite(summary.Expectancy)
	pack.ProfitFactor = finite(math.Min(summary.ProfitFactor, maxProfitFactor))
	pack.NetR = finite(netR)
	pack.MaxDrawdown = fptr(maxDrawdownR(trades))
	pack.AvgWinR = finite(summary.AvgWinR)
	pack.AvgLossR = finite(summary.AvgLossR)

	if summary.AvgLossR != 0 {
		payoff := summary.AvgWinR / math.Abs(summary.AvgLossR)
		pack.PayoffRatio = finite(payoff)
		if pack.PayoffRatio != nil {
			breakEven := 1.0 / (1.0 + payoff)
			pack.EdgeMargin = finite(summary.WinRate - breakEven)
		}
	}

	return pack
}

// maxDrawdownR computes the worst peak-to-trough decline of the cumulative R
// curve over closed trades, in R units.
func maxDrawdownR(trades []types.Trade) float64 {
	equity := 0.0
	peak := 0.0
	worst := 0.0
	for _, t := range trades {
		if !t.Closed {
			continue
		}
		equity += t.RMultiple
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > worst {
			worst = dd
		}
	}
	return worst
}

// FoldAccumulator aggregates trade outcomes across walk-forward folds by
// summing raw wins, losses and R rather than averaging per-fold averages,
// which would weight small folds the same as large ones.
type FoldAccumulator struct {
	wins     int
	losses   int
	sumWinR  float64
	sumLossR float64 // negative
	netR     float64
	worstDD  float64
	folds    int
}

// Add folds one window's trades into the aggregate.
func (a *FoldAccumulator) Add(pack MetricsPack, trades []types.Trade) {
	a.folds++
	for _, t := range trades {
		if !t.Closed {
			continue
		}
		a.netR += t.RMultiple
		if t.RMultiple > 0 {
			a.wins++
			a.sumWinR += t.RMultiple
		} else {
			a.losses++
			a.sumLossR += t.RMultiple
		}
	}
	if pack.MaxDrawdown != nil && *pack.MaxDrawdown > a.worstDD {
		a.worstDD = *pack.MaxDrawdown
	}
}

// Folds returns how many windows were folded in.
func (a *FoldAccumulator) Folds() int { return a.folds }

// Pack materializes the aggregate MetricsPack.
func (a *FoldAccumulator) Pack() MetricsPack {
	closed := a.wins + a.losses
	pack := MetricsPack{TradeCount: closed}
	if closed == 0 {
		return pack
	}

	winRate := float64(a.wins) / float64(closed)
	pack.WinRate = fptr(winRate)
	pack.Expectancy = fptr(a.netR / float64(closed))
	pack.NetR = fptr(a.netR)
	pack.MaxDrawdown = fptr(a.worstDD)

	if a.wins > 0 {
		pack.AvgWinR = fptr(a.sumWinR / float64(a.wins))
	}
	if a.losses > 0 {
		pack.AvgLossR = fptr(a.sumLossR / float64(a.losses))
	}

	grossLoss := math.Abs(a.sumLossR)
	if grossLoss > 0 {
		pack.ProfitFactor = fptr(math.Min(a.sumWinR/grossLoss, maxProfitFactor))
	} else if a.sumWinR > 0 {
		pack.ProfitFactor = fptr(maxProfitFactor)
	}

	if pack.AvgWinR != nil && pack.AvgLossR != nil && *pack.AvgLossR != 0 {
		payoff := *pack.AvgWinR / math.Abs(*pack.AvgLossR)
		pack.PayoffRatio = finite(payoff)
		if pack.PayoffRatio != nil {
			pack.EdgeMargin = finite(winRate - 1.0/(1.0+payoff))
		}
	}

	return pack
}
