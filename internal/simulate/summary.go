package simulate

import (
	"math"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// Summarize aggregates resolved trades into the flat summary consumed by the
// metrics layer. Ratio fields are zero when no trades closed; profit factor
// is +Inf only in the all-wins case and is capped downstream.
func Summarize(trades []types.Trade) types.TradeSummary {
	s := types.TradeSummary{Total: len(trades)}

	sumWinR := 0.0
	sumLossR := 0.0
	netR := 0.0
	for _, t := range trades {
		if !t.Closed {
			continue
		}
		s.Closed++
		netR += t.RMultiple
		if t.RMultiple > 0 {
			s.Wins++
			sumWinR += t.RMultiple
		} else {
			s.Losses++
			sumLossR += t.RMultiple
		}
	}

	if s.Closed == 0 {
		return s
	}

	s.WinRate = float64(s.Wins) / float64(s.Closed)
	s.Expectancy = netR / float64(s.Closed)
	if s.Wins > 0 {
		s.AvgWinR = sumWinR / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossR = sumLossR / float64(s.Losses)
	}

	grossLoss := math.Abs(sumLossR)
	switch {
	case grossLoss > 0:
		s.ProfitFactor = sumWinR / grossLoss
	case sumWinR > 0:
		s.ProfitFactor = math.Inf(1)
	}

	return s
}
