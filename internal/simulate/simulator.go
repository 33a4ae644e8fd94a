// Package simulate resolves raw trade candidates into fills against a candle
// series and summarizes the outcomes. It is a pure function of its inputs,
// which the evaluation cache depends on.
package simulate

import (
	"math"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// Run walks the bar series from each candidate's entry and resolves the first
// touch of stop or target. When a single bar touches both, the stop wins:
// without intrabar data the conservative reading is a loss. Trades still open
// at the final bar are closed at its close. Every realized R multiple is
// reduced by exec.CostR.
func Run(bars []types.Bar, candidates []types.Trade, exec types.ExecutionConfig) []types.Trade {
	out := make([]types.Trade, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, resolve(bars, c, exec))
	}
	return out
}

func resolve(bars []types.Bar, t types.Trade, exec types.ExecutionConfig) types.Trade {
	risk := riskPerUnit(t)
	if risk <= 0 || t.EntryIndex < 0 || t.EntryIndex >= len(bars) {
		// Malformed candidate: no usable risk distance, leave it open with
		// zero R so it drops out of the closed-trade statistics.
		return t
	}

	for i := t.EntryIndex + 1; i < len(bars); i++ {
		bar := bars[i]
		if hitStop(t, bar) {
			t.Exit = t.Stop
			t.ExitMs = bar.TimeMs
			t.Closed = true
			t.RMultiple = -1 - exec.CostR
			return t
		}
		if hitTarget(t, bar) {
			t.Exit = t.Target
			t.ExitMs = bar.TimeMs
			t.Closed = true
			t.RMultiple = rewardR(t, risk) - exec.CostR
			return t
		}
	}

	// Ran out of data: mark-to-market at the last close.
	last := bars[len(bars)-1]
	t.Exit = last.Close
	t.ExitMs = last.TimeMs
	t.Closed = true
	t.RMultiple = markToMarketR(t, risk) - exec.CostR
	return t
}

func riskPerUnit(t types.Trade) float64 {
	return math.Abs(t.Entry - t.Stop)
}

func hitStop(t types.Trade, bar types.Bar) bool {
	if t.Side == types.SideShort {
		return bar.High >= t.Stop
	}
	return bar.Low <= t.Stop
}

func hitTarget(t types.Trade, bar types.Bar) bool {
	if t.Side == types.SideShort {
		return bar.Low <= t.Target
	}
	return bar.High >= t.Target
}

func rewardR(t types.Trade, risk float64) float64 {
	if t.Side == types.SideShort {
		return (t.Entry - t.Target) / risk
	}
	return (t.Target - t.Entry) / risk
}

func markToMarketR(t types.Trade, risk float64) float64 {
	if t.Side == types.SideShort {
		return (t.Entry - t.Exit) / risk
	}
	return (t.Exit - t.Entry) / risk
}
