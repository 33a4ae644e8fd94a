package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

func bar(i int, o, h, l, c float64) types.Bar {
	return types.Bar{TimeMs: int64(i) * 60_000, Open: o, High: h, Low: l, Close: c}
}

func longCandidate(entryIndex int, entry, stop, target float64) types.Trade {
	return types.Trade{
		Side:       types.SideLong,
		EntryIndex: entryIndex,
		EntryMs:    int64(entryIndex) * 60_000,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
	}
}

func TestRun_LongTargetHit(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 101, 99, 100),
		bar(1, 100, 101, 99.5, 100.5),
		bar(2, 100.5, 103, 100, 102.5), // target 102 touched here
	}
	c := longCandidate(0, 100, 99, 102)

	trades := Run(bars, []types.Trade{c}, types.ExecutionConfig{})
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.True(t, tr.Closed)
	assert.Equal(t, 102.0, tr.Exit)
	assert.Equal(t, bars[2].TimeMs, tr.ExitMs)
	// Reward 2 points on 1 point of risk.
	assert.InDelta(t, 2.0, tr.RMultiple, 1e-9)
}

func TestRun_LongStopHit(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 101, 99.5, 100),
		bar(1, 100, 100.5, 98.5, 99), // stop 99 touched
	}
	c := longCandidate(0, 100, 99, 102)

	trades := Run(bars, []types.Trade{c}, types.ExecutionConfig{})
	tr := trades[0]
	assert.True(t, tr.Closed)
	assert.Equal(t, 99.0, tr.Exit)
	assert.InDelta(t, -1.0, tr.RMultiple, 1e-9)
}

func TestRun_StopWinsWhenBarTouchesBoth(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 101, 99.5, 100),
		bar(1, 100, 103, 98, 102), // range covers stop and target
	}
	c := longCandidate(0, 100, 99, 102)

	trades := Run(bars, []types.Trade{c}, types.ExecutionConfig{})
	tr := trades[0]
	assert.True(t, tr.Closed)
	assert.Equal(t, 99.0, tr.Exit, "ambiguous bars resolve to the stop")
	assert.InDelta(t, -1.0, tr.RMultiple, 1e-9)
}

func TestRun_CostRReducesBothSides(t *testing.T) {
	exec := types.ExecutionConfig{CostR: 0.1}

	winBars := []types.Bar{
		bar(0, 100, 101, 99.5, 100),
		bar(1, 100, 103, 99.5, 102.5),
	}
	win := Run(winBars, []types.Trade{longCandidate(0, 100, 99, 102)}, exec)[0]
	assert.InDelta(t, 1.9, win.RMultiple, 1e-9)

	lossBars := []types.Bar{
		bar(0, 100, 101, 99.5, 100),
		bar(1, 100, 100.5, 98.5, 99),
	}
	loss := Run(lossBars, []types.Trade{longCandidate(0, 100, 99, 102)}, exec)[0]
	assert.InDelta(t, -1.1, loss.RMultiple, 1e-9)
}

func TestRun_ShortTrade(t *testing.T) {
	short := types.Trade{
		Side:       types.SideShort,
		EntryIndex: 0,
		Entry:      100,
		Stop:       101,
		Target:     98,
	}
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 100.5, 97.5, 98), // target 98 touched
	}

	tr := Run(bars, []types.Trade{short}, types.ExecutionConfig{})[0]
	assert.True(t, tr.Closed)
	assert.Equal(t, 98.0, tr.Exit)
	assert.InDelta(t, 2.0, tr.RMultiple, 1e-9)
}

func TestRun_MarkToMarketAtEndOfData(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 100.8, 99.6, 100.5),
		bar(2, 100.5, 100.9, 100.1, 100.5),
	}
	c := longCandidate(0, 100, 99, 105)

	tr := Run(bars, []types.Trade{c}, types.ExecutionConfig{})[0]
	assert.True(t, tr.Closed)
	assert.Equal(t, 100.5, tr.Exit)
	assert.InDelta(t, 0.5, tr.RMultiple, 1e-9)
}

func TestRun_MalformedCandidateStaysOpen(t *testing.T) {
	bars := []types.Bar{bar(0, 100, 101, 99, 100)}

	zeroRisk := longCandidate(0, 100, 100, 102)
	badIndex := longCandidate(5, 100, 99, 102)

	trades := Run(bars, []types.Trade{zeroRisk, badIndex}, types.ExecutionConfig{})
	for _, tr := range trades {
		assert.False(t, tr.Closed)
		assert.Zero(t, tr.RMultiple)
	}
}

func TestSummarize_Mixed(t *testing.T) {
	trades := []types.Trade{
		{Closed: true, RMultiple: 2},
		{Closed: true, RMultiple: 1},
		{Closed: true, RMultiple: -1},
		{Closed: false},
	}

	s := Summarize(trades)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Closed)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.Expectancy, 1e-9)
	assert.InDelta(t, 1.5, s.AvgWinR, 1e-9)
	assert.InDelta(t, -1.0, s.AvgLossR, 1e-9)
	assert.InDelta(t, 3.0, s.ProfitFactor, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Closed)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
}

func TestSummarize_AllWinsInfiniteProfitFactor(t *testing.T) {
	trades := []types.Trade{
		{Closed: true, RMultiple: 1},
		{Closed: true, RMultiple: 2},
	}
	s := Summarize(trades)
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
}

func TestSummarize_ZeroRCountsAsLoss(t *testing.T) {
	trades := []types.Trade{{Closed: true, RMultiple: 0}}
	s := Summarize(trades)
	assert.Equal(t, 1, s.Losses)
	assert.Zero(t, s.WinRate)
}
