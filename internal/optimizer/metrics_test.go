package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

func closedTrade(r float64) types.Trade {
	return types.Trade{Closed: true, RMultiple: r}
}

func TestBuildMetricsPack_EmptySample(t *testing.T) {
	pack := BuildMetricsPack(types.TradeSummary{}, nil)

	assert.Equal(t, 0, pack.TradeCount)
	assert.Nil(t, pack.WinRate)
	assert.Nil(t, pack.Expectancy)
	assert.Nil(t, pack.ProfitFactor)
	assert.Nil(t, pack.NetR)
	assert.Nil(t, pack.MaxDrawdown)
	assert.Nil(t, pack.EdgeMargin)
}

func TestBuildMetricsPack_EdgeMargin(t *testing.T) {
	// winRate 0.55, avgWin 1.2R, avgLoss -1R: payoff 1.2, break-even
	// 1/(1+1.2) = 0.4545..., edge margin ~ 0.0955.
	summary := types.TradeSummary{
		Closed:   20,
		WinRate:  0.55,
		AvgWinR:  1.2,
		AvgLossR: -1.0,
	}
	trades := []types.Trade{closedTrade(1.2), closedTrade(-1)}

	pack := BuildMetricsPack(summary, trades)
	require.NotNil(t, pack.PayoffRatio)
	require.NotNil(t, pack.EdgeMargin)
	assert.InDelta(t, 1.2, *pack.PayoffRatio, 1e-9)
	assert.InDelta(t, 0.0954545, *pack.EdgeMargin, 1e-6)
}

func TestBuildMetricsPack_ProfitFactorCapped(t *testing.T) {
	summary := types.TradeSummary{
		Closed:       5,
		WinRate:      1,
		ProfitFactor: 1e18,
		AvgWinR:      2,
	}
	trades := []types.Trade{closedTrade(2)}

	pack := BuildMetricsPack(summary, trades)
	require.NotNil(t, pack.ProfitFactor)
	assert.Equal(t, maxProfitFactor, *pack.ProfitFactor)
}

func TestBuildMetricsPack_NetRAndDrawdown(t *testing.T) {
	trades := []types.Trade{
		closedTrade(2),
		closedTrade(-1),
		closedTrade(-1),
		closedTrade(3),
		{Closed: false, RMultiple: 99}, // open trades never count
	}
	summary := types.TradeSummary{Closed: 4, WinRate: 0.5}

	pack := BuildMetricsPack(summary, trades)
	require.NotNil(t, pack.NetR)
	require.NotNil(t, pack.MaxDrawdown)
	assert.InDelta(t, 3.0, *pack.NetR, 1e-9)
	// Peak 2 after the first win, trough 0 after two losses.
	assert.InDelta(t, 2.0, *pack.MaxDrawdown, 1e-9)
}

func TestFoldAccumulator_SumsRawOutcomes(t *testing.T) {
	var acc FoldAccumulator

	// Fold 1: 1 win of 2R, 1 loss of -1R.
	f1 := []types.Trade{closedTrade(2), closedTrade(-1)}
	acc.Add(BuildMetricsPack(types.TradeSummary{Closed: 2}, f1), f1)

	// Fold 2: 3 losses. Averaging per-fold win rates would give 0.25 here;
	// the raw aggregate gives 1/5.
	f2 := []types.Trade{closedTrade(-1), closedTrade(-1), closedTrade(-1)}
	acc.Add(BuildMetricsPack(types.TradeSummary{Closed: 3}, f2), f2)

	assert.Equal(t, 2, acc.Folds())

	pack := acc.Pack()
	assert.Equal(t, 5, pack.TradeCount)
	require.NotNil(t, pack.WinRate)
	assert.InDelta(t, 0.2, *pack.WinRate, 1e-9)
	require.NotNil(t, pack.NetR)
	assert.InDelta(t, -2.0, *pack.NetR, 1e-9)
	require.NotNil(t, pack.Expectancy)
	assert.InDelta(t, -0.4, *pack.Expectancy, 1e-9)
	require.NotNil(t, pack.ProfitFactor)
	assert.InDelta(t, 0.5, *pack.ProfitFactor, 1e-9)
}

func TestFoldAccumulator_EmptyYieldsNilRatios(t *testing.T) {
	var acc FoldAccumulator
	pack := acc.Pack()

	assert.Equal(t, 0, pack.TradeCount)
	assert.Nil(t, pack.WinRate)
	assert.Nil(t, pack.ProfitFactor)
}

func TestFoldAccumulator_AllWinsCapsProfitFactor(t *testing.T) {
	var acc FoldAccumulator
	trades := []types.Trade{closedTrade(1), closedTrade(2)}
	acc.Add(BuildMetricsPack(types.TradeSummary{Closed: 2}, trades), trades)

	pack := acc.Pack()
	require.NotNil(t, pack.ProfitFactor)
	assert.Equal(t, maxProfitFactor, *pack.ProfitFactor)
	assert.Nil(t, pack.AvgLossR)
}

func TestFinite_RejectsNaNAndInf(t *testing.T) {
	assert.Nil(t, finite(math.NaN()))
	assert.Nil(t, finite(math.Inf(1)))
	assert.Nil(t, finite(math.Inf(-1)))
	require.NotNil(t, finite(1.5))
	assert.Equal(t, 1.5, *finite(1.5))
}
