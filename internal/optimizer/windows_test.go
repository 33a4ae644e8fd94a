package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// hourlyBars builds n strictly increasing hourly bars starting at startMs.
func hourlyBars(n int, startMs int64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			TimeMs: startMs + int64(i)*3600_000,
			Open:   100, High: 101, Low: 99, Close: 100,
		}
	}
	return bars
}

func TestSplitBars_PercentSeventy(t *testing.T) {
	bars := hourlyBars(100, 0)

	train, test, err := SplitBars(bars, SplitPercent, 70, 0)
	require.NoError(t, err)

	// floor(99 * 0.70) = 69, train covers indices [0,69].
	assert.Len(t, train, 70)
	assert.Len(t, test, 30)
	assert.Equal(t, train[len(train)-1].TimeMs+3600_000, test[0].TimeMs)
}

func TestSplitBars_InvalidPercentDefaults(t *testing.T) {
	bars := hourlyBars(100, 0)

	train, _, err := SplitBars(bars, SplitPercent, 0, 0)
	require.NoError(t, err)
	assert.Len(t, train, 70)

	train, _, err = SplitBars(bars, SplitPercent, 150, 0)
	require.NoError(t, err)
	assert.Len(t, train, 70)
}

func TestSplitBars_ClampKeepsBothSidesNonEmpty(t *testing.T) {
	bars := hourlyBars(3, 0)

	train, test, err := SplitBars(bars, SplitPercent, 99, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, train)
	assert.NotEmpty(t, test)

	train, test, err = SplitBars(bars, SplitPercent, 1, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, train)
	assert.NotEmpty(t, test)
}

func TestSplitBars_TooFewBars(t *testing.T) {
	_, _, err := SplitBars(hourlyBars(2, 0), SplitPercent, 70, 0)
	assert.Error(t, err)
}

func TestSplitBars_LastDays(t *testing.T) {
	// 10 days of hourly bars; hold out the last 2 days.
	bars := hourlyBars(240, 0)

	train, test, err := SplitBars(bars, SplitLastDays, 70, 2)
	require.NoError(t, err)

	cutoff := bars[len(bars)-1].TimeMs - 2*dayMs
	for _, b := range test {
		assert.GreaterOrEqual(t, b.TimeMs, cutoff)
	}
	assert.Less(t, train[len(train)-1].TimeMs, cutoff)
}

func TestSplitBars_LastDaysLongerThanRangeFallsBack(t *testing.T) {
	bars := hourlyBars(100, 0)

	// Every bar is inside the last-days window, so the percent formula
	// applies (the clamp keeps the train side non-empty either way).
	train, test, err := SplitBars(bars, SplitLastDays, 70, 365)
	require.NoError(t, err)
	assert.NotEmpty(t, train)
	assert.NotEmpty(t, test)
}

func TestBuildFolds_ChronologicalAndDisjoint(t *testing.T) {
	// 30 days of hourly bars with 10d train, 5d test, 5d step.
	bars := hourlyBars(30*24, 0)

	folds := BuildFolds(bars, 10, 5, 5)
	require.GreaterOrEqual(t, len(folds), 2)

	for i, f := range folds {
		assert.Equal(t, f.TrainEndMs, f.TestStartMs, "fold %d windows must abut", i)
		assert.GreaterOrEqual(t, len(f.TrainBars), minTrainBars)
		assert.GreaterOrEqual(t, len(f.TestBars), minTestBars)

		// Test bars start where train bars end.
		lastTrain := f.TrainBars[len(f.TrainBars)-1].TimeMs
		assert.Greater(t, f.TestBars[0].TimeMs, lastTrain, "fold %d overlaps", i)

		if i > 0 {
			assert.Greater(t, f.TrainStartMs, folds[i-1].TrainStartMs)
		}
	}
}

func TestBuildFolds_StepDefaultsToTestDays(t *testing.T) {
	bars := hourlyBars(30*24, 0)

	explicit := BuildFolds(bars, 10, 5, 5)
	defaulted := BuildFolds(bars, 10, 5, 0)
	assert.Equal(t, len(explicit), len(defaulted))
}

func TestBuildFolds_InsufficientRange(t *testing.T) {
	bars := hourlyBars(5*24, 0)
	folds := BuildFolds(bars, 10, 5, 5)
	assert.Empty(t, folds)
}

func TestBuildFolds_IterationGuard(t *testing.T) {
	// A huge range with a tiny step would iterate far past the guard; the
	// fold count must stay bounded.
	bars := hourlyBars(400*24, 0)
	folds := BuildFolds(bars, 10, 5, 1)
	assert.LessOrEqual(t, len(folds), maxFoldIterations)
}

func TestBuildFolds_InvalidInputs(t *testing.T) {
	bars := hourlyBars(100, 0)
	assert.Nil(t, BuildFolds(nil, 10, 5, 5))
	assert.Nil(t, BuildFolds(bars, 0, 5, 5))
	assert.Nil(t, BuildFolds(bars, 10, 0, 5))
}
