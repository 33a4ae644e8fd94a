package indicators

import (
	"math"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// ATRSeries computes the Average True Range with Wilder's smoothing. The
// first bar's true range is its high-low span; positions before the first
// full period are NaN.
func ATRSeries(bars []types.Bar, period int) []float64 {
	out := nanSeries(len(bars))
	if period < 1 || len(bars) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trueRange(bars, i)
	}
	atr := sum / float64(period)
	out[period-1] = atr

	for i := period; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars, i)) / float64(period)
		out[i] = atr
	}
	return out
}

func trueRange(bars []types.Bar, i int) float64 {
	bar := bars[i]
	if i == 0 {
		return bar.High - bar.Low
	}
	prevClose := bars[i-1].Close
	return math.Max(bar.High-bar.Low,
		math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}
