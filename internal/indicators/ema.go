// Package indicators provides series-form technical indicators. Every
// function is a pure mapping from a bar series to a value series of the same
// length, with NaN marking warm-up positions; signal generators depend on
// that purity for evaluation caching.
package indicators

import (
	"math"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// EMASeries computes the exponential moving average of closes with the
// standard alpha 2/(period+1), seeded with the SMA of the first period bars.
// Positions before the seed are NaN.
func EMASeries(bars []types.Bar, period int) []float64 {
	out := nanSeries(len(bars))
	if period < 1 || len(bars) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	ema := sum / float64(period)
	out[period-1] = ema

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(bars); i++ {
		ema = bars[i].Close*alpha + ema*(1-alpha)
		out[i] = ema
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
