package indicators

import "github.com/quantforge/strategy-optimizer/pkg/types"

// Donchian holds the channel series: highest high, lowest low and midline
// over a trailing period, excluding the current bar so a breakout of the
// channel is observable on the bar that makes it.
type Donchian struct {
	Upper  []float64
	Lower  []float64
	Middle []float64
}

// DonchianSeries computes the channel over the period bars preceding each
// position. Positions without a full trailing window are NaN.
func DonchianSeries(bars []types.Bar, period int) Donchian {
	n := len(bars)
	d := Donchian{
		Upper:  nanSeries(n),
		Lower:  nanSeries(n),
		Middle: nanSeries(n),
	}
	if period < 1 {
		return d
	}

	for i := period; i < n; i++ {
		hi := bars[i-period].High
		lo := bars[i-period].Low
		for j := i - period + 1; j < i; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		d.Upper[i] = hi
		d.Lower[i] = lo
		d.Middle[i] = (hi + lo) / 2
	}
	return d
}
