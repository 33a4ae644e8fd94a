package strategy

import (
	"fmt"
	"math"

	"github.com/quantforge/strategy-optimizer/internal/indicators"
	"github.com/quantforge/strategy-optimizer/internal/optimizer"
	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// GenerateEMACross emits a long candidate when the fast EMA crosses above the
// slow EMA and a short candidate on the cross down. Stops are one ATR behind
// the entry, targets sit rewardRatio R away.
//
// Params: fastPeriod (12), slowPeriod (26), atrPeriod (14),
// stopAtrMult (1.5), rewardRatio (2).
func GenerateEMACross(params optimizer.Params, bars []types.Bar) ([]types.Trade, error) {
	fast := params.Int("fastPeriod", 12)
	slow := params.Int("slowPeriod", 26)
	if fast < 1 || slow < 1 {
		return nil, fmt.Errorf("ema periods must be positive, got fast=%d slow=%d", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("fastPeriod %d must be below slowPeriod %d", fast, slow)
	}

	fastEMA := indicators.EMASeries(bars, fast)
	slowEMA := indicators.EMASeries(bars, slow)
	atr := indicators.ATRSeries(bars, params.Int("atrPeriod", 14))
	stopMult := params.Num("stopAtrMult", 1.5)
	reward := params.Num("rewardRatio", 2)

	var trades []types.Trade
	for i := 1; i < len(bars); i++ {
		if anyNaN(fastEMA[i-1], slowEMA[i-1], fastEMA[i], slowEMA[i], atr[i]) || atr[i] <= 0 {
			continue
		}
		crossedUp := fastEMA[i-1] <= slowEMA[i-1] && fastEMA[i] > slowEMA[i]
		crossedDown := fastEMA[i-1] >= slowEMA[i-1] && fastEMA[i] < slowEMA[i]
		if !crossedUp && !crossedDown {
			continue
		}

		entry := bars[i].Close
		risk := atr[i] * stopMult
		if crossedUp {
			trades = append(trades, longCandidate(bars, i, entry, entry-risk, entry+risk*reward))
		} else {
			trades = append(trades, shortCandidate(bars, i, entry, entry+risk, entry-risk*reward))
		}
	}
	return trades, nil
}

// GenerateRSIReversion emits a long candidate when RSI dips below the
// oversold level, betting on a snap back. Long-only.
//
// Params: rsiPeriod (14), oversold (30), atrPeriod (14), stopAtrMult (1.5),
// rewardRatio (1.5).
func GenerateRSIReversion(params optimizer.Params, bars []types.Bar) ([]types.Trade, error) {
	period := params.Int("rsiPeriod", 14)
	if period < 1 {
		return nil, fmt.Errorf("rsiPeriod must be positive, got %d", period)
	}
	oversold := params.Num("oversold", 30)

	rsi := indicators.RSISeries(bars, period)
	atr := indicators.ATRSeries(bars, params.Int("atrPeriod", 14))
	stopMult := params.Num("stopAtrMult", 1.5)
	reward := params.Num("rewardRatio", 1.5)

	var trades []types.Trade
	for i := 1; i < len(bars); i++ {
		if anyNaN(rsi[i-1], rsi[i], atr[i]) || atr[i] <= 0 {
			continue
		}
		// Trigger only on the dip into oversold, not on every bar below it.
		if rsi[i-1] >= oversold && rsi[i] < oversold {
			entry := bars[i].Close
			risk := atr[i] * stopMult
			trades = append(trades, longCandidate(bars, i, entry, entry-risk, entry+risk*reward))
		}
	}
	return trades, nil
}

// GenerateChannelBreakout trades Donchian channel breaks in both directions:
// a close above the trailing channel high goes long with the stop at the
// midline, a close below the channel low mirrors it short.
//
// Params: channelPeriod (20), rewardRatio (2).
func GenerateChannelBreakout(params optimizer.Params, bars []types.Bar) ([]types.Trade, error) {
	period := params.Int("channelPeriod", 20)
	if period < 1 {
		return nil, fmt.Errorf("channelPeriod must be positive, got %d", period)
	}
	reward := params.Num("rewardRatio", 2)

	channel := indicators.DonchianSeries(bars, period)

	var trades []types.Trade
	for i := 0; i < len(bars); i++ {
		if anyNaN(channel.Upper[i], channel.Lower[i], channel.Middle[i]) {
			continue
		}
		close := bars[i].Close
		switch {
		case close > channel.Upper[i]:
			risk := close - channel.Middle[i]
			if risk > 0 {
				trades = append(trades, longCandidate(bars, i, close, channel.Middle[i], close+risk*reward))
			}
		case close < channel.Lower[i]:
			risk := channel.Middle[i] - close
			if risk > 0 {
				trades = append(trades, shortCandidate(bars, i, close, channel.Middle[i], close-risk*reward))
			}
		}
	}
	return trades, nil
}

// GenerateMomentum goes long when price has risen over the lookback window
// and sits above its EMA filter, riding continuation.
//
// Params: lookback (10), emaPeriod (50), atrPeriod (14), stopAtrMult (2),
// rewardRatio (2).
func GenerateMomentum(params optimizer.Params, bars []types.Bar) ([]types.Trade, error) {
	lookback := params.Int("lookback", 10)
	if lookback < 1 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}

	ema := indicators.EMASeries(bars, params.Int("emaPeriod", 50))
	atr := indicators.ATRSeries(bars, params.Int("atrPeriod", 14))
	stopMult := params.Num("stopAtrMult", 2)
	reward := params.Num("rewardRatio", 2)

	var trades []types.Trade
	lastEntry := -lookback
	for i := lookback; i < len(bars); i++ {
		if anyNaN(ema[i], atr[i]) || atr[i] <= 0 {
			continue
		}
		// Debounce: at most one entry per lookback window.
		if i-lastEntry < lookback {
			continue
		}
		close := bars[i].Close
		if close > bars[i-lookback].Close && close > ema[i] {
			risk := atr[i] * stopMult
			trades = append(trades, longCandidate(bars, i, close, close-risk, close+risk*reward))
			lastEntry = i
		}
	}
	return trades, nil
}

func longCandidate(bars []types.Bar, i int, entry, stop, target float64) types.Trade {
	return types.Trade{
		Side:       types.SideLong,
		EntryIndex: i,
		EntryMs:    bars[i].TimeMs,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
	}
}

func shortCandidate(bars []types.Bar, i int, entry, stop, target float64) types.Trade {
	return types.Trade{
		Side:       types.SideShort,
		EntryIndex: i,
		EntryMs:    bars[i].TimeMs,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
	}
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
