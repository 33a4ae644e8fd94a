// Package strategy implements the closed set of signal generators the
// optimizer can search over. Each generator is a pure function of (params,
// bars) producing raw trade candidates; fills are resolved later by the
// simulator.
package strategy

import "github.com/quantforge/strategy-optimizer/internal/optimizer"

// Strategy kind names accepted in optimization requests.
const (
	EMACross        = "ema_cross"
	RSIReversion    = "rsi_reversion"
	ChannelBreakout = "channel_breakout"
	Momentum        = "momentum"
)

// Registry maps every supported strategy kind to its generator.
func Registry() map[string]optimizer.SignalFunc {
	return map[string]optimizer.SignalFunc{
		EMACross:        GenerateEMACross,
		RSIReversion:    GenerateRSIReversion,
		ChannelBreakout: GenerateChannelBreakout,
		Momentum:        GenerateMomentum,
	}
}
