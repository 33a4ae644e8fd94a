package types

import (
	"strconv"
	"time"
)

// Bar is a single OHLCV candle. Timestamps are epoch milliseconds; a bar
// series handed to the optimizer must be strictly increasing in TimeMs.
type Bar struct {
	TimeMs int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v,omitempty"`
}

// Time returns the bar open time in UTC.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.TimeMs).UTC()
}

// BarsSignature is a cheap identity proxy for a bar window: count plus first
// and last timestamps. It does not hash bar contents.
func BarsSignature(bars []Bar) string {
	if len(bars) == 0 {
		return "0|0|0"
	}
	return strconv.Itoa(len(bars)) + "|" +
		strconv.FormatInt(bars[0].TimeMs, 10) + "|" +
		strconv.FormatInt(bars[len(bars)-1].TimeMs, 10)
}
