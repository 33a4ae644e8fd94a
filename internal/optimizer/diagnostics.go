package optimizer

import (
	"time"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// Diagnostics holds trade-level analysis for the recommended candidate only;
// computing it for every candidate would dominate session runtime.
type Diagnostics struct {
	WinStreaks   map[int]int `json:"winStreaks"`
	LossStreaks  map[int]int `json:"lossStreaks"`
	LossByHour   [24]int     `json:"lossByHour"`
	LossByDOW    [7]int      `json:"lossByDow"`
	WorstFold    int         `json:"worstFold"`
	WorstFoldNet float64     `json:"worstFoldNetR"`
}

// BuildDiagnostics derives streak histograms and loss time buckets from the
// recommended candidate's test trades, plus the worst fold by test netR.
// foldPacks may be empty for single-split runs; WorstFold is then -1.
func BuildDiagnostics(trades []types.Trade, foldPacks []MetricsPack) *Diagnostics {
	d := &Diagnostics{
		WinStreaks:  make(map[int]int),
		LossStreaks: make(map[int]int),
		WorstFold:   -1,
	}

	streak := 0 // positive run of wins, negative run of losses
	flush := func() {
		switch {
		case streak > 0:
			d.WinStreaks[streak]++
		case streak < 0:
			d.LossStreaks[-streak]++
		}
		streak = 0
	}

	for _, t := range trades {
		if !t.Closed {
			continue
		}
		if t.Win() {
			if streak < 0 {
				flush()
			}
			streak++
		} else {
			if streak > 0 {
				flush()
			}
			streak--

			at := time.UnixMilli(t.EntryMs).UTC()
			d.LossByHour[at.Hour()]++
			d.LossByDOW[int(at.Weekday())]++
		}
	}
	flush()

	for i, pack := range foldPacks {
		if pack.NetR == nil {
			continue
		}
		if d.WorstFold == -1 || *pack.NetR < d.WorstFoldNet {
			d.WorstFold = i
			d.WorstFoldNet = *pack.NetR
		}
	}

	return d
}
