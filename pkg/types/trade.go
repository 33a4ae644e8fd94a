package types

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Trade is a single trade candidate or resolved fill. Signal generators emit
// trades with entry/stop/target populated; the simulator fills in the exit
// fields and the realized R multiple.
type Trade struct {
	Side       Side    `json:"side"`
	EntryIndex int     `json:"entryIndex"`
	EntryMs    int64   `json:"entryMs"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	Target     float64 `json:"target"`
	ExitMs     int64   `json:"exitMs,omitempty"`
	Exit       float64 `json:"exit,omitempty"`
	RMultiple  float64 `json:"rMultiple"`
	Closed     bool    `json:"closed"`
}

// Win reports whether a closed trade ended with positive R.
func (t Trade) Win() bool {
	return t.Closed && t.RMultiple > 0
}

// TradeSummary aggregates a list of resolved trades. Ratio fields are zero
// when Closed is zero; callers needing null semantics convert at the metrics
// layer.
type TradeSummary struct {
	Total        int     `json:"total"`
	Closed       int     `json:"closed"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
	Expectancy   float64 `json:"expectancy"`
	ProfitFactor float64 `json:"profitFactor"`
	AvgWinR      float64 `json:"avgWinR"`
	AvgLossR     float64 `json:"avgLossR"`
}

// ExecutionConfig models per-trade frictions applied by the simulator. CostR
// is deducted from every realized R multiple (slippage plus commission
// expressed in R terms).
type ExecutionConfig struct {
	CostR float64 `json:"costR"`
}
