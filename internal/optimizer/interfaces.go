package optimizer

import (
	"context"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// EngineVersion invalidates persisted evaluation-cache entries whenever the
// scoring or simulation semantics change. Bump on any behavior change.
const EngineVersion = "1.3.0"

// BarProvider fetches the historical candle window a session runs against.
type BarProvider interface {
	GetHistoricalBars(ctx context.Context, symbol, timeframe string, rangeDays int) ([]types.Bar, error)
}

// SignalFunc turns a candle series plus one parameter assignment into raw
// trade candidates. Implementations must be pure functions of their inputs;
// the evaluation cache is only correct under that assumption.
type SignalFunc func(params Params, bars []types.Bar) ([]types.Trade, error)

// SimulateFunc resolves candidate fills and exits against the bar series.
type SimulateFunc func(bars []types.Bar, candidates []types.Trade, exec types.ExecutionConfig) []types.Trade

// SummarizeFunc aggregates resolved trades into a flat summary.
type SummarizeFunc func(trades []types.Trade) types.TradeSummary

// Ledger persists session state and final results. Both calls are
// best-effort: the controller logs failures and keeps going.
type Ledger interface {
	PersistSession(ctx context.Context, session *Session) error
	PersistResults(ctx context.Context, sessionID string, results *Results) error
}

// PersistedEval is the wire form of one cached evaluation in the external
// cache tier.
type PersistedEval struct {
	EngineVersion string     `json:"engineVersion"`
	ExpiresAtMs   int64      `json:"expiresAtMs"`
	Result        EvalResult `json:"result"`
}

// PersistentCache is the optional external second tier of the evaluation
// cache. Get returns (nil, nil) on a clean miss; any error from either call
// is treated as a miss by the engine and never surfaced.
type PersistentCache interface {
	Get(ctx context.Context, key string) (*PersistedEval, error)
	Put(ctx context.Context, key string, entry *PersistedEval) error
}
