package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantforge/strategy-optimizer/internal/monitoring"
	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// TimeFilter restricts trade entries to an hour-of-day window, inclusive
// start and exclusive end in UTC. StartHour > EndHour wraps past midnight.
type TimeFilter struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Allows reports whether an entry timestamp falls inside the window.
func (f *TimeFilter) Allows(entryMs int64) bool {
	if f == nil {
		return true
	}
	hour := time.UnixMilli(entryMs).UTC().Hour()
	if f.StartHour <= f.EndHour {
		return hour >= f.StartHour && hour < f.EndHour
	}
	// Wraparound window, e.g. 22-6.
	return hour >= f.StartHour || hour < f.EndHour
}

func (f *TimeFilter) hash() string {
	if f == nil {
		return "none"
	}
	raw, _ := json.Marshal(f)
	return HashString(string(raw))
}

func execHash(exec types.ExecutionConfig) string {
	raw, _ := json.Marshal(exec)
	return HashString(string(raw))
}

// Evaluator runs the generate-simulate-summarize pipeline for one parameter
// set on one bar window, memoized through the two-tier evaluation cache.
// Bars and params must be treated as read-only for the duration of a call.
type Evaluator struct {
	cache     *EvalCache
	signals   map[string]SignalFunc
	simulate  SimulateFunc
	summarize SummarizeFunc
}

// NewEvaluator wires the external collaborators together. signals maps each
// supported strategy kind to its generator.
func NewEvaluator(cache *EvalCache, signals map[string]SignalFunc, simulate SimulateFunc, summarize SummarizeFunc) *Evaluator {
	return &Evaluator{
		cache:     cache,
		signals:   signals,
		simulate:  simulate,
		summarize: summarize,
	}
}

// Strategies lists the supported strategy kinds.
func (e *Evaluator) Strategies() []string {
	out := make([]string, 0, len(e.signals))
	for name := range e.signals {
		out = append(out, name)
	}
	return out
}

// Evaluate produces the MetricsPack for (strategy, params, bars, filter,
// exec). A degenerate window or an empty trade sample yields a pack with
// TradeCount 0 and nil ratios, never an error.
func (e *Evaluator) Evaluate(ctx context.Context, strategy string, params Params, bars []types.Bar, filter *TimeFilter, exec types.ExecutionConfig) (EvalResult, error) {
	signal, ok := e.signals[strategy]
	if !ok {
		return EvalResult{}, fmt.Errorf("unknown strategy %q", strategy)
	}
	if len(bars) == 0 {
		return EvalResult{Metrics: MetricsPack{}}, nil
	}

	key := CacheKey(strategy, bars, params.Hash(), filter.hash(), execHash(exec))
	if res, ok := e.cache.Get(ctx, key); ok {
		return res, nil
	}

	started := time.Now()

	candidates, err := signal(params, bars)
	if err != nil {
		return EvalResult{}, fmt.Errorf("generate %s candidates: %w", strategy, err)
	}
	candidates = filterCandidates(candidates, filter)

	trades := e.simulate(bars, candidates, exec)
	summary := e.summarize(trades)

	res := EvalResult{
		Metrics: BuildMetricsPack(summary, trades),
		Trades:  trades,
	}
	e.cache.Put(ctx, key, res)
	monitoring.RecordEvaluation(strategy, time.Since(started).Seconds())
	return res, nil
}

func filterCandidates(candidates []types.Trade, filter *TimeFilter) []types.Trade {
	if filter == nil {
		return candidates
	}
	out := make([]types.Trade, 0, len(candidates))
	for _, c := range candidates {
		if filter.Allows(c.EntryMs) {
			out = append(out, c)
		}
	}
	return out
}
