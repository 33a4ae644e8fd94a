package optimizer

import (
	"context"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// TrainMsgType discriminates worker messages.
type TrainMsgType string

const (
	MsgProgress TrainMsgType = "progress"
	MsgResult   TrainMsgType = "result"
	MsgError    TrainMsgType = "error"
)

// TrainRequest carries everything the worker needs for one training pass:
// the full candle window plus the parameter grid. Nothing is shared with the
// caller except through the returned message channel.
type TrainRequest struct {
	RunID     string
	Strategy  string
	Base      Params
	Grid      ParamGrid
	MaxCombos int
	Bars      []types.Bar
	Filter    *TimeFilter
	Exec      types.ExecutionConfig
}

// TrainedConfig is one evaluated grid cell from the training pass.
type TrainedConfig struct {
	Params Params
	Hash   string
	Train  MetricsPack
}

// TrainMsg is one worker message: zero or more progress messages followed by
// exactly one result or error, all keyed by the request's RunID.
type TrainMsg struct {
	Type    TrainMsgType
	RunID   string
	Done    int
	Total   int
	Configs []TrainedConfig
	Err     string
}

// TrainWorker runs the bulk training-pass evaluation off the session's
// critical path. Communication is message passing only; the worker never
// touches session state.
type TrainWorker struct {
	eval *Evaluator
}

// NewTrainWorker builds a worker over the shared evaluator (and therefore
// the shared evaluation cache).
func NewTrainWorker(eval *Evaluator) *TrainWorker {
	return &TrainWorker{eval: eval}
}

// Run starts the training pass in its own goroutine and returns the message
// channel. shouldCancel is polled between grid cells; cancellation is
// cooperative, so the cell in flight always finishes. A cancelled run still
// emits a result message carrying the configs evaluated so far.
func (w *TrainWorker) Run(ctx context.Context, req TrainRequest, shouldCancel func() bool) <-chan TrainMsg {
	out := make(chan TrainMsg, 16)

	go func() {
		defer close(out)

		combos := ExpandGrid(req.Base, req.Grid, req.MaxCombos)
		total := len(combos)
		configs := make([]TrainedConfig, 0, total)

		for i, params := range combos {
			if ctx.Err() != nil || (shouldCancel != nil && shouldCancel()) {
				break
			}

			res, err := w.eval.Evaluate(ctx, req.Strategy, params, req.Bars, req.Filter, req.Exec)
			if err != nil {
				out <- TrainMsg{Type: MsgError, RunID: req.RunID, Err: err.Error()}
				return
			}

			configs = append(configs, TrainedConfig{
				Params: params,
				Hash:   params.Hash(),
				Train:  res.Metrics,
			})
			out <- TrainMsg{Type: MsgProgress, RunID: req.RunID, Done: i + 1, Total: total}
		}

		out <- TrainMsg{Type: MsgResult, RunID: req.RunID, Done: len(configs), Total: total, Configs: configs}
	}()

	return out
}
