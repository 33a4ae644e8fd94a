package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

func newWorkerFixture() (*TrainWorker, *countingSignal) {
	sig := &countingSignal{}
	return NewTrainWorker(newTestEvaluator(sig)), sig
}

func drainWorker(t *testing.T, msgs <-chan TrainMsg) (progress []TrainMsg, final TrainMsg) {
	t.Helper()
	sawFinal := false
	for msg := range msgs {
		switch msg.Type {
		case MsgProgress:
			assert.False(t, sawFinal, "no progress after the final message")
			progress = append(progress, msg)
		case MsgResult, MsgError:
			require.False(t, sawFinal, "exactly one terminal message")
			sawFinal = true
			final = msg
		}
	}
	require.True(t, sawFinal)
	return progress, final
}

func TestTrainWorker_EmitsProgressThenResult(t *testing.T) {
	worker, sig := newWorkerFixture()

	req := TrainRequest{
		RunID:    "run-1",
		Strategy: "test_strategy",
		Grid: ParamGrid{
			"p": {Number(1), Number(2), Number(3)},
		},
		MaxCombos: 10,
		Bars:      evalBars(20),
	}

	progress, final := drainWorker(t, worker.Run(context.Background(), req, nil))

	assert.Len(t, progress, 3)
	for i, msg := range progress {
		assert.Equal(t, "run-1", msg.RunID)
		assert.Equal(t, i+1, msg.Done)
		assert.Equal(t, 3, msg.Total)
	}

	assert.Equal(t, MsgResult, final.Type)
	assert.Equal(t, "run-1", final.RunID)
	require.Len(t, final.Configs, 3)
	for _, tc := range final.Configs {
		assert.Equal(t, tc.Params.Hash(), tc.Hash)
	}
	assert.Equal(t, 3, sig.calls)
}

func TestTrainWorker_CancelledRunEmitsPartialResult(t *testing.T) {
	worker, _ := newWorkerFixture()

	evaluated := 0
	shouldCancel := func() bool {
		evaluated++
		return evaluated > 2
	}

	req := TrainRequest{
		RunID:    "run-2",
		Strategy: "test_strategy",
		Grid: ParamGrid{
			"p": {Number(1), Number(2), Number(3), Number(4), Number(5)},
		},
		MaxCombos: 10,
		Bars:      evalBars(20),
	}

	_, final := drainWorker(t, worker.Run(context.Background(), req, shouldCancel))

	assert.Equal(t, MsgResult, final.Type)
	assert.Less(t, len(final.Configs), 5, "cancelled run keeps only the cells already evaluated")
	assert.NotEmpty(t, final.Configs)
}

func TestTrainWorker_ContextCancellation(t *testing.T) {
	worker, _ := newWorkerFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := TrainRequest{
		RunID:    "run-3",
		Strategy: "test_strategy",
		Grid:     ParamGrid{"p": {Number(1), Number(2)}},
		Bars:     evalBars(20),
	}

	progress, final := drainWorker(t, worker.Run(ctx, req, nil))
	assert.Empty(t, progress)
	assert.Equal(t, MsgResult, final.Type)
	assert.Empty(t, final.Configs)
}

func TestTrainWorker_UnknownStrategyEmitsError(t *testing.T) {
	worker, _ := newWorkerFixture()

	req := TrainRequest{
		RunID:    "run-4",
		Strategy: "does_not_exist",
		Grid:     ParamGrid{"p": {Number(1)}},
		Bars:     evalBars(20),
	}

	_, final := drainWorker(t, worker.Run(context.Background(), req, nil))
	assert.Equal(t, MsgError, final.Type)
	assert.Contains(t, final.Err, "unknown strategy")
}

func TestTrainWorker_TrainMetricsAttached(t *testing.T) {
	worker, _ := newWorkerFixture()

	req := TrainRequest{
		RunID:    "run-5",
		Strategy: "test_strategy",
		Grid:     ParamGrid{"p": {Number(1)}},
		Bars:     evalBars(20),
		Exec:     types.ExecutionConfig{},
	}

	_, final := drainWorker(t, worker.Run(context.Background(), req, nil))
	require.Len(t, final.Configs, 1)

	train := final.Configs[0].Train
	assert.Equal(t, 1, train.TradeCount)
	require.NotNil(t, train.WinRate)
	assert.InDelta(t, 1.0, *train.WinRate, 1e-9)
}
