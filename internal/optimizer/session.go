package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantforge/strategy-optimizer/internal/monitoring"
	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// progressBatchSize controls how often progress is published (and the
// scheduler yielded) during test/fold evaluation.
const progressBatchSize = 25

// ErrNoBars marks a session that failed because the provider returned an
// empty window.
var ErrNoBars = errors.New("no bars available")

// SessionStatus is the session lifecycle state. A session enters running at
// creation and transitions exactly once to completed or failed.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// ValidationMode selects how train/test windows are built.
type ValidationMode string

const (
	ModePercent     ValidationMode = "percent"
	ModeLastDays    ValidationMode = "last_days"
	ModeWalkForward ValidationMode = "walk_forward"
)

// Validation configures window construction for one run.
type Validation struct {
	Mode             ValidationMode `json:"mode"`
	SplitPercent     float64        `json:"splitPercent,omitempty"`
	LastDays         int            `json:"lastDays,omitempty"`
	TrainDays        int            `json:"trainDays,omitempty"`
	TestDays         int            `json:"testDays,omitempty"`
	StepDays         int            `json:"stepDays,omitempty"`
	MinTradesPerFold int            `json:"minTradesPerFold,omitempty"`
}

// Progress is the externally visible phase/count snapshot of a running
// session.
type Progress struct {
	Phase string  `json:"phase"` // train, test or idle
	Done  int     `json:"done"`
	Total int     `json:"total"`
	Pct   float64 `json:"pct"`
	Label string  `json:"label"`
}

// SessionRequest is the caller-supplied description of one optimization run.
type SessionRequest struct {
	Symbol     string                `json:"symbol"`
	Timeframe  string                `json:"timeframe"`
	Strategy   string                `json:"strategy"`
	RangeDays  int                   `json:"rangeDays"`
	Base       Params                `json:"base"`
	Grid       ParamGrid             `json:"grid"`
	MaxCombos  int                   `json:"maxCombos"`
	Objective  Objective             `json:"objective"`
	Validation Validation            `json:"validation"`
	Filter     *TimeFilter           `json:"filter,omitempty"`
	Exec       types.ExecutionConfig `json:"exec"`
}

// Session is the persisted state of one run. Progress mutates while running;
// everything else is immutable after the terminal transition.
type Session struct {
	SessionID  string        `json:"sessionId"`
	Status     SessionStatus `json:"status"`
	Symbol     string        `json:"symbol"`
	Timeframe  string        `json:"timeframe"`
	Strategy   string        `json:"strategy"`
	Objective  Objective     `json:"objective"`
	Validation Validation    `json:"validation"`
	Progress   Progress      `json:"progress"`
	Error      string        `json:"error,omitempty"`
	CreatedMs  int64         `json:"createdMs"`
	UpdatedMs  int64         `json:"updatedMs"`
}

// Results is produced exactly once, at session completion.
type Results struct {
	Recommended   *Candidate   `json:"recommended"`
	Pareto        []*Candidate `json:"pareto"`
	TopCandidates []*Candidate `json:"topCandidates"`
	Evaluated     int          `json:"evaluated"`
	TotalCombos   int          `json:"totalCombos"`
	Truncated     bool         `json:"truncated"`
	Warnings      []string     `json:"warnings"`
	Diagnostics   *Diagnostics `json:"diagnostics,omitempty"`
}

// Controller owns session and results records for the lifetime of each run
// and drives the optimization end to end. Multiple sessions may run
// concurrently; they share only the evaluation cache.
type Controller struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	results  map[string]*Results

	bars   BarProvider
	eval   *Evaluator
	worker *TrainWorker
	ledger Ledger
	health *monitoring.HealthChecker
}

// NewController wires the controller's collaborators. ledger may be nil.
func NewController(bars BarProvider, eval *Evaluator, ledger Ledger) *Controller {
	return &Controller{
		sessions: make(map[string]*Session),
		results:  make(map[string]*Results),
		bars:     bars,
		eval:     eval,
		worker:   NewTrainWorker(eval),
		ledger:   ledger,
	}
}

// WithHealth attaches a process health tracker. Optional.
func (c *Controller) WithHealth(h *monitoring.HealthChecker) *Controller {
	c.health = h
	return c
}

// StartSession validates the request, registers a running session and kicks
// off the asynchronous run. Input errors are returned immediately; the
// session never reaches running in that case.
func (c *Controller) StartSession(ctx context.Context, req SessionRequest) (string, error) {
	if req.Symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	if req.Timeframe == "" {
		return "", fmt.Errorf("timeframe is required")
	}
	if req.Strategy == "" {
		return "", fmt.Errorf("strategy is required")
	}
	if len(req.Grid) == 0 {
		return "", fmt.Errorf("paramGrid is required")
	}
	if _, ok := c.eval.signals[req.Strategy]; !ok {
		return "", fmt.Errorf("unknown strategy %q", req.Strategy)
	}
	if req.MaxCombos < 1 {
		req.MaxCombos = 1
	}
	if req.RangeDays <= 0 {
		req.RangeDays = 90
	}

	now := time.Now().UnixMilli()
	session := &Session{
		SessionID:  uuid.NewString(),
		Status:     StatusRunning,
		Symbol:     req.Symbol,
		Timeframe:  req.Timeframe,
		Strategy:   req.Strategy,
		Objective:  req.Objective,
		Validation: req.Validation,
		Progress:   Progress{Phase: "idle"},
		CreatedMs:  now,
		UpdatedMs:  now,
	}

	c.mu.Lock()
	c.sessions[session.SessionID] = session
	c.mu.Unlock()

	c.persistSession(ctx, session)

	// The run outlives the caller's request context; only its values carry
	// over.
	go c.run(context.WithoutCancel(ctx), session.SessionID, req)
	return session.SessionID, nil
}

// GetSession returns a snapshot of the session, safe to read while the run
// mutates progress.
func (c *Controller) GetSession(sessionID string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// GetResults returns the results of a completed session.
func (c *Controller) GetResults(sessionID string) (*Results, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[sessionID]
	return r, ok
}

// run drives steps 1-7 of a session. Any error short of a panic transitions
// the session to failed with a human-readable message and leaves the last
// progress snapshot intact for inspection.
func (c *Controller) run(ctx context.Context, sessionID string, req SessionRequest) {
	started := time.Now()
	if c.health != nil {
		c.health.TrackSessionStart()
	}
	results, err := c.execute(ctx, sessionID, req)
	elapsed := time.Since(started).Seconds()

	c.mu.Lock()
	session := c.sessions[sessionID]
	session.UpdatedMs = time.Now().UnixMilli()
	if err != nil {
		session.Status = StatusFailed
		session.Error = err.Error()
	} else {
		session.Status = StatusCompleted
		c.results[sessionID] = results
	}
	snapshot := *session
	c.mu.Unlock()

	monitoring.RecordSession(string(snapshot.Status), elapsed)
	if c.health != nil {
		c.health.TrackSessionEnd(err != nil)
	}
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("optimization session failed")
	} else {
		log.Info().
			Str("session", sessionID).
			Int("evaluated", results.Evaluated).
			Int("warnings", len(results.Warnings)).
			Float64("seconds", elapsed).
			Msg("optimization session completed")
	}

	c.persistSession(ctx, &snapshot)
	if err == nil {
		c.persistResults(ctx, sessionID, results)
	}
}

func (c *Controller) execute(ctx context.Context, sessionID string, req SessionRequest) (*Results, error) {
	results := &Results{Warnings: []string{}}

	// Step 1: historical bars.
	bars, err := c.bars.GetHistoricalBars(ctx, req.Symbol, req.Timeframe, req.RangeDays)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s %s: %w", req.Symbol, req.Timeframe, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s %s", ErrNoBars, req.Symbol, req.Timeframe)
	}

	// Step 2: validation windows. Walk-forward downgrades to a single split
	// when too few folds survive.
	validation := req.Validation
	var folds []Fold
	if validation.Mode == ModeWalkForward {
		folds = BuildFolds(bars, validation.TrainDays, validation.TestDays, validation.StepDays)
		if len(folds) < 2 {
			results.Warnings = append(results.Warnings, fmt.Sprintf(
				"walk-forward produced %d valid folds (need 2); falling back to a single split", len(folds)))
			folds = nil
			validation.Mode = ModePercent
		}
	}

	var trainBars, testBars []types.Bar
	if len(folds) == 0 {
		mode := SplitPercent
		if validation.Mode == ModeLastDays {
			mode = SplitLastDays
		}
		trainBars, testBars, err = SplitBars(bars, mode, validation.SplitPercent, validation.LastDays)
		if err != nil {
			return nil, fmt.Errorf("build validation window: %w", err)
		}
	} else {
		// The worker trains on the span before the last fold's test window so
		// the training pass never sees held-out data.
		trainBars, testBars, err = SplitBars(bars, SplitPercent, validation.SplitPercent, 0)
		if err != nil {
			return nil, fmt.Errorf("build validation window: %w", err)
		}
	}

	// Step 3: delegate the training pass to the worker.
	results.TotalCombos = EstimateCombos(req.Grid)
	trained, err := c.runTrainingPass(ctx, sessionID, req, trainBars)
	if err != nil {
		return nil, fmt.Errorf("training pass: %w", err)
	}
	if len(trained) == 0 {
		return nil, fmt.Errorf("training pass produced no candidates")
	}
	results.Truncated = len(trained) < results.TotalCombos

	// Step 4: de-duplicate by parameter hash.
	unique := dedupeTrained(trained)

	// Steps 5: held-out evaluation.
	var pool []*Candidate
	if len(folds) > 0 {
		pool, err = c.evaluateFolds(ctx, sessionID, req, unique, folds)
	} else {
		pool, err = c.evaluateSplit(ctx, sessionID, req, unique, testBars)
	}
	if err != nil {
		return nil, err
	}
	results.Evaluated = len(pool)

	// Step 6: score, select, diagnose.
	sel := ScoreAndSelect(pool, req.Objective)
	results.Warnings = append(results.Warnings, sel.Warnings...)
	results.Recommended = sel.Recommended
	results.TopCandidates = sel.TopCandidates
	results.Pareto = sel.Pareto

	if sel.Recommended != nil {
		diag, derr := c.diagnose(ctx, req, sel.Recommended, folds, testBars)
		if derr != nil {
			results.Warnings = append(results.Warnings, "diagnostics unavailable: "+derr.Error())
		} else {
			results.Diagnostics = diag
		}
	}

	c.setProgress(sessionID, Progress{Phase: "idle", Done: results.Evaluated, Total: results.Evaluated, Pct: 100, Label: "done"})
	return results, nil
}

func (c *Controller) runTrainingPass(ctx context.Context, sessionID string, req SessionRequest, trainBars []types.Bar) ([]TrainedConfig, error) {
	msgs := c.worker.Run(ctx, TrainRequest{
		RunID:     uuid.NewString(),
		Strategy:  req.Strategy,
		Base:      req.Base,
		Grid:      req.Grid,
		MaxCombos: req.MaxCombos,
		Bars:      trainBars,
		Filter:    req.Filter,
		Exec:      req.Exec,
	}, func() bool { return ctx.Err() != nil })

	for msg := range msgs {
		switch msg.Type {
		case MsgProgress:
			pct := 0.0
			if msg.Total > 0 {
				pct = float64(msg.Done) / float64(msg.Total) * 100
			}
			c.setProgress(sessionID, Progress{
				Phase: "train", Done: msg.Done, Total: msg.Total, Pct: pct,
				Label: fmt.Sprintf("training %d/%d", msg.Done, msg.Total),
			})
		case MsgError:
			return nil, fmt.Errorf("worker: %s", msg.Err)
		case MsgResult:
			return msg.Configs, nil
		}
	}
	return nil, fmt.Errorf("worker channel closed without a result")
}

func dedupeTrained(trained []TrainedConfig) []TrainedConfig {
	seen := make(map[string]bool, len(trained))
	out := make([]TrainedConfig, 0, len(trained))
	for _, tc := range trained {
		if seen[tc.Hash] {
			continue
		}
		seen[tc.Hash] = true
		out = append(out, tc)
	}
	return out
}

// evaluateSplit scores each trained candidate against the single held-out
// test window.
func (c *Controller) evaluateSplit(ctx context.Context, sessionID string, req SessionRequest, trained []TrainedConfig, testBars []types.Bar) ([]*Candidate, error) {
	pool := make([]*Candidate, 0, len(trained))
	total := len(trained)

	for i, tc := range trained {
		res, err := c.eval.Evaluate(ctx, req.Strategy, tc.Params, testBars, req.Filter, req.Exec)
		if err != nil {
			return nil, fmt.Errorf("test evaluation: %w", err)
		}
		pool = append(pool, &Candidate{
			Params:     tc.Params,
			ParamsHash: tc.Hash,
			Train:      tc.Train,
			Test:       res.Metrics,
		})
		c.batchProgress(sessionID, i+1, total)
	}
	return pool, nil
}

// evaluateFolds scores each unique candidate against every fold, in
// chronological fold order, aggregating raw trade outcomes across folds on
// both sides.
func (c *Controller) evaluateFolds(ctx context.Context, sessionID string, req SessionRequest, trained []TrainedConfig, folds []Fold) ([]*Candidate, error) {
	pool := make([]*Candidate, 0, len(trained))
	total := len(trained)

	for i, tc := range trained {
		var trainAcc, testAcc FoldAccumulator
		foldPacks := make([]MetricsPack, 0, len(folds))

		for _, fold := range folds {
			trainRes, err := c.eval.Evaluate(ctx, req.Strategy, tc.Params, fold.TrainBars, req.Filter, req.Exec)
			if err != nil {
				return nil, fmt.Errorf("fold train evaluation: %w", err)
			}
			trainAcc.Add(trainRes.Metrics, trainRes.Trades)

			testRes, err := c.eval.Evaluate(ctx, req.Strategy, tc.Params, fold.TestBars, req.Filter, req.Exec)
			if err != nil {
				return nil, fmt.Errorf("fold test evaluation: %w", err)
			}
			testAcc.Add(testRes.Metrics, testRes.Trades)

			// Folds below the per-fold trade floor still count toward the
			// aggregate but are too noisy for the stability penalty.
			if testRes.Metrics.TradeCount >= req.Validation.MinTradesPerFold {
				foldPacks = append(foldPacks, testRes.Metrics)
			}
		}

		pool = append(pool, &Candidate{
			Params:     tc.Params,
			ParamsHash: tc.Hash,
			Train:      trainAcc.Pack(),
			Test:       testAcc.Pack(),
			FoldTest:   foldPacks,
		})
		c.batchProgress(sessionID, i+1, total)
	}
	return pool, nil
}

// diagnose re-evaluates only the recommended candidate to recover its test
// trades (a cache hit in the common case) and builds the trade-level
// diagnostics.
func (c *Controller) diagnose(ctx context.Context, req SessionRequest, rec *Candidate, folds []Fold, testBars []types.Bar) (*Diagnostics, error) {
	if len(folds) == 0 {
		res, err := c.eval.Evaluate(ctx, req.Strategy, rec.Params, testBars, req.Filter, req.Exec)
		if err != nil {
			return nil, err
		}
		return BuildDiagnostics(res.Trades, nil), nil
	}

	var trades []types.Trade
	foldPacks := make([]MetricsPack, 0, len(folds))
	for _, fold := range folds {
		res, err := c.eval.Evaluate(ctx, req.Strategy, rec.Params, fold.TestBars, req.Filter, req.Exec)
		if err != nil {
			return nil, err
		}
		trades = append(trades, res.Trades...)
		foldPacks = append(foldPacks, res.Metrics)
	}
	return BuildDiagnostics(trades, foldPacks), nil
}

// batchProgress publishes progress every progressBatchSize candidates (and on
// the final one) and yields the scheduler so concurrent sessions stay
// responsive.
func (c *Controller) batchProgress(sessionID string, done, total int) {
	if done%progressBatchSize != 0 && done != total {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	c.setProgress(sessionID, Progress{
		Phase: "test", Done: done, Total: total, Pct: pct,
		Label: fmt.Sprintf("validating %d/%d", done, total),
	})
	runtime.Gosched()
}

func (c *Controller) setProgress(sessionID string, p Progress) {
	c.mu.Lock()
	if s, ok := c.sessions[sessionID]; ok {
		s.Progress = p
		s.UpdatedMs = time.Now().UnixMilli()
	}
	c.mu.Unlock()
}

// persistSession hands the session to the ledger. The error is logged and
// dropped on purpose: persistence never affects run correctness.
func (c *Controller) persistSession(ctx context.Context, session *Session) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.PersistSession(ctx, session); err != nil {
		log.Warn().Err(err).Str("session", session.SessionID).Msg("persist session failed")
	}
}

func (c *Controller) persistResults(ctx context.Context, sessionID string, results *Results) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.PersistResults(ctx, sessionID, results); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("persist results failed")
	}
}
