package optimizer

import (
	"fmt"
	"math"
	"sort"
)

// topCandidatesCap bounds both the ranked list and the reported Pareto set.
const topCandidatesCap = 20

// Weights scales the three normalized objective axes in the composite score.
// They are used as raw multipliers and need not sum to 1.
type Weights struct {
	WinRate    float64 `json:"winRate"`
	Expectancy float64 `json:"expectancy"`
	Drawdown   float64 `json:"drawdown"`
}

// Objective carries the hard constraints and scoring knobs for one run.
// Pointer fields are optional constraints; nil disables them.
type Objective struct {
	MinTradeCount   int      `json:"minTradeCount"`
	MinExpectancy   *float64 `json:"minExpectancy,omitempty"`
	MinEdgeMargin   *float64 `json:"minEdgeMargin,omitempty"`
	MaxDrawdown     *float64 `json:"maxDrawdown,omitempty"`
	MinProfitFactor *float64 `json:"minProfitFactor,omitempty"`
	Weights         Weights  `json:"weights"`
	PenaltyWeight   float64  `json:"penaltyWeight"`
}

// DefaultObjective mirrors the engine defaults used when a caller supplies
// nothing.
func DefaultObjective() Objective {
	return Objective{
		MinTradeCount: 10,
		Weights:       Weights{WinRate: 0.3, Expectancy: 0.5, Drawdown: 0.2},
		PenaltyWeight: 0.5,
	}
}

// Candidate is one scored parameter assignment. Score fields are mutated only
// during scoring; after the owning session reaches a terminal state the
// candidate is immutable.
type Candidate struct {
	Params           Params        `json:"params"`
	ParamsHash       string        `json:"paramsHash"`
	Train            MetricsPack   `json:"train"`
	Test             MetricsPack   `json:"test"`
	FoldTest         []MetricsPack `json:"foldTest,omitempty"`
	Score            float64       `json:"score"`
	StabilityScore   float64       `json:"stabilityScore"`
	Penalty          float64       `json:"penalty"`
	StabilityPenalty float64       `json:"stabilityPenalty"`
	IsPareto         bool          `json:"isPareto"`
}

// Selection is the output of scoring one candidate pool.
type Selection struct {
	Recommended   *Candidate
	TopCandidates []*Candidate
	Pareto        []*Candidate
	Warnings      []string
}

// ScoreAndSelect filters the pool by hard constraints, normalizes the test
// metrics, applies divergence and stability penalties, extracts the Pareto
// front and ranks by composite score. An empty post-filter pool falls back to
// the unfiltered pool with a warning instead of failing the run.
func ScoreAndSelect(pool []*Candidate, obj Objective) Selection {
	var sel Selection
	if len(pool) == 0 {
		return sel
	}

	filtered := filterByConstraints(pool, obj)
	if len(filtered) == 0 {
		sel.Warnings = append(sel.Warnings, fmt.Sprintf(
			"no candidate met the hard constraints (minTradeCount=%d); ranking the unfiltered pool instead",
			obj.MinTradeCount))
		filtered = pool
	}

	norms := computeNorms(filtered)
	for _, c := range filtered {
		c.Penalty = divergencePenalty(c) * obj.PenaltyWeight
		c.StabilityPenalty = stabilityPenalty(c) * obj.PenaltyWeight
		c.Score = composite(c, norms, obj.Weights) - c.Penalty - c.StabilityPenalty
		c.StabilityScore = clamp01(1 - c.Penalty - c.StabilityPenalty)
	}

	markPareto(filtered)

	ranked := make([]*Candidate, len(filtered))
	copy(ranked, filtered)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ParamsHash < ranked[j].ParamsHash
	})

	sel.Recommended = ranked[0]
	sel.TopCandidates = capped(ranked, topCandidatesCap)

	var front []*Candidate
	for _, c := range ranked {
		if c.IsPareto {
			front = append(front, c)
		}
	}
	sel.Pareto = capped(front, topCandidatesCap)
	return sel
}

func capped(in []*Candidate, n int) []*Candidate {
	if len(in) > n {
		in = in[:n]
	}
	out := make([]*Candidate, len(in))
	copy(out, in)
	return out
}

func filterByConstraints(pool []*Candidate, obj Objective) []*Candidate {
	var out []*Candidate
	for _, c := range pool {
		if passesConstraints(c.Test, obj) {
			out = append(out, c)
		}
	}
	return out
}

// passesConstraints checks the test pack against every configured hard
// constraint. A nil metric fails any constraint that needs it.
func passesConstraints(test MetricsPack, obj Objective) bool {
	if test.TradeCount < obj.MinTradeCount {
		return false
	}
	if obj.MinExpectancy != nil && (test.Expectancy == nil || *test.Expectancy < *obj.MinExpectancy) {
		return false
	}
	if obj.MinEdgeMargin != nil && (test.EdgeMargin == nil || *test.EdgeMargin < *obj.MinEdgeMargin) {
		return false
	}
	if obj.MinProfitFactor != nil && (test.ProfitFactor == nil || *test.ProfitFactor < *obj.MinProfitFactor) {
		return false
	}
	if obj.MaxDrawdown != nil && (test.MaxDrawdown == nil || *test.MaxDrawdown > *obj.MaxDrawdown) {
		return false
	}
	return true
}

type axisNorm struct {
	min, max float64
}

// norm maps v into [0,1]; a degenerate axis (max == min) pins every candidate
// to 0.5 so the axis neither rewards nor punishes.
func (n axisNorm) norm(v float64) float64 {
	if n.max == n.min {
		return 0.5
	}
	return (v - n.min) / (n.max - n.min)
}

type poolNorms struct {
	winRate    axisNorm
	expectancy axisNorm
	drawdown   axisNorm
}

func computeNorms(pool []*Candidate) poolNorms {
	collect := func(get func(MetricsPack) *float64) axisNorm {
		first := true
		n := axisNorm{}
		for _, c := range pool {
			v := get(c.Test)
			if v == nil {
				continue
			}
			if first {
				n.min, n.max = *v, *v
				first = false
				continue
			}
			n.min = math.Min(n.min, *v)
			n.max = math.Max(n.max, *v)
		}
		return n
	}
	return poolNorms{
		winRate:    collect(func(m MetricsPack) *float64 { return m.WinRate }),
		expectancy: collect(func(m MetricsPack) *float64 { return m.Expectancy }),
		drawdown:   collect(func(m MetricsPack) *float64 { return m.MaxDrawdown }),
	}
}

// composite blends the normalized axes. Candidates missing a metric score 0
// on that axis. The drawdown axis is inverted so lower drawdown scores
// higher.
func composite(c *Candidate, norms poolNorms, w Weights) float64 {
	winScore, expScore, ddScore := 0.0, 0.0, 0.0
	if c.Test.WinRate != nil {
		winScore = norms.winRate.norm(*c.Test.WinRate)
	}
	if c.Test.Expectancy != nil {
		expScore = norms.expectancy.norm(*c.Test.Expectancy)
	}
	if c.Test.MaxDrawdown != nil {
		ddScore = 1 - norms.drawdown.norm(*c.Test.MaxDrawdown)
	}
	return w.WinRate*winScore + w.Expectancy*expScore + w.Drawdown*ddScore
}

// divergencePenalty measures how much the candidate degrades out-of-sample:
// the average relative shortfall of test vs train over winRate, expectancy
// and netR. Only components where the train value is present and non-zero
// participate.
func divergencePenalty(c *Candidate) float64 {
	components := [][2]*float64{
		{c.Train.WinRate, c.Test.WinRate},
		{c.Train.Expectancy, c.Test.Expectancy},
		{c.Train.NetR, c.Test.NetR},
	}
	sum, n := 0.0, 0
	for _, pair := range components {
		train, test := pair[0], pair[1]
		if train == nil || test == nil || *train == 0 {
			continue
		}
		sum += math.Max(0, (*train-*test)/math.Abs(*train))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// stabilityPenalty measures cross-fold variance of the test metrics: mean
// absolute deviation over the absolute mean, averaged over winRate,
// expectancy and netR. Zero for single-split runs.
func stabilityPenalty(c *Candidate) float64 {
	if len(c.FoldTest) < 2 {
		return 0
	}
	axes := []func(MetricsPack) *float64{
		func(m MetricsPack) *float64 { return m.WinRate },
		func(m MetricsPack) *float64 { return m.Expectancy },
		func(m MetricsPack) *float64 { return m.NetR },
	}
	sum, n := 0.0, 0
	for _, get := range axes {
		var values []float64
		for _, pack := range c.FoldTest {
			if v := get(pack); v != nil {
				values = append(values, *v)
			}
		}
		if len(values) < 2 {
			continue
		}
		mean := 0.0
		for _, v := range values {
			mean += v
		}
		mean /= float64(len(values))
		if mean == 0 {
			continue
		}
		mad := 0.0
		for _, v := range values {
			mad += math.Abs(v - mean)
		}
		mad /= float64(len(values))
		sum += mad / math.Abs(mean)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// markPareto flags the non-dominated subset under 3-objective dominance on
// the test pack: winRate up, expectancy up, maxDrawdown down. O(n^2) pairwise
// comparison; pools are capped by maxCombos so this stays cheap.
func markPareto(pool []*Candidate) {
	for _, c := range pool {
		c.IsPareto = true
		for _, other := range pool {
			if other == c {
				continue
			}
			if dominates(other.Test, c.Test) {
				c.IsPareto = false
				break
			}
		}
	}
}

// dominates reports whether a is at least as good as b on all three axes and
// strictly better on at least one. Missing values rank worst on their axis.
func dominates(a, b MetricsPack) bool {
	aWin, bWin := orDefault(a.WinRate, math.Inf(-1)), orDefault(b.WinRate, math.Inf(-1))
	aExp, bExp := orDefault(a.Expectancy, math.Inf(-1)), orDefault(b.Expectancy, math.Inf(-1))
	aDD, bDD := orDefault(a.MaxDrawdown, math.Inf(1)), orDefault(b.MaxDrawdown, math.Inf(1))

	if aWin < bWin || aExp < bExp || aDD > bDD {
		return false
	}
	return aWin > bWin || aExp > bExp || aDD < bDD
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
