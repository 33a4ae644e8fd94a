package optimizer

import (
	"fmt"
	"sort"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

const (
	dayMs = int64(86400000)

	// Fold viability floors: anything thinner carries no statistical signal.
	minTrainBars = 10
	minTestBars  = 5

	// Runaway guard for degenerate step sizes.
	maxFoldIterations = 200
)

// Fold is one contiguous train/test window pair. Train and test ranges are
// chronologically ordered and disjoint; TestStartMs always equals TrainEndMs.
type Fold struct {
	TrainBars    []types.Bar `json:"-"`
	TestBars     []types.Bar `json:"-"`
	TrainStartMs int64       `json:"trainStartMs"`
	TrainEndMs   int64       `json:"trainEndMs"`
	TestStartMs  int64       `json:"testStartMs"`
	TestEndMs    int64       `json:"testEndMs"`
}

// SplitMode selects how a single train/test split index is derived.
type SplitMode string

const (
	SplitPercent  SplitMode = "percent"
	SplitLastDays SplitMode = "last_days"
)

// SplitBars cuts bars into a train prefix and test suffix. Percent mode puts
// floor((n-1)*pct/100) bars' worth of index into the split point; last-days
// mode finds the first bar at or after lastBarTime - lastDays and backs up one
// bar, falling back to the percent formula when no such bar exists. The split
// index is clamped to [1, n-2] so both sides are non-empty.
func SplitBars(bars []types.Bar, mode SplitMode, splitPercent float64, lastDays int) (train, test []types.Bar, err error) {
	n := len(bars)
	if n < 3 {
		return nil, nil, fmt.Errorf("need at least 3 bars to split, got %d", n)
	}

	splitIndex := percentSplitIndex(n, splitPercent)
	if mode == SplitLastDays && lastDays > 0 {
		cutoff := bars[n-1].TimeMs - int64(lastDays)*dayMs
		if idx := findIndexAtOrAfter(bars, cutoff); idx >= 0 {
			splitIndex = idx - 1
		}
	}

	if splitIndex < 1 {
		splitIndex = 1
	}
	if splitIndex > n-2 {
		splitIndex = n - 2
	}

	return bars[:splitIndex+1], bars[splitIndex+1:], nil
}

func percentSplitIndex(n int, pct float64) int {
	if pct <= 0 || pct >= 100 {
		pct = 70
	}
	return int(float64(n-1) * pct / 100.0)
}

// BuildFolds cuts rolling walk-forward folds: a trainDays window immediately
// followed by a testDays window, advancing by stepDays each iteration. Folds
// with fewer than minTrainBars train bars or minTestBars test bars are
// discarded. Fewer than 2 surviving folds means walk-forward scoring is
// meaningless; callers must fall back to a single split.
func BuildFolds(bars []types.Bar, trainDays, testDays, stepDays int) []Fold {
	if len(bars) == 0 || trainDays <= 0 || testDays <= 0 {
		return nil
	}
	if stepDays <= 0 {
		stepDays = testDays
	}

	trainMs := int64(trainDays) * dayMs
	testMs := int64(testDays) * dayMs
	stepMs := int64(stepDays) * dayMs
	lastMs := bars[len(bars)-1].TimeMs

	var folds []Fold
	windowStart := bars[0].TimeMs
	for iter := 0; iter < maxFoldIterations; iter++ {
		trainEnd := windowStart + trainMs
		testEnd := trainEnd + testMs
		if testEnd > lastMs {
			break
		}

		trainFrom := findIndexAtOrAfter(bars, windowStart)
		trainTo := findIndexAtOrAfter(bars, trainEnd)
		testTo := findIndexAtOrAfter(bars, testEnd)
		if trainFrom < 0 {
			break
		}
		if trainTo < 0 {
			trainTo = len(bars)
		}
		if testTo < 0 {
			testTo = len(bars)
		}

		trainBars := bars[trainFrom:trainTo]
		testBars := bars[trainTo:testTo]
		if len(trainBars) >= minTrainBars && len(testBars) >= minTestBars {
			folds = append(folds, Fold{
				TrainBars:    trainBars,
				TestBars:     testBars,
				TrainStartMs: windowStart,
				TrainEndMs:   trainEnd,
				TestStartMs:  trainEnd,
				TestEndMs:    testEnd,
			})
		}

		windowStart += stepMs
	}

	return folds
}

// findIndexAtOrAfter returns the index of the first bar with TimeMs >= ts,
// or -1 when every bar is earlier.
func findIndexAtOrAfter(bars []types.Bar, ts int64) int {
	idx := sort.Search(len(bars), func(i int) bool {
		return bars[i].TimeMs >= ts
	})
	if idx == len(bars) {
		return -1
	}
	return idx
}
