package optimizer

import "sort"

// ExpandGrid performs a breadth-first Cartesian expansion of grid over base.
// The result never exceeds maxCombos; expansion short-circuits as soon as the
// candidate list reaches the cap. Grid keys are processed in sorted order so
// identical inputs always expand to the identical list.
func ExpandGrid(base Params, grid ParamGrid, maxCombos int) []Params {
	if maxCombos < 1 {
		maxCombos = 1
	}
	if base == nil {
		base = Params{}
	}

	combos := []Params{base.Clone()}

	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := grid[key]
		if len(values) == 0 {
			// A key with no candidate values contributes nothing.
			continue
		}

		next := make([]Params, 0, min(len(combos)*len(values), maxCombos))
		for _, combo := range combos {
			for _, v := range values {
				nc := combo.Clone()
				nc[key] = v
				next = append(next, nc)
				if len(next) >= maxCombos {
					return next
				}
			}
		}
		combos = next
	}

	return combos
}

// EstimateCombos multiplies the per-key cardinalities of the grid, flooring
// each at 1. It is a pure size estimate and does not expand anything; callers
// compare it against the expanded length to report truncation.
func EstimateCombos(grid ParamGrid) int {
	total := 1
	for _, values := range grid {
		n := len(values)
		if n < 1 {
			n = 1
		}
		total *= n
	}
	return total
}
