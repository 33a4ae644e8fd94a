package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandGrid_FullCartesianProduct(t *testing.T) {
	base := Params{"risk": Number(1)}
	grid := ParamGrid{
		"fast": {Number(10), Number(12)},
		"slow": {Number(26), Number(30), Number(50)},
	}

	combos := ExpandGrid(base, grid, 100)
	require.Len(t, combos, 6)

	// Base values carry through to every combo.
	for _, c := range combos {
		assert.Equal(t, 1.0, c.Num("risk", 0))
	}

	// Sorted key order makes expansion deterministic.
	assert.Equal(t, 10.0, combos[0].Num("fast", 0))
	assert.Equal(t, 26.0, combos[0].Num("slow", 0))
	assert.Equal(t, 10.0, combos[1].Num("fast", 0))
	assert.Equal(t, 30.0, combos[1].Num("slow", 0))
}

func TestExpandGrid_ShortCircuitsAtCap(t *testing.T) {
	grid := ParamGrid{
		"a": {Number(1), Number(2), Number(3), Number(4)},
		"b": {Number(1), Number(2), Number(3), Number(4)},
	}

	combos := ExpandGrid(nil, grid, 5)
	assert.Len(t, combos, 5)
}

func TestExpandGrid_EmptyValueListSkipped(t *testing.T) {
	grid := ParamGrid{
		"fast":  {Number(10), Number(12)},
		"empty": {},
	}

	combos := ExpandGrid(nil, grid, 100)
	require.Len(t, combos, 2)
	for _, c := range combos {
		_, present := c["empty"]
		assert.False(t, present)
	}
}

func TestExpandGrid_EmptyGridYieldsBase(t *testing.T) {
	base := Params{"period": Number(14)}
	combos := ExpandGrid(base, ParamGrid{}, 10)
	require.Len(t, combos, 1)
	assert.Equal(t, 14.0, combos[0].Num("period", 0))
}

func TestExpandGrid_GridOverridesBase(t *testing.T) {
	base := Params{"fast": Number(5)}
	grid := ParamGrid{"fast": {Number(10)}}

	combos := ExpandGrid(base, grid, 10)
	require.Len(t, combos, 1)
	assert.Equal(t, 10.0, combos[0].Num("fast", 0))
}

func TestEstimateCombos(t *testing.T) {
	grid := ParamGrid{
		"a": {Number(1), Number(2)},
		"b": {Number(1), Number(2), Number(3)},
		"c": {},
	}
	assert.Equal(t, 6, EstimateCombos(grid))
	assert.Equal(t, 1, EstimateCombos(ParamGrid{}))
}
