package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBar_CompactJSONTags(t *testing.T) {
	raw := `{"t":1700000000000,"o":100,"h":101,"l":99,"c":100.5,"v":1200}`

	var b Bar
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Equal(t, int64(1700000000000), b.TimeMs)
	assert.Equal(t, 100.5, b.Close)
	assert.Equal(t, 1200.0, b.Volume)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestBarsSignature(t *testing.T) {
	bars := []Bar{{TimeMs: 1000}, {TimeMs: 2000}, {TimeMs: 3000}}
	assert.Equal(t, "3|1000|3000", BarsSignature(bars))
	assert.Equal(t, "0|0|0", BarsSignature(nil))
}

func TestTrade_Win(t *testing.T) {
	assert.True(t, Trade{Closed: true, RMultiple: 0.5}.Win())
	assert.False(t, Trade{Closed: true, RMultiple: 0}.Win())
	assert.False(t, Trade{Closed: false, RMultiple: 2}.Win())
}
