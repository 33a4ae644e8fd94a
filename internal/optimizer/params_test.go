package optimizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_SupportedTypes(t *testing.T) {
	cases := []struct {
		in   interface{}
		want ParamValue
	}{
		{"fast", String("fast")},
		{3.5, Number(3.5)},
		{float32(2), Number(2)},
		{7, Number(7)},
		{int64(9), Number(9)},
		{true, Boolean(true)},
	}
	for _, tc := range cases {
		got, err := FromAny(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestFromAny_RejectsUnsupportedTypes(t *testing.T) {
	_, err := FromAny([]string{"nested"})
	assert.Error(t, err)

	_, err = FromAny(map[string]int{"k": 1})
	assert.Error(t, err)

	_, err = FromAny(nil)
	assert.Error(t, err)
}

func TestParamValue_JSONRoundTrip(t *testing.T) {
	p := Params{
		"period": Number(14),
		"mode":   String("wilder"),
		"strict": Boolean(false),
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var back Params
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, p, back)
}

func TestStableJSON_SortsKeys(t *testing.T) {
	p := Params{
		"zeta":  Number(1),
		"alpha": Number(2),
		"mid":   String("x"),
	}
	assert.Equal(t, `{"alpha":2,"mid":"x","zeta":1}`, p.StableJSON())
}

func TestParamsHash_StableAcrossInsertionOrder(t *testing.T) {
	a := Params{}
	a["fast"] = Number(12)
	a["slow"] = Number(26)
	a["trend"] = Boolean(true)

	b := Params{}
	b["trend"] = Boolean(true)
	b["slow"] = Number(26)
	b["fast"] = Number(12)

	assert.Equal(t, a.Hash(), b.Hash())
}

func TestParamsHash_SensitiveToValues(t *testing.T) {
	a := Params{"fast": Number(12)}
	b := Params{"fast": Number(13)}
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestParams_Clone_Independent(t *testing.T) {
	orig := Params{"period": Number(14)}
	clone := orig.Clone()
	clone["period"] = Number(21)

	assert.Equal(t, 14.0, orig.Num("period", 0))
	assert.Equal(t, 21.0, clone.Num("period", 0))
}

func TestParams_Accessors(t *testing.T) {
	p := Params{
		"period": Number(14.9),
		"mode":   String("fast"),
		"flag":   Boolean(true),
	}

	assert.Equal(t, 14.9, p.Num("period", 0))
	assert.Equal(t, 14, p.Int("period", 0))
	assert.True(t, p.Flag("flag", false))

	// Missing or mistyped keys fall back to the default.
	assert.Equal(t, 5.0, p.Num("missing", 5))
	assert.Equal(t, 3, p.Int("mode", 3))
	assert.False(t, p.Flag("period", false))
}
