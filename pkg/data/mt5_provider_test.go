package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

func TestMT5Provider_FetchesSeries(t *testing.T) {
	var captured seriesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/history/series", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(seriesResponse{
			OK: true,
			Bars: []types.Bar{
				{TimeMs: 1700000000000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
				{TimeMs: 1700003600000, Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12},
			},
		})
	}))
	defer server.Close()

	p := NewMT5Provider(server.URL)
	bars, err := p.GetHistoricalBars(context.Background(), "XAUUSD", "1h", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "XAUUSD", captured.Symbol)
	assert.Equal(t, "1h", captured.Resolution)
	assert.Less(t, captured.From, captured.To)
	assert.Equal(t, 100.5, bars[0].Close)
}

func TestMT5Provider_BridgeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(seriesResponse{OK: false, Error: "symbol not found"})
	}))
	defer server.Close()

	p := NewMT5Provider(server.URL)
	_, err := p.GetHistoricalBars(context.Background(), "NOPE", "1h", 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not found")
}

func TestMT5Provider_Unreachable(t *testing.T) {
	p := NewMT5Provider("http://127.0.0.1:1")
	_, err := p.GetHistoricalBars(context.Background(), "EURUSD", "1h", 30)
	assert.Error(t, err)
}
