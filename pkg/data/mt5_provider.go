package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// MT5Provider fetches candles from the MT5 bridge service over HTTP. The
// bridge exposes POST /history/series returning
// {ok, bars: [{t,o,h,l,c,v}], error?} with t in epoch milliseconds.
type MT5Provider struct {
	baseURL string
	client  *http.Client
}

// NewMT5Provider creates a provider against the bridge base URL, e.g.
// "http://127.0.0.1:8787".
func NewMT5Provider(baseURL string) *MT5Provider {
	return &MT5Provider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetName returns the name of the data provider.
func (p *MT5Provider) GetName() string {
	return "MT5 Bridge"
}

type seriesRequest struct {
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
	Limit      int    `json:"limit"`
}

type seriesResponse struct {
	OK    bool        `json:"ok"`
	Bars  []types.Bar `json:"bars"`
	Error string      `json:"error"`
}

// GetHistoricalBars requests the trailing rangeDays window for the symbol at
// the given resolution.
func (p *MT5Provider) GetHistoricalBars(ctx context.Context, symbol, timeframe string, rangeDays int) ([]types.Bar, error) {
	now := time.Now()
	payload := seriesRequest{
		Symbol:     symbol,
		Resolution: timeframe,
		From:       now.AddDate(0, 0, -rangeDays).UnixMilli(),
		To:         now.UnixMilli(),
		Limit:      10000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode series request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/history/series", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build series request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mt5 bridge request: %w", err)
	}
	defer resp.Body.Close()

	var decoded seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode series response: %w", err)
	}
	if !decoded.OK {
		if decoded.Error == "" {
			decoded.Error = fmt.Sprintf("bridge returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("mt5 bridge: %s", decoded.Error)
	}

	return decoded.Bars, nil
}
