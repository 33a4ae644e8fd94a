package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// BybitProvider fetches historical klines from the Bybit public market API.
// No credentials are required for market data.
type BybitProvider struct {
	client   *bybit_api.Client
	category string
}

// NewBybitProvider creates a provider for the given market category
// ("spot", "linear" or "inverse"; empty defaults to spot).
func NewBybitProvider(category string) *BybitProvider {
	if category == "" {
		category = "spot"
	}
	return &BybitProvider{
		client:   bybit_api.NewBybitHttpClient("", "", bybit_api.WithBaseURL(bybit_api.MAINNET)),
		category: category,
	}
}

// GetName returns the name of the data provider.
func (p *BybitProvider) GetName() string {
	return "Bybit"
}

// GetHistoricalBars pages backwards through the kline endpoint until the
// requested range is covered, then returns the bars in chronological order.
func (p *BybitProvider) GetHistoricalBars(ctx context.Context, symbol, timeframe string, rangeDays int) ([]types.Bar, error) {
	interval, err := bybitInterval(timeframe)
	if err != nil {
		return nil, err
	}

	from := time.Now().AddDate(0, 0, -rangeDays).UnixMilli()
	end := time.Now().UnixMilli()

	var bars []types.Bar
	for end > from {
		page, err := p.fetchPage(ctx, symbol, interval, from, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		bars = append(bars, page...)

		oldest := page[len(page)-1].TimeMs
		if oldest <= from || oldest >= end {
			break
		}
		end = oldest - 1
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].TimeMs < bars[j].TimeMs })
	return bars, nil
}

// fetchPage returns one page of klines, newest first as Bybit serves them.
func (p *BybitProvider) fetchPage(ctx context.Context, symbol, interval string, from, end int64) ([]types.Bar, error) {
	params := map[string]interface{}{
		"category": p.category,
		"symbol":   symbol,
		"interval": interval,
		"start":    from,
		"end":      end,
		"limit":    1000,
	}

	result, err := p.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	return parseKlineResponse(result)
}

// parseKlineResponse converts the Bybit server response into bars.
// Bybit kline rows are [startTime, open, high, low, close, volume, turnover].
func parseKlineResponse(response *bybit_api.ServerResponse) ([]types.Bar, error) {
	if response.RetCode != 0 {
		return nil, fmt.Errorf("bybit api error: %s (code %d)", response.RetMsg, response.RetCode)
	}

	resultBytes, err := json.Marshal(response.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal kline result: %w", err)
	}

	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("unmarshal kline result: %w", err)
	}

	bars := make([]types.Bar, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 6 {
			continue
		}
		bars = append(bars, types.Bar{
			TimeMs: parseInt64(item[0]),
			Open:   parseFloat64(item[1]),
			High:   parseFloat64(item[2]),
			Low:    parseFloat64(item[3]),
			Close:  parseFloat64(item[4]),
			Volume: parseFloat64(item[5]),
		})
	}
	return bars, nil
}

// bybitInterval maps common timeframe notation to Bybit interval codes.
func bybitInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h", "60m":
		return "60", nil
	case "4h":
		return "240", nil
	case "1d", "D":
		return "D", nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", timeframe)
	}
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
