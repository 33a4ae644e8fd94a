// Package data implements the historical-bar providers the optimizer can
// fetch candles from: local CSV files, the MT5 bridge service, and Bybit.
package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// CSVProvider serves bars from a local CSV file with a
// timestamp,open,high,low,close,volume header row. Timestamps may be epoch
// milliseconds, epoch seconds or RFC3339.
type CSVProvider struct {
	path string
}

// NewCSVProvider creates a provider reading from path.
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

// GetName returns the name of the data provider.
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// GetHistoricalBars loads the file and returns the trailing rangeDays of
// bars. Symbol and timeframe are ignored; the file is the source of truth.
func (p *CSVProvider) GetHistoricalBars(ctx context.Context, symbol, timeframe string, rangeDays int) ([]types.Bar, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var bars []types.Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		line++

		if len(record) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 columns, got %d", line, len(record))
		}

		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if len(bars) > 0 && bar.TimeMs <= bars[len(bars)-1].TimeMs {
			return nil, fmt.Errorf("line %d: timestamps must be strictly increasing", line)
		}
		bars = append(bars, bar)
	}

	return trimToRange(bars, rangeDays), nil
}

func parseBarRecord(record []string) (types.Bar, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return types.Bar{}, err
	}

	values := make([]float64, 0, 5)
	for i := 1; i < len(record) && i < 6; i++ {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse column %d: %w", i, err)
		}
		values = append(values, v)
	}

	bar := types.Bar{
		TimeMs: ts,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
	}
	if len(values) > 4 {
		bar.Volume = values[4]
	}
	return bar, nil
}

func parseTimestamp(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Heuristic: values this small are epoch seconds.
		if n < 1e12 {
			return n * 1000, nil
		}
		return n, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", raw)
}

// trimToRange keeps only the bars within rangeDays of the last bar.
func trimToRange(bars []types.Bar, rangeDays int) []types.Bar {
	if rangeDays <= 0 || len(bars) == 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].TimeMs - int64(rangeDays)*86400000
	for i, b := range bars {
		if b.TimeMs >= cutoff {
			return bars[i:]
		}
	}
	return bars
}
