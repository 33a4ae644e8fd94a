// Package config loads optimizer run configurations from JSON files with
// environment-variable overrides for infrastructure endpoints.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quantforge/strategy-optimizer/internal/optimizer"
	"github.com/quantforge/strategy-optimizer/pkg/types"
)

// RunConfig is the full description of one optimization run plus the
// infrastructure endpoints the host should wire up.
type RunConfig struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Strategy  string `json:"strategy"`
	RangeDays int    `json:"rangeDays"`

	// Data source: "csv", "mt5" or "bybit".
	DataSource    string `json:"dataSource"`
	DataPath      string `json:"dataPath,omitempty"`
	MT5BridgeURL  string `json:"mt5BridgeUrl,omitempty"`
	BybitCategory string `json:"bybitCategory,omitempty"`

	Base      map[string]interface{}   `json:"base"`
	Grid      map[string][]interface{} `json:"grid"`
	MaxCombos int                      `json:"maxCombos"`

	Objective  optimizer.Objective   `json:"objective"`
	Validation optimizer.Validation  `json:"validation"`
	Filter     *optimizer.TimeFilter `json:"filter,omitempty"`
	Exec       types.ExecutionConfig `json:"exec"`

	// Optional infrastructure; empty disables the component.
	RedisAddr   string `json:"redisAddr,omitempty"`
	PostgresDSN string `json:"postgresDsn,omitempty"`
	MetricsAddr string `json:"metricsAddr,omitempty"`
}

// Load reads the JSON config file, applies environment overrides and
// validates the result.
func Load(path string) (*RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv lets deployment environments override infrastructure endpoints
// without editing the config file.
func (c *RunConfig) applyEnv() {
	if v := os.Getenv("OPTIMIZER_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("OPTIMIZER_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("OPTIMIZER_MT5_BRIDGE_URL"); v != "" {
		c.MT5BridgeURL = v
	}
	if v := os.Getenv("OPTIMIZER_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

// Validate checks the required fields and defaults the optional ones.
func (c *RunConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Timeframe == "" {
		return fmt.Errorf("timeframe is required")
	}
	if c.Strategy == "" {
		return fmt.Errorf("strategy is required")
	}
	if len(c.Grid) == 0 {
		return fmt.Errorf("grid is required")
	}

	switch c.DataSource {
	case "csv":
		if c.DataPath == "" {
			return fmt.Errorf("dataPath is required for the csv data source")
		}
	case "mt5":
		if c.MT5BridgeURL == "" {
			c.MT5BridgeURL = "http://127.0.0.1:8787"
		}
	case "bybit", "":
	default:
		return fmt.Errorf("unknown data source %q", c.DataSource)
	}

	if c.RangeDays <= 0 {
		c.RangeDays = 90
	}
	if c.MaxCombos <= 0 {
		c.MaxCombos = 500
	}
	if c.Objective.Weights == (optimizer.Weights{}) && c.Objective.PenaltyWeight == 0 {
		c.Objective = optimizer.DefaultObjective()
	}
	if c.Validation.Mode == "" {
		c.Validation.Mode = optimizer.ModePercent
		c.Validation.SplitPercent = 70
	}
	return nil
}

// BaseParams converts the loosely-typed base map into tagged params,
// rejecting unsupported value shapes.
func (c *RunConfig) BaseParams() (optimizer.Params, error) {
	params := make(optimizer.Params, len(c.Base))
	for key, raw := range c.Base {
		v, err := optimizer.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("base param %q: %w", key, err)
		}
		params[key] = v
	}
	return params, nil
}

// GridParams converts the loosely-typed grid into a typed ParamGrid.
func (c *RunConfig) GridParams() (optimizer.ParamGrid, error) {
	grid := make(optimizer.ParamGrid, len(c.Grid))
	for key, rawValues := range c.Grid {
		values := make([]optimizer.ParamValue, 0, len(rawValues))
		for i, raw := range rawValues {
			v, err := optimizer.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("grid param %q[%d]: %w", key, i, err)
			}
			values = append(values, v)
		}
		grid[key] = values
	}
	return grid, nil
}

// SessionRequest assembles the optimizer request from the config.
func (c *RunConfig) SessionRequest() (optimizer.SessionRequest, error) {
	base, err := c.BaseParams()
	if err != nil {
		return optimizer.SessionRequest{}, err
	}
	grid, err := c.GridParams()
	if err != nil {
		return optimizer.SessionRequest{}, err
	}
	return optimizer.SessionRequest{
		Symbol:     c.Symbol,
		Timeframe:  c.Timeframe,
		Strategy:   c.Strategy,
		RangeDays:  c.RangeDays,
		Base:       base,
		Grid:       grid,
		MaxCombos:  c.MaxCombos,
		Objective:  c.Objective,
		Validation: c.Validation,
		Filter:     c.Filter,
		Exec:       c.Exec,
	}, nil
}
