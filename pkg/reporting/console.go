// Package reporting renders optimizer results to the console and to Excel
// workbooks.
package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantforge/strategy-optimizer/internal/optimizer"
)

// ConsoleReporter prints session results as tables.
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintResults renders the ranked candidates, the recommendation and any
// warnings.
func (r *ConsoleReporter) PrintResults(session optimizer.Session, results *optimizer.Results) {
	fmt.Printf("\nSession %s — %s %s / %s (%s)\n",
		session.SessionID, session.Symbol, session.Timeframe, session.Strategy, session.Status)
	fmt.Printf("Evaluated %d of %d combinations", results.Evaluated, results.TotalCombos)
	if results.Truncated {
		fmt.Print(" (truncated by maxCombos)")
	}
	fmt.Println()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Params", "Score", "Stability", "Win%", "Expect", "PF", "MaxDD", "Trades", "Pareto"})
	for i, c := range results.TopCandidates {
		pareto := ""
		if c.IsPareto {
			pareto = "*"
		}
		t.AppendRow(table.Row{
			i + 1,
			c.Params.StableJSON(),
			fmt.Sprintf("%.4f", c.Score),
			fmt.Sprintf("%.2f", c.StabilityScore),
			fmtPct(c.Test.WinRate),
			fmtF(c.Test.Expectancy),
			fmtF(c.Test.ProfitFactor),
			fmtF(c.Test.MaxDrawdown),
			c.Test.TradeCount,
			pareto,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 60},
		{Number: 10, Align: text.AlignCenter},
	})
	t.Render()

	if results.Recommended != nil {
		fmt.Printf("\nRecommended: %s\n", results.Recommended.Params.StableJSON())
	}
	for _, w := range results.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func fmtF(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func fmtPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
