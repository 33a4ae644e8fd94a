package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/quantforge/strategy-optimizer/internal/optimizer"
)

// ExcelReporter writes a session's full results to an Excel workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header  int
	good    int
	bad     int
	neutral int
}

// WriteResultsXLSX writes the summary, candidate ranking and diagnostics
// sheets to path, creating parent directories as needed.
func (r *ExcelReporter) WriteResultsXLSX(session optimizer.Session, results *optimizer.Results, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const candidatesSheet = "Candidates"
	const diagnosticsSheet = "Diagnostics"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	fx.NewSheet(candidatesSheet)
	fx.NewSheet(diagnosticsSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, session, results, styles); err != nil {
		return err
	}
	if err := r.writeCandidatesSheet(fx, candidatesSheet, results, styles); err != nil {
		return err
	}
	if err := r.writeDiagnosticsSheet(fx, diagnosticsSheet, results, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2F5496"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.good, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006100", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}},
	})
	if err != nil {
		return styles, err
	}

	styles.bad, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
	})
	if err != nil {
		return styles, err
	}

	styles.neutral, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Family: "Calibri"},
	})
	return styles, err
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, session optimizer.Session, results *optimizer.Results, styles excelStyles) error {
	rows := [][2]interface{}{
		{"Session ID", session.SessionID},
		{"Status", string(session.Status)},
		{"Symbol", session.Symbol},
		{"Timeframe", session.Timeframe},
		{"Strategy", session.Strategy},
		{"Validation Mode", string(session.Validation.Mode)},
		{"Total Combinations", results.TotalCombos},
		{"Evaluated", results.Evaluated},
		{"Truncated", results.Truncated},
	}
	if results.Recommended != nil {
		rows = append(rows,
			[2]interface{}{"Recommended Params", results.Recommended.Params.StableJSON()},
			[2]interface{}{"Recommended Score", results.Recommended.Score},
			[2]interface{}{"Stability Score", results.Recommended.StabilityScore},
		)
	}

	for i, row := range rows {
		cellA, _ := excelize.CoordinatesToCellName(1, i+1)
		cellB, _ := excelize.CoordinatesToCellName(2, i+1)
		fx.SetCellValue(sheet, cellA, row[0])
		fx.SetCellValue(sheet, cellB, row[1])
		fx.SetCellStyle(sheet, cellA, cellA, styles.header)
	}

	warnRow := len(rows) + 2
	for i, w := range results.Warnings {
		cell, _ := excelize.CoordinatesToCellName(1, warnRow+i)
		fx.SetCellValue(sheet, cell, "Warning: "+w)
		fx.SetCellStyle(sheet, cell, cell, styles.bad)
	}

	fx.SetColWidth(sheet, "A", "A", 24)
	fx.SetColWidth(sheet, "B", "B", 60)
	return nil
}

func (r *ExcelReporter) writeCandidatesSheet(fx *excelize.File, sheet string, results *optimizer.Results, styles excelStyles) error {
	headers := []string{
		"Rank", "Params", "Score", "Stability", "Pareto",
		"Test Trades", "Test Win Rate", "Test Expectancy", "Test Profit Factor", "Test Net R", "Test Max DD",
		"Train Trades", "Train Win Rate", "Train Expectancy", "Train Net R",
		"Divergence Penalty", "Stability Penalty",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.header)
	}

	for i, c := range results.TopCandidates {
		row := i + 2
		values := []interface{}{
			i + 1,
			c.Params.StableJSON(),
			c.Score,
			c.StabilityScore,
			c.IsPareto,
			c.Test.TradeCount,
			cellF(c.Test.WinRate),
			cellF(c.Test.Expectancy),
			cellF(c.Test.ProfitFactor),
			cellF(c.Test.NetR),
			cellF(c.Test.MaxDrawdown),
			c.Train.TradeCount,
			cellF(c.Train.WinRate),
			cellF(c.Train.Expectancy),
			cellF(c.Train.NetR),
			c.Penalty,
			c.StabilityPenalty,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			fx.SetCellValue(sheet, cell, v)
		}

		scoreCell, _ := excelize.CoordinatesToCellName(3, row)
		if c.Score > 0 {
			fx.SetCellStyle(sheet, scoreCell, scoreCell, styles.good)
		} else {
			fx.SetCellStyle(sheet, scoreCell, scoreCell, styles.bad)
		}
	}

	fx.SetColWidth(sheet, "B", "B", 50)
	return nil
}

func (r *ExcelReporter) writeDiagnosticsSheet(fx *excelize.File, sheet string, results *optimizer.Results, styles excelStyles) error {
	diag := results.Diagnostics
	if diag == nil {
		fx.SetCellValue(sheet, "A1", "No diagnostics available")
		return nil
	}

	fx.SetCellValue(sheet, "A1", "Losses by Hour (UTC)")
	fx.SetCellStyle(sheet, "A1", "A1", styles.header)
	for hour, n := range diag.LossByHour {
		cellA, _ := excelize.CoordinatesToCellName(1, hour+2)
		cellB, _ := excelize.CoordinatesToCellName(2, hour+2)
		fx.SetCellValue(sheet, cellA, hour)
		fx.SetCellValue(sheet, cellB, n)
	}

	fx.SetCellValue(sheet, "D1", "Losses by Day of Week")
	fx.SetCellStyle(sheet, "D1", "D1", styles.header)
	days := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	for dow, n := range diag.LossByDOW {
		cellD, _ := excelize.CoordinatesToCellName(4, dow+2)
		cellE, _ := excelize.CoordinatesToCellName(5, dow+2)
		fx.SetCellValue(sheet, cellD, days[dow])
		fx.SetCellValue(sheet, cellE, n)
	}

	fx.SetCellValue(sheet, "G1", "Win Streaks")
	fx.SetCellStyle(sheet, "G1", "G1", styles.header)
	writeStreaks(fx, sheet, 7, diag.WinStreaks)

	fx.SetCellValue(sheet, "I1", "Loss Streaks")
	fx.SetCellStyle(sheet, "I1", "I1", styles.header)
	writeStreaks(fx, sheet, 9, diag.LossStreaks)

	if diag.WorstFold >= 0 {
		fx.SetCellValue(sheet, "K1", "Worst Fold")
		fx.SetCellStyle(sheet, "K1", "K1", styles.header)
		fx.SetCellValue(sheet, "K2", diag.WorstFold)
		fx.SetCellValue(sheet, "L2", diag.WorstFoldNet)
	}
	return nil
}

func writeStreaks(fx *excelize.File, sheet string, col int, streaks map[int]int) {
	lengths := make([]int, 0, len(streaks))
	for l := range streaks {
		lengths = append(lengths, l)
	}
	sort.Ints(lengths)
	for i, l := range lengths {
		cellA, _ := excelize.CoordinatesToCellName(col, i+2)
		cellB, _ := excelize.CoordinatesToCellName(col+1, i+2)
		fx.SetCellValue(sheet, cellA, l)
		fx.SetCellValue(sheet, cellB, streaks[l])
	}
}

// cellF renders a nullable metric for a cell; missing values come out blank.
func cellF(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
