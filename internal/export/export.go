// Package export renders mapped batch scoring results as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"go-fraud-score-dashboard/internal/connectors/scoring"
)

var headers = []string{
	"Transaction Seq",
	"Score (%)",
	"Decision",
	"Threshold Low",
	"Threshold High",
	"Model Version",
	"Reasons",
}

// BatchXLSX returns an XLSX workbook of the batch rows, one row per scored
// transaction with the display-model columns.
func BatchXLSX(result *scoring.BatchResult) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Scores"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, record := range rows(result) {
		for col, value := range record {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "E", 14)
	_ = f.SetColWidth(sheet, "F", "F", 18)
	_ = f.SetColWidth(sheet, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// BatchCSV returns the same rows as a CSV document.
func BatchCSV(result *scoring.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, err
	}
	for _, record := range rows(result) {
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rows(result *scoring.BatchResult) [][]string {
	if result == nil {
		return nil
	}
	out := make([][]string, 0, len(result.Results))
	for _, row := range result.Results {
		out = append(out, []string{
			anyToString(row.TransactionSeq),
			scoreCell(row.Score),
			scoring.ResolveDecision(row.Decision).Label,
			floatCell(row.ThresholdLow),
			floatCell(row.ThresholdHigh),
			row.ModelVersion,
			reasonsCell(row.Reasons),
		})
	}
	return out
}

func scoreCell(score *float64) string {
	if formatted := scoring.FormatScore(score); formatted != nil {
		return *formatted
	}
	return "N/A"
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

func reasonsCell(reasons []scoring.Reason) string {
	var buf bytes.Buffer
	for i, r := range reasons {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(r.Title)
		if r.Impact != nil {
			fmt.Fprintf(&buf, " (%+.4f)", *r.Impact)
		}
	}
	return buf.String()
}

func anyToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
