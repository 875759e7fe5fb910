package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"go-fraud-score-dashboard/internal/connectors/scoring"
)

func sampleBatch() *scoring.BatchResult {
	score := 0.873
	impact := 0.12
	low := 0.35
	return &scoring.BatchResult{
		Count:        1,
		ThresholdLow: &low,
		ModelVersion: "v12",
		Results: []scoring.ScoreResult{
			{
				TransactionSeq: float64(20240001),
				Score:          &score,
				Decision:       "review",
				ThresholdLow:   &low,
				ModelVersion:   "v12",
				Reasons: []scoring.Reason{
					{Title: "velocity_24h", Impact: &impact, Direction: "↑"},
				},
			},
		},
	}
}

func TestBatchCSV(t *testing.T) {
	blob, err := BatchCSV(sampleBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(blob)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d records", len(records))
	}
	row := records[1]
	if row[0] != "20240001" {
		t.Fatalf("expected integer-style transaction seq, got %q", row[0])
	}
	if row[1] != "87.30" {
		t.Fatalf("expected formatted score, got %q", row[1])
	}
	if row[2] != "Manual review" {
		t.Fatalf("expected resolved decision label, got %q", row[2])
	}
	if !strings.Contains(row[6], "velocity_24h") {
		t.Fatalf("expected reason titles in reasons column, got %q", row[6])
	}
}

func TestBatchCSV_NilScoreRendersNA(t *testing.T) {
	batch := sampleBatch()
	batch.Results[0].Score = nil

	blob, err := BatchCSV(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(blob)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if records[1][1] != "N/A" {
		t.Fatalf("expected N/A for missing score, got %q", records[1][1])
	}
}

func TestBatchXLSX_ProducesWorkbook(t *testing.T) {
	blob, err := BatchXLSX(sampleBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// XLSX files are zip archives.
	if len(blob) < 4 || blob[0] != 'P' || blob[1] != 'K' {
		t.Fatalf("expected zip magic in workbook output")
	}
}
