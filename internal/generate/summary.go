package generate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cwbudde/cogstim/internal/store"
)

// SummaryFile is written per phase when summaries are enabled.
const SummaryFile = "summary.csv"

var summaryHeader = []string{"num1", "num2", "area1_px", "area2_px", "ratio", "abs_diff_px", "rel_diff", "equalized"}

// WriteSummary writes the generated (non-skipped) records to
// <dir>/summary.csv and returns its path. Nothing is written when no record
// qualifies; the returned path is then empty.
func WriteSummary(dir string, records []store.Record) (string, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		if r.Skipped {
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(r.N1),
			strconv.Itoa(r.N2),
			formatFloat(r.Area1),
			formatFloat(r.Area2),
			formatFloat(r.Ratio),
			formatFloat(r.AbsDiff),
			formatFloat(r.RelDiff),
			strconv.FormatBool(r.Equalized),
		})
	}
	if len(rows) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create summary: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close summary: %w", err)
	}
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
