// Package export serialises aggregation results for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/billus/billus-server/internal/billing"
)

// WriteGroupedTotalsCSV serialises grouped totals to CSV.
func WriteGroupedTotalsCSV(w io.Writer, period string, totals []billing.GroupTotal) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Period", "Label", "Total"}); err != nil {
		return err
	}
	for _, t := range totals {
		if err := writer.Write([]string{period, t.Label, formatInt(t.Total)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePivotCSV emits the monthly visit matrix: one row per entity with a
// column per day of month, followed by the accumulated count, the derived
// amount, and a grand total line.
func WritePivotCSV(w io.Writer, pivot billing.Pivot) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := make([]string, 0, billing.PivotDays+3)
	header = append(header, "Label")
	header = append(header, pivot.Days[:]...)
	header = append(header, "Count", "Amount")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range pivot.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Label)
		for _, cell := range row.Cells {
			record = append(record, formatInt(cell))
		}
		record = append(record, formatInt(row.Count), formatInt(row.Amount))
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	total := make([]string, len(header))
	total[0] = "Grand Total"
	total[len(total)-1] = formatInt(pivot.GrandTotal)
	if err := writer.Write(total); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
