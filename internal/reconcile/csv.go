package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes one line per (row, metric). Source columns follow the
// ranked order and missing values are left empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(t.Sources)+6)
	header = append(header, "doi", "count")
	for _, s := range t.Sources {
		header = append(header, s.DisplayName())
	}
	header = append(header, "median", "mean", "sd", "cv")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, row := range t.Rows {
		for _, m := range row.Metrics {
			record := make([]string, 0, len(header))
			record = append(record, row.Identifier.URL(), string(m.Metric))
			for _, c := range m.Cells {
				record = append(record, c.Value.String())
			}
			record = append(record,
				m.Stats.Median.String(), m.Stats.Mean.String(), m.Stats.SD.String(), m.Stats.CV.String())
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("writing %s: %w", row.Identifier, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
