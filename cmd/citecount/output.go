package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/helixir/bibliometrics-service/internal/comparison"
	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/reconcile"
)

// missingCell is printed for values no source reported.
const missingCell = "-"

// compareOutput is the JSON document printed by compare --format json.
type compareOutput struct {
	RequestID   string                 `json:"request_id"`
	Identifiers []domain.Identifier    `json:"identifiers"`
	Sources     []reconcile.SourceRank `json:"sources"`
	Rows        []reconcile.Row        `json:"rows"`
	Diagnostics []domain.Diagnostic    `json:"diagnostics"`
	Timings     []timingOutput         `json:"timings"`
	DurationMS  int64                  `json:"duration_ms"`
}

type timingOutput struct {
	Source       domain.SourceName `json:"source"`
	DurationMS   int64             `json:"duration_ms"`
	Observations int               `json:"observations"`
	Failed       bool              `json:"failed"`
	Cached       bool              `json:"cached"`
}

func resultOutput(r *comparison.Result, table *reconcile.Table) compareOutput {
	out := compareOutput{
		RequestID:   r.RequestID,
		Identifiers: r.Identifiers,
		Sources:     table.Ranking,
		Rows:        table.Rows,
		Diagnostics: r.Diagnostics,
		Timings:     make([]timingOutput, len(r.Timings)),
		DurationMS:  r.Duration.Milliseconds(),
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []domain.Diagnostic{}
	}
	for i, t := range r.Timings {
		out.Timings[i] = timingOutput{
			Source:       t.Source,
			DurationMS:   t.Duration.Milliseconds(),
			Observations: t.Observations,
			Failed:       t.Failed,
			Cached:       t.Cached,
		}
	}
	return out
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(w io.Writer, t *reconcile.Table) error {
	if err := reconcile.WriteCSV(w, t); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// writeTable prints one line per identifier and metric. Source columns follow
// the ranking; a value above its row median is marked ↑, below ↓. With
// relative set, source cells hold value/median instead of the count.
// Identifiers a source returned without being asked for are marked *.
func writeTable(w io.Writer, t *reconcile.Table, relative bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"DOI", "METRIC"}
	for _, s := range t.Sources {
		header = append(header, s.DisplayName())
	}
	header = append(header, "MEDIAN", "MEAN", "SD", "CV")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	unrequested := false
	for _, row := range t.Rows {
		doi := row.Identifier.URL()
		if !row.Requested {
			doi += " *"
			unrequested = true
		}
		for _, m := range row.Metrics {
			cells := []string{doi, string(m.Metric)}
			for _, s := range t.Sources {
				if relative {
					cells = append(cells, formatStat(m.Relative(s)))
				} else {
					cells = append(cells, markedCount(m, s))
				}
			}
			cells = append(cells,
				formatStat(m.Stats.Median),
				formatStat(m.Stats.Mean),
				formatStat(m.Stats.SD),
				formatStat(m.Stats.CV),
			)
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	if relative {
		if _, err := fmt.Fprintln(w, "\nsource values are relative to the row median (count+1 where the median is 0)"); err != nil {
			return err
		}
	}
	if unrequested {
		_, err := fmt.Fprintln(w, "\n* returned by a source but not requested")
		return err
	}
	return nil
}

func markedCount(m reconcile.MetricRow, source domain.SourceName) string {
	v := m.Value(source)
	if v.IsMissing() {
		return missingCell
	}
	switch m.Position(source) {
	case reconcile.PositionAbove:
		return v.String() + "↑"
	case reconcile.PositionBelow:
		return v.String() + "↓"
	default:
		return v.String()
	}
}

func formatStat(v domain.Value) string {
	f, ok := v.Float64()
	if !ok {
		return missingCell
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// onlyMetric returns a copy of t restricted to one metric.
func onlyMetric(t *reconcile.Table, metric domain.MetricKind) *reconcile.Table {
	out := *t
	view := t.MetricView(metric)
	out.Rows = make([]reconcile.Row, 0, len(view))
	for _, v := range view {
		out.Rows = append(out.Rows, reconcile.Row{
			Identifier: v.Identifier,
			Requested:  v.Requested,
			Metrics:    []reconcile.MetricRow{v.MetricRow},
		})
	}
	return &out
}
