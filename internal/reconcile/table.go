// Package reconcile merges the observations of all sources into one wide
// table: a row per identifier, a sub-row per metric, a cell per source, plus
// cross-source statistics.
package reconcile

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// Position places a value relative to its row median.
type Position string

const (
	PositionBelow   Position = "below"
	PositionAt      Position = "at"
	PositionAbove   Position = "above"
	PositionUnknown Position = "unknown"
)

// Cell is one source's value in a MetricRow, with its place relative to the
// row median.
type Cell struct {
	Source   domain.SourceName `json:"source"`
	Value    domain.Value      `json:"value"`
	Relative domain.Value      `json:"relative"`
	Position Position          `json:"position"`
}

// MetricRow holds one metric of one identifier across the ranked sources.
type MetricRow struct {
	Metric domain.MetricKind `json:"metric"`
	Cells  []Cell            `json:"cells"`
	Stats  Stats             `json:"stats"`
}

// Value returns the cell value for source, missing if the source is not a column.
func (m MetricRow) Value(source domain.SourceName) domain.Value {
	for _, c := range m.Cells {
		if c.Source == source {
			return c.Value
		}
	}
	return domain.Missing()
}

// Relative returns the source's value divided by the row median. A zero
// median is shifted by one so that sources reporting zero read as 1.
func (m MetricRow) Relative(source domain.SourceName) domain.Value {
	v, ok := m.Value(source).Float64()
	if !ok {
		return domain.Missing()
	}
	med, ok := m.Stats.Median.Float64()
	if !ok {
		return domain.Missing()
	}
	if med > 0 {
		return domain.Known(v / med)
	}
	return domain.Known(v + 1)
}

// Position reports whether the source's value is below, at or above the median.
func (m MetricRow) Position(source domain.SourceName) Position {
	v, ok := m.Value(source).Float64()
	if !ok {
		return PositionUnknown
	}
	med, ok := m.Stats.Median.Float64()
	if !ok {
		return PositionUnknown
	}
	switch cmp.Compare(v, med) {
	case -1:
		return PositionBelow
	case 1:
		return PositionAbove
	}
	return PositionAt
}

// Row is one identifier with a MetricRow per metric.
type Row struct {
	Identifier domain.Identifier `json:"identifier"`
	Requested  bool              `json:"requested"`
	Metrics    []MetricRow       `json:"metrics"`
}

// Metric returns the MetricRow for metric.
func (r Row) Metric(metric domain.MetricKind) (MetricRow, bool) {
	for _, m := range r.Metrics {
		if m.Metric == metric {
			return m, true
		}
	}
	return MetricRow{}, false
}

// SourceRank is one entry of the source ranking.
type SourceRank struct {
	Source        domain.SourceName `json:"source"`
	DisplayName   string            `json:"display_name"`
	MeanCitations domain.Value      `json:"mean_citations"`
}

// Table is the reconciled result.
type Table struct {
	// Sources are the active sources ordered by mean citation value.
	Sources []domain.SourceName `json:"sources"`

	// Ranking carries the ranking score of each entry of Sources.
	Ranking []SourceRank `json:"ranking"`

	// Rows has every requested identifier, in request order, followed by
	// observed identifiers that were not requested.
	Rows []Row `json:"rows"`

	// Diagnostics collects duplicate and no-data notices.
	Diagnostics []domain.Diagnostic `json:"diagnostics"`
}

// Row looks up an identifier.
func (t *Table) Row(id domain.Identifier) (Row, bool) {
	for _, r := range t.Rows {
		if r.Identifier == id {
			return r, true
		}
	}
	return Row{}, false
}

// MetricView is one metric of one identifier, as listed by Table.MetricView.
type MetricView struct {
	Identifier domain.Identifier
	Requested  bool
	MetricRow
}

// MetricView returns the rows for one metric, in table order.
func (t *Table) MetricView(metric domain.MetricKind) []MetricView {
	out := make([]MetricView, 0, len(t.Rows))
	for _, r := range t.Rows {
		if m, ok := r.Metric(metric); ok {
			out = append(out, MetricView{Identifier: r.Identifier, Requested: r.Requested, MetricRow: m})
		}
	}
	return out
}

// Reconcile de-duplicates obs, joins them onto the requested identifiers,
// pivots by metric and source, ranks the active sources and computes the
// per-row statistics. Observations from sources outside active are ignored.
func Reconcile(obs []domain.Observation, ids []domain.Identifier, active []domain.SourceName) *Table {
	activeSet := make(map[domain.SourceName]bool, len(active))
	for _, s := range active {
		activeSet[s] = true
	}

	filtered := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if activeSet[o.Source] {
			filtered = append(filtered, o)
		}
	}

	kept, diagnostics := domain.DedupeObservations(filtered)

	values := make(map[domain.ObservationKey]domain.Value, len(kept))
	observed := make(map[domain.Identifier]bool)
	for _, o := range kept {
		values[o.Key()] = o.Value
		observed[o.Identifier] = true
	}

	// Requested identifiers first, then observed extras in first-seen order.
	type rowKey struct {
		id        domain.Identifier
		requested bool
	}
	listed := make(map[domain.Identifier]bool, len(ids))
	var keys []rowKey
	for _, id := range ids {
		if !listed[id] {
			listed[id] = true
			keys = append(keys, rowKey{id: id, requested: true})
		}
	}
	for _, o := range kept {
		if !listed[o.Identifier] {
			listed[o.Identifier] = true
			keys = append(keys, rowKey{id: o.Identifier})
		}
	}

	rowIDs := make([]domain.Identifier, len(keys))
	for i, k := range keys {
		rowIDs[i] = k.id
	}
	ranking := rankSources(active, rowIDs, values)
	sources := make([]domain.SourceName, len(ranking))
	for i, r := range ranking {
		sources[i] = r.Source
	}

	table := &Table{
		Sources:     sources,
		Ranking:     ranking,
		Rows:        make([]Row, 0, len(keys)),
		Diagnostics: diagnostics,
	}
	for _, k := range keys {
		table.Rows = append(table.Rows, buildRow(k.id, k.requested, sources, values))
		if k.requested && !observed[k.id] {
			table.Diagnostics = append(table.Diagnostics, domain.Diagnostic{
				Severity:   domain.SeverityInfo,
				Kind:       domain.DiagnosticNoData,
				Identifier: k.id,
				Message:    fmt.Sprintf("no source returned data for %s", k.id),
			})
		}
	}

	return table
}

func buildRow(id domain.Identifier, requested bool, sources []domain.SourceName, values map[domain.ObservationKey]domain.Value) Row {
	row := Row{Identifier: id, Requested: requested, Metrics: make([]MetricRow, 0, len(domain.AllMetrics))}
	for _, metric := range domain.AllMetrics {
		mr := MetricRow{Metric: metric, Cells: make([]Cell, 0, len(sources))}
		var present []float64
		for _, source := range sources {
			v, ok := values[domain.ObservationKey{Identifier: id, Metric: metric, Source: source}]
			if !ok {
				v = domain.Missing()
			}
			if n, ok := v.Float64(); ok {
				present = append(present, n)
			}
			mr.Cells = append(mr.Cells, Cell{Source: source, Value: v})
		}
		mr.Stats = computeStats(present)
		for i := range mr.Cells {
			mr.Cells[i].Relative = mr.Relative(mr.Cells[i].Source)
			mr.Cells[i].Position = mr.Position(mr.Cells[i].Source)
		}
		row.Metrics = append(row.Metrics, mr)
	}
	return row
}

// rankSources orders sources by the mean of their non-missing citation values,
// descending. Ties keep natural order; sources without citation values go last.
func rankSources(active []domain.SourceName, ids []domain.Identifier, values map[domain.ObservationKey]domain.Value) []SourceRank {
	sources := slices.Clone(active)
	slices.SortStableFunc(sources, func(a, b domain.SourceName) int {
		return cmp.Compare(a.Order(), b.Order())
	})
	sources = slices.Compact(sources)

	ranking := make([]SourceRank, len(sources))
	for i, source := range sources {
		var sum float64
		var n int
		for _, id := range ids {
			if f, ok := values[domain.ObservationKey{Identifier: id, Metric: domain.MetricCitations, Source: source}].Float64(); ok {
				sum += f
				n++
			}
		}
		mean := domain.Missing()
		if n > 0 {
			mean = domain.Known(sum / float64(n))
		}
		ranking[i] = SourceRank{Source: source, DisplayName: source.DisplayName(), MeanCitations: mean}
	}

	slices.SortStableFunc(ranking, func(a, b SourceRank) int {
		am, aok := a.MeanCitations.Float64()
		bm, bok := b.MeanCitations.Float64()
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case !aok && !bok:
			return 0
		}
		return cmp.Compare(bm, am)
	})
	return ranking
}
