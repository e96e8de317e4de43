package reconcile

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/helixir/bibliometrics-service/internal/domain"
)

// Stats summarizes the non-missing cells of one MetricRow.
type Stats struct {
	Median domain.Value `json:"median"`
	Mean   domain.Value `json:"mean"`
	SD     domain.Value `json:"sd"`
	CV     domain.Value `json:"cv"`
}

// computeStats returns median, mean, sample standard deviation and
// coefficient of variation. SD needs at least two values; CV is missing when
// SD is missing or the mean is zero.
func computeStats(values []float64) Stats {
	s := Stats{
		Median: domain.Missing(),
		Mean:   domain.Missing(),
		SD:     domain.Missing(),
		CV:     domain.Missing(),
	}
	if len(values) == 0 {
		return s
	}

	s.Median = domain.Known(median(values))

	if len(values) < 2 {
		s.Mean = domain.Known(values[0])
		return s
	}

	mean, sd := stat.MeanStdDev(values, nil)
	s.Mean = domain.Known(mean)
	s.SD = domain.Known(sd)
	if mean != 0 {
		s.CV = domain.Known(sd / mean)
	}
	return s
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
