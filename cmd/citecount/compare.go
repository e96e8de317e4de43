package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/helixir/bibliometrics-service/internal/comparison"
	"github.com/helixir/bibliometrics-service/internal/domain"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

var outputFormats = []string{formatTable, formatJSON, formatCSV}

type compareOptions struct {
	file               string
	dois               []string
	sources            []string
	email              string
	openCitationsToken string
	s2APIKey           string
	format             string
	metric             string
	relative           bool
}

func newCompareCmd(a *app) *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare [doi...]",
		Short: "Compare counts for a set of DOIs across sources",
		Long: `Compare looks up every DOI in each selected source and prints a table with one
line per DOI and metric, one column per source (most generous first) and the
cross-source statistics.

DOIs may be given as arguments, with --doi, or one per line in a file
(--file path, or --file - for stdin). Anything before the "10." prefix is
ignored, so DOI URLs work as well.

Examples:
  citecount compare 10.1038/nature12373 --source crossref --source openalex
  citecount compare --file dois.txt --source opencitations --format csv > counts.csv
  citecount sample --size 5 | citecount compare --file - --metric citations
  citecount compare 10.1038/nature12373 -s crossref -s openalex -s datacite --relative`,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCompare(cmd, a, opts, args)
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read DOIs from a file, one per line (- for stdin)")
	f.StringArrayVar(&opts.dois, "doi", nil, "DOI to compare (repeatable)")
	f.StringSliceVarP(&opts.sources, "source", "s", nil, "source to query (repeatable; default: comparison.default_sources)")
	f.StringVar(&opts.email, "email", "", "contact email for the Crossref and OpenAlex polite pools")
	f.StringVar(&opts.openCitationsToken, "opencitations-token", "", "OpenCitations access token")
	f.StringVar(&opts.s2APIKey, "s2-api-key", "", "Semantic Scholar API key")
	f.StringVarP(&opts.format, "format", "o", formatTable, "output format: table, json or csv")
	f.StringVar(&opts.metric, "metric", "", "only show one metric: citations, references or authors")
	f.BoolVar(&opts.relative, "relative", false, "show each count relative to its row median (table output)")
	return cmd
}

func runCompare(cmd *cobra.Command, a *app, opts *compareOptions, args []string) error {
	if !slices.Contains(outputFormats, opts.format) {
		return domain.NewValidationError("format", fmt.Sprintf("unknown format %q; use table, json or csv", opts.format))
	}
	if opts.relative && opts.format != formatTable {
		return domain.NewValidationError("relative", "--relative applies to table output; json output always carries relative values")
	}
	var metric domain.MetricKind
	if opts.metric != "" {
		m, err := domain.ParseMetric(opts.metric)
		if err != nil {
			return domain.NewValidationError("metric", fmt.Sprintf("unknown metric %q; use citations, references or authors", opts.metric))
		}
		metric = m
	}

	identifiers := append(slices.Clone(args), opts.dois...)
	if opts.file != "" {
		lines, err := readIdentifierFile(cmd, opts.file)
		if err != nil {
			return err
		}
		identifiers = append(identifiers, lines...)
	}

	names := opts.sources
	if len(names) == 0 {
		names = a.cfg.Comparison.DefaultSources
	}
	sources := make([]domain.SourceName, len(names))
	for i, n := range names {
		sources[i] = domain.SourceName(n)
	}

	result, err := a.service.Compare(cmd.Context(), comparison.Request{
		Identifiers: identifiers,
		Sources:     sources,
		Credentials: domain.Credentials{
			Email:                 opts.email,
			OpenCitationsToken:    opts.openCitationsToken,
			SemanticScholarAPIKey: opts.s2APIKey,
		},
	})
	if err != nil {
		return err
	}

	for _, d := range result.Diagnostics {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", d)
	}

	table := result.Table
	if metric != "" {
		table = onlyMetric(table, metric)
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case formatJSON:
		return writeJSON(out, resultOutput(result, table))
	case formatCSV:
		return writeCSV(out, table)
	default:
		return writeTable(out, table, opts.relative)
	}
}

func readIdentifierFile(cmd *cobra.Command, path string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, domain.NewValidationError("file", fmt.Sprintf("cannot read %s: %v", path, err))
	}
	return domain.SplitLines(string(data)), nil
}
