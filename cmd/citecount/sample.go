package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/bibliometrics-service/internal/comparison"
	"github.com/helixir/bibliometrics-service/internal/domain"
)

type sampleOptions struct {
	size        int
	institution string
	json        bool
}

func newSampleCmd(a *app) *cobra.Command {
	opts := &sampleOptions{}

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a random sample of DOIs from OpenAlex",
		Long: `Sample draws random works from OpenAlex and prints their DOIs, one per line,
ready to be piped into "citecount compare --file -".

--institution restricts the sample to one institution: a name or key from
"citecount institutions", an OpenAlex institution ID, or "random" for a random
swissuniversities member.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.service.Sample(cmd.Context(), comparison.SampleRequest{
				Size:        opts.size,
				Institution: opts.institution,
			})
			if err != nil {
				return err
			}

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			if result.Institution != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "institution: %s (%s)\n", result.Institution.DisplayName, result.Institution.ID)
			}
			for _, id := range result.Identifiers {
				fmt.Fprintln(cmd.OutOrStdout(), id.URL())
			}
			if len(result.Identifiers) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no DOIs found")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "number of DOIs (default: comparison.sample_size)")
	cmd.Flags().StringVar(&opts.institution, "institution", "", "restrict to an institution, or \"random\"")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the sample as JSON")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		if opts.size < 0 {
			return domain.NewValidationError("size", "size must be positive")
		}
		return nil
	}
	return cmd
}
