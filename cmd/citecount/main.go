// Package main provides the citecount CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/bibliometrics-service/internal/comparison"
	"github.com/helixir/bibliometrics-service/internal/config"
	"github.com/helixir/bibliometrics-service/internal/domain"
	"github.com/helixir/bibliometrics-service/internal/observability"
	"github.com/helixir/bibliometrics-service/internal/papersources/openalex"
	"github.com/helixir/bibliometrics-service/internal/sourceset"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // Runtime failure
	ExitConfigError = 2 // Configuration could not be loaded
	ExitInputError  = 3 // Invalid identifiers, sources or flags
)

// Service is the part of the comparison service the CLI drives.
type Service interface {
	Compare(ctx context.Context, req comparison.Request) (*comparison.Result, error)
	Sample(ctx context.Context, req comparison.SampleRequest) (*comparison.SampleResult, error)
	Sources() []comparison.SourceInfo
	Institutions() []openalex.Institution
}

// serviceFactory builds the service once configuration is loaded.
type serviceFactory func(cfg *config.Config, logger zerolog.Logger) (Service, error)

// app carries state shared by all subcommands.
type app struct {
	newService serviceFactory

	configPath string
	logLevel   string

	cfg     *config.Config
	logger  zerolog.Logger
	service Service
}

// configError marks failures to load configuration.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	root := newRootCmd(newService)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}

// newService wires the real adapters.
func newService(cfg *config.Config, logger zerolog.Logger) (Service, error) {
	set := sourceset.Build(cfg, nil, logger)
	return comparison.NewService(set.Registry, set.OpenAlex, nil, logger, comparison.Config{
		MaxIdentifiers: cfg.Comparison.MaxIdentifiers,
		SampleSize:     cfg.Comparison.SampleSize,
		Credentials:    cfg.Credentials,
	}), nil
}

func newRootCmd(factory serviceFactory) *cobra.Command {
	a := &app{newService: factory}

	root := &cobra.Command{
		Use:   "citecount",
		Short: "Compare citation, reference and author counts across open metadata sources",
		Long: `citecount looks up a set of DOIs in several open bibliographic sources
(Crossref, OpenAlex, OpenCitations, Semantic Scholar, OpenAIRE, DataCite) and
shows, per DOI and metric, what each source reports together with the median,
mean, standard deviation and coefficient of variation across sources.

Credentials default to BIBLIO_CREDENTIALS_EMAIL,
BIBLIO_CREDENTIALS_OPENCITATIONS_TOKEN and
BIBLIO_CREDENTIALS_SEMANTIC_SCHOLAR_API_KEY. Logs go to stderr.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/bibliometrics-service/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newCompareCmd(a),
		newSampleCmd(a),
		newSourcesCmd(a),
		newInstitutionsCmd(a),
	)
	return root
}

// init loads configuration and builds the service. Logs always go to stderr
// so that stdout stays machine-readable.
func (a *app) init(cmd *cobra.Command) error {
	if !observability.IsValidLevel(a.logLevel) {
		return domain.NewValidationError("log-level", fmt.Sprintf("unknown log level %q", a.logLevel))
	}

	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return &configError{err: err}
	}
	a.cfg = cfg

	a.logger = observability.WithComponent(observability.NewLoggerWithWriter(observability.LoggingConfig{
		Level:      a.logLevel,
		Format:     "console",
		TimeFormat: time.RFC3339,
	}, cmd.ErrOrStderr()), "cli")

	svc, err := a.newService(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	a.service = svc
	return nil
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var cfgErr *configError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, domain.ErrInvalidInput):
		return ExitInputError
	default:
		return ExitError
	}
}
