package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/csvsieve/internal/config"
	"github.com/roach88/csvsieve/internal/csvio"
	"github.com/roach88/csvsieve/internal/sieve"
	"github.com/roach88/csvsieve/internal/sink"
)

// tunableFlags are the run flags that can be defaulted from CSVSIEVE_*
// environment variables (e.g. CSVSIEVE_FILTER_PARALLELISM=8). An
// explicit flag always wins over the environment.
var tunableFlags = []string{"filter-parallelism", "sort-parallelism", "max-record-errors"}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input      string
	Config     string
	Output     string
	SQLitePath string

	NoSort            bool
	FilterParallelism int
	SortParallelism   int
	MaxRecordErrors   int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Split an input CSV into filtered, sorted output files",
		Long: `Split an input CSV file into multiple output files according to a
configuration file. Each configured group filters, projects and
optionally sorts its own view of the input independently.

Parallelism flags default to the number of CPUs. Sort parallelism also
bounds peak memory: at most that many groups are held in memory for
sorting at once.

Example:
  csvsieve run -i data.csv -c config.json -o outdir
  csvsieve run -i data.csv -c config.yaml -o outdir --no-sort --filter-parallelism 8
  csvsieve run -i data.csv -c config.json --sqlite results.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindTunableEnv(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSieve(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "path to the input CSV file (required)")
	cmd.Flags().StringVarP(&opts.Config, "configuration", "c", "", "path to the configuration file (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "output", "directory for output CSV files")
	cmd.Flags().StringVar(&opts.SQLitePath, "sqlite", "", "write groups to tables in this SQLite database instead of CSV files")
	cmd.Flags().BoolVar(&opts.NoSort, "no-sort", false, "disable sorting for every group")
	cmd.Flags().IntVar(&opts.FilterParallelism, "filter-parallelism", 0, "filter worker pool size (0 = number of CPUs)")
	cmd.Flags().IntVar(&opts.SortParallelism, "sort-parallelism", 0, "concurrent group sorts (0 = number of CPUs)")
	cmd.Flags().IntVar(&opts.MaxRecordErrors, "max-record-errors", 0, "malformed rows tolerated before aborting (0 = unlimited)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("configuration")

	return cmd
}

// bindTunableEnv fills unset tuning flags from the environment.
func bindTunableEnv(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("CSVSIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range tunableFlags {
		f := cmd.Flags().Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if val := v.GetString(name); val != "" {
			if err := f.Value.Set(val); err != nil {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid CSVSIEVE_%s value %q", strings.ToUpper(strings.ReplaceAll(name, "-", "_")), val), err)
			}
		}
	}
	return nil
}

// runSummary is the run command's output payload.
type runSummary struct {
	sieve.Stats
	ElapsedMS int64 `json:"elapsed_ms"`
}

func runSieve(opts *RunOptions, cmd *cobra.Command) error {
	start := time.Now()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	groups, err := config.Load(opts.Config)
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	formatter.VerboseLog("Loaded %d group(s) from %s", len(groups), opts.Config)

	src, err := csvio.Open(opts.Input)
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "cannot open input", err)
	}
	defer src.Close()

	eng, err := sieve.New(groups, src.Header(), sieve.Options{
		NoSort:            opts.NoSort,
		FilterParallelism: opts.FilterParallelism,
		SortParallelism:   opts.SortParallelism,
		MaxRecordErrors:   opts.MaxRecordErrors,
	})
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	sinks, cleanup, err := buildSinks(opts, eng)
	if err != nil {
		formatter.Error(err.Error())
		var cfgErr *sieve.ConfigError
		if errors.As(err, &cfgErr) {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		return WrapExitError(ExitFailure, "cannot prepare outputs", err)
	}
	defer cleanup()

	stats, err := eng.Run(cmd.Context(), src, sinks)
	if err != nil {
		formatter.Error(err.Error())
		var cfgErr *sieve.ConfigError
		if errors.As(err, &cfgErr) {
			return WrapExitError(ExitCommandError, "run failed", err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	elapsed := time.Since(start)
	return formatter.Success(
		runSummary{Stats: stats, ElapsedMS: elapsed.Milliseconds()},
		summaryText(stats, elapsed),
	)
}

// buildSinks creates one sink per group: CSV files under the output
// directory, or tables in one SQLite database when --sqlite is set.
func buildSinks(opts *RunOptions, eng *sieve.Engine) (map[string]sieve.Sink, func(), error) {
	sinks := make(map[string]sieve.Sink, len(eng.Specs()))

	if opts.SQLitePath != "" {
		db, err := sink.OpenDB(opts.SQLitePath)
		if err != nil {
			return nil, func() {}, err
		}
		for _, spec := range eng.Specs() {
			s, err := db.Sink(spec.Output())
			if err != nil {
				db.Close()
				return nil, func() {}, &sieve.ConfigError{
					Code:    sieve.ErrCodeDuplicateTable,
					Output:  spec.Output(),
					Message: err.Error(),
				}
			}
			sinks[spec.Output()] = s
		}
		return sinks, func() { db.Close() }, nil
	}

	for _, spec := range eng.Specs() {
		sinks[spec.Output()] = sink.NewCSV(filepath.Join(opts.Output, spec.Output()))
	}
	return sinks, func() {}, nil
}

func summaryText(stats sieve.Stats, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d rows (%d skipped) into %d group(s) in %d ms",
		stats.RowsRead, stats.RowsSkipped, len(stats.Groups), elapsed.Milliseconds())
	for _, g := range stats.Groups {
		fmt.Fprintf(&b, "\n  %s: %d rows", g.Output, g.Accepted)
		if g.Sorted {
			b.WriteString(" (sorted)")
		}
	}
	return b.String()
}
