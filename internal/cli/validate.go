package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/csvsieve/internal/config"
	"github.com/roach88/csvsieve/internal/csvio"
	"github.com/roach88/csvsieve/internal/sieve"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
	Input  string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Groups int      `json:"groups"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file without processing anything",
		Long: `Validate a configuration file: schema check, structural rules, and -
when an input file is given - resolution of every referenced column
against that file's header. All violations are reported in one pass.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "configuration", "c", "", "path to the configuration file (required)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "input CSV whose header the configuration is checked against")
	_ = cmd.MarkFlagRequired("configuration")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	groups, lintErrs, err := config.Lint(opts.Config)
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "cannot load configuration", err)
	}

	var messages []string
	for _, e := range lintErrs {
		messages = append(messages, e.Error())
	}

	// Header-dependent validation is only possible against a concrete
	// input file.
	if opts.Input != "" && len(messages) == 0 {
		src, err := csvio.Open(opts.Input)
		if err != nil {
			formatter.Error(err.Error())
			return WrapExitError(ExitCommandError, "cannot open input", err)
		}
		defer src.Close()

		if _, err := sieve.Compile(groups, src.Header()); err != nil {
			messages = append(messages, err.Error())
		}
	}

	result := ValidationResult{
		Valid:  len(messages) == 0,
		Groups: len(groups),
		Errors: messages,
	}

	if !result.Valid {
		if opts.Format == "json" {
			formatter.Success(result, "")
		} else {
			for _, m := range messages {
				formatter.Error(m)
			}
		}
		return WrapExitError(ExitFailure,
			fmt.Sprintf("configuration is invalid: %d error(s)", len(messages)), nil)
	}

	return formatter.Success(result,
		fmt.Sprintf("Configuration is valid: %d group(s)", result.Groups))
}
