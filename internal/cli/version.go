package cli

import (
	"github.com/spf13/cobra"
)

// Version is the csvsieve release version.
const Version = "0.1.0"

// versionInfo is the version command's JSON payload.
type versionInfo struct {
	Version string `json:"version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the csvsieve version",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format: rootOpts.Format,
				Writer: cmd.OutOrStdout(),
			}
			return formatter.Success(versionInfo{Version: Version}, "csvsieve "+Version)
		},
	}
}
