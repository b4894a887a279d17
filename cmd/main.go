// Command stylewars runs the StyleWars scoring service and its offline tools.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/stylewars/pkg/logger"
)

const releaseVersion = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("stylewars: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command serves.
func newRootCmd() *cobra.Command {
	var logFormat string
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:           "stylewars",
		Short:         "Scores CSS battle renders against challenge targets and keeps leaderboards.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.Init(logger.WithFormat(logFormat))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.SetNormalizeFunc(normalizeFlag)
	pf.StringVar(&logFormat, "log-format", "text", "log encoding: text or json (serve reads log_format from its config)")

	addServeFlags(cmd.Flags(), opts)

	cmd.AddCommand(newServeCmd(), newScoreCmd(), newDiffCmd(), newLoadgenCmd())
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("stylewars v{{.Version}}\n")
	return cmd
}

// normalizeFlag accepts snake_case spellings of every flag.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
