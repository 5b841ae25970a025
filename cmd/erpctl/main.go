package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Build information, set with -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type globalFlags struct {
	logLevel string
	timeout  time.Duration
}

// newRootCmd builds the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "erpctl",
		Short: "Operate the ERP integration gateway",
		Long: "erpctl inspects the query catalog, validates ad-hoc SQL and probes tenant ERPs " +
			"using the same configuration as the gateway server.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				printVersionInfo(cmd)
				return nil
			}
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "Overall deadline for the command")
	root.Flags().Bool("version", false, "Show version information and exit")

	root.AddCommand(
		newValidateCmd(),
		newCatalogCmd(),
		newHealthCmd(flags),
		newInvalidateCmd(flags),
		newQueryCmd(flags),
	)
	return root
}

func printVersionInfo(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "erpctl %s\n", Version)
	fmt.Fprintf(out, "Built: %s, from commit: %s\n", BuildTime, GitCommit)
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
