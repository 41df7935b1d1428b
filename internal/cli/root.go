// Package cli wires the gpumon commands together with cobra.
package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/ui"
)

// Global flags
var (
	configDirFlag string
	debugFlag     bool
	noColorFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "gpumon",
	Short: "Watch NVIDIA GPUs across a cluster over SSH",
	Long: `gpumon polls every host in a cluster with nvidia-smi over SSH and shows
utilization, memory, temperature and power in one refreshing view.

Clusters are YAML files in ~/.gpu-cluster-monitor (override with
--config-dir or GPUMON_CONFIG_DIR).

Examples:
  gpumon add-cluster lab --host gpu-node1 --host gpu-node2
  gpumon monitor lab
  gpumon monitor lab --once --show-all-gpus`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugFlag {
			os.Setenv(logger.DebugEnv, "1") //nolint:errcheck // Setenv only fails on invalid keys
		}
		ui.ConfigureColor(noColorFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "",
		"directory holding cluster YAML files (default ~/.gpu-cluster-monitor)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log debug output ("+logger.DebugEnv+"=1)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// clusterStore returns the store selected by --config-dir.
func clusterStore() *config.Store {
	return config.NewStore(configDirFlag)
}

// printError writes err, with a hint for unknown commands.
func printError(w io.Writer, err error) {
	if structured, ok := errors.As(err); ok {
		fmt.Fprint(w, structured.Error())
		return
	}

	fmt.Fprintf(w, "%s %v\n", ui.SymbolFail, err)
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" && clusterStore().Exists(name) {
			fmt.Fprintf(w, "\n  '%s' is a cluster. Did you mean: gpumon monitor %s\n", name, name)
			return
		}
		fmt.Fprintln(w, "\n  Run 'gpumon --help' for the list of commands.")
	}
}

var (
	unknownCommandRe = regexp.MustCompile(`unknown command "([^"]+)"`)
	unknownFlagRe    = regexp.MustCompile(`^unknown (shorthand )?flag`)
)

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return unknownCommandRe.MatchString(msg) || unknownFlagRe.MatchString(msg)
}

func extractUnknownCommand(err error) string {
	m := unknownCommandRe.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}
