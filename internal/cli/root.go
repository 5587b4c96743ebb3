// Package cli implements the cobra-based CLI commands for stagehand.
//
// Each subcommand (up, status, launch, envs, stop, remove) lives in its
// own file in this package. This file builds the root command, binds the
// global flags, and maps errors to process exit codes.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// Global flag state. Bound as persistent flags on the root command, so
// every subcommand picks them up without declaring its own copies.
var (
	// jsonOutput switches all command output to structured JSON for
	// scripting; the default is human-readable text.
	jsonOutput bool

	// verbose turns on progress detail on stderr while commands run.
	verbose bool
)

// Version, Commit, and Date identify the build. main.go copies its
// ldflags-injected values here before constructing the command tree.
var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the Git revision the binary was built at.
	Commit = "none"

	// Date is when the binary was built.
	Date = "unknown"
)

// NewRootCommand builds the root cobra command with every subcommand
// registered.
//
// The root command carries only help text and the global flags; all
// behavior lives in the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Conda environment provisioner and app launcher",
		Long: `stagehand converges a host onto a declared runtime state: a conda
installation, an isolated environment, and the environment's package set,
then launches the project's web front-end on a configurable port.

Runs are idempotent. Anything already present is skipped with a notice,
anything missing is installed exactly once, and the first failure stops
the chain before the app is launched.`,

		// Error rendering belongs to printError, which honors the
		// --json flag; cobra's automatic usage and error printing
		// would duplicate it.
		SilenceUsage:  true,
		SilenceErrors: true,

		// Shown by the built-in --version flag.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// PersistentFlags are inherited by all subcommands, so every command
	// supports --json and --verbose without re-declaration.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewUpCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewLaunchCommand())
	rootCmd.AddCommand(NewEnvsCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewRemoveCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the error's
// exit code. main.go calls this and never returns.
//
// A CLIError carries its own code; anything else exits 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		// Commands return CLIError directly, so a single-level type
		// assertion is enough to recover the exit code.
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError writes an error to stderr, as a JSON document when --json
// is set and as an "Error: ..." line otherwise.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stderr even in JSON mode; stdout carries only successful
		// command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog writes a formatted line to stderr when --verbose is set,
// and is silent otherwise. Subcommands use it for progress detail that
// would clutter normal output.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput reports whether --json was set. Subcommands branch on it
// when printing results.
func IsJSONOutput() bool {
	return jsonOutput
}
