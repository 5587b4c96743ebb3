// envs.go implements the "stagehand envs" command.
//
// The envs command lists the conda environments on the host and marks
// the one the manifest targets, so a user can see at a glance whether
// the app's environment exists and where it lives.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/conda"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// envsFlags holds the flag values for the envs command.
type envsFlags struct {
	manifestPath string // --manifest: explicit manifest path
}

// NewEnvsCommand creates the "envs" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewEnvsCommand() *cobra.Command {
	flags := &envsFlags{}

	cmd := &cobra.Command{
		Use:   "envs",
		Short: "List conda environments",
		Long: `List all conda environments known to the runtime.

The manifest's environment is marked with an asterisk.

Examples:
  stagehand envs
  stagehand envs --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvs(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.manifestPath, "manifest", "", "Manifest path (default: stagehand.{json,yaml,yml} in the current directory)")

	return cmd
}

// runEnvs is the main logic function for the envs command.
func runEnvs(ctx context.Context, flags *envsFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	m, err := resolveManifest(cwd, flags.manifestPath, cfg)
	if err != nil {
		return err
	}

	binary := conda.Locate(cfg.Conda.Binary)
	if binary == "" {
		return model.NewCLIError(model.ExitCondaUnavailable,
			`conda runtime not found; run "stagehand up" first`)
	}

	envs, err := conda.NewManager(binary).ListEnvs(ctx)
	if err != nil {
		return err
	}

	printEnvsResult(envs, m.Environment.Name)
	return nil
}

// printEnvsResult outputs the environment list in text or JSON format.
func printEnvsResult(envs []model.CondaEnv, manifestEnv string) {
	if IsJSONOutput() {
		printEnvsResultJSON(envs, manifestEnv)
	} else {
		printEnvsResultText(envs, manifestEnv)
	}
}

// envJSON is the JSON output structure for a single environment.
type envJSON struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix"`
	IsBase   bool   `json:"isBase"`
	Manifest bool   `json:"manifest"`
}

// printEnvsResultJSON outputs the environment list as structured JSON.
// The top-level key is "environments" containing an array of objects.
func printEnvsResultJSON(envs []model.CondaEnv, manifestEnv string) {
	type resultJSON struct {
		Environments []envJSON `json:"environments"`
	}

	result := resultJSON{
		// Empty slice instead of nil so JSON output shows [] instead of
		// null when no environments exist.
		Environments: make([]envJSON, 0, len(envs)),
	}

	for _, e := range envs {
		result.Environments = append(result.Environments, envJSON{
			Name:     e.Name,
			Prefix:   e.Prefix,
			IsBase:   e.IsBase,
			Manifest: e.Name == manifestEnv,
		})
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printEnvsResultText outputs the environment list as a text table.
//
// The table format is:
//
//	  NAME        PATH
//	* deustogpt   /home/user/miniconda3/envs/deustogpt
//	  base        /home/user/miniconda3
func printEnvsResultText(envs []model.CondaEnv, manifestEnv string) {
	if len(envs) == 0 {
		fmt.Println("No conda environments found.")
		return
	}

	fmt.Printf("  %-20s %s\n", "NAME", "PATH")
	manifestSeen := false
	for _, e := range envs {
		marker := " "
		if e.Name == manifestEnv {
			marker = "*"
			manifestSeen = true
		}
		fmt.Printf("%s %-20s %s\n", marker, e.Name, e.Prefix)
	}

	fmt.Println()
	if manifestSeen {
		fmt.Printf("* manifest environment (%s)\n", manifestEnv)
	} else {
		fmt.Printf("manifest environment %q does not exist yet; run \"stagehand up\" to create it\n", manifestEnv)
	}
}
