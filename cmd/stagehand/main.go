// Package main is the entry point for the stagehand CLI.
//
// stagehand provisions conda-backed Python app environments and
// launches their web front-ends. Everything lives in the internal/cli
// package, which wires up the cobra command tree; main only injects
// build metadata and runs it.
//
// The version variables below are stamped through ldflags by GoReleaser
// on release builds and fall back to "dev"/"none"/"unknown" when built
// from source.
package main

import (
	"github.com/mmr-tortoise/stagehand/internal/cli"
)

// Set by GoReleaser via ldflags (see .goreleaser.yml); surfaced through
// the --version flag.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Hand the stamped build info to the CLI package so main stays
	// free of any cobra knowledge.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// Execute renders errors and maps them to exit codes itself.
	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
