// Package conda provides conda runtime integration for stagehand.
//
// This package wraps the conda CLI (via os/exec) to query environments
// and installed packages, create environments, install packages, and
// run the app process inside an environment. It is the package-manager
// integration layer: the installed-package set and environment registry
// that conda tracks on disk are the only durable state stagehand reads.
//
// Design decisions:
//   - We shell out to `conda` rather than reimplementing its registry
//     formats. conda's on-disk layout is an implementation detail that
//     changes between releases; its CLI with --json output is the
//     supported machine interface.
//   - Queries use `--json` so parsing does not depend on locale or
//     human-format changes.
//   - Package installs go through `python -m pip` inside the target
//     environment, one subprocess per package, so each package's
//     presence check and install stay paired and a failure points at
//     the exact package.
//   - All subprocess failures are wrapped in model.CLIError with the
//     exit code of the provisioning stage they belong to.
package conda
