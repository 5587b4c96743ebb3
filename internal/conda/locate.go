package conda

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Locate finds the conda executable on this host.
//
// The detection strategy follows this priority order:
//  1. The explicit path, when set (config conda.binary): used only if
//     the file actually exists, so a stale config entry does not mask
//     a working PATH installation.
//  2. PATH lookup via exec.LookPath.
//  3. Well-known install prefixes per platform (user Miniconda and
//     Anaconda homes, then system-wide prefixes).
//
// Returns an empty string when conda is not installed anywhere probed.
// Absence is not an error here: for `up` it is the signal to bootstrap
// the runtime, and for `status` it is simply a fact to report.
func Locate(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
	}

	if path, err := exec.LookPath(condaExeName()); err == nil {
		return path
	}

	for _, path := range wellKnownCondaPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// BinaryFromPrefix returns the conda executable path inside an install
// prefix. Used right after a bootstrap install, when the new binary is
// not on PATH yet.
func BinaryFromPrefix(prefix string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(prefix, "Scripts", "conda.exe")
	}
	return filepath.Join(prefix, "bin", "conda")
}

// condaExeName returns the platform's executable name for PATH lookup.
func condaExeName() string {
	if runtime.GOOS == "windows" {
		return "conda.exe"
	}
	return "conda"
}

// wellKnownCondaPaths lists conda executable locations probed when PATH
// lookup fails. Ordered from most to least common: a user-level
// Miniconda is the stock install this tool itself performs, so it is
// probed first.
func wellKnownCondaPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}

	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(home, "miniconda3", "Scripts", "conda.exe"),
			filepath.Join(home, "anaconda3", "Scripts", "conda.exe"),
			filepath.Join(`C:\`, "ProgramData", "miniconda3", "Scripts", "conda.exe"),
			filepath.Join(`C:\`, "ProgramData", "anaconda3", "Scripts", "conda.exe"),
		}
	default:
		// Linux and macOS share the same prefix conventions. /opt/conda
		// is the path used by the official conda container images.
		return []string{
			filepath.Join(home, "miniconda3", "bin", "conda"),
			filepath.Join(home, "anaconda3", "bin", "conda"),
			"/opt/miniconda3/bin/conda",
			"/opt/anaconda3/bin/conda",
			"/opt/conda/bin/conda",
			"/usr/local/miniconda3/bin/conda",
		}
	}
}
