package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mmr-tortoise/stagehand/internal/conda"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// installerBaseURL is where the stock Miniconda installers live. The
// "latest" artifacts are stable URLs republished by Anaconda for every
// release.
const installerBaseURL = "https://repo.anaconda.com/miniconda"

// DefaultURL returns the stock Miniconda installer URL for a platform.
// Returns an error for platform combinations Miniconda does not ship.
func DefaultURL(goos, goarch string) (string, error) {
	var file string

	switch goos {
	case "linux":
		switch goarch {
		case "amd64":
			file = "Miniconda3-latest-Linux-x86_64.sh"
		case "arm64":
			file = "Miniconda3-latest-Linux-aarch64.sh"
		}
	case "darwin":
		switch goarch {
		case "amd64":
			file = "Miniconda3-latest-MacOSX-x86_64.sh"
		case "arm64":
			file = "Miniconda3-latest-MacOSX-arm64.sh"
		}
	case "windows":
		if goarch == "amd64" {
			file = "Miniconda3-latest-Windows-x86_64.exe"
		}
	}

	if file == "" {
		return "", fmt.Errorf("no conda installer available for %s/%s", goos, goarch)
	}
	return installerBaseURL + "/" + file, nil
}

// Options configures a Bootstrapper. Zero values mean "use the stock
// behavior": the platform's default installer URL, no checksum pin, and
// the shared HTTP client.
type Options struct {
	// URL overrides the installer download URL.
	URL string

	// SHA256 is the expected hex digest of the installer file. When
	// set, a mismatch aborts before the installer runs.
	SHA256 string

	// Prefix is the directory conda is installed into. Required.
	Prefix string

	// Client is the HTTP client used for the download. Defaults to
	// http.DefaultClient. Injected so tests can point the download at
	// a local server.
	Client *http.Client
}

// Bootstrapper downloads and runs the conda installer.
type Bootstrapper struct {
	url    string
	sha256 string
	prefix string
	client *http.Client
}

// New creates a Bootstrapper from options, resolving the platform
// default URL when none is given.
func New(opts Options) (*Bootstrapper, error) {
	url := opts.URL
	if url == "" {
		var err error
		url, err = DefaultURL(runtime.GOOS, runtime.GOARCH)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitCondaUnavailable, "cannot bootstrap conda", err)
		}
	}

	if opts.Prefix == "" {
		return nil, model.NewCLIError(model.ExitCondaUnavailable, "conda install prefix must not be empty")
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &Bootstrapper{
		url:    url,
		sha256: opts.SHA256,
		prefix: opts.Prefix,
		client: client,
	}, nil
}

// URL returns the installer URL this Bootstrapper will fetch.
func (b *Bootstrapper) URL() string {
	return b.url
}

// Install downloads the installer, optionally verifies its digest, and
// runs it in silent batch mode into the configured prefix. On success
// it returns the path of the freshly installed conda binary.
//
// The downloaded file is removed afterwards in every case; the install
// prefix is the only thing left behind.
func (b *Bootstrapper) Install(ctx context.Context) (string, error) {
	file, err := b.download(ctx)
	if err != nil {
		return "", err
	}
	defer os.Remove(file)

	if b.sha256 != "" {
		if err := verifyChecksum(file, b.sha256); err != nil {
			return "", model.WrapCLIError(
				model.ExitCondaUnavailable,
				fmt.Sprintf("installer checksum mismatch for %s", b.url),
				err,
			)
		}
	}

	if err := b.runInstaller(ctx, file); err != nil {
		return "", err
	}

	binary := conda.BinaryFromPrefix(b.prefix)
	if _, err := os.Stat(binary); err != nil {
		return "", model.WrapCLIError(
			model.ExitCondaUnavailable,
			fmt.Sprintf("installer finished but %s does not exist", binary),
			err,
		)
	}
	return binary, nil
}

// download fetches the installer into a temp file and returns its path.
// The caller owns the file.
func (b *Bootstrapper) download(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return "", model.WrapCLIError(model.ExitCondaUnavailable, "invalid installer URL", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitCondaUnavailable,
			fmt.Sprintf("failed to download conda installer from %s", b.url),
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewCLIError(
			model.ExitCondaUnavailable,
			fmt.Sprintf("installer download returned %s for %s", resp.Status, b.url),
		)
	}

	tmp, err := os.CreateTemp("", "stagehand-conda-installer-*"+installerExt())
	if err != nil {
		return "", model.WrapCLIError(model.ExitCondaUnavailable, "failed to create temp file for installer", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", model.WrapCLIError(model.ExitCondaUnavailable, "failed to write installer to disk", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", model.WrapCLIError(model.ExitCondaUnavailable, "failed to write installer to disk", err)
	}

	return tmp.Name(), nil
}

// runInstaller executes the downloaded installer in silent batch mode.
func (b *Bootstrapper) runInstaller(ctx context.Context, file string) error {
	bin, args := installerCommand(runtime.GOOS, file, b.prefix)

	// #nosec G204: args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("conda installer failed (install prefix %s)", b.prefix)
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return model.WrapCLIError(model.ExitCondaUnavailable, message, err)
	}
	return nil
}

// installerCommand builds the silent-install command line per platform.
//
//	unix:    sh <file> -b -p <prefix>
//	windows: cmd /C start /wait <file> /S /D=<prefix>
//
// -b (batch) accepts the license and skips all prompts; -p sets the
// install prefix. The Windows installer uses NSIS switches, where /D
// must be the last argument and unquoted.
func installerCommand(goos, file, prefix string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/C", "start", "/wait", "", file, "/S", "/D=" + prefix}
	}
	return "sh", []string{file, "-b", "-p", prefix}
}

// installerExt returns the temp-file suffix matching the platform's
// installer format. The .sh/.exe suffix is cosmetic but makes leftover
// temp files self-describing if cleanup is ever interrupted.
func installerExt() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ".sh"
}

// verifyChecksum compares a file's SHA-256 digest against an expected
// hex digest, case-insensitively.
func verifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("expected sha256 %s, got %s", strings.ToLower(expected), actual)
	}
	return nil
}
