package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultURL verifies installer URL selection per platform, and
// that unsupported combinations fail instead of guessing.
func TestDefaultURL(t *testing.T) {
	tests := []struct {
		goos     string
		goarch   string
		want     string
		hasError bool
	}{
		{"linux", "amd64", "https://repo.anaconda.com/miniconda/Miniconda3-latest-Linux-x86_64.sh", false},
		{"linux", "arm64", "https://repo.anaconda.com/miniconda/Miniconda3-latest-Linux-aarch64.sh", false},
		{"darwin", "amd64", "https://repo.anaconda.com/miniconda/Miniconda3-latest-MacOSX-x86_64.sh", false},
		{"darwin", "arm64", "https://repo.anaconda.com/miniconda/Miniconda3-latest-MacOSX-arm64.sh", false},
		{"windows", "amd64", "https://repo.anaconda.com/miniconda/Miniconda3-latest-Windows-x86_64.exe", false},
		{"linux", "386", "", true},
		{"plan9", "amd64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			url, err := DefaultURL(tt.goos, tt.goarch)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, url)
			}
		})
	}
}

// TestInstallerCommand verifies the silent-install command lines.
func TestInstallerCommand(t *testing.T) {
	bin, args := installerCommand("linux", "/tmp/inst.sh", "/home/dev/miniconda3")
	assert.Equal(t, "sh", bin)
	assert.Equal(t, []string{"/tmp/inst.sh", "-b", "-p", "/home/dev/miniconda3"}, args)

	bin, args = installerCommand("darwin", "/tmp/inst.sh", "/opt/miniconda3")
	assert.Equal(t, "sh", bin)
	assert.Equal(t, []string{"/tmp/inst.sh", "-b", "-p", "/opt/miniconda3"}, args)

	bin, args = installerCommand("windows", `C:\tmp\inst.exe`, `C:\miniconda3`)
	assert.Equal(t, "cmd", bin)
	// /D must come last and carry the prefix unquoted.
	assert.Equal(t, `/D=C:\miniconda3`, args[len(args)-1])
}

// TestVerifyChecksum verifies digest matching, including the
// case-insensitive comparison and the mismatch error.
func TestVerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installer.sh")
	content := []byte("#!/bin/sh\necho fake installer\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	assert.NoError(t, verifyChecksum(path, digest))
	upper := make([]byte, len(digest))
	for i := range digest {
		upper[i] = digest[i]
		if digest[i] >= 'a' && digest[i] <= 'f' {
			upper[i] = digest[i] - 'a' + 'A'
		}
	}
	assert.NoError(t, verifyChecksum(path, string(upper)))

	err := verifyChecksum(path, "0000000000000000000000000000000000000000000000000000000000000000")
	assert.Error(t, err)
}

// TestNew verifies option resolution: explicit URL kept, missing prefix
// rejected.
func TestNew(t *testing.T) {
	b, err := New(Options{URL: "https://example.com/conda.sh", Prefix: "/tmp/conda"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/conda.sh", b.URL())

	_, err = New(Options{URL: "https://example.com/conda.sh"})
	assert.Error(t, err, "empty prefix must be rejected")
}

// TestInstall_EndToEnd downloads a fake installer from a local server
// and runs it. The fake script creates the expected bin/conda file, so
// the whole bootstrap path is exercised without touching the network
// or a real conda distribution.
func TestInstall_EndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake installer is a shell script")
	}

	// $1=-b $2=-p $3=<prefix> per the batch-mode contract.
	script := "#!/bin/sh\nmkdir -p \"$3/bin\"\ntouch \"$3/bin/conda\"\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(script))
	}))
	defer srv.Close()

	prefix := filepath.Join(t.TempDir(), "miniconda3")
	sum := sha256.Sum256([]byte(script))

	b, err := New(Options{
		URL:    srv.URL + "/Miniconda3-latest-Linux-x86_64.sh",
		SHA256: hex.EncodeToString(sum[:]),
		Prefix: prefix,
		Client: srv.Client(),
	})
	require.NoError(t, err)

	binary, err := b.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(prefix, "bin", "conda"), binary)
	assert.FileExists(t, binary)
}

// TestInstall_ChecksumMismatch verifies that a pinned digest aborts the
// bootstrap before the installer runs.
func TestInstall_ChecksumMismatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake installer is a shell script")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#!/bin/sh\nexit 0\n"))
	}))
	defer srv.Close()

	prefix := filepath.Join(t.TempDir(), "miniconda3")
	b, err := New(Options{
		URL:    srv.URL + "/installer.sh",
		SHA256: "1111111111111111111111111111111111111111111111111111111111111111",
		Prefix: prefix,
		Client: srv.Client(),
	})
	require.NoError(t, err)

	_, err = b.Install(context.Background())
	require.Error(t, err)
	assert.NoDirExists(t, prefix, "install must not run after a digest mismatch")
}

// TestInstall_DownloadFailure verifies a non-200 response fails the
// step with no install attempt.
func TestInstall_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	prefix := filepath.Join(t.TempDir(), "miniconda3")
	b, err := New(Options{URL: srv.URL + "/missing.sh", Prefix: prefix, Client: srv.Client()})
	require.NoError(t, err)

	_, err = b.Install(context.Background())
	require.Error(t, err)
	assert.NoDirExists(t, prefix)
}
