package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmr-tortoise/stagehand/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeManifest writes manifest content into dir under the given name
// and returns the full path.
func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefault verifies the built-in manifest reproduces the stock
// deployment: environment, interpreter, package set and launch contract.
func TestDefault(t *testing.T) {
	m := Default()

	assert.Equal(t, "deustogpt", m.Name)
	assert.Equal(t, "deustogpt", m.Environment.Name)
	assert.Equal(t, "3.11", m.Environment.Python)

	assert.Equal(t, []string{
		"streamlit",
		"langchain",
		"langchain-community",
		"openai",
		"python-decouple",
		"google-auth-oauthlib",
		"pyjwt",
		"supabase",
		"faiss-cpu",
		"unstructured",
	}, m.Packages)

	assert.Equal(t, []string{"streamlit", "run"}, m.App.Command)
	assert.Equal(t, "front_end/main.py", m.App.Entry)
	assert.Equal(t, 8501, m.App.Port)
	assert.False(t, m.App.EnableCORS)

	require.NotNil(t, m.Container)
	assert.Equal(t, "Dockerfile", m.Container.Dockerfile)

	// The default must itself be valid.
	assert.Empty(t, Validate(m))
}

// TestLoad_JSONC verifies that a stagehand.json with comments and a
// trailing comma parses, and that unset fields pick up defaults.
func TestLoad_JSONC(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "stagehand.json", `{
	// Chat front-end for the docs team.
	"name": "docsbot",
	"environment": {
		"name": "docsbot",
		"python": "3.12"
	},
	/* keep this list short */
	"packages": ["streamlit", "httpx",],
	"app": {
		"entry": "ui/app.py"
	}
}`)

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "docsbot", m.Name)
	assert.Equal(t, "docsbot", m.Environment.Name)
	assert.Equal(t, "3.12", m.Environment.Python)
	assert.Equal(t, []string{"streamlit", "httpx"}, m.Packages)
	assert.Equal(t, "ui/app.py", m.App.Entry)
	assert.Equal(t, path, m.Path)

	// Unset launch fields fall back to the defaults.
	assert.Equal(t, []string{"streamlit", "run"}, m.App.Command)
	assert.Equal(t, 8501, m.App.Port)
	assert.False(t, m.App.EnableCORS)
}

// TestLoad_YAMLEquivalence verifies that the same manifest expressed in
// YAML and JSON parses to the same effective configuration.
func TestLoad_YAMLEquivalence(t *testing.T) {
	dir := t.TempDir()

	jsonPath := writeManifest(t, dir, "a.json", `{
	"name": "demo",
	"environment": {"name": "demo", "python": "3.11"},
	"packages": ["streamlit", "pyjwt==2.8.0"],
	"app": {"command": ["streamlit", "run"], "entry": "main.py", "port": 9000, "enableCORS": true}
}`)
	yamlPath := writeManifest(t, dir, "b.yaml", `
name: demo
environment:
  name: demo
  python: "3.11"
packages:
  - streamlit
  - pyjwt==2.8.0
app:
  command: [streamlit, run]
  entry: main.py
  port: 9000
  enableCORS: true
`)

	fromJSON, err := Load(jsonPath)
	require.NoError(t, err)
	fromYAML, err := Load(yamlPath)
	require.NoError(t, err)

	// Paths differ by construction; everything else must match.
	fromJSON.Path = ""
	fromYAML.Path = ""
	assert.Equal(t, fromJSON, fromYAML)
}

// TestLoad_Errors covers the missing-file and bad-content cases, which
// must both surface as manifest errors for exit code mapping.
func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"))
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitManifestError, cliErr.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeManifest(t, dir, "broken.json", `{"name": `)
		_, err := Load(path)
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitManifestError, cliErr.Code)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeManifest(t, dir, "stagehand.toml", `name = "x"`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

// TestFind verifies manifest discovery order: stagehand.json wins over
// the YAML forms, and absence returns an empty path rather than an error.
func TestFind(t *testing.T) {
	t.Run("json preferred", func(t *testing.T) {
		dir := t.TempDir()
		jsonPath := writeManifest(t, dir, "stagehand.json", `{}`)
		writeManifest(t, dir, "stagehand.yaml", `name: other`)

		assert.Equal(t, jsonPath, Find(dir))
	})

	t.Run("yaml fallback", func(t *testing.T) {
		dir := t.TempDir()
		yamlPath := writeManifest(t, dir, "stagehand.yaml", `name: other`)

		assert.Equal(t, yamlPath, Find(dir))
	})

	t.Run("none found", func(t *testing.T) {
		assert.Equal(t, "", Find(t.TempDir()))
	})
}

// TestResolve verifies the effective-manifest rules:
// - An explicit path must exist
// - A discovered file is used when present
// - Otherwise the built-in default applies, keeping `up` zero-argument
func TestResolve(t *testing.T) {
	t.Run("explicit path missing is an error", func(t *testing.T) {
		_, err := Resolve(t.TempDir(), "/does/not/exist.json")
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitManifestError, cliErr.Code)
	})

	t.Run("discovered file", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, "stagehand.yaml", `
environment:
  name: found
`)
		m, err := Resolve(dir, "")
		require.NoError(t, err)
		assert.Equal(t, "found", m.Environment.Name)
	})

	t.Run("default fallback", func(t *testing.T) {
		m, err := Resolve(t.TempDir(), "")
		require.NoError(t, err)
		assert.Equal(t, "deustogpt", m.Environment.Name)
		assert.Equal(t, "built-in default", m.Source())
	})
}

// TestApplyDefaults_ExplicitEmptyPackages verifies that an explicit
// empty package list stays empty instead of inheriting the stock set.
func TestApplyDefaults_ExplicitEmptyPackages(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "stagehand.json", `{
	"environment": {"name": "bare"},
	"packages": []
}`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, m.Packages)
	assert.Equal(t, "bare", m.Name) // name defaults to the environment name
}

// TestPackageSpecs verifies order-preserving parsing and error
// propagation for bad entries.
func TestPackageSpecs(t *testing.T) {
	m := &Manifest{Packages: []string{"streamlit", "pyjwt==2.8.0"}}
	specs, err := m.PackageSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, model.PackageSpec{Name: "streamlit"}, specs[0])
	assert.Equal(t, model.PackageSpec{Name: "pyjwt", Version: "2.8.0"}, specs[1])

	bad := &Manifest{Packages: []string{"ok", "broken=1.0"}}
	_, err = bad.PackageSpecs()
	assert.Error(t, err)
}

// TestValidate exercises each manifest validation rule.
func TestValidate(t *testing.T) {
	valid := func() *Manifest {
		m := Default()
		return m
	}

	tests := []struct {
		name    string
		mutate  func(*Manifest)
		field   string
		wantErr bool
	}{
		{
			name:    "default is valid",
			mutate:  func(m *Manifest) {},
			wantErr: false,
		},
		{
			name:    "bad environment name",
			mutate:  func(m *Manifest) { m.Environment.Name = "has space" },
			field:   "environment.name",
			wantErr: true,
		},
		{
			name:    "bad python version",
			mutate:  func(m *Manifest) { m.Environment.Python = "three.eleven" },
			field:   "environment.python",
			wantErr: true,
		},
		{
			name:    "unparseable package entry",
			mutate:  func(m *Manifest) { m.Packages = []string{"streamlit=1.0"} },
			field:   "packages[0]",
			wantErr: true,
		},
		{
			name:    "duplicate after normalization",
			mutate:  func(m *Manifest) { m.Packages = []string{"PyJWT", "pyjwt"} },
			field:   "packages[1]",
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(m *Manifest) { m.App.Port = 70000 },
			field:   "app.port",
			wantErr: true,
		},
		{
			name:    "absolute entry path",
			mutate:  func(m *Manifest) { m.App.Entry = "/srv/app/main.py" },
			field:   "app.entry",
			wantErr: true,
		},
		{
			name:    "absolute dockerfile path",
			mutate:  func(m *Manifest) { m.Container.Dockerfile = "/srv/Dockerfile" },
			field:   "container.dockerfile",
			wantErr: true,
		},
		{
			name: "http installer url",
			mutate: func(m *Manifest) {
				m.Installer = &Installer{URL: "http://example.com/install.sh"}
			},
			field:   "installer.url",
			wantErr: true,
		},
		{
			name: "bad installer digest",
			mutate: func(m *Manifest) {
				m.Installer = &Installer{SHA256: "not-a-digest"}
			},
			field:   "installer.sha256",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			errs := Validate(m)
			if !tt.wantErr {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected a validation error on field %s, got %v", tt.field, errs)
		})
	}
}

// TestValidationError_Error spot-checks the error string format.
func TestValidationError_Error(t *testing.T) {
	e := &ValidationError{Field: "app.port", Message: "port 0 out of range (1-65535)"}
	assert.Contains(t, e.Error(), "app.port")
	assert.Contains(t, e.Error(), "out of range")
}
