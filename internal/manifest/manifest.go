package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/stagehand/internal/model"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Manifest declares the target state of one app installation: the conda
// environment to converge, the packages it must contain, and how to
// launch the app once the environment is ready.
//
// Fields not set in the manifest file are filled from Default() where a
// sensible default exists; see applyDefaults for the exact rules.
type Manifest struct {
	// Name is the app name. It appears in container names and labels.
	// Defaults to the environment name when omitted.
	Name string `json:"name" yaml:"name"`

	// Environment declares the conda environment to converge.
	Environment Environment `json:"environment" yaml:"environment"`

	// Packages lists the required packages in install order. Each entry
	// is either a bare name ("streamlit") or a pin ("streamlit==1.31.0").
	Packages []string `json:"packages" yaml:"packages"`

	// App declares how to launch the front-end process.
	App App `json:"app" yaml:"app"`

	// Container holds the optional containerized-launch settings.
	// Nil means container mode is unavailable for this manifest.
	Container *Container `json:"container,omitempty" yaml:"container,omitempty"`

	// Installer optionally overrides the runtime bootstrap source.
	Installer *Installer `json:"installer,omitempty" yaml:"installer,omitempty"`

	// Path is the file the manifest was loaded from, or empty for the
	// built-in default. Not serialized.
	Path string `json:"-" yaml:"-"`
}

// Environment declares the conda environment the provisioning chain
// must ensure exists.
type Environment struct {
	// Name is the conda environment name.
	Name string `json:"name" yaml:"name"`

	// Python is the interpreter version the environment is created with,
	// e.g. "3.11". Used only at creation time; an existing environment
	// is never re-created to change versions.
	Python string `json:"python" yaml:"python"`
}

// App declares the front-end launch contract.
type App struct {
	// Command is the launcher argv prefix, e.g. ["streamlit", "run"].
	// The entry path and server flags are appended after it.
	Command []string `json:"command" yaml:"command"`

	// Entry is the app entry point passed to the command,
	// e.g. "front_end/main.py". Relative to the project directory.
	Entry string `json:"entry" yaml:"entry"`

	// Port is the server port the app listens on. Defaults to 8501.
	// Flag, PORT and STAGEHAND_PORT environment overrides take
	// precedence over this value.
	Port int `json:"port" yaml:"port"`

	// EnableCORS controls the value passed to --server.enableCORS.
	// The flag is always emitted; the default false matches the stock
	// deployment, which runs behind its own origin.
	EnableCORS bool `json:"enableCORS" yaml:"enableCORS"`
}

// Container holds the containerized-launch settings used by
// `stagehand up --container`.
type Container struct {
	// Image is a prebuilt image reference. When set, no build happens.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Dockerfile is the path to the Dockerfile to build, relative to
	// the project directory. Defaults to "Dockerfile" when Image is empty.
	Dockerfile string `json:"dockerfile,omitempty" yaml:"dockerfile,omitempty"`

	// Context is the build context directory, relative to the project
	// directory. Defaults to ".".
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Installer overrides the runtime bootstrap source. Without an override
// the platform's stock Miniconda installer URL is used.
type Installer struct {
	// URL is the installer download URL. Must be https.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// SHA256 is the expected hex digest of the downloaded installer.
	// When set, a mismatch fails the bootstrap step.
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// DefaultPort is the app port used when nothing else configures one.
const DefaultPort = 8501

// Default returns the built-in manifest. It reproduces the stock
// deployment: a Streamlit chat front-end in a conda environment named
// "deustogpt" on Python 3.11, with the package set its entry point
// imports, served on port 8501 with CORS disabled.
func Default() *Manifest {
	return &Manifest{
		Name: "deustogpt",
		Environment: Environment{
			Name:   "deustogpt",
			Python: "3.11",
		},
		Packages: []string{
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
		},
		App: App{
			Command:    []string{"streamlit", "run"},
			Entry:      "front_end/main.py",
			Port:       DefaultPort,
			EnableCORS: false,
		},
		Container: &Container{
			Dockerfile: "Dockerfile",
			Context:    ".",
		},
	}
}

/// Load reads a manifest file and parses it according to its extension:
// .json is treated as JSONC, .yaml and .yml as YAML. Missing defaults
// are filled in after parsing.
//
// Returns a CLIError with ExitManifestError when the file does not
// exist or cannot be parsed.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitManifestError,
				fmt.Sprintf("manifest not found: %s", path),
				err,
			)
		}
		return nil, model.WrapCLIError(
			model.ExitManifestError,
			fmt.Sprintf("failed to read manifest %s", path),
			err,
		)
	}

	m, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitManifestError,
			fmt.Sprintf("failed to parse manifest %s", path),
			err,
		)
	}

	m.Path = path
	return m, nil
}

// Parse decodes manifest bytes in the format implied by ext (".json",
// ".yaml" or ".yml") and applies defaults. JSON input may contain JSONC
// comments and trailing commas.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest

	switch strings.ToLower(ext) {
	case ".json":
		// Strip // and /* */ comments plus trailing commas before
		// handing the bytes to encoding/json.
		if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q (expected .json, .yaml or .yml)", ext)
	}

	applyDefaults(&m)
	return &m, nil
}

// manifestCandidates is the discovery order for Find. The JSON form is
// preferred because it tolerates comments.
var manifestCandidates = []string{
	"stagehand.json",
	"stagehand.yaml",
	"stagehand.yml",
}

// Find searches projectDir for a manifest file in the standard
// locations. Returns the path of the first candidate that exists, or
// an empty string when none does. Absence is not an error: the caller
// falls back to the built-in default manifest.
func Find(projectDir string) string {
	for _, name := range manifestCandidates {
		path := filepath.Join(projectDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Resolve produces the effective manifest for a project directory.
//
// When explicitPath is set (the --manifest flag), that file must exist
// and parse. Otherwise the standard candidates in projectDir are
// probed, and if none exists the built-in default is returned. This
// preserves the zero-argument contract: `stagehand up` in a bare
// project provisions the stock app.
func Resolve(projectDir, explicitPath string) (*Manifest, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}
	if path := Find(projectDir); path != "" {
		return Load(path)
	}
	return Default(), nil
}

// PackageSpecs parses the manifest's package entries into structured
// specs, preserving manifest order.
func (m *Manifest) PackageSpecs() ([]model.PackageSpec, error) {
	specs := make([]model.PackageSpec, 0, len(m.Packages))
	for _, entry := range m.Packages {
		spec, err := model.ParsePackageSpec(entry)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Source describes where the manifest came from, for status output.
func (m *Manifest) Source() string {
	if m.Path == "" {
		return "built-in default"
	}
	return m.Path
}

// applyDefaults fills unset fields from the built-in default. Only
// fields with a single sensible value are defaulted; the package list
// is deliberately left as written, so an explicit empty list means
// "no packages", not "the stock ten".
func applyDefaults(m *Manifest) {
	def := Default()

	if m.Environment.Name == "" {
		m.Environment.Name = def.Environment.Name
	}
	if m.Environment.Python == "" {
		m.Environment.Python = def.Environment.Python
	}
	if m.Name == "" {
		m.Name = m.Environment.Name
	}
	if len(m.App.Command) == 0 {
		m.App.Command = def.App.Command
	}
	if m.App.Entry == "" {
		m.App.Entry = def.App.Entry
	}
	if m.App.Port == 0 {
		m.App.Port = DefaultPort
	}
	if m.Container != nil {
		if m.Container.Image == "" && m.Container.Dockerfile == "" {
			m.Container.Dockerfile = "Dockerfile"
		}
		if m.Container.Context == "" {
			m.Container.Context = "."
		}
	}
}
