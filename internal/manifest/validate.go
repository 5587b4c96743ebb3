// validate.go checks a parsed manifest against the rules the
// provisioning chain depends on, so a bad manifest fails before any
// subprocess runs rather than partway through an install sequence.
package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// ValidationError represents a specific validation failure in a manifest.
type ValidationError struct {
	// Field is the manifest field path that failed validation
	// (e.g., "environment.python").
	Field string

	// Message describes what's wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation error: %s: %s", e.Field, e.Message)
}

// pythonVersionRegex matches dotted numeric versions such as "3",
// "3.11" or "3.11.4". Conda accepts these directly in python=<ver>.
var pythonVersionRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}$`)

// Validate performs consistency checks on a parsed manifest. It returns
// a list of validation errors; an empty list means the manifest is valid.
//
// Checks performed:
//   - Environment name obeys conda naming rules
//   - Python version has a dotted numeric shape
//   - Every package entry parses, and no two entries name the same
//     package after normalization
//   - App port is in the valid TCP range
//   - Entry, Dockerfile and context paths are relative
//   - Installer URL is https and the digest, if pinned, is hex SHA-256
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError

	if err := model.ValidateEnvName(m.Environment.Name); err != nil {
		errs = append(errs, ValidationError{
			Field:   "environment.name",
			Message: err.Error(),
		})
	}

	if !pythonVersionRegex.MatchString(m.Environment.Python) {
		errs = append(errs, ValidationError{
			Field:   "environment.python",
			Message: fmt.Sprintf("invalid python version %q: expected a dotted numeric version like 3.11", m.Environment.Python),
		})
	}

	// Every entry must parse, and the normalized names must be unique:
	// installing "PyJWT" and "pyjwt" would run the same install twice,
	// breaking the exactly-once guarantee.
	seen := make(map[string]string, len(m.Packages))
	for i, entry := range m.Packages {
		spec, err := model.ParsePackageSpec(entry)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("packages[%d]", i),
				Message: err.Error(),
			})
			continue
		}
		norm := spec.NormalizedName()
		if prev, dup := seen[norm]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("packages[%d]", i),
				Message: fmt.Sprintf("duplicate package %q: same package as %q after name normalization", entry, prev),
			})
			continue
		}
		seen[norm] = entry
	}

	if m.App.Port < 1 || m.App.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "app.port",
			Message: fmt.Sprintf("port %d out of range (1-65535)", m.App.Port),
		})
	}

	if m.App.Entry != "" && filepath.IsAbs(m.App.Entry) {
		errs = append(errs, ValidationError{
			Field:   "app.entry",
			Message: "entry path should be relative to the project directory",
		})
	}

	if m.Container != nil {
		if m.Container.Dockerfile != "" && filepath.IsAbs(m.Container.Dockerfile) {
			errs = append(errs, ValidationError{
				Field:   "container.dockerfile",
				Message: "dockerfile path should be relative to the project directory",
			})
		}
		if m.Container.Context != "" && filepath.IsAbs(m.Container.Context) {
			errs = append(errs, ValidationError{
				Field:   "container.context",
				Message: "context path should be relative to the project directory",
			})
		}
	}

	if m.Installer != nil {
		if m.Installer.URL != "" && !strings.HasPrefix(m.Installer.URL, "https://") {
			errs = append(errs, ValidationError{
				Field:   "installer.url",
				Message: "installer URL must use https",
			})
		}
		if m.Installer.SHA256 != "" && !isHexSHA256(m.Installer.SHA256) {
			errs = append(errs, ValidationError{
				Field:   "installer.sha256",
				Message: "digest must be 64 hexadecimal characters",
			})
		}
	}

	return errs
}

// isHexSHA256 reports whether s looks like a hex-encoded SHA-256 digest.
func isHexSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
