package launch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mmr-tortoise/stagehand/internal/manifest"
	"github.com/mmr-tortoise/stagehand/internal/model"
	"github.com/mmr-tortoise/stagehand/internal/port"
)

// Spec describes one front-end launch: the command to run and the
// server flags it must carry.
type Spec struct {
	// Command is the launcher argv prefix, e.g. ["streamlit", "run"].
	Command []string

	// Entry is the app entry point appended after Command. May be
	// empty for commands that need no entry argument.
	Entry string

	// Port is the resolved app port.
	Port int

	// EnableCORS is the value passed to --server.enableCORS.
	EnableCORS bool

	// Env holds extra KEY=value pairs for the app process.
	Env []string
}

// FromManifest builds a Spec from a manifest app section and the
// resolved port. The port comes from the configuration precedence
// chain, not from the manifest directly, so it is a parameter here.
func FromManifest(app manifest.App, resolvedPort int) Spec {
	return Spec{
		Command:    app.Command,
		Entry:      app.Entry,
		Port:       resolvedPort,
		EnableCORS: app.EnableCORS,
	}
}

// Argv returns the complete launch argv. The server flags are always
// emitted, in fixed positions after the command and entry:
//
//	streamlit run front_end/main.py --server.port 8501 --server.enableCORS false
//
// Emitting the flags unconditionally keeps the launch contract explicit
// regardless of whether any install step ran before it.
func (s Spec) Argv() []string {
	argv := make([]string, 0, len(s.Command)+5)
	argv = append(argv, s.Command...)
	if s.Entry != "" {
		argv = append(argv, s.Entry)
	}
	argv = append(argv,
		"--server.port", strconv.Itoa(s.Port),
		"--server.enableCORS", strconv.FormatBool(s.EnableCORS),
	)
	return argv
}

// Validate checks the Spec is launchable.
func (s Spec) Validate() error {
	if len(s.Command) == 0 {
		return model.NewCLIError(model.ExitLaunchFailed, "manifest declares no launch command")
	}
	if s.Port < 1 || s.Port > 65535 {
		return model.NewCLIError(model.ExitLaunchFailed, fmt.Sprintf("port %d out of range (1-65535)", s.Port))
	}
	return nil
}

// CondaRunner is the conda surface the launcher needs: run an argv in
// the foreground inside a named environment. conda.Manager implements
// it; tests substitute a recorder.
type CondaRunner interface {
	RunInEnv(ctx context.Context, env string, argv []string, extraEnv []string) error
}

// Runner launches app processes.
type Runner struct {
	conda   CondaRunner
	scanner *port.Scanner
}

// NewRunner creates a Runner backed by the given conda integration.
func NewRunner(conda CondaRunner) *Runner {
	return &Runner{
		conda:   conda,
		scanner: port.NewScanner(),
	}
}

// Launch preflights the app port and runs the Spec in the foreground
// inside the named environment. It blocks until the app process exits;
// for a web server that means until the user stops it.
//
// The PORT environment variable is set for the child to the same value
// as the --server.port flag, mirroring the container contract, so an
// app that reads PORT instead of the flag sees a consistent answer.
func (r *Runner) Launch(ctx context.Context, envName string, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	if err := r.scanner.Preflight(spec.Port); err != nil {
		return err
	}

	extraEnv := append([]string{fmt.Sprintf("PORT=%d", spec.Port)}, spec.Env...)
	return r.conda.RunInEnv(ctx, envName, spec.Argv(), extraEnv)
}
