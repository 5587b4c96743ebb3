// Package provision implements the linear convergence engine at the
// heart of stagehand.
//
// The engine walks a fixed chain of steps in order: runtime,
// environment, then one step per required package. Every step is a
// presence check paired with an apply action; the apply runs only when
// the check finds the target absent, which makes a second run over a
// converged host a pure sequence of skips.
//
// Execution is strictly sequential and fail-fast: the first apply error
// marks its step failed, every later step pending, and stops the walk.
// There is no retry and no rollback.
//
// The engine talks to the host through the System interface, so the
// convergence rules are testable against an in-memory fake while
// HostSystem binds them to the real conda runtime and installer.
package provision
