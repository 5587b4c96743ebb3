// Package launch starts the web front-end process once the
// provisioning chain has converged.
//
// The launch contract is fixed: whatever else the manifest configures,
// the final argv always carries --server.port with the resolved port
// and --server.enableCORS with the configured CORS setting (false by
// default). The process runs in the foreground inside the conda
// environment, inheriting stdio, and its exit status is the command's
// exit status.
//
// Before anything starts, the app port is preflighted. A busy port
// aborts with ExitPortUnavailable instead of letting the web framework
// die on an opaque bind error.
package launch
