// Package port implements app port availability checks for the
// stagehand CLI.
//
// stagehand manages exactly one TCP port: the one the launched web
// process listens on. The Scanner probes availability with net.Listen,
// which asks the OS directly instead of parsing /proc/net/* or shelling
// out to lsof/ss. Preflight turns a busy port into a typed error before
// the app process starts, so the failure names the port instead of
// surfacing as an opaque bind error from the web framework.
package port
