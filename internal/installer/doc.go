// Package installer bootstraps the conda runtime when a host does not
// have one. It performs the single outbound network operation stagehand
// is allowed: one HTTPS fetch of a fixed installer URL, chosen by
// platform, followed by a silent batch-mode install into a prefix.
//
// There is no retry and no rollback. A failed download or install run
// surfaces immediately as a CLIError with ExitCondaUnavailable and
// halts the provisioning chain.
package installer
