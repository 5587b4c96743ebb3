// Package docker provides Docker Engine API wrappers and container
// lifecycle management for the stagehand CLI's container mode.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container label management for persisting app metadata
//     (Docker labels are the sole state storage mechanism)
//   - Image builds from the manifest's Dockerfile
//   - Container lifecycle operations: run, list, stop, remove
//
// Container mode packages the provisioned environment into an image and
// runs the app detached, publishing a host port to the fixed in-container
// server port. The rest of the CLI rediscovers those containers purely
// through their stagehand.* labels.
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
