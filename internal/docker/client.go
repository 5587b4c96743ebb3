// client.go wraps the Docker Engine SDK client with automatic socket
// detection and daemon connectivity checks. Every Docker-facing command
// goes through this wrapper so the rest of the CLI never touches the SDK
// connection details directly.
package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// defaultPingTimeout bounds how long Ping waits for the daemon to
// answer. Docker Desktop on macOS can take a few seconds to respond
// after waking, so the bound is deliberately loose.
const defaultPingTimeout = 5 * time.Second

// Client is the stagehand view of the Docker Engine API. It locates the
// daemon socket for the current platform and keeps the SDK client
// private so callers only see the operations container mode needs.
//
//	c, err := docker.NewClient()
//	if err != nil { /* no socket */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* daemon not answering */ }
type Client struct {
	// inner is the SDK client. Held unexported rather than embedded so
	// the wrapper controls what API surface leaks out.
	inner *client.Client
}

// NewClient connects to the Docker daemon.
//
// DOCKER_HOST, when set, wins and is handed to the SDK untouched.
// Otherwise the platform's known socket locations are probed: the
// standard unix socket on Linux, the Desktop socket locations on macOS,
// and the named pipe on Windows.
//
// A missing socket or an unusable connection string surfaces as a
// model.CLIError carrying ExitDockerUnavailable.
func NewClient() (*Client, error) {
	dockerHost := os.Getenv("DOCKER_HOST")
	if dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerUnavailable,
			"Docker socket not found",
			err,
		)
	}

	return newClientWithHost(host)
}

// newClientWithHost builds the SDK client for one connection string,
// for example "unix:///var/run/docker.sock" or
// "npipe:////./pipe/docker_engine".
func newClientWithHost(host string) (*Client, error) {
	// Version negotiation lets one binary talk to whatever daemon
	// version the host runs instead of pinning an API version.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerUnavailable,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost picks the daemon socket for the current platform,
// returning the first candidate that exists.
//
// Only existence is probed here; whether a daemon actually answers on
// the socket is Ping's job.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Docker Desktop usually symlinks /var/run/docker.sock, but
		// newer releases sometimes only create the per-user socket
		// under ~/.docker/run, so both are candidates.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// The daemon listens on a fixed named pipe. os.Stat does not
		// work on Windows named pipes, so reachability is probed with
		// a brief dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket walks candidate socket paths in preference order and
// returns a unix:// host string for the first path that exists.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		// Stat proves the socket file is present, not that a daemon is
		// listening behind it.
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"Docker socket not found at any of: %v (is Docker running?)",
		paths,
	)
}

// Ping checks that the daemon answers within defaultPingTimeout. A
// silent or erroring daemon becomes a model.CLIError carrying
// ExitDockerUnavailable.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	_, err := c.inner.Ping(pingCtx)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerUnavailable,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases the SDK client's connections, typically via defer
// right after NewClient. Calling it more than once is harmless.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the SDK client for calls the wrapper does not cover.
// Prefer the Client methods where one exists.
func (c *Client) Inner() *client.Client {
	return c.inner
}
