package port

import (
	"fmt"
	"net"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// suggestionWindow is how far past a busy port Preflight scans when
// looking for a free port to mention in the error message.
const suggestionWindow = 100

// Scanner checks whether the app port is free on the host machine.
//
// It binds with net.Listen to test availability. The struct is
// currently stateless, but is defined as a struct (rather than bare
// functions) so that future options (e.g., a bind address) can be added
// without breaking the API, and so the launch layer can take it as an
// injectable dependency in tests.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable checks whether a single TCP port is free.
//
// We bind to all interfaces (":port" rather than "127.0.0.1:port")
// because both the web framework and Docker publish on 0.0.0.0, so the
// check must cover the same address space to avoid false positives.
//
// Returns true if the port is free, false if it is in use or invalid.
func (s *Scanner) IsPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	// Close immediately: the bind itself was the test.
	defer func() { _ = listener.Close() }()
	return true
}

// FindAvailablePort scans [startPort, endPort] (inclusive) and returns
// the first free TCP port. The search is sequential from startPort
// upward, so the same free port is selected consistently.
//
// Returns an error when every port in the range is occupied.
func (s *Scanner) FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, endPort)
}

// Preflight verifies the app port is free before any process starts.
//
// A busy port returns a CLIError with ExitPortUnavailable. When a free
// port exists within suggestionWindow above the requested one, the
// error message names it, so the fix (`--port <n>` or PORT=<n>) is one
// glance away.
func (s *Scanner) Preflight(appPort int) error {
	if appPort < 1 || appPort > 65535 {
		return model.NewCLIError(
			model.ExitPortUnavailable,
			fmt.Sprintf("port %d out of range (1-65535)", appPort),
		)
	}

	if s.IsPortAvailable(appPort) {
		return nil
	}

	message := fmt.Sprintf("port %d is already in use", appPort)
	if free, err := s.FindAvailablePort(appPort+1, appPort+suggestionWindow); err == nil {
		message = fmt.Sprintf("%s (next free port: %d)", message, free)
	}
	return model.NewCLIError(model.ExitPortUnavailable, message)
}
