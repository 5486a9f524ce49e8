package testutil

import (
	"fmt"
	"net"
	"os"
	"testing"
	"time"
)

// DockerTestsEnv enables tests that start containers.
const DockerTestsEnv = "PCSPECS_DOCKER_TESTS"

// RequireDocker skips the test unless container tests are enabled.
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping docker test in short mode")
	}
	if os.Getenv(DockerTestsEnv) != "1" {
		t.Skipf("set %s=1 to run docker tests", DockerTestsEnv)
	}
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}
