package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	// CleanupLabel is used to identify resources created by tests
	CleanupLabel = "pcspecs-test"

	DynamoDBLocalImage = "amazon/dynamodb-local:latest"
	dynamoDBLocalPort  = "8000/tcp"
)

// TestingT is a subset of testing.T used for Docker setup
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Fatalf(format string, args ...any)
	Helper()
}

// DockerClient creates a Docker client and registers cleanup for test containers.
func DockerClient(t TestingT) *client.Client {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Fatalf("failed to create docker client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		t.Fatalf("docker is not running: %v", err)
	}

	t.Cleanup(func() {
		cleanupTestContainers(t, cli)
		_ = cli.Close()
	})

	return cli
}

// UniqueContainerName generates a unique container name for a test.
// Format: pcspecs-test-<prefix>-<testname>-<random>
func UniqueContainerName(t TestingT, prefix string) string {
	t.Helper()
	return fmt.Sprintf("pcspecs-test-%s-%s-%s", prefix, sanitizeName(t.Name()), randString(4))
}

// ContainerLabels returns labels to apply to test containers.
func ContainerLabels(t TestingT) map[string]string {
	return map[string]string{
		CleanupLabel: t.Name(),
	}
}

// StartDynamoDBLocal runs DynamoDB Local for the duration of the test and
// returns its endpoint URL.
func StartDynamoDBLocal(t TestingT) string {
	t.Helper()

	cli := DockerClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if _, err := cli.ImageInspect(ctx, DynamoDBLocalImage); err != nil {
		reader, err := cli.ImagePull(ctx, DynamoDBLocalImage, image.PullOptions{})
		if err != nil {
			t.Fatalf("failed to pull %s: %v", DynamoDBLocalImage, err)
		}
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
	}

	hostPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}

	resp, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        DynamoDBLocalImage,
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			Labels:       ContainerLabels(t),
			ExposedPorts: nat.PortSet{dynamoDBLocalPort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				dynamoDBLocalPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}},
			},
		},
		nil, nil, UniqueContainerName(t, "dynamodb"))
	if err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		t.Fatalf("failed to start container: %v", err)
	}

	endpoint := "http://127.0.0.1:" + hostPort
	if err := waitHTTP(ctx, endpoint, 30); err != nil {
		t.Fatalf("dynamodb local not ready: %v", err)
	}
	return endpoint
}

// waitHTTP polls url until the server answers at all. DynamoDB Local
// answers a bare GET with 400, which still means it is up.
func waitHTTP(ctx context.Context, url string, attempts uint) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
	)
}

// cleanupTestContainers removes all containers created by this test.
func cleanupTestContainers(t TestingT, cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filterArgs := filters.NewArgs()
	filterArgs.Add("label", fmt.Sprintf("%s=%s", CleanupLabel, t.Name()))

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		t.Logf("Failed to list containers for cleanup: %v", err)
		return
	}

	for _, c := range containers {
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		}); err != nil {
			t.Logf("Failed to remove container %s: %v", c.Names[0], err)
		}
	}
}

// randString generates a random hex string of n bytes
func randString(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// sanitizeName converts a test name to a valid container name component
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			result = append(result, c)
		} else if c == '/' || c == '_' || c == '-' {
			result = append(result, '-')
		}
	}
	if len(result) > 30 {
		result = result[:30]
	}
	return string(result)
}
