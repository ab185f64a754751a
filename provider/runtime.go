package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

const (
	DefaultRuntimeImage = "ollama/ollama:latest"
	LabelManagedBy      = "gate.managed-by"
	containerPrefix     = "gate-"
)

// Runtime manages the Docker container backing a local provider, so a
// deployment can guarantee the local model server its routing policies
// point at is actually up before the worker starts draining jobs.
type Runtime struct {
	client       *client.Client
	defaultImage string
	mu           sync.Mutex
	available    bool
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeImage sets the default model-server image.
func WithRuntimeImage(img string) RuntimeOption {
	return func(r *Runtime) {
		r.defaultImage = img
	}
}

// NewRuntime creates a container runtime. If Docker is unreachable the
// Runtime is returned with available=false rather than an error, so the
// gateway can still run against an externally managed server.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		defaultImage: DefaultRuntimeImage,
	}
	for _, opt := range opts {
		opt(r)
	}

	cli, err := createDockerClient()
	if err != nil {
		return r, nil
	}
	r.client = cli
	r.available = true
	return r, nil
}

// createDockerClient creates a Docker client, trying common socket
// locations for compatibility with Docker Desktop on macOS.
func createDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := cli.Ping(ctx); err == nil {
			return cli, nil
		}
		cli.Close()
	}

	socketPaths := []string{
		"unix://" + os.Getenv("HOME") + "/.docker/run/docker.sock",
		"unix:///var/run/docker.sock",
		"unix://" + os.Getenv("HOME") + "/.colima/docker.sock",
	}

	for _, socketPath := range socketPaths {
		cli, err := client.NewClientWithOpts(
			client.WithHost(socketPath),
			client.WithAPIVersionNegotiation(),
		)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = cli.Ping(ctx)
		cancel()

		if err == nil {
			return cli, nil
		}
		cli.Close()
	}

	return nil, fmt.Errorf("could not connect to Docker daemon")
}

// IsAvailable reports whether Docker is reachable.
func (r *Runtime) IsAvailable() bool {
	return r.available
}

// ServerSpec describes a local model-server container.
type ServerSpec struct {
	// Name keys the container (prefixed with "gate-")
	Name string

	// Image overrides the default model-server image
	Image string

	// Env passes extra environment variables
	Env []string
}

// EnsureRunning starts the named model-server container, reusing an
// existing one when possible. Returns the container ID.
func (r *Runtime) EnsureRunning(ctx context.Context, spec ServerSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.available {
		return "", fmt.Errorf("docker not available")
	}

	containerName := containerPrefix + spec.Name

	existing, err := r.getContainer(ctx, containerName)
	if err == nil && existing != "" {
		inspect, err := r.client.ContainerInspect(ctx, existing)
		if err == nil {
			if inspect.State.Running {
				return existing, nil
			}
			if err := r.client.ContainerStart(ctx, existing, container.StartOptions{}); err != nil {
				return "", fmt.Errorf("failed to start existing container: %w", err)
			}
			return existing, nil
		}
	}

	img := spec.Image
	if img == "" {
		img = r.defaultImage
	}
	if err := r.ensureImage(ctx, img); err != nil {
		return "", fmt.Errorf("failed to pull image: %w", err)
	}

	containerCfg := &container.Config{
		Image: img,
		Env:   spec.Env,
		Labels: map[string]string{
			LabelManagedBy: "gate",
		},
	}

	hostCfg := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
		NetworkMode: "host",
	}

	resp, err := r.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, containerName)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	return resp.ID, nil
}

// Stop stops the named model-server container.
func (r *Runtime) Stop(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.available {
		return fmt.Errorf("docker not available")
	}

	containerID, err := r.getContainer(ctx, containerPrefix+name)
	if err != nil {
		return err
	}

	timeout := 10
	return r.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
}

// ListManaged returns the names of gate-managed containers.
func (r *Runtime) ListManaged(ctx context.Context) ([]string, error) {
	if !r.available {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManagedBy+"=gate"),
		),
	})
	if err != nil {
		return nil, err
	}

	var names []string
	for _, c := range containers {
		for _, n := range c.Names {
			names = append(names, n)
		}
	}
	return names, nil
}

// getContainer finds a container by name.
func (r *Runtime) getContainer(ctx context.Context, name string) (string, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("name", name),
		),
	})
	if err != nil {
		return "", err
	}

	for _, c := range containers {
		for _, n := range c.Names {
			if n == "/"+name {
				return c.ID, nil
			}
		}
	}

	return "", fmt.Errorf("container not found: %s", name)
}

// ensureImage pulls an image if not present locally.
func (r *Runtime) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := r.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}

	reader, err := r.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close closes the Docker client.
func (r *Runtime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
