package backend

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
)

// DockerBackend drives a Docker daemon as the pool's ContainerBackend. It
// follows the client-per-call shape the teacher uses in
// pkg/sandbox/client.go and pkg/sandbox/container.go rather than holding one
// long-lived *client.Client, so a daemon restart never wedges the pool.
type DockerBackend struct {
	endpoint  string
	repoRoot  string
	newClient func() (*client.Client, error)
}

// NewDockerBackend constructs a backend that talks to the daemon at
// endpoint (empty string means client.FromEnv). repoRoot is bind-mounted
// read-only into every created container at /workspace, mirroring
// pkg/sandbox/container.go's mount layout.
func NewDockerBackend(endpoint, repoRoot string) *DockerBackend {
	return &DockerBackend{
		endpoint: endpoint,
		repoRoot: repoRoot,
		newClient: func() (*client.Client, error) {
			opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
			if endpoint != "" {
				opts = append(opts, client.WithHost(endpoint))
			}
			return client.NewClientWithOpts(opts...)
		},
	}
}

// Ping verifies the daemon is reachable, mirroring
// pkg/sandbox/client.go's CheckDockerAvailability.
func (b *DockerBackend) Ping(ctx context.Context) error {
	cli, err := b.newClient()
	if err != nil {
		return fmt.Errorf("docker not available: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker not available: %w", err)
	}
	return nil
}

// pullImage pulls spec.Image if it isn't present locally, adapted from
// pkg/sandbox/client.go's PullDockerImage.
func pullImage(ctx context.Context, cli *client.Client, image string) error {
	if _, _, err := cli.ImageInspectWithRaw(ctx, image); err == nil {
		return nil
	}

	reader, err := cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	return nil
}

func (b *DockerBackend) Create(ctx context.Context, spec CreateSpec) (Container, error) {
	cli, err := b.newClient()
	if err != nil {
		return nil, &Error{Op: "create", ContainerName: spec.Name, Err: err}
	}

	if spec.Pull {
		if err := pullImage(ctx, cli, spec.Image); err != nil {
			cli.Close()
			return nil, &Error{Op: "create", ContainerName: spec.Name, Err: err}
		}
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	containerConfig := &container.Config{
		Image: spec.Image,
		Cmd:   strslice.StrSlice(spec.Args),
		Env:   env,
		Tty:   false,
	}

	var mounts []mount.Mount
	if b.repoRoot != "" {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   b.repoRoot,
			Target:   "/workspace",
			ReadOnly: true,
		})
	}

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(spec.Network),
		Mounts:      mounts,
		Resources: container.Resources{
			Memory:   spec.Limits.MemoryBytes,
			NanoCPUs: int64(spec.Limits.CPUs * 1e9),
		},
		CapDrop:     strslice.StrSlice{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
	}

	resp, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, spec.Name)
	if err != nil {
		cli.Close()
		return nil, &Error{Op: "create", ContainerName: spec.Name, Err: err}
	}

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		cli.Close()
		return nil, &Error{Op: "create", ContainerName: spec.Name, Err: err}
	}

	return &dockerContainer{
		id:        resp.ID,
		name:      spec.Name,
		newClient: b.newClient,
	}, nil
}

func (b *DockerBackend) ListAll(ctx context.Context, prefix string) ([]ContainerSummary, error) {
	cli, err := b.newClient()
	if err != nil {
		return nil, &Error{Op: "listAll", ContainerName: prefix, Err: err}
	}
	defer cli.Close()

	f := filters.NewArgs()
	f.Add("name", prefix)
	list, err := cli.ContainerList(ctx, types.ContainerListOptions{All: true, Filters: f})
	if err != nil {
		return nil, &Error{Op: "listAll", ContainerName: prefix, Err: err}
	}

	out := make([]ContainerSummary, 0, len(list))
	for _, c := range list {
		name := strings.TrimPrefix(firstOrEmpty(c.Names), "/")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, ContainerSummary{ID: c.ID, Name: name})
	}
	return out, nil
}

func firstOrEmpty(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (b *DockerBackend) RemoveByID(ctx context.Context, id string) error {
	cli, err := b.newClient()
	if err != nil {
		return &Error{Op: "remove", ContainerName: id, Err: err}
	}
	defer cli.Close()

	if err := cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return &Error{Op: "remove", ContainerName: id, Err: err}
	}
	return nil
}

func (b *DockerBackend) GetLogSize(ctx context.Context, name string) (int64, error) {
	cli, err := b.newClient()
	if err != nil {
		return 0, &Error{Op: "getLogSize", ContainerName: name, Err: err}
	}
	defer cli.Close()

	inspect, err := cli.ContainerInspect(ctx, name)
	if err != nil {
		return 0, &Error{Op: "getLogSize", ContainerName: name, Err: err}
	}
	if inspect.SizeRw == nil {
		return 0, ErrLogSizeUnavailable
	}
	return *inspect.SizeRw, nil
}
