package backend

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// dockerContainer implements Container against a live Docker daemon. It
// opens a fresh client per call, the same per-call-client shape
// pkg/sandbox/container.go uses for RunContainer, so a pool holding many
// idle dockerContainer handles never pins a daemon connection per handle.
type dockerContainer struct {
	id        string
	name      string
	newClient func() (*client.Client, error)
}

func (c *dockerContainer) ID() string   { return c.id }
func (c *dockerContainer) Name() string { return c.name }

// Init runs the payload inside the container via `docker exec`, standing in
// for the init HTTP call a real action runtime would expose. The payload is
// passed on stdin to a fixed entrypoint script the image is expected to
// provide at /init.
func (c *dockerContainer) Init(ctx context.Context, payload []byte) (*RunResult, error) {
	cli, err := c.newClient()
	if err != nil {
		return nil, &Error{Op: "init", ContainerName: c.name, Err: err}
	}
	defer cli.Close()

	started := time.Now()

	execResp, err := cli.ContainerExecCreate(ctx, c.id, types.ExecConfig{
		Cmd:          []string{"/init"},
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, &Error{Op: "init", ContainerName: c.name, Err: err}
	}

	attach, err := cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, &Error{Op: "init", ContainerName: c.name, Err: err}
	}
	defer attach.Close()

	if _, err := attach.Conn.Write(payload); err != nil {
		return nil, &Error{Op: "init", ContainerName: c.name, Err: err}
	}
	attach.CloseWrite()

	var stdout, stderr bytes.Buffer
	if err := demuxLogs(attach.Reader, &stdout, &stderr); err != nil {
		return nil, &Error{Op: "init", ContainerName: c.name, Err: err}
	}

	inspect, err := cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, &Error{Op: "init", ContainerName: c.name, Err: err}
	}

	exitCode := inspect.ExitCode
	return &RunResult{
		StartedAt: started,
		EndedAt:   time.Now(),
		ExitCode:  &exitCode,
		Output:    stdout.String() + stderr.String(),
	}, nil
}

func (c *dockerContainer) Pause(ctx context.Context) error {
	cli, err := c.newClient()
	if err != nil {
		return &Error{Op: "pause", ContainerName: c.name, Err: err}
	}
	defer cli.Close()

	if err := cli.ContainerPause(ctx, c.id); err != nil {
		return &Error{Op: "pause", ContainerName: c.name, Err: err}
	}
	return nil
}

func (c *dockerContainer) Unpause(ctx context.Context) error {
	cli, err := c.newClient()
	if err != nil {
		return &Error{Op: "unpause", ContainerName: c.name, Err: err}
	}
	defer cli.Close()

	if err := cli.ContainerUnpause(ctx, c.id); err != nil {
		return &Error{Op: "unpause", ContainerName: c.name, Err: err}
	}
	return nil
}

func (c *dockerContainer) Remove(ctx context.Context) error {
	cli, err := c.newClient()
	if err != nil {
		return &Error{Op: "remove", ContainerName: c.name, Err: err}
	}
	defer cli.Close()

	if err := cli.ContainerRemove(ctx, c.id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return &Error{Op: "remove", ContainerName: c.name, Err: err}
	}
	return nil
}

func (c *dockerContainer) Kill(ctx context.Context) error {
	cli, err := c.newClient()
	if err != nil {
		return &Error{Op: "kill", ContainerName: c.name, Err: err}
	}
	defer cli.Close()

	if err := cli.ContainerKill(ctx, c.id, "SIGKILL"); err != nil {
		return &Error{Op: "kill", ContainerName: c.name, Err: err}
	}
	return nil
}

func (c *dockerContainer) GetLogs(ctx context.Context) (io.ReadCloser, error) {
	cli, err := c.newClient()
	if err != nil {
		return nil, &Error{Op: "getLogs", ContainerName: c.name, Err: err}
	}

	reader, err := cli.ContainerLogs(ctx, c.id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		cli.Close()
		return nil, &Error{Op: "getLogs", ContainerName: c.name, Err: err}
	}
	return &closerFunc{ReadCloser: reader, closeClient: cli.Close}, nil
}

// closerFunc closes both the log stream and the client that opened it.
type closerFunc struct {
	io.ReadCloser
	closeClient func() error
}

func (c *closerFunc) Close() error {
	err := c.ReadCloser.Close()
	if cerr := c.closeClient(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// demuxLogs separates stdout and stderr from Docker's multiplexed stream,
// carried over from pkg/sandbox/container.go almost verbatim: an 8-byte
// header (stream type + big-endian size) precedes every frame.
func demuxLogs(reader io.Reader, stdout, stderr io.Writer) error {
	buf := make([]byte, 8)
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		streamType := buf[0]
		size := int(buf[4])<<24 | int(buf[5])<<16 | int(buf[6])<<8 | int(buf[7])

		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return err
		}

		switch streamType {
		case 1:
			stdout.Write(payload)
		case 2:
			stderr.Write(payload)
		default:
			stdout.Write(payload)
		}
	}
}
