// Package backend defines the contract the container pool uses to drive an
// external container runtime, and provides a Docker-backed implementation.
//
// The pool never inspects or mutates a Container's internal state beyond
// calling the operations below; every operation may block and may fail, and
// the pool never retries a backend call internally (see internal/pool).
package backend

import (
	"context"
	"io"
	"time"
)

// ResourceLimits bounds the resources a created container may use.
type ResourceLimits struct {
	MemoryBytes int64
	CPUs        float64
}

// CreateSpec describes a container to create.
type CreateSpec struct {
	Name    string // fully-formed container name, see internal/pool/naming.go
	Image   string
	Network string
	Pull    bool // false when the image is assumed already present (whisk/ prefix)
	Env     map[string]string
	Limits  ResourceLimits
	Args    []string
}

// RunResult is the timestamped outcome of an in-container init call. When
// init was never attempted (e.g. a cache hit never re-runs init) the pool
// hands back a nil *RunResult instead.
type RunResult struct {
	StartedAt time.Time
	EndedAt   time.Time
	ExitCode  *int
	Output    string
}

// Failed reports whether the init call produced a non-zero exit code.
// It is false for a nil result and when ExitCode is nil.
func (r *RunResult) Failed() bool {
	return r != nil && r.ExitCode != nil && *r.ExitCode != 0
}

// ContainerSummary describes a container enumerated by ListAll, used for
// straggler cleanup after an abnormal restart.
type ContainerSummary struct {
	ID   string
	Name string
}

// Container is an opaque handle to a running (or paused) container issued
// by Create. All operations may block on backend I/O.
type Container interface {
	// ID is the backend-assigned runtime id. It is safe to call at any
	// point after Create returns.
	ID() string
	// Name is the human-readable name this container was created with.
	Name() string

	// Init delivers the in-container initialization payload and reports
	// the timestamped result. Only called once, immediately after Create,
	// by the pool's Acquirer on a cache miss.
	Init(ctx context.Context, payload []byte) (*RunResult, error)

	Pause(ctx context.Context) error
	Unpause(ctx context.Context) error
	Remove(ctx context.Context) error
	Kill(ctx context.Context) error

	// GetLogs streams the container's combined stdout/stderr.
	GetLogs(ctx context.Context) (io.ReadCloser, error)
}

// ContainerBackend is the pool's sole collaborator for runtime operations.
// Implementations must never return a Busy-shaped error; capacity decisions
// belong entirely to the pool (see internal/pool's errBusy).
type ContainerBackend interface {
	// Create starts a new container from spec and returns a handle to it.
	Create(ctx context.Context, spec CreateSpec) (Container, error)

	// ListAll enumerates every container the backend currently knows
	// about whose name begins with prefix, for straggler cleanup.
	ListAll(ctx context.Context, prefix string) ([]ContainerSummary, error)

	// RemoveByID force-removes a container the pool only knows by id
	// (used when cleaning up stragglers with no live Container handle).
	RemoveByID(ctx context.Context, id string) error

	// GetLogSize reports the current size in bytes of a container's log
	// stream without reading it, or ErrLogSizeUnavailable if the backend
	// cannot answer that cheaply.
	GetLogSize(ctx context.Context, name string) (int64, error)
}
