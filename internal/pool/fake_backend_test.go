package pool

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/backend"
)

// fakeBackend is an in-memory backend.ContainerBackend, standing in for a
// Docker daemon the way pkg/sandbox/pool_test.go's tests stand in for one
// with testing.Short() skips. Unlike that teacher, this backend needs no
// daemon at all, so every test here runs unconditionally.
type fakeBackend struct {
	mu          sync.Mutex
	containers  map[string]*fakeContainer
	nextID      int64
	createCount int64

	// failCreate, when non-nil, is returned by Create instead of
	// succeeding.
	failCreate error

	// initErr/initResult configure what every fakeContainer.Init returns.
	initResult *backend.RunResult
	initErr    error

	// failPauseOnce causes the NEXT Pause call to fail; used to exercise
	// PutBack's pause-failure teardown path.
	failPauseOnce int32

	// createDelay, when set, simulates a slow backend Create so tests can
	// observe whether two Create calls ever overlap.
	createDelay          time.Duration
	inFlightCreates      int32
	maxConcurrentCreates int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{containers: make(map[string]*fakeContainer)}
}

func (b *fakeBackend) Create(ctx context.Context, spec backend.CreateSpec) (backend.Container, error) {
	inFlight := atomic.AddInt32(&b.inFlightCreates, 1)
	defer atomic.AddInt32(&b.inFlightCreates, -1)
	for {
		prev := atomic.LoadInt32(&b.maxConcurrentCreates)
		if inFlight <= prev || atomic.CompareAndSwapInt32(&b.maxConcurrentCreates, prev, inFlight) {
			break
		}
	}

	if b.createDelay > 0 {
		time.Sleep(b.createDelay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failCreate != nil {
		return nil, b.failCreate
	}

	b.nextID++
	b.createCount++
	id := fmt.Sprintf("fake-%d", b.nextID)
	c := &fakeContainer{
		backend:    b,
		id:         id,
		name:       spec.Name,
		initResult: b.initResult,
		initErr:    b.initErr,
	}
	b.containers[id] = c
	return c, nil
}

func (b *fakeBackend) ListAll(ctx context.Context, prefix string) ([]backend.ContainerSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []backend.ContainerSummary
	for _, c := range b.containers {
		if c.removed {
			continue
		}
		if !strings.HasPrefix(c.name, prefix) {
			continue
		}
		out = append(out, backend.ContainerSummary{ID: c.id, Name: c.name})
	}
	return out, nil
}

func (b *fakeBackend) RemoveByID(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.containers[id]; ok {
		c.removed = true
	}
	return nil
}

func (b *fakeBackend) GetLogSize(ctx context.Context, name string) (int64, error) {
	return 0, backend.ErrLogSizeUnavailable
}

func (b *fakeBackend) nextWillFailPause() bool {
	return atomic.CompareAndSwapInt32(&b.failPauseOnce, 1, 0)
}

// fakeContainer is an in-memory backend.Container.
type fakeContainer struct {
	backend *fakeBackend

	id   string
	name string

	mu         sync.Mutex
	removed    bool
	killed     bool
	paused     bool
	initCalled bool

	initResult *backend.RunResult
	initErr    error
}

func (c *fakeContainer) ID() string   { return c.id }
func (c *fakeContainer) Name() string { return c.name }

func (c *fakeContainer) Init(ctx context.Context, payload []byte) (*backend.RunResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initCalled = true
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.initResult != nil {
		return c.initResult, nil
	}
	zero := 0
	return &backend.RunResult{ExitCode: &zero}, nil
}

func (c *fakeContainer) Pause(ctx context.Context) error {
	if c.backend.nextWillFailPause() {
		return fmt.Errorf("fake: pause failed")
	}
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) Unpause(ctx context.Context) error {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) Remove(ctx context.Context) error {
	c.mu.Lock()
	c.removed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) Kill(ctx context.Context) error {
	c.mu.Lock()
	c.killed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) GetLogs(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
