// Package pool implements the container pool described in SPEC_FULL.md: a
// keyed cache of warm containers that amortizes the cost of starting an
// isolated execution environment per (user, action, revision).
//
// # Locking discipline
//
// Two locks guard disjoint concerns, deliberately kept apart (folding them
// into one collapses throughput, see SPEC_FULL.md Part A §9):
//
//   - mu ("poolLock") protects containerMap, keyMap, the starting counter,
//     and the State/LastUsed fields of every ContainerInfo. Held for short
//     critical sections only; no backend I/O happens while it is held.
//   - gcSync serializes GC sweeps, including their teardown phase, so two
//     sweeps never race to remove the same container or fight the backend.
//     It is held across backend I/O, which can take seconds.
//
// # Invariants
//
//   - Every ContainerInfo appears in exactly one keyMap bucket and exactly
//     once in containerMap; a bucket with zero entries is removed.
//   - activeCount + idleCount == len(containerMap).
//   - activeCount + starting <= cfg.MaxActive whenever a creation starts.
//   - idleCount <= cfg.MaxIdle immediately after any putBack completes.
//   - starting <= 1: at most one creation is in flight pool-wide.
//   - A get on a key whose bucket holds an Idle ContainerInfo reuses it and
//     never creates another. A miss while the key's only entries are Active
//     does create a further container, so a bucket can later hold more than
//     one Idle entry.
package pool

import (
	"sync"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/backend"
	"github.com/computerscienceiscool/containerpool/internal/config"
	"github.com/computerscienceiscool/containerpool/internal/journal"
	"github.com/computerscienceiscool/containerpool/internal/poollog"
)

// State is a ContainerInfo's lifecycle state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// ContainerInfo is the pool's per-container record.
type ContainerInfo struct {
	Key       string
	Container backend.Container
	State     State
	LastUsed  time.Time

	// quarantined is set when config.Quarantine is active and this
	// container's init call returned a non-zero exit code. PutBack
	// forces delete=true for a quarantined container regardless of what
	// the caller asked for. See SPEC_FULL.md Part E.
	quarantined bool
}

// poolState is the bare map/bucket structure, manipulated only while mu is
// held. It performs no backend I/O; see SPEC_FULL.md Part A §4.1.
type poolState struct {
	containerMap map[string]*ContainerInfo   // container id -> info
	keyMap       map[string][]*ContainerInfo // key -> bucket
}

func newPoolState() poolState {
	return poolState{
		containerMap: make(map[string]*ContainerInfo),
		keyMap:       make(map[string][]*ContainerInfo),
	}
}

func (s *poolState) countByState(want State) int {
	n := 0
	for _, ci := range s.containerMap {
		if ci.State == want {
			n++
		}
	}
	return n
}

func (s *poolState) bucket(key string) []*ContainerInfo {
	return s.keyMap[key]
}

// idleInBucket returns the first Idle entry in key's bucket, or nil.
func (s *poolState) idleInBucket(key string) *ContainerInfo {
	for _, ci := range s.keyMap[key] {
		if ci.State == Idle {
			return ci
		}
	}
	return nil
}

func (s *poolState) introduce(key string, c backend.Container) *ContainerInfo {
	ci := &ContainerInfo{Key: key, Container: c, State: Active, LastUsed: time.Now()}
	s.containerMap[c.ID()] = ci
	s.keyMap[key] = append(s.keyMap[key], ci)
	return ci
}

func (s *poolState) remove(ci *ContainerInfo) {
	delete(s.containerMap, ci.Container.ID())
	bucket := s.keyMap[ci.Key]
	for i, other := range bucket {
		if other == ci {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(s.keyMap, ci.Key)
	} else {
		s.keyMap[ci.Key] = bucket
	}
}

// oldestIdle returns the Idle ContainerInfo with the smallest LastUsed
// across the whole pool, or nil if none is idle.
func (s *poolState) oldestIdle() *ContainerInfo {
	var oldest *ContainerInfo
	for _, ci := range s.containerMap {
		if ci.State != Idle {
			continue
		}
		if oldest == nil || ci.LastUsed.Before(oldest.LastUsed) {
			oldest = ci
		}
	}
	return oldest
}

// Pool is the container pool. The zero value is not usable; construct with
// New.
type Pool struct {
	cfg     *config.Config
	backend backend.ContainerBackend
	log     *poollog.Logger
	journal *journal.Journal // optional, nil-safe

	mu       sync.Mutex // poolLock
	state    poolState
	starting int

	gcSync  sync.Mutex
	gcOn    atomicBool
	gcStop  chan struct{}
	gcDone  chan struct{}

	stats Stats
}

// Stats are cumulative, process-lifetime counters, mirroring
// pkg/sandbox/pool.go's Stats().
type Stats struct {
	ContainersCreated   int64
	ContainersDestroyed int64
	CacheHits           int64
	CacheMisses         int64
}

// New constructs a Pool and starts its background age-GC loop.
// Callers must call Close when the pool is no longer needed.
func New(cfg *config.Config, be backend.ContainerBackend, log *poollog.Logger, j *journal.Journal) *Pool {
	if log == nil {
		log = poollog.Discard()
	}
	p := &Pool{
		cfg:     cfg,
		backend: be,
		log:     log,
		journal: j,
		state:   newPoolState(),
		gcStop:  make(chan struct{}),
		gcDone:  make(chan struct{}),
	}
	p.gcOn.store(true)
	go p.gcLoop()
	return p
}

// Close stops the background GC loop. It does not tear down any containers
// still tracked by the pool; callers that want a clean shutdown should call
// ForceGC first (which only removes Idle containers) and are responsible
// for any still-Active containers.
func (p *Pool) Close() {
	close(p.gcStop)
	<-p.gcDone
}

// EnableGC turns the periodic age-GC sweep back on.
func (p *Pool) EnableGC() { p.gcOn.store(true) }

// DisableGC turns off the periodic age-GC sweep; ForceGC still works.
func (p *Pool) DisableGC() { p.gcOn.store(false) }

// SnapshotStats returns a copy of the pool's cumulative counters.
func (p *Pool) SnapshotStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ActiveCount returns the number of containers currently checked out.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.countByState(Active)
}

// IdleCount returns the number of warm, unchecked-out containers.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.countByState(Idle)
}

// atomicBool is a tiny mutex-guarded bool, used here in place of
// sync/atomic.Bool.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) store(v bool) {
	b.mu.Lock()
	b.v = v
	b.mu.Unlock()
}

func (b *atomicBool) load() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}
