package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/backend"
	"github.com/computerscienceiscool/containerpool/internal/journal"
)

// PutBack implements spec.md §4.3: it returns an Active container to the
// pool's Idle set, evicting the oldest Idle container first if the idle cap
// has been reached, then pauses and marks the just-returned container Idle.
// Capacity eviction never evicts the container PutBack is currently
// returning, because that container is only transitioned to Idle after
// eviction runs (spec.md §5, "Ordering guarantees").
func (p *Pool) PutBack(ctx context.Context, c backend.Container, forceDelete bool) error {
	p.mu.Lock()
	ci, ok := p.state.containerMap[c.ID()]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: putBack on unknown container %s", ErrInvariantViolation, c.ID())
	}
	if ci.State != Active {
		p.mu.Unlock()
		return fmt.Errorf("%w: putBack on non-active container %s", ErrInvariantViolation, c.ID())
	}

	deleteIt := forceDelete || ci.quarantined

	var evicted []*ContainerInfo
	if p.gcOn.load() {
		for p.state.countByState(Idle) >= p.cfg.MaxIdle {
			oldest := p.state.oldestIdle()
			if oldest == nil {
				break
			}
			p.state.remove(oldest)
			evicted = append(evicted, oldest)
		}
	}
	p.mu.Unlock()

	if err := ci.Container.Pause(ctx); err != nil {
		p.log.Errorf("pause failed for %s: %v", ci.Container.Name(), err)
		// The container is in an unknown state; do not hand it back out
		// as Idle. Remove it instead of leaving a broken entry behind.
		p.mu.Lock()
		p.state.remove(ci)
		p.mu.Unlock()
		evicted = append(evicted, ci)
		p.teardown(context.Background(), evicted)
		return fmt.Errorf("pool: pause failed: %w", err)
	}

	p.mu.Lock()
	ci.State = Idle
	ci.LastUsed = time.Now()
	if deleteIt {
		p.state.remove(ci)
		evicted = append(evicted, ci)
	}
	p.mu.Unlock()

	if len(evicted) > 0 {
		if p.journal != nil {
			for _, e := range evicted {
				reason := journal.ReasonEvictedCapacity
				if e == ci {
					reason = journal.ReasonDeletedOnReturn
				}
				p.journal.Record(reason, e.Key, e.Container.Name())
			}
		}
		p.teardown(context.Background(), evicted)
	}

	return nil
}
