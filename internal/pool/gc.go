package pool

import (
	"context"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/journal"
)

// gcLoop is the single background timer thread of spec.md §5: it fires
// performGC at cfg.GCFrequency. An overrunning sweep serializes the next
// tick on gcSync rather than queueing up (spec.md Part A §9).
func (p *Pool) gcLoop() {
	interval := p.cfg.GCFrequency
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.gcOn.load() {
				p.performGC(false)
			}
		case <-p.gcStop:
			close(p.gcDone)
			return
		}
	}
}

// performGC implements spec.md §4.4's sweep. The selection phase holds
// poolLock; backend teardown happens after it is released. gcSync ensures
// at most one sweep (selection + teardown) runs at a time.
func (p *Pool) performGC(forceAll bool) {
	p.gcSync.Lock()
	defer p.gcSync.Unlock()

	expiration := time.Now().Add(-p.cfg.GCThreshold)

	p.mu.Lock()
	var expired []*ContainerInfo
	for _, ci := range p.state.containerMap {
		if ci.State != Idle {
			continue
		}
		if forceAll || !ci.LastUsed.After(expiration) {
			expired = append(expired, ci)
		}
	}
	for _, ci := range expired {
		p.state.remove(ci)
	}
	p.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	if p.journal != nil {
		for _, ci := range expired {
			p.journal.Record(journal.ReasonEvictedAge, ci.Key, ci.Container.Name())
		}
	}
	p.teardown(context.Background(), expired)
}

// ForceGC runs a synchronous full-idle sweep, spec.md §4.4's forceGC:
// predicate true, i.e. every currently Idle container is torn down
// regardless of age.
func (p *Pool) ForceGC() {
	p.performGC(true)
}
