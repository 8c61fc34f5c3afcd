package pool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/config"
	"github.com/computerscienceiscool/containerpool/internal/journal"
)

// teardownFlushDelay gives a container's last writes to stdout/stderr time
// to land before GetLogs is called, matching SPEC_FULL.md Part A §4.5. A
// package variable, not a constant, so tests can shrink it to zero.
var teardownFlushDelay = config.DefaultTeardownFlushDelay

// teardown permanently destroys containers already removed from the pool's
// state (by PutBack or a GC sweep). By the time it runs, the ContainerInfo
// values are no longer reachable from any bucket; it takes poolLock only to
// bump the destroyed counter, never across backend I/O.
// Log-flush and removal failures are logged, not propagated: a teardown
// failure must never block the caller that triggered eviction.
func (p *Pool) teardown(ctx context.Context, infos []*ContainerInfo) {
	for _, ci := range infos {
		p.teardownOne(ctx, ci)
	}
}

func (p *Pool) teardownOne(ctx context.Context, ci *ContainerInfo) {
	time.Sleep(teardownFlushDelay)

	if p.cfg.LogDir != "" {
		if err := p.flushLogs(ctx, ci); err != nil {
			p.log.Warnf("teardown: log flush failed for %s: %v", ci.Container.Name(), err)
		}
	}

	if err := ci.Container.Remove(ctx); err != nil {
		p.log.Errorf("teardown: remove failed for %s: %v", ci.Container.Name(), err)
		if p.journal != nil {
			p.journal.Record(journal.ReasonTeardownFailed, ci.Key, ci.Container.Name())
		}
		return
	}

	p.mu.Lock()
	p.stats.ContainersDestroyed++
	p.mu.Unlock()
}

// flushLogs copies a container's combined stdout/stderr to
// cfg.LogDir/<name>.log before it is removed.
func (p *Pool) flushLogs(ctx context.Context, ci *ContainerInfo) error {
	rc, err := ci.Container.GetLogs(ctx)
	if err != nil {
		return fmt.Errorf("get logs: %w", err)
	}
	defer rc.Close()

	path := filepath.Join(p.cfg.LogDir, ci.Container.Name()+".log")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(f, rc)
	return err
}

// KillStragglers implements SPEC_FULL.md Part D's startup cleanup: on
// process start, any backend container still named with this pool's action
// prefix is a straggler from a previous, abnormally-terminated process and
// is force-removed before the pool begins serving requests.
func (p *Pool) KillStragglers(ctx context.Context) error {
	summaries, err := p.backend.ListAll(ctx, p.cfg.ActionPrefix)
	if err != nil {
		return fmt.Errorf("pool: list stragglers: %w", err)
	}

	for _, s := range summaries {
		if err := p.backend.RemoveByID(ctx, s.ID); err != nil {
			p.log.Errorf("straggler cleanup: remove failed for %s: %v", s.Name, err)
			continue
		}
		p.log.Infof("straggler cleanup: removed %s", s.Name)
		if p.journal != nil {
			p.journal.Record(journal.ReasonStragglerKilled, "", s.Name)
		}
	}
	return nil
}
