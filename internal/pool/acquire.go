package pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/backend"
	"github.com/computerscienceiscool/containerpool/internal/config"
	"github.com/computerscienceiscool/containerpool/internal/domain"
	"github.com/computerscienceiscool/containerpool/internal/journal"
	"github.com/computerscienceiscool/containerpool/internal/poollog"
)

// createFunc performs the slow, blocking work of producing a fresh
// container for a cache miss: image pull/create and, where applicable,
// init. It always runs outside poolLock.
type createFunc func(ctx context.Context) (backend.Container, *backend.RunResult, error)

type fastPathResult int

const (
	fpBusy fastPathResult = iota
	fpHit
	fpMiss
)

// tryFastPath implements spec.md §4.2 step 1 under poolLock: it never
// performs backend I/O.
func (p *Pool) tryFastPath(key string) (*ContainerInfo, fastPathResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.countByState(Active)+p.starting >= p.cfg.MaxActive {
		return nil, fpBusy
	}
	if ci := p.state.idleInBucket(key); ci != nil {
		ci.State = Active
		return ci, fpHit
	}
	return nil, fpMiss
}

// tryStartCreation implements spec.md §4.2 step 3's lock reacquisition: it
// claims the single in-flight creation slot, or reports Busy.
func (p *Pool) tryStartCreation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.countByState(Active)+p.starting >= p.cfg.MaxActive {
		return false
	}
	if p.starting >= 1 {
		return false
	}
	p.starting++
	return true
}

func (p *Pool) endCreation() {
	p.mu.Lock()
	p.starting--
	p.mu.Unlock()
}

// get implements the public get(key, make) operation of spec.md §4.2: a
// cache probe with internal retry on Busy, bounded in progress only by a
// putBack or GC eventually freeing capacity. ctx cancellation is the one
// deviation from "get retries forever" that spec.md §5 explicitly leaves to
// the caller to impose externally.
func (p *Pool) get(ctx context.Context, key string, create createFunc) (backend.Container, *backend.RunResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		ci, result := p.tryFastPath(key)
		switch result {
		case fpHit:
			if err := ci.Container.Unpause(ctx); err != nil {
				p.log.Errorf("unpause failed, evicting: %s: %v", poollog.WithContainer(ci.Container.Name(), ci.Key), err)
				p.mu.Lock()
				p.state.remove(ci)
				p.mu.Unlock()
				p.teardown(context.Background(), []*ContainerInfo{ci})
				return nil, nil, fmt.Errorf("pool: unpause failed: %w", err)
			}
			p.mu.Lock()
			p.stats.CacheHits++
			p.mu.Unlock()
			return ci.Container, nil, nil

		case fpBusy:
			if !sleepOrDone(ctx, busyRetryInterval) {
				return nil, nil, ctx.Err()
			}
			continue

		case fpMiss:
			if !p.tryStartCreation() {
				if !sleepOrDone(ctx, busyRetryInterval) {
					return nil, nil, ctx.Err()
				}
				continue
			}

			container, runResult, err := create(ctx)
			if err != nil {
				p.endCreation()
				return nil, nil, err
			}

			p.mu.Lock()
			newCI := p.state.introduce(key, container)
			p.starting--
			p.stats.ContainersCreated++
			p.stats.CacheMisses++
			p.mu.Unlock()

			if p.journal != nil {
				p.journal.Record(journal.ReasonCreated, key, container.Name())
			}

			if runResult.Failed() && p.cfg.InitFailurePolicy == config.Quarantine {
				p.mu.Lock()
				newCI.quarantined = true
				p.mu.Unlock()
			}

			return container, runResult, nil
		}
	}
}

var busyRetryInterval = config.DefaultBusyRetryInterval

// sleepOrDone waits for d or ctx cancellation, returning false if ctx ended
// first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetAction resolves (or creates) a warm container for an action execution,
// spec.md §6's getAction. On a cache hit, result is nil: a cache hit never
// re-runs init.
func (p *Pool) GetAction(ctx context.Context, action domain.Action, auth domain.AuthKey) (backend.Container, *backend.RunResult, error) {
	key := keyForAction(auth, action)

	create := func(ctx context.Context) (backend.Container, *backend.RunResult, error) {
		image := p.actionImage(action)
		name := containerName(p.cfg.ActionPrefix, p.cfg.InvokerInstance, action.FQN())

		spec := backend.CreateSpec{
			Name:    name,
			Image:   image,
			Network: p.cfg.InvokerContainerNetwork,
			Pull:    !strings.HasPrefix(image, config.WhiskPresentImagePrefix),
			Env: map[string]string{
				"EDGE_HOST":     p.cfg.EdgeHost,
				"WHISK_VERSION": p.cfg.WhiskVersion,
				"__OW_API_KEY":  auth.Compact(),
			},
		}

		c, err := p.backend.Create(ctx, spec)
		if err != nil {
			return nil, nil, fmt.Errorf("pool: create failed for key %s: %w", key, err)
		}

		result, err := c.Init(ctx, []byte("{}"))
		if err != nil {
			// Transport-level init failure, not a logical non-zero exit:
			// the container never became usable, so it is not
			// registered. Best-effort cleanup, matching spec.md §7's
			// "no transactional rollback" note applying only to
			// containers that *did* get registered.
			c.Remove(context.Background())
			return nil, nil, fmt.Errorf("pool: init failed for key %s: %w", key, err)
		}
		return c, result, nil
	}

	return p.get(ctx, key, create)
}

// GetByImageName resolves (or creates) a warm container for a raw image
// invocation, spec.md §6's getByImageName. Raw image invocations do not run
// an init call: there is no action metadata to hand it.
func (p *Pool) GetByImageName(ctx context.Context, image string, args []string) (backend.Container, error) {
	key := keyForImage(image, args)

	create := func(ctx context.Context) (backend.Container, *backend.RunResult, error) {
		name := containerName(p.cfg.ActionPrefix, p.cfg.InvokerInstance, image)
		spec := backend.CreateSpec{
			Name:    name,
			Image:   image,
			Network: p.cfg.InvokerContainerNetwork,
			Pull:    !strings.HasPrefix(image, config.WhiskPresentImagePrefix),
			Args:    args,
			Env: map[string]string{
				"EDGE_HOST":     p.cfg.EdgeHost,
				"WHISK_VERSION": p.cfg.WhiskVersion,
			},
		}
		c, err := p.backend.Create(ctx, spec)
		if err != nil {
			return nil, nil, fmt.Errorf("pool: create failed for key %s: %w", key, err)
		}
		return c, nil, nil
	}

	c, _, err := p.get(ctx, key, create)
	return c, err
}

// actionImage resolves the image reference for an action, tagging it with
// the configured Docker image tag the way spec.md §6 describes.
func (p *Pool) actionImage(action domain.Action) string {
	return fmt.Sprintf("%s:%s", action.FQN(), p.cfg.DockerImageTag)
}
