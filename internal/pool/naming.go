package pool

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/computerscienceiscool/containerpool/internal/domain"
)

// keyForAction builds the deterministic cache key for an action execution,
// spec.md §3: "instantiated.{auth.uuid}.{action.fqn}.{action.rev}".
func keyForAction(auth domain.AuthKey, action domain.Action) string {
	return fmt.Sprintf("instantiated.%s.%s.%s", auth.UUID, action.FQN(), action.Version)
}

// keyForImage builds the deterministic cache key for a raw image
// invocation, spec.md §3: "instantiated.{image}{joined args}".
func keyForImage(image string, args []string) string {
	return fmt.Sprintf("instantiated.%s%s", image, strings.Join(args, ""))
}

// sanitizeFQN replaces characters a container name or filesystem path can't
// carry with underscores.
func sanitizeFQN(fqn string) string {
	replacer := strings.NewReplacer("/", "_", "@", "_", ":", "_", " ", "_")
	return replacer.Replace(fqn)
}

// nameSeq is the monotonic counter embedded in every generated container
// name, spec.md §6: "{prefix}{invokerInstance}_{seq}_{sanitizedFqn}_{isoTimestamp}".
var nameSeq uint64

// containerName generates a fresh, globally-unique container name. Callers
// with no action fqn (raw image invocations) pass the image reference in its
// place, sanitized the same way.
func containerName(prefix string, invokerInstance int, fqn string) string {
	seq := atomic.AddUint64(&nameSeq, 1)
	ts := time.Now().UTC().Format("20060102T150405.000Z")
	return fmt.Sprintf("%s%d_%d_%s_%s", prefix, invokerInstance, seq, sanitizeFQN(fqn), ts)
}
