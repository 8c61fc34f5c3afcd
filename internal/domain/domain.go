// Package domain holds the read-only identity types the pool keys on: the
// action being instantiated and the credential invoking it. Both are looked
// up from external metadata stores that are out of scope for this
// repository; the pool only ever sees the values after lookup.
package domain

import "fmt"

// Action identifies a single revision of a deployable function.
type Action struct {
	Namespace string
	Name      string
	Version   string
}

// FQN returns the fully qualified name used in cache keys and container
// names: "namespace/name".
func (a Action) FQN() string {
	return fmt.Sprintf("%s/%s", a.Namespace, a.Name)
}

// AuthKey is the invoking credential, reduced to the fields the pool needs.
type AuthKey struct {
	UUID string
	Key  string
}

// Compact renders the credential the way it is seeded into a container's
// environment: "uuid:key".
func (a AuthKey) Compact() string {
	return fmt.Sprintf("%s:%s", a.UUID, a.Key)
}
