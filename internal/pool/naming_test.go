package pool

import (
	"strings"
	"testing"

	"github.com/computerscienceiscool/containerpool/internal/domain"
)

func TestKeyForActionIsDeterministic(t *testing.T) {
	auth := domain.AuthKey{UUID: "u1", Key: "k1"}
	action := domain.Action{Namespace: "guest", Name: "hello", Version: "0.0.1"}

	k1 := keyForAction(auth, action)
	k2 := keyForAction(auth, action)
	if k1 != k2 {
		t.Fatalf("keyForAction not deterministic: %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "instantiated.") {
		t.Errorf("key %q should start with instantiated.", k1)
	}
}

func TestKeyForActionDiffersByVersion(t *testing.T) {
	auth := domain.AuthKey{UUID: "u1", Key: "k1"}
	a1 := domain.Action{Namespace: "guest", Name: "hello", Version: "0.0.1"}
	a2 := domain.Action{Namespace: "guest", Name: "hello", Version: "0.0.2"}

	if keyForAction(auth, a1) == keyForAction(auth, a2) {
		t.Error("different action revisions must produce different keys")
	}
}

func TestKeyForImageIncludesArgs(t *testing.T) {
	k1 := keyForImage("alpine:latest", []string{"echo", "hi"})
	k2 := keyForImage("alpine:latest", []string{"echo", "bye"})
	if k1 == k2 {
		t.Error("different args should produce different image keys")
	}
}

func TestContainerNameIsUniqueAndSanitized(t *testing.T) {
	n1 := containerName("wsk", 0, "guest/hello@dev")
	n2 := containerName("wsk", 0, "guest/hello@dev")
	if n1 == n2 {
		t.Fatal("consecutive container names must be unique")
	}
	if strings.ContainsAny(n1, "/@") {
		t.Errorf("container name %q should not contain raw fqn separators", n1)
	}
	if !strings.HasPrefix(n1, "wsk0_") {
		t.Errorf("container name %q should start with prefix+instance", n1)
	}
}
