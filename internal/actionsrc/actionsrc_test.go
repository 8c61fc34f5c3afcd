package actionsrc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// newLocalSourceRepo builds a tiny local git repository with one commit, so
// FetchRevision can be exercised against a local path instead of a real
// remote, the way pkg/dynrepo's own tests stay fully offline.
func newLocalSourceRepo(t *testing.T) (dir string, commit string) {
	t.Helper()
	dir = t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "action.js"), []byte("function main() {}\n"), 0644); err != nil {
		t.Fatalf("write action.js: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("action.js"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	h, err := wt.Commit("add action", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	return dir, h.String()
}

func TestFetchRevisionChecksOutCommit(t *testing.T) {
	srcDir, commit := newLocalSourceRepo(t)

	dir, err := FetchRevision(context.Background(), srcDir, commit)
	if err != nil {
		t.Fatalf("FetchRevision: %v", err)
	}
	defer Cleanup(dir)

	if _, err := os.Stat(filepath.Join(dir, "action.js")); err != nil {
		t.Errorf("expected action.js to be present after checkout: %v", err)
	}
}

func TestFetchRevisionUnknownRevisionFails(t *testing.T) {
	srcDir, _ := newLocalSourceRepo(t)

	_, err := FetchRevision(context.Background(), srcDir, "does-not-exist")
	if err == nil {
		t.Fatal("expected an error resolving an unknown revision")
	}
}
