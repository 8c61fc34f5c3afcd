// Package actionsrc fetches an action's source at a specific revision into
// a local directory, for pools that build or bind-mount action code rather
// than pulling a pre-built image. Grounded on pkg/dynrepo's go-git usage,
// repurposed from "create a throwaway repo" into "clone and pin a real one"
// (SPEC_FULL.md Part C).
package actionsrc

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// FetchRevision clones repoURL into a fresh temp directory and checks out
// rev (a commit SHA, tag, or branch name), returning the directory's path.
// The caller owns the returned directory and must call Cleanup on it.
func FetchRevision(ctx context.Context, repoURL, rev string) (string, error) {
	dir, err := os.MkdirTemp("", "actionsrc-")
	if err != nil {
		return "", fmt.Errorf("actionsrc: create temp dir: %w", err)
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL: repoURL,
	})
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("actionsrc: clone %s: %w", repoURL, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("actionsrc: worktree: %w", err)
	}

	hash, err := resolveRevision(repo, rev)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("actionsrc: resolve revision %s: %w", rev, err)
	}

	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("actionsrc: checkout %s: %w", rev, err)
	}

	return dir, nil
}

func resolveRevision(repo *git.Repository, rev string) (*plumbing.Hash, error) {
	if h := plumbing.NewHash(rev); !h.IsZero() {
		if _, err := repo.CommitObject(h); err == nil {
			return &h, nil
		}
	}
	return repo.ResolveRevision(plumbing.Revision(rev))
}

// Cleanup removes a directory previously returned by FetchRevision.
func Cleanup(dir string) error {
	return os.RemoveAll(dir)
}
