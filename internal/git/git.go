// Package git resolves version-control state for the build pipeline.
//
// The pipeline only needs to know which branch is checked out in the
// application project; variant selection is driven by that name.
package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// Common git errors
var (
	ErrNotAGitRepo = errors.New("not a git repository")
)

// DetachedHead is the branch name reported for a detached HEAD, matching
// the output of `git rev-parse --abbrev-ref HEAD`.
const DetachedHead = "HEAD"

// BranchName returns the short name of the branch checked out at repoPath.
// A detached HEAD reports DetachedHead rather than failing, so catalogs can
// still opt in with an explicit pattern.
func BranchName(ctx context.Context, repoPath string) (string, error) {
	// Check context cancellation
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := gogit.PlainOpen(repoPath)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%w: %s", ErrNotAGitRepo, repoPath)
	}
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}

	if !head.Name().IsBranch() {
		return DetachedHead, nil
	}
	return head.Name().Short(), nil
}
