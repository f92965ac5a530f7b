// Package extractor materializes a skill's sub-tree from a pinned commit
// into a destination directory by streaming `git archive` into `tar -x`.
package extractor

import (
	"context"
	"os"

	"github.com/skillyard/skillyard/internal/skillerr"
	"github.com/skillyard/skillyard/pkg/procgit"
)

// Extract streams subdir as it existed at commit, in the cache at
// cacheDir, into dest. dest is created if missing. Any failure from either
// child process is reported as an ExtractFailedError.
func Extract(ctx context.Context, cacheDir, commit, subdir, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &skillerr.ExtractFailedError{Commit: commit, Subdir: subdir, Err: err}
	}
	if !procgit.IsTarInstalled() {
		return &skillerr.ExtractFailedError{Commit: commit, Subdir: subdir, Err: os.ErrNotExist}
	}
	g := procgit.New(cacheDir)
	if err := g.ExtractSubtree(ctx, commit, subdir, dest); err != nil {
		return &skillerr.ExtractFailedError{Commit: commit, Subdir: subdir, Err: err}
	}
	return nil
}
