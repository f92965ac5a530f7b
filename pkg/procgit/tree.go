package procgit

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ListTree recursively lists blob paths under subdir at the given commit.
// Unlike a shallow ls-tree, this always descends into sub-trees and returns
// only files (never directory entries), relative to subdir.
func (g *Git) ListTree(ctx context.Context, commit, subdir string) ([]string, error) {
	if commit == "" {
		commit = "HEAD"
	}
	target := commit
	if subdir != "" && subdir != "." {
		target = commit + ":" + strings.TrimSuffix(subdir, "/")
	}
	out, err := g.Run(ctx, "ls-tree", "-r", "--name-only", target)
	if err != nil {
		return nil, fmt.Errorf("git ls-tree failed: %w", err)
	}
	var items []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, line)
	}
	sort.Strings(items)
	return items, nil
}

// Show returns the raw content of path as it exists at commit, using
// `git show <commit>:<path>`. Used to read SKILL.md bodies without an
// on-disk checkout.
func (g *Git) Show(ctx context.Context, commit, path string) ([]byte, error) {
	out, err := g.RunRaw(ctx, "show", commit+":"+path)
	if err != nil {
		if IsPathMissing(err) {
			return nil, ErrPathNotFound
		}
		return nil, err
	}
	return out, nil
}
