package procgit

import "context"

// DeleteBranch deletes a local branch.
// If force is true, DeleteBranch uses -D (force delete even if not fully merged).
// If force is false, DeleteBranch uses -d (safe delete, fails if not merged).
func (g *Git) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return g.RunSilent(ctx, "branch", flag, name)
}

// WorktreeAdd creates a new worktree at path, checking out a new branch
// named branch starting from base. Used by the sync-back flow so a pull
// request can be prepared without disturbing the caching clone's checkout.
func (g *Git) WorktreeAdd(ctx context.Context, path, branch, base string) error {
	args := []string{"worktree", "add", "-b", branch, path}
	if base != "" {
		args = append(args, base)
	}
	return g.RunSilent(ctx, args...)
}

// WorktreeRemove removes a worktree previously created with WorktreeAdd.
// If force is true, uncommitted changes in the worktree are discarded.
func (g *Git) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	return g.RunSilent(ctx, args...)
}
