package procgit

import "context"

// AddAll stages every change in the worktree, including deletions, which is
// what the sync-back mirror step needs before committing.
func (g *Git) AddAll(ctx context.Context) error {
	return g.RunSilent(ctx, "add", "-A")
}

// Commit records the staged changes with the given message.
func (g *Git) Commit(ctx context.Context, message string) error {
	return g.RunSilent(ctx, "commit", "-m", message)
}
