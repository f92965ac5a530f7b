package procgit

import (
	"context"
	"fmt"
	"strings"
)

// CloneOpts configures a clone operation.
type CloneOpts struct {
	Filter     string // e.g., "blob:none" for treeless clone
	NoCheckout bool
	Depth      int
	Bare       bool
}

// Clone clones a repository into this directory.
func (g *Git) Clone(ctx context.Context, url string, opts *CloneOpts) error {
	args := []string{"clone"}
	if opts != nil {
		if opts.Filter != "" {
			args = append(args, "--filter="+opts.Filter)
		}
		if opts.NoCheckout {
			args = append(args, "--no-checkout")
		}
		if opts.Depth > 0 {
			args = append(args, "--depth", fmt.Sprintf("%d", opts.Depth))
		}
		if opts.Bare {
			args = append(args, "--bare")
		}
	}
	args = append(args, url, ".")
	return g.RunSilent(ctx, args...)
}

// FetchPrune fetches all refs from a remote and removes local remote-tracking
// refs that no longer exist upstream. Used when refreshing a long-lived
// cached clone so stale branches don't accumulate.
func (g *Git) FetchPrune(ctx context.Context, remote string) error {
	return g.RunSilent(ctx, "fetch", "--prune", remote)
}

// Push pushes a local ref to a remote branch. If force is true, uses
// --force-with-lease rather than a bare --force.
func (g *Git) Push(ctx context.Context, remote, localRef, remoteRef string, force bool) error {
	args := []string{"push", "-u"}
	if force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, remote, localRef+":"+remoteRef)
	return g.RunSilent(ctx, args...)
}

// RemoteDefaultBranch determines the default branch of a remote without
// cloning it, by asking the remote directly for its HEAD symref. This is
// what lets repository specs omit a ref entirely.
func (g *Git) RemoteDefaultBranch(ctx context.Context, url string) (string, error) {
	out, err := g.Run(ctx, "ls-remote", "--symref", url, "HEAD")
	if err != nil {
		return "", fmt.Errorf("ls-remote --symref failed: %w", err)
	}
	branch, err := ParseSymrefHead(out)
	if err != nil {
		return "", fmt.Errorf("could not determine default branch for %s: %w", url, err)
	}
	return branch, nil
}

// ParseSymrefHead extracts the branch leaf name from the output of
// `git ls-remote --symref <url> HEAD`, whose symref line has the form
// "ref: refs/heads/main\tHEAD".
func ParseSymrefHead(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 3 && fields[0] == "ref:" && strings.HasPrefix(fields[1], "refs/heads/") {
			return strings.TrimPrefix(fields[1], "refs/heads/"), nil
		}
	}
	return "", fmt.Errorf("no HEAD symref in ls-remote output")
}
