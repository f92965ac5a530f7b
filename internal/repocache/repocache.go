// Package repocache manages the on-disk clone cache: cloning a source
// repository on first use, refreshing it, and answering questions about its
// refs and objects through pkg/procgit.
package repocache

import (
	"context"
	"fmt"
	"os"

	"github.com/skillyard/skillyard/internal/reposource"
	"github.com/skillyard/skillyard/internal/skillerr"
	"github.com/skillyard/skillyard/pkg/procgit"
)

// Entry is a handle on a single cached clone.
type Entry struct {
	Dir string
	git *procgit.Git
}

// Ensure makes sure a cache entry exists at dir for spec, cloning it if
// necessary, then always refreshes it with `fetch --prune`. A fetch failure
// against an existing clone is returned as skillerr.ErrTransient so callers
// that can tolerate stale data (list, doctor) may downgrade it to a warning;
// a fetch failure with no prior clone is fatal.
func Ensure(ctx context.Context, dir string, spec *reposource.Spec) (*Entry, error) {
	isNew := false
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		isNew = true
	}

	g := procgit.New(dir)
	if isNew {
		if err := g.Clone(ctx, spec.URL, nil); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("clone %s: %w", spec.URL, err)
		}
	}

	if err := g.FetchPrune(ctx, "origin"); err != nil {
		if isNew {
			return nil, fmt.Errorf("fetch after clone: %w", err)
		}
		return &Entry{Dir: dir, git: g}, fmt.Errorf("%w: %v", skillerr.ErrTransient, err)
	}

	return &Entry{Dir: dir, git: g}, nil
}

// Open returns a handle on an already-ensured cache entry without touching
// the network, for callers that only need local ref/object queries.
func Open(dir string) *Entry {
	return &Entry{Dir: dir, git: procgit.New(dir)}
}

// DefaultBranch resolves the remote's default branch: the local
// refs/remotes/origin/HEAD symref if already recorded, otherwise an
// `ls-remote --symref` query followed by recording it with
// `remote set-head` so subsequent calls are local.
func (e *Entry) DefaultBranch(ctx context.Context, remoteURL string) (string, error) {
	if out, err := e.git.Run(ctx, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil && out != "" {
		const prefix = "origin/"
		if len(out) > len(prefix) {
			return out[len(prefix):], nil
		}
	}

	branch, err := e.git.RemoteDefaultBranch(ctx, remoteURL)
	if err != nil {
		return "", fmt.Errorf("determine default branch: %w", err)
	}
	_ = e.git.RunSilent(ctx, "remote", "set-head", "origin", branch)
	return branch, nil
}

// RevParse resolves rev to a full commit SHA, wrapping the result in a
// CacheStaleError when the object is not present (e.g. a force-pushed
// branch moved past what this cache has).
func (e *Entry) RevParse(ctx context.Context, rev string) (string, error) {
	hash, ok := e.git.RevParseVerify(ctx, rev)
	if !ok {
		return "", &skillerr.CacheStaleError{CacheDir: e.Dir, Commit: rev}
	}
	return hash, nil
}

// HasObject reports whether oid exists in this cache's object store.
func (e *Entry) HasObject(ctx context.Context, oid string) bool {
	_, err := e.git.CatFileType(ctx, oid)
	return err == nil
}

// RemoteBranchTip resolves the commit refs/remotes/origin/<branch> currently
// points at.
func (e *Entry) RemoteBranchTip(ctx context.Context, branch string) (string, error) {
	return e.RevParse(ctx, "refs/remotes/origin/"+branch)
}

// ResolveCommit resolves a user-supplied ref (branch/tag/sha or empty for
// the default branch) against this cache: prefers origin/<ref>, then the
// raw ref. A non-empty ref that resolves neither way is a NotFound error;
// the default branch's tip is used only when ref is empty.
func (e *Entry) ResolveCommit(ctx context.Context, remoteURL, ref, defaultBranch string) (string, error) {
	if ref != "" {
		if hash, err := e.git.ResolveRef(ctx, "origin/"+ref); err == nil {
			return hash, nil
		}
		if hash, err := e.git.ResolveRef(ctx, ref); err == nil {
			return hash, nil
		}
		return "", skillerr.NewNotFound("ref", ref, "checked origin/"+ref+" and "+ref)
	}
	return e.RemoteBranchTip(ctx, defaultBranch)
}

// Git exposes the underlying process wrapper for components (skill
// discovery, extraction) that need lower-level git operations against this
// cache entry.
func (e *Entry) Git() *procgit.Git {
	return e.git
}
