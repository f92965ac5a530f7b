// Package remove implements the remove verb: drop an installed skill's
// files and its lockfile entry, refusing when local edits would be lost
// unless the caller forces it.
package remove

import (
	"context"
	"os"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/skillerr"
)

// Request describes one remove invocation.
type Request struct {
	InstallName string
	Force       bool
}

// Result reports what was removed.
type Result struct {
	InstallName string
	Commit      string
}

// Run executes the remove flow: locate the lock entry, confirm its install
// directory, refuse on a digest mismatch unless Force is set, then delete
// the tree and the lock entry together.
func Run(ctx context.Context, resolver *pathresolver.Resolver, req Request) (*Result, error) {
	lockStore := lockfile.Open(resolver.LockfilePath())
	lf, err := lockStore.Load()
	if err != nil {
		return nil, err
	}

	entry := lockfile.Find(&lf, req.InstallName)
	if entry == nil {
		return nil, skillerr.NewNotFound("skill", req.InstallName, "no lock entry with that install name")
	}

	dest := resolver.InstallDir(req.InstallName)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return nil, skillerr.NewNotFound("install directory", req.InstallName, "the lock entry exists but its files are missing; run doctor to rebuild or prune it")
	}

	if !req.Force {
		curDigest, err := digest.Dir(dest)
		if err != nil {
			return nil, err
		}
		if curDigest != entry.Digest {
			return nil, &skillerr.DirtyTreeError{InstallName: req.InstallName, LockDigest: entry.Digest, CurrentDigest: curDigest}
		}
	}

	commit := entry.Commit

	if err := os.RemoveAll(dest); err != nil {
		return nil, err
	}

	_, err = lockfile.Edit(lockStore, func(lf *lockfile.Lockfile) (struct{}, error) {
		lockfile.Remove(lf, req.InstallName)
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{InstallName: req.InstallName, Commit: commit}, nil
}
