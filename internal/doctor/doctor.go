// Package doctor reconciles the lockfile, the installed trees, and the
// clone cache: a diagnostic pass that reports drift and, with apply, does
// bounded repair (rebuild missing installs from their pinned commit, prune
// unreferenced caches and orphaned lock entries).
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/extractor"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/repocache"
	"github.com/skillyard/skillyard/internal/reposource"
	"github.com/skillyard/skillyard/internal/skillspec"
)

// Options configures a single doctor invocation.
type Options struct {
	Apply bool     // default false: read-only
	Only  []string // optional filter by install_name
}

// Note is a single diagnostic line attached to one install record.
type Note struct {
	InstallName string
	Message     string
}

// Report summarizes everything doctor found (and, with Apply, fixed).
type Report struct {
	NoLockfile        bool
	Duplicates        []string
	Notes             []Note
	Rebuilt           []string
	OrphanCaches      []string
	OrphansRemoved    []string
	OrphanLockEntries []string
}

// Clean reports whether Report found nothing to flag. A Note with Message
// "ok" records a healthy skill, not a problem, so it doesn't count.
func (r *Report) Clean() bool {
	if len(r.Duplicates) != 0 || len(r.OrphanCaches) != 0 || len(r.OrphanLockEntries) != 0 {
		return false
	}
	for _, n := range r.Notes {
		if n.Message != "ok" {
			return false
		}
	}
	return true
}

// Run executes the reconciliation pass.
func Run(ctx context.Context, resolver *pathresolver.Resolver, opts Options) (*Report, error) {
	rpt := &Report{}

	if _, err := os.Stat(resolver.LockfilePath()); os.IsNotExist(err) {
		rpt.NoLockfile = true
		return rpt, nil
	}

	lockStore := lockfile.Open(resolver.LockfilePath())
	lf, err := lockStore.Load()
	if err != nil {
		return nil, err
	}

	rpt.Duplicates = lockfile.DuplicateNames(&lf)

	only := map[string]bool{}
	for _, name := range opts.Only {
		only[name] = true
	}

	referencedCaches := map[string]bool{}
	var orphanCandidates []string

	for _, sk := range lf.Skills {
		if len(only) > 0 && !only[sk.InstallName] {
			continue
		}

		spec := &reposource.Spec{
			URL: sk.Source.URL, Host: sk.Source.Host, Owner: sk.Source.Owner, Repo: sk.Source.Repo,
			Local: sk.Source.Host == "local",
		}
		cacheDir := pathresolver.CacheEntryDir(spec.Host, spec.Owner, spec.Repo, spec.URL, spec.Local)
		referencedCaches[cacheDir] = true

		dest := resolver.InstallDir(sk.InstallName)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "install directory is missing"})
			if opts.Apply {
				entry, cerr := repocache.Ensure(ctx, cacheDir, spec)
				if cerr == nil && entry.HasObject(ctx, sk.Commit) {
					if eerr := extractor.Extract(ctx, cacheDir, sk.Commit, sk.Source.SkillPath, dest); eerr == nil {
						rpt.Rebuilt = append(rpt.Rebuilt, sk.InstallName)
						continue
					}
				}
			}
			orphanCandidates = append(orphanCandidates, sk.InstallName)
			continue
		}

		localModified := false
		if meta, err := os.ReadFile(filepath.Join(dest, "SKILL.md")); err != nil {
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "SKILL.md is missing from the installed tree"})
		} else if _, err := skillspec.ParseFrontMatter(meta); err != nil {
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "SKILL.md front-matter is invalid: " + err.Error()})
		}

		curDigest, err := digest.Dir(dest)
		if err != nil {
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "digest compute failed: " + err.Error()})
		} else if curDigest != sk.Digest {
			localModified = true
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "modified: on-disk digest differs from the lockfile"})
		}

		entry, err := repocache.Ensure(ctx, cacheDir, spec)
		upstreamAvailable := false
		if err != nil {
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "could not refresh cache: " + err.Error()})
		} else {
			if !entry.HasObject(ctx, sk.Commit) {
				rpt.Notes = append(rpt.Notes, Note{sk.InstallName, "locked commit is no longer present in the cache (force-push?)"})
			}
			if branch, berr := entry.DefaultBranch(ctx, spec.URL); berr == nil {
				if tip, terr := entry.RemoteBranchTip(ctx, branch); terr == nil && tip != sk.Commit {
					upstreamAvailable = true
				}
			}
			rpt.Notes = append(rpt.Notes, Note{sk.InstallName, combinationNote(localModified, upstreamAvailable)})
		}
	}

	if err := walkCacheRoot(pathresolver.CacheRoot(), referencedCaches, opts.Apply, rpt); err != nil {
		return nil, err
	}

	if opts.Apply && len(orphanCandidates) > 0 {
		_, err := lockfile.Edit(lockStore, func(lf *lockfile.Lockfile) (struct{}, error) {
			for _, name := range orphanCandidates {
				lockfile.Remove(lf, name)
			}
			return struct{}{}, nil
		})
		if err != nil {
			return nil, fmt.Errorf("prune orphan lock entries: %w", err)
		}
		rpt.OrphanLockEntries = orphanCandidates
	}

	return rpt, nil
}

func combinationNote(localModified, upstreamAvailable bool) string {
	switch {
	case localModified && upstreamAvailable:
		return "local edits present and an upstream update is available; sync-back or resolve manually before upgrading"
	case localModified:
		return "local edits present; upstream is unchanged"
	case upstreamAvailable:
		return "up to date locally; an upstream update is available"
	default:
		return "ok"
	}
}

// walkCacheRoot visits <cache_root>/host/owner/leaf looking for directories
// holding a .git entry that are not present in referenced. When apply is
// true, unreferenced caches (and any now-empty parent directories) are
// removed.
func walkCacheRoot(root string, referenced map[string]bool, apply bool, rpt *Report) error {
	hosts, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("walk cache root: %w", err)
	}

	var unreferenced []string
	for _, h := range hosts {
		if !h.IsDir() {
			continue
		}
		hostDir := filepath.Join(root, h.Name())
		owners, err := os.ReadDir(hostDir)
		if err != nil {
			continue
		}
		for _, o := range owners {
			if !o.IsDir() {
				continue
			}
			ownerDir := filepath.Join(hostDir, o.Name())
			leaves, err := os.ReadDir(ownerDir)
			if err != nil {
				continue
			}
			for _, l := range leaves {
				if !l.IsDir() {
					continue
				}
				leafDir := filepath.Join(ownerDir, l.Name())
				if _, err := os.Stat(filepath.Join(leafDir, ".git")); err != nil {
					continue
				}
				if !referenced[leafDir] {
					unreferenced = append(unreferenced, leafDir)
				}
			}
		}
	}

	sort.Strings(unreferenced)
	rpt.OrphanCaches = unreferenced

	if apply {
		for _, dir := range unreferenced {
			if err := os.RemoveAll(dir); err != nil {
				continue
			}
			rpt.OrphansRemoved = append(rpt.OrphansRemoved, dir)
			removeEmptyParents(dir, root)
		}
	}
	return nil
}

// Watch re-runs Run every time the lockfile changes, invoking onReport after
// each pass. It blocks until ctx is cancelled. Rapid successive writes (the
// atomic rename in lockfile.Edit produces a create event, not an in-place
// write) are debounced so a single edit only triggers one reconciliation.
func Watch(ctx context.Context, resolver *pathresolver.Resolver, opts Options, onReport func(*Report, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	lockPath := resolver.LockfilePath()
	lockDir := filepath.Dir(lockPath)
	if err := watcher.Add(lockDir); err != nil {
		return fmt.Errorf("watch %s: %w", lockDir, err)
	}

	const debounceDelay = 500 * time.Millisecond
	var debounce *time.Timer
	runOnce := func() { onReport(Run(ctx, resolver, opts)) }
	runOnce()

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != lockPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, runOnce)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onReport(nil, werr)
		}
	}
}

func removeEmptyParents(dir, stopAt string) {
	for {
		parent := filepath.Dir(dir)
		if parent == stopAt || len(parent) <= len(stopAt) {
			return
		}
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(parent); err != nil {
			return
		}
		dir = parent
	}
}
