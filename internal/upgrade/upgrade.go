// Package upgrade implements the multi-target atomic upgrade engine: plan,
// stage, swap, commit. Every selected skill is extracted into a staging
// directory first; the swap phase renames staged trees into place under a
// backup discipline so any failure restores the exact pre-call state, and
// the lockfile is only written once every swap has succeeded.
package upgrade

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/extractor"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/repocache"
	"github.com/skillyard/skillyard/internal/reposource"
	"github.com/skillyard/skillyard/internal/report"
	"github.com/skillyard/skillyard/internal/skillerr"
)

// TargetAll selects every installed skill for upgrade consideration.
const TargetAll = "--all"

// Options configures a single upgrade invocation.
type Options struct {
	Target string // TargetAll or a single install_name
	DryRun bool
	UI     report.Reporter // optional; nil is fine
}

// Status classifies a single install record's upgrade eligibility.
type Status int

const (
	// StatusUpToDate means the cache tip equals the locked commit.
	StatusUpToDate Status = iota
	// StatusNeedsUpgrade means the on-disk tree matches the lock and a newer
	// commit is available upstream.
	StatusNeedsUpgrade
	// StatusDirty means the on-disk tree no longer matches the lock digest.
	StatusDirty
)

// Plan is one record's classification, computed without any mutation.
type Plan struct {
	InstallName string
	Dest        string
	SkillPath   string
	OldCommit   string
	NewCommit   string
	Status      Status
	cacheDir    string
}

// Report summarizes the result of a completed (non-dry-run) upgrade.
type Report struct {
	Upgraded []Plan
	Skipped  []Plan
	UpToDate []Plan
}

// Run executes the upgrade flow: plan, then (unless DryRun) stage and
// atomically swap every eligible record, then commit the lockfile.
func Run(ctx context.Context, resolver *pathresolver.Resolver, opts Options) (*Report, error) {
	if _, err := os.Stat(resolver.LockfilePath()); os.IsNotExist(err) {
		return nil, skillerr.NewNotFound("lockfile", "", "nothing is installed yet")
	}
	lockStore := lockfile.Open(resolver.LockfilePath())
	lf, err := lockStore.Load()
	if err != nil {
		return nil, err
	}

	selected, err := selectRecords(lf, opts.Target)
	if err != nil {
		return nil, err
	}

	plans, err := planAll(ctx, resolver, selected, opts.Target)
	if err != nil {
		return nil, err
	}

	rpt := &Report{}
	var toStage []Plan
	for _, p := range plans {
		switch p.Status {
		case StatusUpToDate:
			rpt.UpToDate = append(rpt.UpToDate, p)
		case StatusDirty:
			rpt.Skipped = append(rpt.Skipped, p)
		case StatusNeedsUpgrade:
			toStage = append(toStage, p)
		}
	}

	if opts.DryRun {
		if opts.UI != nil {
			for _, p := range toStage {
				opts.UI.Info(fmt.Sprintf("%s: %s -> %s", p.InstallName, shortSHA(p.OldCommit), shortSHA(p.NewCommit)))
			}
			for _, p := range rpt.Skipped {
				opts.UI.Warn(fmt.Sprintf("%s: local edits detected, skipping", p.InstallName))
			}
		}
		rpt.Upgraded = toStage
		return rpt, nil
	}

	if len(toStage) == 0 {
		return rpt, nil
	}

	staged, err := stage(ctx, resolver, toStage)
	if err != nil {
		os.RemoveAll(resolver.StagingRoot())
		return nil, err
	}
	defer os.RemoveAll(resolver.StagingRoot())

	if err := swapAll(resolver, staged); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = lockfile.Edit(lockStore, func(lf *lockfile.Lockfile) (struct{}, error) {
		for _, s := range staged {
			entry := lockfile.Find(lf, s.plan.InstallName)
			if entry == nil {
				return struct{}{}, &skillerr.InternalError{What: "lock entry vanished mid-upgrade: " + s.plan.InstallName}
			}
			entry.Commit = s.plan.NewCommit
			entry.Digest = s.digest
			entry.InstalledAt = now
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	rpt.Upgraded = toStage
	return rpt, nil
}

func shortSHA(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

func selectRecords(lf lockfile.Lockfile, target string) ([]lockfile.Skill, error) {
	if target == TargetAll {
		out := make([]lockfile.Skill, len(lf.Skills))
		copy(out, lf.Skills)
		return out, nil
	}
	sk := lockfile.Find(&lf, target)
	if sk == nil {
		return nil, skillerr.NewNotFound("skill", target, "not present in the lockfile")
	}
	return []lockfile.Skill{*sk}, nil
}

func planAll(ctx context.Context, resolver *pathresolver.Resolver, records []lockfile.Skill, target string) ([]Plan, error) {
	plans := make([]Plan, 0, len(records))
	for _, sk := range records {
		p, err := planOne(ctx, resolver, sk)
		if err != nil {
			return nil, err
		}
		if p.Status == StatusDirty && target != TargetAll {
			return nil, &skillerr.DirtyTreeError{InstallName: sk.InstallName, LockDigest: sk.Digest}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func planOne(ctx context.Context, resolver *pathresolver.Resolver, sk lockfile.Skill) (Plan, error) {
	dest := resolver.InstallDir(sk.InstallName)
	if _, err := os.Stat(dest); err != nil {
		return Plan{}, skillerr.NewNotFound("install directory", sk.InstallName, "run doctor to rebuild it from the lockfile")
	}

	curDigest, err := digest.Dir(dest)
	if err != nil {
		return Plan{}, fmt.Errorf("compute digest for %s: %w", sk.InstallName, err)
	}

	spec := &reposource.Spec{
		URL: sk.Source.URL, Host: sk.Source.Host, Owner: sk.Source.Owner, Repo: sk.Source.Repo,
		Local: sk.Source.Host == "local",
	}
	cacheDir := pathresolver.CacheEntryDir(spec.Host, spec.Owner, spec.Repo, spec.URL, spec.Local)
	entry, err := repocache.Ensure(ctx, cacheDir, spec)
	if err != nil {
		return Plan{}, fmt.Errorf("refresh cache for %s: %w", sk.InstallName, err)
	}

	defaultBranch, err := entry.DefaultBranch(ctx, spec.URL)
	if err != nil {
		return Plan{}, err
	}
	// Upgrades always track the default branch's tip, even for records that
	// were installed from an explicit ref: a pin to an immutable tag would
	// otherwise re-resolve to itself forever and never see new commits.
	tip, err := entry.RemoteBranchTip(ctx, defaultBranch)
	if err != nil {
		return Plan{}, err
	}

	status := StatusUpToDate
	switch {
	case curDigest != sk.Digest:
		status = StatusDirty
	case tip != sk.Commit:
		status = StatusNeedsUpgrade
	}

	return Plan{
		InstallName: sk.InstallName,
		Dest:        dest,
		SkillPath:   sk.Source.SkillPath,
		OldCommit:   sk.Commit,
		NewCommit:   tip,
		Status:      status,
		cacheDir:    cacheDir,
	}, nil
}

type stagedUpgrade struct {
	plan   Plan
	staged string
	digest string
}

func stage(ctx context.Context, resolver *pathresolver.Resolver, plans []Plan) ([]stagedUpgrade, error) {
	stagingRoot := resolver.StagingRoot()
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}

	out := make([]stagedUpgrade, 0, len(plans))
	for _, p := range plans {
		dir := filepath.Join(stagingRoot, p.InstallName+"-"+uuid.NewString())
		if err := extractor.Extract(ctx, p.cacheDir, p.NewCommit, p.SkillPath, dir); err != nil {
			return nil, err
		}
		d, err := digest.Dir(dir)
		if err != nil {
			return nil, fmt.Errorf("compute staged digest for %s: %w", p.InstallName, err)
		}
		out = append(out, stagedUpgrade{plan: p, staged: dir, digest: d})
	}
	return out, nil
}

type appliedSwap struct {
	name       string
	dest       string
	backup     string
	wasMissing bool
}

// swapAll walks staged in order, applying each via swapOne. On any failure
// it rolls back every previously-applied swap in reverse order and returns
// the original error without touching the lockfile.
func swapAll(resolver *pathresolver.Resolver, staged []stagedUpgrade) error {
	var applied []appliedSwap
	for _, s := range staged {
		as, err := swapOne(resolver, s)
		if err != nil {
			rollback(applied)
			return err
		}
		applied = append(applied, as)

		// SK_FAIL_AFTER_FIRST_SWAP test hook: exercises the rollback path by
		// injecting a failure once the first record has already swapped.
		if len(applied) == 1 && os.Getenv("SK_FAIL_AFTER_FIRST_SWAP") != "" {
			rollback(applied)
			return fmt.Errorf("injected failure after first swap (SK_FAIL_AFTER_FIRST_SWAP)")
		}
	}
	for _, as := range applied {
		_ = os.RemoveAll(as.backup)
	}
	return nil
}

func swapOne(resolver *pathresolver.Resolver, s stagedUpgrade) (appliedSwap, error) {
	name := s.plan.InstallName
	dest := s.plan.Dest
	backup := resolver.BackupPath(name)

	_ = os.RemoveAll(backup)

	wasMissing := false
	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, backup); err != nil {
			return appliedSwap{}, fmt.Errorf("back up %s: %w", name, err)
		}
	} else {
		wasMissing = true
		if err := os.MkdirAll(backup, 0o755); err != nil {
			return appliedSwap{}, fmt.Errorf("create placeholder backup for %s: %w", name, err)
		}
	}

	if err := renameOrCopy(resolver.TempSwapPath(name), s.staged, dest); err != nil {
		// Undo this record only; swapAll's caller rolls back everything
		// already applied before this one.
		_ = os.RemoveAll(dest)
		if wasMissing {
			_ = os.RemoveAll(backup)
		} else if rerr := restoreBackup(resolver.TempSwapPath(name), backup, dest); rerr != nil {
			return appliedSwap{}, fmt.Errorf("%w (additionally failed to restore backup: %v)", err, rerr)
		}
		return appliedSwap{}, fmt.Errorf("swap %s into place: %w", name, err)
	}

	return appliedSwap{name: name, dest: dest, backup: backup, wasMissing: wasMissing}, nil
}

// rollback restores every applied swap in reverse order: the new dest is
// removed and the backup is put back in its place.
func rollback(applied []appliedSwap) {
	for i := len(applied) - 1; i >= 0; i-- {
		as := applied[i]
		_ = os.RemoveAll(as.dest)
		if as.wasMissing {
			_ = os.RemoveAll(as.backup)
			continue
		}
		tmpPath := as.backup + ".rollback-tmp"
		_ = restoreBackup(tmpPath, as.backup, as.dest)
	}
}

func restoreBackup(tmpPath, backup, dest string) error {
	return renameOrCopy(tmpPath, backup, dest)
}

// renameOrCopy moves src to dest via a plain rename, unless SK_SIMULATE_EXDEV
// is set or the rename fails (e.g. EXDEV across filesystems), in which case
// it falls back to a recursive copy through tmpPath followed by a rename of
// the copy. Any failure in the fallback cleans up tmpPath before returning.
func renameOrCopy(tmpPath, src, dest string) error {
	if os.Getenv("SK_SIMULATE_EXDEV") == "" {
		if err := os.Rename(src, dest); err == nil {
			return nil
		}
	}

	if err := os.RemoveAll(tmpPath); err != nil {
		return fmt.Errorf("clear copy-fallback staging: %w", err)
	}
	if err := copyTree(src, tmpPath); err != nil {
		_ = os.RemoveAll(tmpPath)
		return fmt.Errorf("copy-fallback failed: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.RemoveAll(tmpPath)
		return fmt.Errorf("rename copy-fallback into place: %w", err)
	}
	_ = os.RemoveAll(src)
	return nil
}

// copyFailInjected records that the SK_FAIL_COPY hook has already fired in
// this process, so copies made while restoring backups are not failed too.
var copyFailInjected bool

// copyTree recursively copies src into dst, preserving symlinks. Honors the
// SK_FAIL_COPY test hook, which injects a failure on the first file copy to
// exercise the rollback path.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return &skillerr.UnsupportedPlatformError{Operation: "symlink creation"}
			}
			return nil
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode())
		default:
			if os.Getenv("SK_FAIL_COPY") != "" && !copyFailInjected {
				copyFailInjected = true
				return fmt.Errorf("injected copy failure (SK_FAIL_COPY) at %s", rel)
			}
			return copyFile(path, target)
		}
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}
