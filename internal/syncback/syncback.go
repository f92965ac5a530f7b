// Package syncback implements the reverse flow: publish local edits to
// an installed skill back upstream as a branch, optionally drive a pull
// request and its auto-merge through the gh CLI, then reconcile the
// lockfile to whatever commit ultimately landed.
package syncback

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/extractor"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/repocache"
	"github.com/skillyard/skillyard/internal/report"
	"github.com/skillyard/skillyard/internal/reposource"
	"github.com/skillyard/skillyard/internal/skillerr"
	"github.com/skillyard/skillyard/pkg/procgit"
)

const (
	pollIntervalEnv = "SK_SYNC_BACK_AUTO_MERGE_POLL_MS"
	pollTimeoutEnv  = "SK_SYNC_BACK_AUTO_MERGE_TIMEOUT_MS"
	forceCopyEnv    = "SK_FORCE_RSYNC_MISSING"

	defaultPollIntervalMS = 2000
	defaultPollTimeoutMS  = 120000
)

// Request describes one sync-back invocation.
type Request struct {
	InstallName string
	Branch      string // optional; auto-generated when empty
	Message     string
	Repo        string // required only for first-time publish with no lock entry
	SkillPath   string // required only for first-time publish with no lock entry
	HTTPS       bool
	UI          report.Reporter
}

// Result reports the final published state.
type Result struct {
	InstallName string
	Branch      string
	PRUrl       string
	Commit      string
	NoOp        bool
}

// Run executes the publish flow against resolver and its lockfile.
func Run(ctx context.Context, resolver *pathresolver.Resolver, req Request) (*Result, error) {
	lockStore := lockfile.Open(resolver.LockfilePath())
	lf, err := lockStore.Load()
	if err != nil {
		return nil, err
	}

	entry := lockfile.Find(&lf, req.InstallName)
	spec, skillPath, err := resolveTarget(ctx, entry, req)
	if err != nil {
		return nil, err
	}

	cacheDir := pathresolver.CacheEntryDir(spec.Host, spec.Owner, spec.Repo, spec.URL, spec.Local)
	cache, err := repocache.Ensure(ctx, cacheDir, spec)
	if err != nil {
		return nil, fmt.Errorf("ensure cache for %s: %w", spec.URL, err)
	}

	baseBranch, err := cache.DefaultBranch(ctx, spec.URL)
	if err != nil {
		return nil, err
	}
	baseCommit, err := cache.RemoteBranchTip(ctx, baseBranch)
	if err != nil {
		return nil, err
	}

	branch := req.Branch
	if branch == "" {
		branch = "sk/sync/" + slugify(req.InstallName) + "/" + utcTimestamp()
	}

	worktree, err := os.MkdirTemp("", "sk-syncback-")
	if err != nil {
		return nil, fmt.Errorf("create worktree staging dir: %w", err)
	}
	// The worktree directory must not exist before `git worktree add` creates
	// it; MkdirTemp already made it, so hand git a not-yet-existing child path.
	worktreePath := filepath.Join(worktree, uuid.NewString())

	g := cache.Git()
	armed := false
	defer func() {
		if armed {
			_ = g.WorktreeRemove(ctx, worktreePath, true)
		}
		_ = os.RemoveAll(worktree)
	}()

	if err := g.WorktreeAdd(ctx, worktreePath, branch, baseCommit); err != nil {
		return nil, fmt.Errorf("create sync-back worktree: %w", err)
	}
	armed = true

	installDir := resolver.InstallDir(req.InstallName)
	destDir := worktreePath
	if skillPath != "" {
		destDir = filepath.Join(worktreePath, skillPath)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return nil, err
		}
	}

	if err := mirror(ctx, installDir, destDir, skillPath == ""); err != nil {
		return nil, err
	}

	wtGit := procgit.New(worktreePath)
	if wtGit.UserIdentity(ctx) == "" {
		return nil, fmt.Errorf("git user identity is not configured; set user.name and user.email before syncing back")
	}
	if err := wtGit.AddAll(ctx); err != nil {
		return nil, fmt.Errorf("stage sync-back changes: %w", err)
	}

	msg := req.Message
	if msg == "" {
		msg = "sync-back: " + req.InstallName
	}
	if err := wtGit.Commit(ctx, msg); err != nil {
		if isNothingToCommit(err) {
			if req.UI != nil {
				req.UI.Info("No changes to commit")
			}
			_ = g.WorktreeRemove(ctx, worktreePath, true)
			armed = false
			_ = g.DeleteBranch(ctx, branch, true)
			return &Result{InstallName: req.InstallName, NoOp: true}, nil
		}
		return nil, fmt.Errorf("commit sync-back changes: %w", err)
	}

	if err := wtGit.Push(ctx, "origin", branch, branch, false); err != nil {
		return nil, &skillerr.PushRejectedError{Remote: "origin", Branch: branch, Err: err}
	}

	finalCommit, err := wtGit.HEAD(ctx)
	if err != nil {
		return nil, err
	}

	prURL := ""
	gh := &procgit.Gh{Dir: worktreePath, Repo: repoSelector(spec)}
	if gh.IsInstalled() {
		if url, merged, mergedCommit, perr := driveReview(ctx, gh, branch, req.UI); perr == nil {
			prURL = url
			if merged && mergedCommit != "" {
				finalCommit = mergedCommit
			}
		} else if req.UI != nil {
			req.UI.Warn("PR automation failed: " + perr.Error())
		}
	}

	if finalCommit != baseCommit {
		if err := cache.Git().FetchPrune(ctx, "origin"); err == nil && cache.HasObject(ctx, finalCommit) {
			_ = os.RemoveAll(installDir)
			if err := extractor.Extract(ctx, cacheDir, finalCommit, skillPath, installDir); err != nil {
				return nil, err
			}
		}
	}

	treeDigest, err := digest.Dir(installDir)
	if err != nil {
		return nil, fmt.Errorf("compute digest for %s: %w", req.InstallName, err)
	}

	now := time.Now().UTC()
	_, err = lockfile.Edit(lockStore, func(lf *lockfile.Lockfile) (struct{}, error) {
		lockfile.Upsert(lf, lockfile.Skill{
			InstallName: req.InstallName,
			Source: lockfile.Source{
				URL: spec.URL, Host: spec.Host, Owner: spec.Owner, Repo: spec.Repo, SkillPath: skillPath,
			},
			Commit:      finalCommit,
			Digest:      treeDigest,
			InstalledAt: now,
		})
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{InstallName: req.InstallName, Branch: branch, PRUrl: prURL, Commit: finalCommit}, nil
}

func resolveTarget(ctx context.Context, entry *lockfile.Skill, req Request) (*reposource.Spec, string, error) {
	if entry != nil {
		spec := &reposource.Spec{
			URL: entry.Source.URL, Host: entry.Source.Host, Owner: entry.Source.Owner, Repo: entry.Source.Repo,
			Local: entry.Source.Host == "local",
		}
		return spec, entry.Source.SkillPath, nil
	}
	if req.Repo == "" {
		return nil, "", skillerr.NewNotFound("skill", req.InstallName, "no lock entry exists; pass --repo for a first-time publish")
	}
	spec, err := reposource.Parse(req.Repo, reposource.Options{PreferHTTPS: req.HTTPS})
	if err != nil {
		return nil, "", err
	}
	return spec, req.SkillPath, nil
}

// mirror copies installDir into destDir, preferring rsync and falling back
// to a recursive copy. purgeSiblings is set when the skill occupies the
// repository root, so the fallback must remove files rsync's --delete would
// have removed (other than .git).
func mirror(ctx context.Context, installDir, destDir string, purgeSiblings bool) error {
	rs := &procgit.Rsync{}
	if rs.IsInstalled() && os.Getenv(forceCopyEnv) == "" {
		return rs.Mirror(ctx, installDir, destDir, ".git")
	}
	if purgeSiblings {
		if err := purgeExceptGit(destDir); err != nil {
			return err
		}
	}
	return copyTree(installDir, destDir)
}

func purgeExceptGit(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		info, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			_ = os.Remove(dstPath)
			if err := os.Symlink(target, dstPath); err != nil {
				return err
			}
			continue
		}
		if e.IsDir() {
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				return err
			}
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func isNothingToCommit(err error) bool {
	return strings.Contains(err.Error(), "nothing to commit")
}

// repoSelector renders spec as the [HOST/]OWNER/REPO selector gh's -R flag
// accepts.
func repoSelector(spec *reposource.Spec) string {
	if spec.Host == "" {
		return spec.Owner + "/" + spec.Repo
	}
	return spec.Host + "/" + spec.Owner + "/" + spec.Repo
}

// driveReview looks up the pull request on branch in any state (reusing a
// closed or merged one on a recycled branch name), creating it when absent,
// then arms auto-merge when the PR is not conflicted and polls until it
// lands or the timeout elapses. It returns the PR URL and, if the merge
// landed, the merge commit.
func driveReview(ctx context.Context, gh *procgit.Gh, branch string, ui report.Reporter) (string, bool, string, error) {
	pr, err := gh.FindPR(ctx, branch)
	if err != nil {
		return "", false, "", err
	}
	if pr == nil {
		if cerr := gh.CreatePR(ctx, branch); cerr != nil {
			return "", false, "", cerr
		}
		pr, err = gh.FindPR(ctx, branch)
		if err != nil {
			return "", false, "", err
		}
		if pr == nil {
			return "", false, "", &skillerr.InternalError{What: "gh pr create succeeded but no PR was found on " + branch}
		}
	}

	if isPRConflicted(pr) {
		if ui != nil {
			ui.Warn("auto-merge blocked by conflicts; resolve manually: " + pr.URL)
		}
		return pr.URL, false, "", nil
	}

	if merr := gh.MergePR(ctx, pr.Number, true); merr != nil {
		if ui != nil {
			if strings.Contains(merr.Error(), "auto-merge disabled") {
				ui.Warn("repository has auto-merge disabled; enable it with `gh repo edit --enable-auto-merge`")
			} else {
				ui.Warn("auto-merge skipped for " + pr.URL + ": " + merr.Error())
			}
		}
		return pr.URL, false, "", nil
	}

	mergedCommit, merged := pollForMerge(ctx, gh, pr.Number)
	return pr.URL, merged, mergedCommit, nil
}

// isPRConflicted reports whether pr should be left alone rather than armed
// for auto-merge: GitHub marks a stale or behind-base PR "dirty" in
// mergeStateStatus before mergeable ever flips to CONFLICTING, so both are
// checked.
func isPRConflicted(pr *procgit.PullRequest) bool {
	return strings.EqualFold(pr.MergeStateStatus, "dirty") || pr.Mergeable == "CONFLICTING"
}

func pollForMerge(ctx context.Context, gh *procgit.Gh, number int) (string, bool) {
	interval := envDurationMS(pollIntervalEnv, defaultPollIntervalMS)
	timeout := envDurationMS(pollTimeoutEnv, defaultPollTimeoutMS)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		st, err := gh.ViewMergeStatus(ctx, number)
		if err == nil && st != nil {
			if st.State == "MERGED" && st.MergeCommit.Oid != "" {
				return st.MergeCommit.Oid, true
			}
			if st.State == "CLOSED" {
				return "", false
			}
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(interval):
		}
	}
	return "", false
}

func envDurationMS(env string, fallback int) time.Duration {
	if v := os.Getenv(env); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func utcTimestamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
