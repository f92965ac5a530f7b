package upgrade

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/install"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/report/mocks"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available on PATH")
	}
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available on PATH")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// fixture holds a bare upstream repo plus the work clone used to advance it.
type fixture struct {
	bare string
	work string
}

func newFixture(t *testing.T, name, content string) *fixture {
	t.Helper()
	root := t.TempDir()
	bare := filepath.Join(root, "remotes", name+".git")
	if err := os.MkdirAll(bare, 0o755); err != nil {
		t.Fatal(err)
	}
	runGit(t, bare, "init", "--bare", "-b", "main", ".")

	work := filepath.Join(root, "work-"+name)
	runGit(t, root, "clone", bare, work)
	runGit(t, work, "config", "user.email", "test@example.com")
	runGit(t, work, "config", "user.name", "Test")

	skillMD := "---\nname: " + name + "\ndescription: test\n---\n# " + name + "\n"
	if err := os.WriteFile(filepath.Join(work, "SKILL.md"), []byte(skillMD), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(work, "file.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, work, "add", "-A")
	runGit(t, work, "commit", "-m", "seed")
	runGit(t, work, "push", "origin", "main")

	return &fixture{bare: bare, work: work}
}

func (f *fixture) tag(t *testing.T, name string) {
	t.Helper()
	runGit(t, f.work, "tag", name)
	runGit(t, f.work, "push", "origin", name)
}

func (f *fixture) advance(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.work, "file.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, f.work, "add", "-A")
	runGit(t, f.work, "commit", "-m", "advance")
	runGit(t, f.work, "push", "origin", "main")
}

func (f *fixture) url() string { return "file://" + f.bare }

func TestUpgradeAllFetchesAndAppliesAtomically(t *testing.T) {
	requireGit(t)

	projectRoot := t.TempDir()
	t.Setenv("SK_CACHE_DIR", filepath.Join(projectRoot, ".cache"))
	resolver := pathresolver.New(projectRoot, "")

	fx := newFixture(t, "sfile", "v1\n")
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: fx.url(), SkillName: "sfile"}); err != nil {
		t.Fatalf("install failed: %v", err)
	}

	fx.advance(t, "v1\nv2\n")

	rpt, err := Run(context.Background(), resolver, Options{Target: TargetAll})
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if len(rpt.Upgraded) != 1 || rpt.Upgraded[0].InstallName != "sfile" {
		t.Fatalf("Upgraded = %+v, want one entry for sfile", rpt.Upgraded)
	}

	content, err := os.ReadFile(filepath.Join(resolver.InstallDir("sfile"), "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "v1\nv2\n" {
		t.Errorf("file.txt = %q, want %q", content, "v1\nv2\n")
	}

	lf, err := lockfile.Open(resolver.LockfilePath()).Load()
	if err != nil {
		t.Fatal(err)
	}
	entry := lockfile.Find(&lf, "sfile")
	if entry == nil {
		t.Fatal("missing lock entry")
	}
	wantDigest, err := digest.Dir(resolver.InstallDir("sfile"))
	if err != nil {
		t.Fatal(err)
	}
	if entry.Digest != wantDigest {
		t.Errorf("lock digest %q != recomputed digest %q", entry.Digest, wantDigest)
	}
}

func TestUpgradeAllTwiceIsNoOpSecondTime(t *testing.T) {
	requireGit(t)

	projectRoot := t.TempDir()
	t.Setenv("SK_CACHE_DIR", filepath.Join(projectRoot, ".cache"))
	resolver := pathresolver.New(projectRoot, "")

	fx := newFixture(t, "sfile", "v1\n")
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: fx.url(), SkillName: "sfile"}); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	fx.advance(t, "v1\nv2\n")

	if _, err := Run(context.Background(), resolver, Options{Target: TargetAll}); err != nil {
		t.Fatalf("first upgrade failed: %v", err)
	}

	rpt, err := Run(context.Background(), resolver, Options{Target: TargetAll})
	if err != nil {
		t.Fatalf("second upgrade failed: %v", err)
	}
	if len(rpt.Upgraded) != 0 {
		t.Errorf("second upgrade should be a no-op, got Upgraded=%+v", rpt.Upgraded)
	}
	if len(rpt.UpToDate) != 1 {
		t.Errorf("expected one up-to-date record, got %+v", rpt.UpToDate)
	}
}

func TestUpgradeRefPinnedInstallFollowsDefaultBranch(t *testing.T) {
	requireGit(t)

	projectRoot := t.TempDir()
	t.Setenv("SK_CACHE_DIR", filepath.Join(projectRoot, ".cache"))
	resolver := pathresolver.New(projectRoot, "")

	fx := newFixture(t, "sfile", "v1\n")
	fx.tag(t, "v1.0.0")
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: fx.url(), SkillName: "sfile", Ref: "v1.0.0"}); err != nil {
		t.Fatalf("install failed: %v", err)
	}

	fx.advance(t, "v1\nv2\n")

	// A record pinned to an immutable tag must still pick up the default
	// branch's new tip, not re-resolve the tag and report up-to-date forever.
	rpt, err := Run(context.Background(), resolver, Options{Target: TargetAll})
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if len(rpt.Upgraded) != 1 || rpt.Upgraded[0].InstallName != "sfile" {
		t.Fatalf("Upgraded = %+v, want one entry for sfile", rpt.Upgraded)
	}

	content, err := os.ReadFile(filepath.Join(resolver.InstallDir("sfile"), "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "v1\nv2\n" {
		t.Errorf("file.txt = %q, want %q", content, "v1\nv2\n")
	}

	lf, err := lockfile.Open(resolver.LockfilePath()).Load()
	if err != nil {
		t.Fatal(err)
	}
	entry := lockfile.Find(&lf, "sfile")
	if entry == nil {
		t.Fatal("missing lock entry")
	}
	if entry.Commit != rpt.Upgraded[0].NewCommit {
		t.Errorf("lock commit %s != planned new commit %s", entry.Commit, rpt.Upgraded[0].NewCommit)
	}
	if entry.Commit == rpt.Upgraded[0].OldCommit {
		t.Error("lock commit did not move off the tagged commit")
	}
}

func TestUpgradeRollsBackAtomicallyOnSimulatedFault(t *testing.T) {
	requireGit(t)

	projectRoot := t.TempDir()
	t.Setenv("SK_CACHE_DIR", filepath.Join(projectRoot, ".cache"))
	resolver := pathresolver.New(projectRoot, "")

	fx0 := newFixture(t, "s0", "v1\n")
	fx1 := newFixture(t, "s1", "v1\n")
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: fx0.url(), SkillName: "s0"}); err != nil {
		t.Fatalf("install s0 failed: %v", err)
	}
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: fx1.url(), SkillName: "s1"}); err != nil {
		t.Fatalf("install s1 failed: %v", err)
	}
	fx0.advance(t, "v1\nv2\n")
	fx1.advance(t, "v1\nv2\n")

	lockPath := resolver.LockfilePath()
	beforeLock, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	beforeDigest0, err := digest.Dir(resolver.InstallDir("s0"))
	if err != nil {
		t.Fatal(err)
	}
	beforeDigest1, err := digest.Dir(resolver.InstallDir("s1"))
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("SK_FAIL_AFTER_FIRST_SWAP", "1")
	_, err = Run(context.Background(), resolver, Options{Target: TargetAll})
	if err == nil {
		t.Fatal("expected the upgrade to fail under SK_FAIL_AFTER_FIRST_SWAP")
	}

	afterLock, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(beforeLock) != string(afterLock) {
		t.Error("lockfile bytes changed despite a failed upgrade")
	}

	afterDigest0, err := digest.Dir(resolver.InstallDir("s0"))
	if err != nil {
		t.Fatal(err)
	}
	afterDigest1, err := digest.Dir(resolver.InstallDir("s1"))
	if err != nil {
		t.Fatal(err)
	}
	if beforeDigest0 != afterDigest0 {
		t.Errorf("s0 digest changed: %s -> %s", beforeDigest0, afterDigest0)
	}
	if beforeDigest1 != afterDigest1 {
		t.Errorf("s1 digest changed: %s -> %s", beforeDigest1, afterDigest1)
	}

	// No backup/temp-swap siblings should remain after rollback.
	for _, name := range []string{"s0", "s1"} {
		if _, err := os.Stat(resolver.BackupPath(name)); !os.IsNotExist(err) {
			t.Errorf("expected backup path for %s to be cleaned up", name)
		}
		if _, err := os.Stat(resolver.TempSwapPath(name)); !os.IsNotExist(err) {
			t.Errorf("expected temp-swap path for %s to be cleaned up", name)
		}
	}
}

func TestUpgradeDryRunReportsWithoutMutating(t *testing.T) {
	requireGit(t)

	projectRoot := t.TempDir()
	t.Setenv("SK_CACHE_DIR", filepath.Join(projectRoot, ".cache"))
	resolver := pathresolver.New(projectRoot, "")

	fresh := newFixture(t, "fresh-skill", "v1\n")
	edited := newFixture(t, "edited-skill", "v1\n")
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: fresh.url(), SkillName: "fresh-skill"}); err != nil {
		t.Fatalf("install fresh-skill failed: %v", err)
	}
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: edited.url(), SkillName: "edited-skill"}); err != nil {
		t.Fatalf("install edited-skill failed: %v", err)
	}
	fresh.advance(t, "v1\nv2\n")
	edited.advance(t, "v1\nv2\n")
	if err := os.WriteFile(filepath.Join(resolver.InstallDir("edited-skill"), "file.txt"), []byte("v1 local edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	beforeLock, err := os.ReadFile(resolver.LockfilePath())
	if err != nil {
		t.Fatal(err)
	}

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ui := mocks.NewMockReporter(ctrl)
	ui.EXPECT().Info(gomock.Any()).Do(func(msg string) {
		if !strings.HasPrefix(msg, "fresh-skill: ") || !strings.Contains(msg, " -> ") {
			t.Errorf("dry-run Info line = %q, want \"fresh-skill: <old7> -> <new7>\"", msg)
		}
	})
	ui.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		if !strings.HasPrefix(msg, "edited-skill: ") {
			t.Errorf("dry-run Warn line = %q, want it to name edited-skill", msg)
		}
	})

	rpt, err := Run(context.Background(), resolver, Options{Target: TargetAll, DryRun: true, UI: ui})
	if err != nil {
		t.Fatalf("dry-run upgrade failed: %v", err)
	}
	if len(rpt.Upgraded) != 1 || rpt.Upgraded[0].InstallName != "fresh-skill" {
		t.Errorf("Upgraded = %+v, want only fresh-skill", rpt.Upgraded)
	}

	afterLock, err := os.ReadFile(resolver.LockfilePath())
	if err != nil {
		t.Fatal(err)
	}
	if string(beforeLock) != string(afterLock) {
		t.Error("dry-run modified the lockfile")
	}
	content, err := os.ReadFile(filepath.Join(resolver.InstallDir("fresh-skill"), "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "v1\n" {
		t.Errorf("dry-run rewrote fresh-skill/file.txt to %q", content)
	}
}

func TestUpgradeMixedDirtyAndCleanUnderAll(t *testing.T) {
	requireGit(t)

	projectRoot := t.TempDir()
	t.Setenv("SK_CACHE_DIR", filepath.Join(projectRoot, ".cache"))
	resolver := pathresolver.New(projectRoot, "")

	clean := newFixture(t, "clean-skill", "v1\n")
	dirty := newFixture(t, "dirty-skill", "v1\n")
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: clean.url(), SkillName: "clean-skill"}); err != nil {
		t.Fatalf("install clean-skill failed: %v", err)
	}
	if _, err := install.Run(context.Background(), resolver, install.Request{Repo: dirty.url(), SkillName: "dirty-skill"}); err != nil {
		t.Fatalf("install dirty-skill failed: %v", err)
	}
	clean.advance(t, "v1\nv2\n")
	dirty.advance(t, "v1\nv2\n")

	// Make a local edit to dirty-skill so it no longer matches its lock digest.
	if err := os.WriteFile(filepath.Join(resolver.InstallDir("dirty-skill"), "file.txt"), []byte("v1 local edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rpt, err := Run(context.Background(), resolver, Options{Target: TargetAll})
	if err != nil {
		t.Fatalf("upgrade --all failed: %v", err)
	}
	if len(rpt.Upgraded) != 1 || rpt.Upgraded[0].InstallName != "clean-skill" {
		t.Errorf("Upgraded = %+v, want only clean-skill", rpt.Upgraded)
	}
	if len(rpt.Skipped) != 1 || rpt.Skipped[0].InstallName != "dirty-skill" {
		t.Errorf("Skipped = %+v, want only dirty-skill", rpt.Skipped)
	}
}
