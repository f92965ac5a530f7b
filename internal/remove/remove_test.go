package remove

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/skillerr"
)

func setupProject(t *testing.T, installName, content string) (*pathresolver.Resolver, string) {
	t.Helper()
	projectRoot := t.TempDir()
	resolver := pathresolver.New(projectRoot, "")

	dest := resolver.InstallDir(installName)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "file.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := digest.Dir(dest)
	if err != nil {
		t.Fatal(err)
	}

	lockStore := lockfile.Open(resolver.LockfilePath())
	if _, err := lockfile.Edit(lockStore, func(lf *lockfile.Lockfile) (struct{}, error) {
		lockfile.Upsert(lf, lockfile.Skill{
			InstallName: installName,
			Source:      lockfile.Source{URL: "git@github.com:o/r.git", Host: "github.com", Owner: "o", Repo: "r", SkillPath: "."},
			Commit:      "abc123",
			Digest:      d,
		})
		return struct{}{}, nil
	}); err != nil {
		t.Fatal(err)
	}

	return resolver, dest
}

func TestRemoveCleanTree(t *testing.T) {
	resolver, dest := setupProject(t, "alpha", "v1\n")

	result, err := Run(context.Background(), resolver, Request{InstallName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if result.InstallName != "alpha" || result.Commit != "abc123" {
		t.Errorf("Result = %+v", result)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("expected install directory to be removed")
	}

	lf, err := lockfile.Open(resolver.LockfilePath()).Load()
	if err != nil {
		t.Fatal(err)
	}
	if lockfile.Find(&lf, "alpha") != nil {
		t.Error("expected lock entry to be removed")
	}
}

func TestRemoveDirtyTreeRefusedWithoutForce(t *testing.T) {
	resolver, dest := setupProject(t, "alpha", "v1\n")

	if err := os.WriteFile(filepath.Join(dest, "file.txt"), []byte("v1 local edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), resolver, Request{InstallName: "alpha"})
	if err == nil {
		t.Fatal("expected DirtyTreeError")
	}
	var dirtyErr *skillerr.DirtyTreeError
	if !errors.As(err, &dirtyErr) {
		t.Errorf("expected DirtyTreeError, got %T: %v", err, err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Error("expected install directory to remain after refused remove")
	}
	lf, err := lockfile.Open(resolver.LockfilePath()).Load()
	if err != nil {
		t.Fatal(err)
	}
	if lockfile.Find(&lf, "alpha") == nil {
		t.Error("expected lock entry to remain after refused remove")
	}
}

func TestRemoveDirtyTreeForced(t *testing.T) {
	resolver, dest := setupProject(t, "alpha", "v1\n")

	if err := os.WriteFile(filepath.Join(dest, "file.txt"), []byte("v1 local edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), resolver, Request{InstallName: "alpha", Force: true})
	if err != nil {
		t.Fatalf("expected forced remove to succeed, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("expected install directory to be removed when forced")
	}
}

func TestRemoveUnknownInstallName(t *testing.T) {
	resolver, _ := setupProject(t, "alpha", "v1\n")

	_, err := Run(context.Background(), resolver, Request{InstallName: "missing"})
	if err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestRemoveMissingInstallDirectory(t *testing.T) {
	resolver, dest := setupProject(t, "alpha", "v1\n")
	if err := os.RemoveAll(dest); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), resolver, Request{InstallName: "alpha"})
	if err == nil {
		t.Fatal("expected error when install directory is missing")
	}
}
