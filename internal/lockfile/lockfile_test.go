package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEditCreatesEmptyLockfileWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.lock.json")
	s := Open(path)

	_, err := Edit(s, func(lf *Lockfile) (struct{}, error) {
		Upsert(lf, Skill{InstallName: "alpha", Commit: "deadbeef", Digest: "sha256:abc"})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	lf, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if lf.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", lf.Version, CurrentVersion)
	}
	if len(lf.Skills) != 1 || lf.Skills[0].InstallName != "alpha" {
		t.Errorf("Skills = %+v", lf.Skills)
	}
	if lf.GeneratedAt.IsZero() {
		t.Error("GeneratedAt was not stamped")
	}
}

func TestEditSortsByInstallName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.lock.json")
	s := Open(path)

	_, err := Edit(s, func(lf *Lockfile) (struct{}, error) {
		Upsert(lf, Skill{InstallName: "zeta"})
		Upsert(lf, Skill{InstallName: "alpha"})
		Upsert(lf, Skill{InstallName: "mu"})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	lf, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	got := []string{lf.Skills[0].InstallName, lf.Skills[1].InstallName, lf.Skills[2].InstallName}
	want := []string{"alpha", "mu", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Skills sort order = %v, want %v", got, want)
		}
	}
}

func TestEditLeavesFileUntouchedOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.lock.json")
	s := Open(path)

	// Establish a baseline file.
	if _, err := Edit(s, func(lf *Lockfile) (struct{}, error) {
		Upsert(lf, Skill{InstallName: "alpha"})
		return struct{}{}, nil
	}); err != nil {
		t.Fatal(err)
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("boom")
	_, err = Edit(s, func(lf *Lockfile) (struct{}, error) {
		Upsert(lf, Skill{InstallName: "beta"})
		return struct{}{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("file was mutated despite Edit returning an error:\nbefore=%s\nafter=%s", before, after)
	}
}

func TestFindUpsertRemove(t *testing.T) {
	lf := &Lockfile{}
	Upsert(lf, Skill{InstallName: "a", Commit: "1"})
	Upsert(lf, Skill{InstallName: "b", Commit: "1"})
	Upsert(lf, Skill{InstallName: "a", Commit: "2"}) // replace

	if got := Find(lf, "a"); got == nil || got.Commit != "2" {
		t.Errorf("Find(a) = %+v, want Commit=2", got)
	}
	if Find(lf, "missing") != nil {
		t.Error("Find(missing) should be nil")
	}

	if !Remove(lf, "a") {
		t.Error("Remove(a) should report true")
	}
	if Remove(lf, "a") {
		t.Error("second Remove(a) should report false")
	}
	if len(lf.Skills) != 1 || lf.Skills[0].InstallName != "b" {
		t.Errorf("Skills after remove = %+v", lf.Skills)
	}
}

func TestDuplicateNames(t *testing.T) {
	lf := &Lockfile{Skills: []Skill{
		{InstallName: "a"}, {InstallName: "b"}, {InstallName: "a"}, {InstallName: "c"}, {InstallName: "c"},
	}}
	dups := DuplicateNames(lf)
	if len(dups) != 2 || dups[0] != "a" || dups[1] != "c" {
		t.Errorf("DuplicateNames = %v, want [a c]", dups)
	}
}

func TestRequireUnique(t *testing.T) {
	lf := &Lockfile{Skills: []Skill{{InstallName: "a"}}}
	if err := RequireUnique(lf, "a"); err == nil {
		t.Error("expected AlreadyExists error for duplicate name")
	}
	if err := RequireUnique(lf, "b"); err != nil {
		t.Errorf("unexpected error for fresh name: %v", err)
	}
}

func TestGeneratedAtAtOrAfterInstalledAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.lock.json")
	s := Open(path)

	early := time.Now().UTC().Add(-time.Hour)
	_, err := Edit(s, func(lf *Lockfile) (struct{}, error) {
		Upsert(lf, Skill{InstallName: "alpha", InstalledAt: early})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	lf, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if lf.GeneratedAt.Before(lf.Skills[0].InstalledAt) {
		t.Errorf("GeneratedAt %v is before InstalledAt %v", lf.GeneratedAt, lf.Skills[0].InstalledAt)
	}
}
