// Package install implements the end-to-end install flow: parse the
// repository, ensure its cache, resolve a commit, discover the requested
// skill, extract it, and record it in the lockfile.
package install

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skillyard/skillyard/internal/digest"
	"github.com/skillyard/skillyard/internal/extractor"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/repocache"
	"github.com/skillyard/skillyard/internal/reposource"
	"github.com/skillyard/skillyard/internal/skillerr"
	"github.com/skillyard/skillyard/internal/skillspec"
)

// Request describes one install invocation.
type Request struct {
	Repo      string // raw repository form (see reposource.Parse)
	SkillName string
	Ref       string // optional branch/tag/sha
	Alias     string // optional; becomes InstallName
	Path      string // optional disambiguator among multiple SKILL.md matches
	HTTPS     bool   // protocol preference for shorthand/default-host forms
}

// Result is what a successful install produces.
type Result struct {
	InstallName string
	Commit      string
	Digest      string
	SkillPath   string
}

// Run executes the install flow against resolver and the project lockfile
// at resolver.LockfilePath().
func Run(ctx context.Context, resolver *pathresolver.Resolver, req Request) (*Result, error) {
	spec, err := reposource.Parse(req.Repo, reposource.Options{PreferHTTPS: req.HTTPS})
	if err != nil {
		return nil, err
	}

	cacheDir := pathresolver.CacheEntryDir(spec.Host, spec.Owner, spec.Repo, spec.URL, spec.Local)
	entry, err := repocache.Ensure(ctx, cacheDir, spec)
	if err != nil {
		return nil, fmt.Errorf("ensure cache for %s: %w", spec.URL, err)
	}

	defaultBranch, err := entry.DefaultBranch(ctx, spec.URL)
	if err != nil {
		return nil, err
	}

	commit, err := entry.ResolveCommit(ctx, spec.URL, req.Ref, defaultBranch)
	if err != nil {
		return nil, err
	}

	candidates, err := skillspec.Discover(ctx, entry, commit)
	if err != nil {
		return nil, err
	}

	chosen, err := selectSkill(candidates, req.SkillName, req.Path)
	if err != nil {
		return nil, err
	}

	installName := req.Alias
	if installName == "" {
		installName = chosen.Meta.Name
	}
	if err := pathresolver.ValidateInstallName(installName); err != nil {
		return nil, &skillerr.InvalidInputError{Field: "install name", Value: installName, Reason: err.Error()}
	}

	destDir := resolver.InstallDir(installName)
	if _, err := os.Stat(destDir); err == nil {
		return nil, &skillerr.AlreadyExistsError{What: "install directory", Name: installName}
	}

	if err := extractor.Extract(ctx, cacheDir, commit, chosen.SkillPath, destDir); err != nil {
		_ = os.RemoveAll(destDir)
		return nil, err
	}

	treeDigest, err := digest.Dir(destDir)
	if err != nil {
		_ = os.RemoveAll(destDir)
		return nil, fmt.Errorf("compute digest for %s: %w", installName, err)
	}

	lockStore := lockfile.Open(resolver.LockfilePath())
	now := time.Now().UTC()
	_, err = lockfile.Edit(lockStore, func(lf *lockfile.Lockfile) (struct{}, error) {
		if err := lockfile.RequireUnique(lf, installName); err != nil {
			return struct{}{}, err
		}
		lockfile.Upsert(lf, lockfile.Skill{
			InstallName: installName,
			Source: lockfile.Source{
				URL:       spec.URL,
				Host:      spec.Host,
				Owner:     spec.Owner,
				Repo:      spec.Repo,
				SkillPath: chosen.SkillPath,
			},
			Ref:         req.Ref,
			Commit:      commit,
			Digest:      treeDigest,
			InstalledAt: now,
		})
		return struct{}{}, nil
	})
	if err != nil {
		_ = os.RemoveAll(destDir)
		return nil, err
	}

	return &Result{InstallName: installName, Commit: commit, Digest: treeDigest, SkillPath: chosen.SkillPath}, nil
}

func selectSkill(candidates []skillspec.Discovered, skillName, path string) (*skillspec.Discovered, error) {
	var matches []skillspec.Discovered
	for _, c := range candidates {
		if c.Meta.Name == skillName {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, skillerr.NewNotFound("skill", skillName, "no SKILL.md with that name was found")
	}
	if len(matches) == 1 {
		return &matches[0], nil
	}
	if path == "" {
		var paths []string
		for _, m := range matches {
			paths = append(paths, m.SkillPath)
		}
		return nil, &skillerr.AmbiguousError{SkillName: skillName, Candidates: paths}
	}
	for i := range matches {
		if matches[i].SkillPath == path {
			return &matches[i], nil
		}
	}
	var paths []string
	for _, m := range matches {
		paths = append(paths, m.SkillPath)
	}
	return nil, skillerr.NewNotFound("skill", skillName, fmt.Sprintf("--path %q did not match any candidate: %v", path, paths))
}
