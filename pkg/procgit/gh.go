package procgit

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Gh wraps the external `gh` (GitHub CLI) binary, used by sync-back to open
// and auto-merge a pull request instead of printing manual push instructions.
// Repo, when set, is passed to every command via -R so lookups do not depend
// on remote inference from Dir.
type Gh struct {
	Dir     string
	Repo    string // [HOST/]OWNER/REPO selector
	Verbose bool
}

// PullRequest is the subset of `gh pr list --json` fields sync-back needs to
// decide whether a PR exists and whether auto-merge may be armed.
type PullRequest struct {
	Number           int    `json:"number"`
	URL              string `json:"url"`
	Mergeable        string `json:"mergeable"`
	MergeStateStatus string `json:"mergeStateStatus"`
}

// MergeStatus is the subset of `gh pr view --json` fields the auto-merge
// polling loop reads.
type MergeStatus struct {
	State       string `json:"state"`
	MergeCommit struct {
		Oid string `json:"oid"`
	} `json:"mergeCommit"`
}

func (g *Gh) run(ctx context.Context, args ...string) (string, error) {
	if g.Repo != "" {
		args = append(args, "-R", g.Repo)
	}
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = g.Dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// FindPR looks up the pull request whose head is branch, in any state, so a
// closed or already-merged PR on a reused branch name is found too. Returns
// nil when the branch has no PR.
func (g *Gh) FindPR(ctx context.Context, branch string) (*PullRequest, error) {
	out, err := g.run(ctx, "pr", "list", "--state", "all", "--head", branch,
		"--limit", "1", "--json", "number,url,mergeStateStatus,mergeable")
	if err != nil {
		return nil, err
	}
	var prs []PullRequest
	if err := json.Unmarshal([]byte(out), &prs); err != nil {
		return nil, fmt.Errorf("parse gh pr list output: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

// CreatePR opens a pull request from branch, filling title and body from the
// branch's commits.
func (g *Gh) CreatePR(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "pr", "create", "--fill", "--head", branch)
	return err
}

// MergePR requests gh merge pull request number using a merge commit. With
// auto, GitHub lands the PR once required checks pass rather than blocking
// this process on CI.
func (g *Gh) MergePR(ctx context.Context, number int, auto bool) error {
	args := []string{"pr", "merge", strconv.Itoa(number)}
	if auto {
		args = append(args, "--auto")
	}
	args = append(args, "--merge")
	_, err := g.run(ctx, args...)
	return err
}

// ViewMergeStatus fetches the merge state of pull request number, for the
// auto-merge polling loop.
func (g *Gh) ViewMergeStatus(ctx context.Context, number int) (*MergeStatus, error) {
	out, err := g.run(ctx, "pr", "view", strconv.Itoa(number), "--json", "state,mergeCommit")
	if err != nil {
		return nil, err
	}
	var st MergeStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		return nil, fmt.Errorf("parse gh pr view output: %w", err)
	}
	return &st, nil
}

// IsInstalled returns true if the gh binary is available on PATH.
func (g *Gh) IsInstalled() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}
