// Package main implements the skillyard CLI: a thin dispatcher over the
// internal install/upgrade/doctor/remove/sync-back verbs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/skillyard/skillyard/internal/doctor"
	"github.com/skillyard/skillyard/internal/install"
	"github.com/skillyard/skillyard/internal/localguard"
	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/pathresolver"
	"github.com/skillyard/skillyard/internal/remove"
	"github.com/skillyard/skillyard/internal/report"
	"github.com/skillyard/skillyard/internal/skillerr"
	"github.com/skillyard/skillyard/internal/syncback"
	"github.com/skillyard/skillyard/internal/upgrade"
	"github.com/skillyard/skillyard/internal/version"
	"github.com/skillyard/skillyard/pkg/procgit"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(0)
	}

	command := os.Args[1]
	if command == "--help" || command == "-h" || command == "help" {
		printHelp()
		os.Exit(0)
	}
	if command == "--version" {
		fmt.Printf("skillyard %s\n", version.GetFullVersion())
		os.Exit(0)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: could not determine working directory:", err)
		os.Exit(1)
	}
	if !pathresolver.IsGitRepo(cwd) {
		fmt.Fprintln(os.Stderr, "Error:", skillerr.ErrNotAGitRepo)
		os.Exit(1)
	}
	if !procgit.IsInstalled() {
		fmt.Fprintln(os.Stderr, "Error: git is required but was not found on PATH")
		os.Exit(1)
	}
	resolver := pathresolver.New(cwd, "")
	ui := report.New(os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	args := parseArgs(os.Args[2:])

	var runErr error
	switch command {
	case "install":
		runErr = runInstall(ctx, resolver, ui, args)
	case "upgrade":
		runErr = runUpgrade(ctx, resolver, ui, args)
	case "doctor":
		runErr = runDoctor(ctx, resolver, ui, args)
	case "remove":
		runErr = runRemove(ctx, resolver, ui, args)
	case "sync-back":
		runErr = runSyncBack(ctx, resolver, ui, args)
	case "check":
		runErr = runCheck(resolver, ui, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		printHelp()
		os.Exit(1)
	}

	if runErr != nil {
		ui.Error(runErr.Error())
		os.Exit(1)
	}
}

func runInstall(ctx context.Context, resolver *pathresolver.Resolver, ui report.Reporter, a parsedArgs) error {
	if len(a.positional) < 2 {
		return fmt.Errorf("usage: skillyard install <repo> <skill-name> [--ref REF] [--alias NAME] [--path PATH] [--https]")
	}
	req := install.Request{
		Repo:      a.positional[0],
		SkillName: a.positional[1],
		Ref:       a.flags["ref"],
		Alias:     a.flags["alias"],
		Path:      a.flags["path"],
		HTTPS:     a.bools["https"],
	}
	res, err := install.Run(ctx, resolver, req)
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("installed %s @ %s", res.InstallName, shortSHA(res.Commit)))
	return nil
}

func runUpgrade(ctx context.Context, resolver *pathresolver.Resolver, ui report.Reporter, a parsedArgs) error {
	target := upgrade.TargetAll
	if len(a.positional) > 0 {
		target = a.positional[0]
	}
	opts := upgrade.Options{Target: target, DryRun: a.bools["dry-run"], UI: ui}
	rpt, err := upgrade.Run(ctx, resolver, opts)
	if err != nil {
		return err
	}
	if opts.DryRun {
		// Run already reported the planned and skipped records.
		return nil
	}
	for _, p := range rpt.Upgraded {
		ui.Success(fmt.Sprintf("%s: %s -> %s", p.InstallName, shortSHA(p.OldCommit), shortSHA(p.NewCommit)))
	}
	for _, p := range rpt.Skipped {
		ui.Warn(fmt.Sprintf("%s: skipped (local edits)", p.InstallName))
	}
	for _, p := range rpt.UpToDate {
		ui.Info(fmt.Sprintf("%s: up to date", p.InstallName))
	}
	return nil
}

func runDoctor(ctx context.Context, resolver *pathresolver.Resolver, ui report.Reporter, a parsedArgs) error {
	opts := doctor.Options{Apply: a.bools["apply"]}
	if only := a.flags["only"]; only != "" {
		opts.Only = strings.Split(only, ",")
	}

	if a.bools["watch"] {
		return doctor.Watch(ctx, resolver, opts, func(rpt *doctor.Report, err error) {
			if err != nil {
				ui.Error(err.Error())
				return
			}
			printDoctorReport(ui, rpt)
		})
	}

	rpt, err := doctor.Run(ctx, resolver, opts)
	if err != nil {
		return err
	}
	printDoctorReport(ui, rpt)
	return nil
}

func printDoctorReport(ui report.Reporter, rpt *doctor.Report) {
	if rpt.NoLockfile {
		ui.Info("No lockfile found")
		return
	}
	for _, name := range rpt.Duplicates {
		ui.Warn(fmt.Sprintf("duplicate install_name %q", name))
	}
	for _, n := range rpt.Notes {
		if n.Message == "ok" {
			continue
		}
		ui.Warn(fmt.Sprintf("%s: %s", n.InstallName, n.Message))
	}
	for _, name := range rpt.Rebuilt {
		ui.Success(fmt.Sprintf("%s: rebuilt from cache", name))
	}
	for _, dir := range rpt.OrphanCaches {
		ui.Warn("orphan cache: " + dir)
	}
	for _, dir := range rpt.OrphansRemoved {
		ui.Success("removed orphan cache: " + dir)
	}
	if rpt.Clean() {
		ui.Success("All checks passed.")
	}
}

func runRemove(ctx context.Context, resolver *pathresolver.Resolver, ui report.Reporter, a parsedArgs) error {
	if len(a.positional) < 1 {
		return fmt.Errorf("usage: skillyard remove <install-name> [--force]")
	}
	res, err := remove.Run(ctx, resolver, remove.Request{InstallName: a.positional[0], Force: a.bools["force"]})
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("removed %s (was %s)", res.InstallName, shortSHA(res.Commit)))
	return nil
}

func runSyncBack(ctx context.Context, resolver *pathresolver.Resolver, ui report.Reporter, a parsedArgs) error {
	if len(a.positional) < 1 {
		return fmt.Errorf("usage: skillyard sync-back <install-name> [--branch NAME] [--message MSG] [--repo REPO] [--skill-path PATH] [--https]")
	}
	req := syncback.Request{
		InstallName: a.positional[0],
		Branch:      a.flags["branch"],
		Message:     a.flags["message"],
		Repo:        a.flags["repo"],
		SkillPath:   a.flags["skill-path"],
		HTTPS:       a.bools["https"],
		UI:          ui,
	}
	res, err := syncback.Run(ctx, resolver, req)
	if err != nil {
		return err
	}
	if res.NoOp {
		return nil
	}
	msg := fmt.Sprintf("pushed %s -> %s @ %s", res.InstallName, res.Branch, shortSHA(res.Commit))
	if res.PRUrl != "" {
		msg += " (" + res.PRUrl + ")"
	}
	ui.Success(msg)
	return nil
}

func runCheck(resolver *pathresolver.Resolver, ui report.Reporter, a parsedArgs) error {
	lockStore := lockfile.Open(resolver.LockfilePath())
	lf, err := lockStore.Load()
	if err != nil {
		return err
	}
	flagged := localguard.Scan(&lf)
	if len(flagged) == 0 {
		ui.Success("no local-source entries in the lockfile")
		return nil
	}
	for _, f := range flagged {
		ui.Warn(fmt.Sprintf("%s: local source %s", f.InstallName, f.URL))
	}
	if a.bools["allow-local"] {
		return nil
	}
	return fmt.Errorf("%d lockfile entries resolve to a local source; pass --allow-local to proceed anyway", len(flagged))
}

func shortSHA(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

// parsedArgs is the result of hand-parsing a subcommand's argument list:
// positional arguments in order, "--key value" pairs, and bare "--flag"
// booleans.
type parsedArgs struct {
	positional []string
	flags      map[string]string
	bools      map[string]bool
}

func parseArgs(args []string) parsedArgs {
	out := parsedArgs{flags: map[string]string{}, bools: map[string]bool{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			out.positional = append(out.positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			out.flags[name] = args[i+1]
			i++
			continue
		}
		out.bools[name] = true
	}
	return out
}

func printHelp() {
	fmt.Println(`skillyard - repository-scoped manager for git-pinned skills

Usage:
  skillyard install <repo> <skill-name> [--ref REF] [--alias NAME] [--path PATH] [--https]
  skillyard upgrade [<install-name>|--all] [--dry-run]
  skillyard doctor [--apply] [--only NAME,NAME] [--watch]
  skillyard remove <install-name> [--force]
  skillyard sync-back <install-name> [--branch NAME] [--message MSG] [--repo REPO] [--skill-path PATH] [--https]
  skillyard check [--allow-local]
  skillyard --version
  skillyard --help`)
}
