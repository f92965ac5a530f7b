package procgit

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Rsync wraps the external rsync binary for mirroring an installed skill's
// files back into a sync-back worktree.
type Rsync struct {
	Verbose bool
}

// Mirror copies the contents of srcDir into dstDir, deleting destination
// files that no longer exist in the source. The trailing slash on srcDir
// matters to rsync (copy contents, not the directory itself) and is added
// here so callers don't need to remember it.
func (r *Rsync) Mirror(ctx context.Context, srcDir, dstDir string, excludes ...string) error {
	args := []string{"-a", "--delete"}
	for _, ex := range excludes {
		args = append(args, "--exclude", ex)
	}
	args = append(args, strings.TrimSuffix(srcDir, "/")+"/", dstDir+"/")
	cmd := exec.CommandContext(ctx, "rsync", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rsync failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// IsInstalled returns true if the rsync binary is available on PATH.
func (r *Rsync) IsInstalled() bool {
	_, err := exec.LookPath("rsync")
	return err == nil
}
