package procgit

import (
	"errors"
	"strings"
)

// Sentinel errors for common git failure modes.
var (
	ErrRefNotFound  = errors.New("ref not found")
	ErrPathNotFound = errors.New("path not found at ref")
)

// GitError wraps an exec error with the command that was run and stderr output.
type GitError struct {
	Args   []string // git subcommand and arguments
	Stderr string   // stderr output from git
	Err    error    // underlying exec error
}

func (e *GitError) Error() string {
	s := strings.TrimSpace(e.Stderr)
	if s != "" {
		return s
	}
	return e.Err.Error()
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// IsPathMissing reports whether err indicates a path does not exist at a ref,
// as surfaced by `git show <rev>:<path>` or `git archive <rev> <path>`.
func IsPathMissing(err error) bool {
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		s := gitErr.Stderr
		return strings.Contains(s, "does not exist") ||
			strings.Contains(s, "not found") ||
			strings.Contains(s, "exists on disk, but not in")
	}
	return false
}
