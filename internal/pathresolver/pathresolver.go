// Package pathresolver owns every filesystem path skillyard computes: the
// project-relative install root, the lockfile path, the cache root, and the
// per-repo cache-entry directory (including the hashed-leaf rule that keeps
// file:// sources from colliding on owner/repo name alone).
package pathresolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (
	defaultInstallRoot = "skills"
	lockfileName       = "skills.lock.json"
	cacheDirEnv        = "SK_CACHE_DIR"
	configDirEnv       = "SK_CONFIG_DIR"
)

// Resolver computes every path skillyard reads from or writes to, rooted at
// a single project directory.
type Resolver struct {
	ProjectRoot string
	InstallRoot string // absolute; defaults to ProjectRoot/skills
}

// New builds a Resolver for projectRoot. If installRoot is empty the default
// "<projectRoot>/skills" is used; a relative installRoot is resolved against
// projectRoot, an absolute one is used as-is.
func New(projectRoot, installRoot string) *Resolver {
	root := filepath.Join(projectRoot, defaultInstallRoot)
	if installRoot != "" {
		if filepath.IsAbs(installRoot) {
			root = installRoot
		} else {
			root = filepath.Join(projectRoot, installRoot)
		}
	}
	return &Resolver{ProjectRoot: projectRoot, InstallRoot: root}
}

// LockfilePath returns the absolute path to skills.lock.json.
func (r *Resolver) LockfilePath() string {
	return filepath.Join(r.ProjectRoot, lockfileName)
}

// InstallDir returns the absolute directory a skill named installName is
// (or would be) installed at.
func (r *Resolver) InstallDir(installName string) string {
	return filepath.Join(r.InstallRoot, installName)
}

// StagingRoot returns a directory on the same filesystem as InstallRoot,
// used to stage upgrade extractions so the final swap can be a rename.
func (r *Resolver) StagingRoot() string {
	return filepath.Join(r.ProjectRoot, ".skillyard", "staging")
}

// BackupPath returns the sibling path an upgrade swap renames an existing
// install directory to while the new one is put in place.
func (r *Resolver) BackupPath(installName string) string {
	return filepath.Join(r.InstallRoot, ".sk-upgrade-bak-"+installName)
}

// TempSwapPath returns the sibling path used for the copy-fallback staging
// directory when a same-filesystem rename is not possible (EXDEV).
func (r *Resolver) TempSwapPath(installName string) string {
	return filepath.Join(r.InstallRoot, ".sk-upgrade-tmp-"+installName)
}

// CacheRoot returns the root directory holding all cached clones,
// overridable via SK_CACHE_DIR and otherwise rooted at the platform user
// cache directory.
func CacheRoot() string {
	if v := os.Getenv(cacheDirEnv); v != "" {
		return filepath.Join(v, "repos")
	}
	return filepath.Join(xdg.CacheHome, "skillyard", "repos")
}

// ConfigDir returns the directory holding skillyard's own configuration,
// overridable via SK_CONFIG_DIR.
func ConfigDir() string {
	if v := os.Getenv(configDirEnv); v != "" {
		return v
	}
	return filepath.Join(xdg.ConfigHome, "skillyard")
}

// CacheEntryDir computes <cache_root>/<host>/<owner>/<leaf> for a repo spec.
// For local sources (host == "local" or the URL uses the file scheme) the
// leaf is suffixed with the first 12 hex characters of sha256(url) so that
// two file:// URLs sharing an (owner, repo) pair never collide.
func CacheEntryDir(host, owner, repo, url string, isLocal bool) string {
	leaf := repo
	if isLocal || host == "local" {
		sum := sha256.Sum256([]byte(url))
		leaf = fmt.Sprintf("%s-%s", repo, hex.EncodeToString(sum[:])[:12])
	}
	return filepath.Join(CacheRoot(), host, owner, leaf)
}

// ValidateDestPath ensures a project-relative destination path cannot escape
// the project root: no null bytes, no absolute paths (Unix or Windows drive
// letter forms), no ".." traversal segments.
func ValidateDestPath(destPath string) error {
	if strings.ContainsRune(destPath, 0) {
		return fmt.Errorf("invalid destination path: null bytes are not allowed")
	}
	if strings.HasPrefix(destPath, "/") || strings.HasPrefix(destPath, "\\") {
		return fmt.Errorf("invalid destination path %q: absolute paths are not allowed", destPath)
	}
	if len(destPath) >= 2 && destPath[1] == ':' &&
		((destPath[0] >= 'A' && destPath[0] <= 'Z') || (destPath[0] >= 'a' && destPath[0] <= 'z')) {
		return fmt.Errorf("invalid destination path %q: absolute paths are not allowed", destPath)
	}
	cleaned := filepath.Clean(destPath)
	if filepath.IsAbs(cleaned) {
		return fmt.Errorf("invalid destination path %q: absolute paths are not allowed", destPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, string(filepath.Separator)+"..") {
		return fmt.Errorf("invalid destination path %q: path traversal with .. is not allowed", destPath)
	}
	return nil
}

// ValidateInstallName rejects names that are unsafe for use as a filesystem
// path component: empty, containing separators, traversal sequences, or
// null bytes.
func ValidateInstallName(name string) error {
	if name == "" {
		return fmt.Errorf("install name must not be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid install name %q: null bytes are not allowed", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid install name %q: path separators are not allowed", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid install name %q: path traversal sequences are not allowed", name)
	}
	return nil
}

// IsGitRepo reports whether dir (or an ancestor) is inside a git working tree,
// by walking upward looking for a .git entry. Used to enforce the
// "must run inside a git repository" precondition without shelling out.
func IsGitRepo(dir string) bool {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	for {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return false
		}
		cur = parent
	}
}
