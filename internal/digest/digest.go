// Package digest computes the deterministic content hash used as the
// integrity oracle for installed skill trees: a SHA-256 over every file's
// relative path and CRLF-normalized bytes, in sorted path order.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// skipGlobs are compiled once; they mirror the fixed ignore list the digest
// contract promises ("the same files regardless of checkout policy").
var skipGlobs = compileSkipGlobs()

func compileSkipGlobs() []glob.Glob {
	patterns := []string{".git", ".DS_Store", "*~", "*.swp"}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		globs = append(globs, glob.MustCompile(p))
	}
	return globs
}

func isSkipped(name string) bool {
	for _, g := range skipGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Dir computes "sha256:<hex>" over dir's files: sorted relative path order,
// each entry contributing utf8(relpath), a NUL, the CRLF-normalized content
// length, a NUL, then the content itself. The length prefix keeps a
// rename-and-edit that shifts the path/content boundary from colliding with
// an unrelated tree. Symbolic links are not followed. Directories
// contribute no bytes of their own, only the paths of the files inside them.
func Dir(dir string) (string, error) {
	var relPaths []string
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if isSkipped(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, filepath.ToSlash(rel))
		return nil
	}); err != nil {
		return "", fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(relPaths)

	h := sha256.New()
	for _, rel := range relPaths {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rel, err)
		}
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
		h.Write([]byte(rel))
		h.Write([]byte{0})
		fmt.Fprintf(h, "%d", len(content))
		h.Write([]byte{0})
		h.Write(content)
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
