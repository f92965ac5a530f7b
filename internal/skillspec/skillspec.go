// Package skillspec discovers and parses SKILL.md files: the YAML
// front-matter-rooted documents that describe an installable skill.
package skillspec

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skillyard/skillyard/internal/repocache"
)

// Meta is a SKILL.md's required front-matter fields.
type Meta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Discovered is one SKILL.md found while walking a commit's tree.
type Discovered struct {
	SkillPath string // directory containing SKILL.md, "." for the repo root
	Meta      Meta
}

// Discover enumerates every SKILL.md (or */SKILL.md) path in commit's tree
// and parses its front-matter. A skill whose front-matter is missing,
// malformed, or lacks name/description is silently skipped; enumeration is
// best-effort. Install selects only from the returned list, so a requested
// skill whose front-matter is invalid is reported as not found rather than
// as a front-matter error.
func Discover(ctx context.Context, entry *repocache.Entry, commit string) ([]Discovered, error) {
	paths, err := entry.Git().ListTree(ctx, commit, "")
	if err != nil {
		return nil, fmt.Errorf("list tree at %s: %w", commit, err)
	}

	var found []Discovered
	for _, p := range paths {
		if p != "SKILL.md" && !strings.HasSuffix(p, "/SKILL.md") {
			continue
		}
		body, err := entry.Git().Show(ctx, commit, p)
		if err != nil {
			continue
		}
		meta, err := ParseFrontMatter(body)
		if err != nil {
			continue
		}
		skillPath := "."
		if idx := strings.LastIndex(p, "/SKILL.md"); idx > 0 {
			skillPath = p[:idx]
		}
		found = append(found, Discovered{SkillPath: skillPath, Meta: meta})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].SkillPath < found[j].SkillPath })
	return found, nil
}

// ParseFrontMatter extracts and parses the YAML front-matter of a SKILL.md
// document: content must begin with a line containing exactly "---", a YAML
// block, and a closing "---" line. CRLF line endings are tolerated. Both
// name and description are required to be non-empty.
func ParseFrontMatter(content []byte) (Meta, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	lines := strings.Split(string(normalized), "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return Meta{}, fmt.Errorf("SKILL.md does not start with a --- front-matter delimiter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return Meta{}, fmt.Errorf("SKILL.md front-matter has no closing --- delimiter")
	}

	block := strings.Join(lines[1:end], "\n")
	var meta Meta
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return Meta{}, fmt.Errorf("parse SKILL.md front-matter: %w", err)
	}
	if meta.Name == "" || meta.Description == "" {
		return Meta{}, fmt.Errorf("SKILL.md front-matter missing required name/description")
	}
	return meta, nil
}
