// Package reposource parses the several shorthand, scp-like, and URL forms
// users may give a repository into a canonical (url, host, owner, repo)
// tuple.
package reposource

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/skillyard/skillyard/internal/skillerr"
)

// Spec is the canonical identity of a source repository. Two specs are
// equal when every field matches.
type Spec struct {
	URL   string
	Host  string
	Owner string
	Repo  string
	Local bool // true for file:// sources
}

var (
	deepLinkRe = regexp.MustCompile(`^(?:https?://)?([^/]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	scpLikeRe  = regexp.MustCompile(`^([^@/]+)@([^:/]+):(.+)$`)
	bareScpRe  = regexp.MustCompile(`^([^/:]+):(.+)$`)
)

// Options controls shorthand expansion when the input is an "@owner/repo" form.
type Options struct {
	DefaultHost string
	PreferHTTPS bool
}

// Parse derives a Spec from one of the forms documented in the repository
// spec grammar: "@owner/repo" shorthand, scp-like "git@host:owner/repo",
// a bare "host:owner/repo", a full URL ("https://", "ssh://", "http://"),
// or a "file://" path.
func Parse(raw string, opts Options) (*Spec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: raw, Reason: "empty input"}
	}

	switch {
	case strings.HasPrefix(trimmed, "@"):
		return parseShorthand(trimmed, opts)
	case strings.HasPrefix(strings.ToLower(trimmed), "file://"):
		return parseFileURL(trimmed)
	case strings.Contains(trimmed, "://"):
		return parseFullURL(trimmed)
	default:
		if m := scpLikeRe.FindStringSubmatch(trimmed); m != nil {
			return parseScpLike(trimmed, m[2], m[3])
		}
		if m := bareScpRe.FindStringSubmatch(trimmed); m != nil {
			host := m[1]
			// A single ASCII letter before ":" is a Windows drive letter
			// (C:\...), not a scp-like host:path form.
			if len(host) == 1 && isASCIILetter(host[0]) {
				return nil, &skillerr.InvalidInputError{
					Field: "repo", Value: raw,
					Reason: "looks like a Windows drive letter, not a scp-like host",
				}
			}
			return parseScpLike(trimmed, host, m[2])
		}
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: raw, Reason: "unrecognized repository form"}
	}
}

func isASCIILetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func parseShorthand(trimmed string, opts Options) (*Spec, error) {
	ownerRepo := strings.TrimPrefix(trimmed, "@")
	parts := strings.SplitN(ownerRepo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: trimmed, Reason: "expected @owner/repo"}
	}
	owner, repo := parts[0], strings.TrimSuffix(parts[1], ".git")
	host := opts.DefaultHost
	if host == "" {
		host = "github.com"
	}
	var url string
	if opts.PreferHTTPS {
		url = fmt.Sprintf("https://%s/%s/%s.git", host, owner, repo)
	} else {
		url = fmt.Sprintf("git@%s:%s/%s.git", host, owner, repo)
	}
	return &Spec{URL: url, Host: host, Owner: owner, Repo: repo}, nil
}

func parseScpLike(original, host, rest string) (*Spec, error) {
	rest = strings.TrimSuffix(rest, "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: original, Reason: "expected host:owner/repo"}
	}
	owner := parts[0]
	repo := strings.TrimSuffix(parts[1], ".git")
	return &Spec{URL: original, Host: host, Owner: owner, Repo: repo}, nil
}

func parseFullURL(rawURL string) (*Spec, error) {
	stripped := rawURL
	if idx := strings.Index(stripped, "://"); idx != -1 {
		stripped = stripped[idx+3:]
	}
	// Strip any userinfo (user@host/...), but only before the first slash
	// so an "@" inside the path (rare, but legal) is left alone.
	firstSlash := strings.Index(stripped, "/")
	if firstSlash == -1 {
		firstSlash = len(stripped)
	}
	if at := strings.Index(stripped[:firstSlash], "@"); at != -1 {
		stripped = stripped[at+1:]
	}
	m := deepLinkRe.FindStringSubmatch(stripped)
	if m == nil {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: rawURL, Reason: "could not derive host/owner/repo from URL"}
	}
	host, owner, repo := m[1], m[2], m[3]
	if host == "" || owner == "" || repo == "" {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: rawURL, Reason: "could not derive host/owner/repo from URL"}
	}
	return &Spec{URL: rawURL, Host: host, Owner: owner, Repo: repo}, nil
}

func parseFileURL(rawURL string) (*Spec, error) {
	path := rawURL[len("file://"):]
	path = strings.TrimSuffix(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: rawURL, Reason: "empty file:// path"}
	}
	repo := filepath.Base(path)
	owner := filepath.Base(filepath.Dir(path))
	if repo == "" || repo == "." || repo == "/" {
		return nil, &skillerr.InvalidInputError{Field: "repo", Value: rawURL, Reason: "could not derive repo name from path"}
	}
	return &Spec{URL: rawURL, Host: "local", Owner: owner, Repo: repo, Local: true}, nil
}

// Equal reports whether two specs refer to the same logical source
// repository: all four identifying components must match.
func (s *Spec) Equal(other *Spec) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.URL == other.URL && s.Host == other.Host && s.Owner == other.Owner && s.Repo == other.Repo
}

// IsLocalURL reports whether rawURL names a local-filesystem or localhost
// source: file:// scheme, a relative/absolute filesystem path, or a network
// location of localhost/127.0.0.1/::1. Used by the local-source guard,
// which needs to classify URLs already stored in the lockfile without
// re-deriving a Spec.
func IsLocalURL(rawURL string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "file://") {
		return true
	}
	if strings.HasPrefix(trimmed, "./") || strings.HasPrefix(trimmed, "../") {
		return true
	}
	if strings.HasPrefix(trimmed, "/") && !strings.Contains(trimmed, "://") {
		return true
	}
	if len(trimmed) >= 3 && trimmed[1] == ':' && isASCIILetter(trimmed[0]) &&
		(trimmed[2] == '/' || trimmed[2] == '\\') {
		return true
	}
	switch hostOnly(lower) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// hostOnly extracts just the host component from a lowercased URL/scp-like
// string, so a localhost/127.0.0.1 check compares against the actual host
// rather than matching an owner or repo name that merely contains one of
// those strings as a substring.
func hostOnly(lower string) string {
	rest := lower
	if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	if at := strings.Index(rest, "@"); at != -1 {
		if slash := strings.Index(rest, "/"); slash == -1 || at < slash {
			rest = rest[at+1:]
		}
	}
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "]"); end != -1 {
			return rest[1:end]
		}
	}
	for i, c := range rest {
		if c == '/' || c == ':' {
			return rest[:i]
		}
	}
	return rest
}
