// Package localguard implements the pre-commit check that flags lockfile
// entries pinned to local-filesystem or localhost sources, which cannot be
// resolved by anyone who doesn't share the author's machine.
package localguard

import (
	"sort"

	"github.com/skillyard/skillyard/internal/lockfile"
	"github.com/skillyard/skillyard/internal/reposource"
)

// Flagged is one lockfile entry whose source resolves to a local path.
type Flagged struct {
	InstallName string
	URL         string
}

// Scan inspects every skill's source URL in lf and returns those that are
// local (file://, a bare filesystem path, or localhost/127.0.0.1/::1),
// sorted by install name for stable output.
func Scan(lf *lockfile.Lockfile) []Flagged {
	var flagged []Flagged
	for _, sk := range lf.Skills {
		if sk.Source.Host == "local" || reposource.IsLocalURL(sk.Source.URL) {
			flagged = append(flagged, Flagged{InstallName: sk.InstallName, URL: sk.Source.URL})
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].InstallName < flagged[j].InstallName })
	return flagged
}
