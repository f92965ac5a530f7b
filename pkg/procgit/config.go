package procgit

import "context"

// ConfigGet reads a git config value.
func (g *Git) ConfigGet(ctx context.Context, key string) (string, error) {
	return g.Run(ctx, "config", key)
}

// UserIdentity returns the commit author this repository would use, in
// "Name <email>" form, degrading to whichever half is configured. An empty
// string means a commit here would fail until user.name/user.email are set;
// sync-back checks this before committing edits mirrored into a worktree.
func (g *Git) UserIdentity(ctx context.Context) string {
	name, _ := g.ConfigGet(ctx, "user.name")
	email, _ := g.ConfigGet(ctx, "user.email")
	switch {
	case name != "" && email != "":
		return name + " <" + email + ">"
	case name != "":
		return name
	case email != "":
		return email
	default:
		return ""
	}
}
