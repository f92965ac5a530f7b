package procgit

import "context"

// HEAD returns the full SHA of the current HEAD commit.
func (g *Git) HEAD(ctx context.Context) (string, error) {
	return g.Run(ctx, "rev-parse", "HEAD")
}

// ResolveRef resolves a ref name to its full SHA.
func (g *Git) ResolveRef(ctx context.Context, ref string) (string, error) {
	out, err := g.Run(ctx, "rev-parse", ref)
	if err != nil {
		return "", ErrRefNotFound
	}
	return out, nil
}

// RevParseVerify reports whether ref resolves to a commit in this
// repository, without erroring when it does not. Any git failure is
// reported as false; a missing ref and a failed git call look the same.
func (g *Git) RevParseVerify(ctx context.Context, ref string) (string, bool) {
	out, err := g.Run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", false
	}
	return out, true
}

// CatFileType returns the object type ("blob", "tree", "commit", "tag") of
// ref, or an error if it does not exist.
func (g *Git) CatFileType(ctx context.Context, ref string) (string, error) {
	out, err := g.Run(ctx, "cat-file", "-t", ref)
	if err != nil {
		return "", ErrRefNotFound
	}
	return out, nil
}
