package btcforge

import (
	"context"
	"fmt"
	"os"
	"regexp"
)

// validTag is the sole injection defense: a tag that passes is safe to
// interpolate into a shell command (it still gets quoted).
var validTag = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// syncSource ensures targetDir holds exactly the requested tag.
//
// An existing checkout is queried with `git describe --tags --exact-match`;
// on a match the sync is a no-op with no network access. On a mismatch the
// checkout is removed and recloned, never patched in place; a partially
// updated tree is worse than a slow clone.
func (p *Pipeline) syncSource(ctx context.Context, targetDir, tag, repoURL string, env Environment) error {
	if !validTag.MatchString(tag) {
		return &InvalidTagError{Tag: tag}
	}

	if _, err := os.Stat(targetDir); err == nil {
		current, ok := probe(env, "git", "-C", targetDir, "describe", "--tags", "--exact-match")
		if ok && current == tag {
			p.Sink.Logf("Source already at %s: %s\n", tag, targetDir)
			return nil
		}
		p.Sink.Logf("Existing checkout is at %q, not %s; removing %s\n", current, tag, targetDir)
		if err := os.RemoveAll(targetDir); err != nil {
			return &FilesystemError{Op: "remove", Path: targetDir, Err: err}
		}
	}

	p.Sink.Logf("\nCloning %s at %s...\n", repoURL, tag)
	// Shallow, single-branch, and never blobless: partial clones defer
	// object downloads to first access, which makes the configure step look
	// hung with no network activity.
	clone := fmt.Sprintf("git clone --depth 1 --branch %s --single-branch %s %s",
		shellQuote(tag), shellQuote(repoURL), shellQuote(targetDir))
	if err := p.Runner.Shell(ctx, clone, p.BuildRoot, env); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	p.Sink.Logf("Source cloned to %s\n", targetDir)
	return nil
}
