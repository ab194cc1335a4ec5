package btcforge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGit installs a fake git into a fresh directory and returns an
// environment whose PATH resolves it. Every invocation is appended to the
// calls file; `describe` answers with $GIT_DESCRIBE and `clone` creates its
// destination directory.
func stubGit(t *testing.T) (Environment, string) {
	t.Helper()
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")

	script := `#!/bin/sh
echo "$*" >> "$GIT_CALLS"
case "$*" in
*describe*)
	echo "${GIT_DESCRIBE:-v1.0}"
	;;
clone*)
	for a; do last="$a"; done
	mkdir -p "$last"
	;;
esac
exit 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "git"), []byte(script), 0o755))

	env := Environment{
		"PATH":      dir + ":/usr/bin:/bin",
		"GIT_CALLS": calls,
	}
	return env, calls
}

func gitCalls(t *testing.T, calls string) []string {
	t.Helper()
	data, err := os.ReadFile(calls)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func newSyncPipeline(t *testing.T) (*Pipeline, *eventRecorder, func()) {
	t.Helper()
	sink, rec, stop := newTestSink(t)
	p := &Pipeline{
		Runner:    &Runner{Sink: sink},
		Sink:      sink,
		BuildRoot: t.TempDir(),
		Cores:     1,
	}
	return p, rec, stop
}

func TestSyncSourceRejectsInvalidTag(t *testing.T) {
	p, _, _ := newSyncPipeline(t)
	env, calls := stubGit(t)

	for _, tag := range []string{"v1.0;rm -rf /", "a b", "$(true)", "", "v1.0\n"} {
		err := p.syncSource(context.Background(), filepath.Join(p.BuildRoot, "src"), tag, "https://example.com/r.git", env)
		var tagErr *InvalidTagError
		require.ErrorAs(t, err, &tagErr, "tag %q", tag)
	}
	assert.Empty(t, gitCalls(t, calls), "no git process may run for a rejected tag")
}

func TestSyncSourceClonesWhenMissing(t *testing.T) {
	p, _, _ := newSyncPipeline(t)
	env, calls := stubGit(t)
	target := filepath.Join(p.BuildRoot, "bitcoin-1.0")

	err := p.syncSource(context.Background(), target, "v1.0", "https://example.com/r.git", env)
	require.NoError(t, err)

	got := gitCalls(t, calls)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "clone --depth 1 --branch v1.0 --single-branch")
	assert.DirExists(t, target)
}

func TestSyncSourceNoopWhenTagMatches(t *testing.T) {
	p, _, _ := newSyncPipeline(t)
	env, calls := stubGit(t)
	env["GIT_DESCRIBE"] = "v1.0"
	target := filepath.Join(p.BuildRoot, "bitcoin-1.0")
	require.NoError(t, os.MkdirAll(target, 0o755))

	err := p.syncSource(context.Background(), target, "v1.0", "https://example.com/r.git", env)
	require.NoError(t, err)

	for _, call := range gitCalls(t, calls) {
		assert.NotContains(t, call, "clone")
	}
}

func TestSyncSourceReclonesOnTagMismatch(t *testing.T) {
	p, _, _ := newSyncPipeline(t)
	env, calls := stubGit(t)
	env["GIT_DESCRIBE"] = "v0.9"
	target := filepath.Join(p.BuildRoot, "bitcoin-1.0")
	sentinel := filepath.Join(target, "stale-file")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(sentinel, []byte("old"), 0o644))

	err := p.syncSource(context.Background(), target, "v1.0", "https://example.com/r.git", env)
	require.NoError(t, err)

	assert.NoFileExists(t, sentinel, "stale checkout must be removed, not patched")
	cloned := false
	for _, call := range gitCalls(t, calls) {
		if strings.Contains(call, "clone") {
			cloned = true
		}
	}
	assert.True(t, cloned)
}
