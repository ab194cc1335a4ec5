package btcforge

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder collects everything sent to a test sink.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// logText concatenates every LogLine, skipping the first skip entries.
func (r *eventRecorder) logText(skip int) string {
	var sb strings.Builder
	seen := 0
	for _, ev := range r.snapshot() {
		if line, ok := ev.(LogLine); ok {
			if seen < skip {
				seen++
				continue
			}
			sb.WriteString(line.Text)
		}
	}
	return sb.String()
}

func (r *eventRecorder) count(match func(Event) bool) int {
	n := 0
	for _, ev := range r.snapshot() {
		if match(ev) {
			n++
		}
	}
	return n
}

// newTestSink returns a sink backed by a collector goroutine. The returned
// stop func closes the channel and waits for the collector; it is safe to
// call more than once and registered as cleanup.
func newTestSink(t *testing.T) (Sink, *eventRecorder, func()) {
	t.Helper()
	ch := make(chan Event, 4096)
	rec := &eventRecorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			rec.add(ev)
		}
	}()
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(ch)
			<-done
		})
	}
	t.Cleanup(stop)
	return Sink(ch), rec, stop
}

func testEnv() Environment {
	return Environment{"PATH": "/usr/bin:/bin"}
}

func TestShellSuccessStreamsOutput(t *testing.T) {
	sink, rec, stop := newTestSink(t)
	r := &Runner{Sink: sink}

	err := r.Shell(context.Background(), "echo hello", "", testEnv())
	require.NoError(t, err)

	stop()
	out := rec.logText(0)
	assert.Contains(t, out, "$ echo hello")
	assert.Contains(t, out, "hello\n")
}

func TestShellExitCode(t *testing.T) {
	sink, _, _ := newTestSink(t)
	r := &Runner{Sink: sink}

	err := r.Shell(context.Background(), "exit 3", "", testEnv())
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.Code)
	assert.Empty(t, cmdErr.Signal)
}

func TestShellSignalled(t *testing.T) {
	sink, _, _ := newTestSink(t)
	r := &Runner{Sink: sink}

	err := r.Shell(context.Background(), "kill -9 $$", "", testEnv())
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "killed", cmdErr.Signal)
}

func TestShellSpawnError(t *testing.T) {
	sink, _, _ := newTestSink(t)
	r := &Runner{Sink: sink}

	err := r.Shell(context.Background(), "true", filepath.Join(t.TempDir(), "missing"), testEnv())
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestShellCancellationKillsProcessGroup(t *testing.T) {
	sink, _, _ := newTestSink(t)
	r := &Runner{Sink: sink}

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	start := time.Now()
	err := r.Shell(ctx, "sleep 30", "", testEnv())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "command aborted")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestShellDrainsBothPipesConcurrently(t *testing.T) {
	sink, rec, stop := newTestSink(t)
	r := &Runner{Sink: sink}

	const n = 100000
	command := "(head -c 100000 /dev/zero | tr '\\0' x) & " +
		"(head -c 100000 /dev/zero | tr '\\0' y >&2) & wait"
	err := r.Shell(context.Background(), command, "", testEnv())
	require.NoError(t, err)

	stop()
	// Skip the echoed command line; it contains x and y itself.
	out := rec.logText(1)
	assert.Equal(t, n, strings.Count(out, "x"))
	assert.Equal(t, n, strings.Count(out, "y"))
}

func TestSanitizeOutput(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("plain\n"), "plain\n"},
		{[]byte("a\r\nb"), "a\nb"},
		{[]byte("progress 50%\rprogress 100%\n"), "progress 50%\rprogress 100%\n"},
		{[]byte{'o', 'k', 0xff, '\n'}, "ok�\n"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sanitizeOutput(c.in))
	}
}

// chunkReader hands out one predefined chunk per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestDrainJoinsCRLFSplitAcrossReads(t *testing.T) {
	sink, rec, stop := newTestSink(t)
	r := &Runner{Sink: sink}

	r.drain(&chunkReader{chunks: [][]byte{[]byte("one\r"), []byte("\ntwo\n")}})

	stop()
	assert.Equal(t, "one\ntwo\n", rec.logText(0))
}

func TestDrainEmitsTrailingCRAtEOF(t *testing.T) {
	sink, rec, stop := newTestSink(t)
	r := &Runner{Sink: sink}

	r.drain(&chunkReader{chunks: [][]byte{[]byte("spinner\r")}})

	stop()
	assert.Equal(t, "spinner\r", rec.logText(0))
}

func TestProbeResolvesAgainstGivenEnvironment(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "mytool")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho v9.9\n"), 0o755))

	env := Environment{"PATH": dir}
	out, ok := probe(env, "mytool", "--version")
	require.True(t, ok)
	assert.Equal(t, "v9.9", out)

	_, ok = probe(env, "no-such-tool")
	assert.False(t, ok)
}

func TestLookPathDirectPath(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))

	got, err := lookPath(Environment{}, script)
	require.NoError(t, err)
	assert.Equal(t, script, got)

	_, err = lookPath(Environment{}, filepath.Join(dir, "absent"))
	assert.Error(t, err)
}
