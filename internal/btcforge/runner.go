package btcforge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// Runner executes external build tools through `sh -c`, streaming their
// stdout and stderr to the event sink as the bytes arrive. The child's
// environment is always replaced wholesale by the given Environment; nothing
// leaks in from the orchestrator process.
type Runner struct {
	Sink Sink
}

// Shell runs command in a shell with dir as the working directory (empty
// keeps the caller's) and env as the complete child environment.
//
// Both output pipes are drained on their own goroutines; a child that fills
// one pipe's kernel buffer while the reader sits on the other would deadlock
// forever otherwise. Both drains are joined before the exit status is
// inspected, so every byte written before exit reaches the sink.
//
// Returns nil iff the command exits 0.
func (r *Runner) Shell(ctx context.Context, command, dir string, env Environment) error {
	r.Sink.Logf("\n$ %s\n", command)

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env.Slice()
	// Own process group so cancellation can kill the shell and everything
	// it spawned, not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Command: command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Command: command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &SpawnError{Command: command, Err: err}
	}

	pgid := cmd.Process.Pid
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			syscall.Kill(-pgid, syscall.SIGKILL)
		case <-done:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.drain(stdout)
	}()
	go func() {
		defer wg.Done()
		r.drain(stderr)
	}()

	// Wait must not run before both pipes hit EOF: it closes them.
	wg.Wait()
	waitErr := cmd.Wait()
	close(done)

	if waitErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("command aborted: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return &CommandError{Command: command, Signal: status.Signal().String()}
		}
		return &CommandError{Command: command, Code: exitErr.ExitCode()}
	}
	return &SpawnError{Command: command, Err: waitErr}
}

// drain forwards src to the sink chunk by chunk. A carriage return at the
// end of a chunk is withheld until the next read so a CRLF split across two
// reads still collapses to a single newline.
func (r *Runner) drain(src io.Reader) {
	buf := make([]byte, 32*1024)
	heldCR := false
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if heldCR {
				chunk = append([]byte{'\r'}, chunk...)
				heldCR = false
			}
			if chunk[len(chunk)-1] == '\r' && err == nil {
				heldCR = true
				chunk = chunk[:len(chunk)-1]
			}
			if len(chunk) > 0 {
				r.Sink.Log(sanitizeOutput(chunk))
			}
		}
		if err != nil {
			if heldCR {
				r.Sink.Log("\r")
			}
			return
		}
	}
}

// sanitizeOutput decodes raw child output permissively: invalid UTF-8 is
// replaced, CRLF collapses to LF, and a bare carriage return passes through
// untouched so consumers can keep terminal-style overwrite-current-line
// progress displays (git, cmake and cargo all emit these).
func sanitizeOutput(b []byte) string {
	s := strings.ToValidUTF8(string(b), "�")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// probe runs an argv-style command under the replacement environment and
// returns its trimmed stdout. The binary is resolved against env's PATH, not
// the orchestrator's. Used for version checks such as `cargo --version`.
func probe(env Environment, name string, args ...string) (string, bool) {
	path, err := lookPath(env, name)
	if err != nil {
		return "", false
	}
	cmd := exec.Command(path, args...)
	cmd.Env = env.Slice()
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

// lookPath resolves name against the PATH of the given environment.
func lookPath(env Environment, name string) (string, error) {
	if strings.Contains(name, "/") {
		if isExecutableFile(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s is not an executable file", name)
	}
	for _, dir := range strings.Split(env["PATH"], ":") {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH", name)
}
