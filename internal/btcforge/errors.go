package btcforge

import "fmt"

// InvalidTagError is returned when a version tag contains characters outside
// the allow-list. The tag is rejected before it gets anywhere near a shell.
type InvalidTagError struct {
	Tag string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid version tag %q: only [A-Za-z0-9._-] is allowed", e.Tag)
}

// SpawnError means the shell or child process could not be started at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// CommandError reports a command that ran but did not exit 0. Either Code is
// set (non-zero exit) or Signal names the terminating signal.
type CommandError struct {
	Command string
	Code    int
	Signal  string
}

func (e *CommandError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("command terminated by %s: %s", e.Signal, e.Command)
	}
	return fmt.Sprintf("command failed (exit %d): %s", e.Code, e.Command)
}

// MissingToolchainError is raised when a required build tool is not
// discoverable in the build environment. No command was attempted.
type MissingToolchainError struct {
	Tool string
	Hint string
}

func (e *MissingToolchainError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s not found in PATH (%s)", e.Tool, e.Hint)
	}
	return fmt.Sprintf("%s not found in PATH", e.Tool)
}

// NoArtifactsError means the build reported success but produced nothing
// collectible.
type NoArtifactsError struct {
	Dir string
}

func (e *NoArtifactsError) Error() string {
	return fmt.Sprintf("build succeeded but no binaries were collected into %s", e.Dir)
}

// NetworkError wraps a failed release-metadata fetch.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FilesystemError wraps a failed directory creation, removal or copy.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
