package btcforge

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Environment is the full replacement environment handed to a child process.
// Builders never mutate their base: every call returns an independent copy,
// so one pipeline run cannot leak variables into another.
type Environment map[string]string

// CurrentEnvironment snapshots the orchestrator's own environment, keeping
// ambient variables like HOME, USER and TMPDIR available to child processes.
func CurrentEnvironment() Environment {
	env := make(Environment)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Clone returns an independent copy.
func (e Environment) Clone() Environment {
	out := make(Environment, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Slice renders the environment in the KEY=VALUE form expected by exec.Cmd,
// sorted for deterministic child environments.
func (e Environment) Slice() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Homebrew discovery. Both prefixes are checked, Apple Silicon first.

var brewCandidates = []string{"/opt/homebrew/bin/brew", "/usr/local/bin/brew"}

// FindBrew returns the path of the brew executable, or "" if not installed.
func FindBrew() string {
	for _, candidate := range brewCandidates {
		if isExecutableFile(candidate) {
			return candidate
		}
	}
	return ""
}

// BrewPrefix derives the installation prefix from the brew binary path.
func BrewPrefix(brew string) string {
	if strings.Contains(brew, "/opt/homebrew") {
		return "/opt/homebrew"
	}
	return "/usr/local"
}

// BuildEnvironment constructs the process environment for compilation steps.
//
// Search-path order: the brew prefix bin first, then both standard Homebrew
// locations (so the same binary works on Apple Silicon and Intel no matter
// which was detected), ~/.cargo/bin when present on disk, the first existing
// LLVM candidate bin, the inherited PATH, and finally the OS fallback
// directories. The result is deduplicated keeping first occurrence.
//
// When an LLVM prefix is found, its lib directory is exported as both
// LIBCLANG_PATH and DYLD_LIBRARY_PATH; bindgen-based builds (Electrs'
// librocksdb-sys) need libclang at build time.
//
// No side effects beyond reading the base mapping and probing directory
// existence.
func BuildEnvironment(base Environment, brewPrefix string) Environment {
	env := base.Clone()

	home := env["HOME"]
	if home == "" {
		home = "/Users/user"
	}

	var parts []string
	if brewPrefix != "" {
		parts = append(parts, filepath.Join(brewPrefix, "bin"))
	}
	parts = append(parts, "/opt/homebrew/bin", "/usr/local/bin")

	cargoBin := filepath.Join(home, ".cargo", "bin")
	if isDir(cargoBin) {
		parts = append(parts, cargoBin)
	}

	if llvm := findLLVMPrefix(brewPrefix); llvm != "" {
		parts = append(parts, filepath.Join(llvm, "bin"))
		lib := filepath.Join(llvm, "lib")
		env["LIBCLANG_PATH"] = lib
		env["DYLD_LIBRARY_PATH"] = lib
	}

	if existing := env["PATH"]; existing != "" {
		parts = append(parts, strings.Split(existing, ":")...)
	}
	parts = append(parts, "/usr/bin", "/bin", "/usr/sbin", "/sbin")

	env["PATH"] = joinSearchPath(parts)
	return env
}

// ConfigureEnvironment is the variant for Autotools and CMake builds. It
// assembles PKG_CONFIG_PATH from the known Homebrew install locations;
// without it, configure falls back to compiling probe programs for every
// dependency and appears to hang for minutes with no output. TERM is left
// alone on purpose: autoconf batches its output under TERM=dumb.
func ConfigureEnvironment(base Environment, brewPrefix string) Environment {
	env := BuildEnvironment(base, brewPrefix)
	env["PKG_CONFIG_PATH"] = mergePkgConfigPath(env["PKG_CONFIG_PATH"], brewPrefix)
	return env
}

// CargoEnvironment is the variant for cargo builds. Cargo is indifferent to
// TERM, so color and interactive progress are switched off outright to keep
// the streamed log parseable.
func CargoEnvironment(base Environment, brewPrefix string) Environment {
	env := BuildEnvironment(base, brewPrefix)
	env["TERM"] = "dumb"
	env["NO_COLOR"] = "1"
	env["CARGO_TERM_COLOR"] = "never"
	return env
}

// findLLVMPrefix probes the candidate LLVM install prefixes and returns the
// first whose bin directory exists, or "".
func findLLVMPrefix(brewPrefix string) string {
	var candidates []string
	if brewPrefix != "" {
		candidates = append(candidates, filepath.Join(brewPrefix, "opt", "llvm"))
	}
	candidates = append(candidates, "/opt/homebrew/opt/llvm", "/usr/local/opt/llvm")

	for _, candidate := range candidates {
		if isDir(filepath.Join(candidate, "bin")) {
			return candidate
		}
	}
	return ""
}

// mergePkgConfigPath merges a pre-existing PKG_CONFIG_PATH with the fixed
// list of known pkg-config directories. Existing entries stay first; no
// duplicates.
func mergePkgConfigPath(existing, brewPrefix string) string {
	var parts []string
	if existing != "" {
		parts = append(parts, strings.Split(existing, ":")...)
	}
	if brewPrefix != "" {
		parts = append(parts,
			filepath.Join(brewPrefix, "lib", "pkgconfig"),
			filepath.Join(brewPrefix, "share", "pkgconfig"),
		)
	}
	parts = append(parts,
		"/opt/homebrew/lib/pkgconfig",
		"/usr/local/lib/pkgconfig",
		"/usr/lib/pkgconfig",
	)
	return joinSearchPath(parts)
}

// joinSearchPath joins path components with ":", dropping empty entries and
// duplicates while preserving first-seen order.
func joinSearchPath(parts []string) string {
	seen := make(map[string]bool, len(parts))
	deduped := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		deduped = append(deduped, p)
	}
	return strings.Join(deduped, ":")
}
