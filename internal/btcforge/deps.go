package btcforge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Homebrew formulas required for Bitcoin Core (autotools + cmake) and
// Electrs (cargo + rocksdb bindgen).
var brewFormulas = []string{
	"automake", "libtool", "pkg-config", "boost",
	"miniupnpc", "zeromq", "sqlite", "python", "cmake",
	"llvm", "libevent", "rocksdb", "rust", "git",
}

// CheckDependencies verifies every required Homebrew formula, offers to
// install the missing ones through the confirmation protocol, and checks the
// Rust toolchain. All narration goes through the sink; the final state is
// surfaced as a Notify.
func (p *Pipeline) CheckDependencies(ctx context.Context, brew string, env Environment) error {
	p.Sink.Log("\n=== Checking System Dependencies ===\n")
	p.Sink.Logf("Homebrew found at: %s\n", brew)

	p.Sink.Log("\nChecking Homebrew packages...\n")
	var missing []string
	for _, formula := range brewFormulas {
		if _, ok := probe(env, brew, "list", formula); ok {
			p.Sink.Logf("  ok %s\n", formula)
		} else {
			p.Sink.Logf("  MISSING %s\n", formula)
			missing = append(missing, formula)
		}
	}

	if len(missing) > 0 {
		p.Sink.Logf("\nMissing Homebrew packages: %s\n", strings.Join(missing, ", "))

		if p.Confirm.Ask("Install Missing Dependencies", installPrompt(missing)) {
			for _, formula := range missing {
				p.Sink.Logf("\nInstalling %s...\n", formula)
				install := fmt.Sprintf("%s install %s", shellQuote(brew), shellQuote(formula))
				if err := p.Runner.Shell(ctx, install, "", env); err != nil {
					p.Sink.Logf("Failed to install %s: %v\n", formula, err)
					p.Sink.Notify("Installation Failed",
						fmt.Sprintf("Failed to install %s:\n%v", formula, err), true)
				} else {
					p.Sink.Logf("%s installed successfully\n", formula)
				}
			}
		} else {
			p.Sink.Log("\nDependencies not installed. Compilation may fail.\n")
		}
	} else {
		p.Sink.Log("\nAll Homebrew packages are installed.\n")
	}

	rustOK := p.checkRustToolchain(ctx, brew, env)

	p.Sink.Log("\n=== Dependency Check Complete ===\n")
	if rustOK {
		p.Sink.Notify("Dependency Check",
			"All dependencies are installed and ready.\nYou can now proceed with compilation.", false)
	} else {
		p.Sink.Notify("Dependency Check",
			"Some dependencies need attention; check the log.\nYou may need to restart your shell after installing Rust.", false)
	}
	return nil
}

// checkRustToolchain probes rustc and cargo and, when either is missing,
// attempts a brew install followed by a re-probe.
func (p *Pipeline) checkRustToolchain(ctx context.Context, brew string, env Environment) bool {
	p.Sink.Log("\n=== Checking Rust Toolchain ===\n")

	rustcOK := p.probeTool(env, "rustc")
	cargoOK := p.probeTool(env, "cargo")
	if rustcOK && cargoOK {
		return true
	}

	p.Sink.Log("\nRust toolchain not found or incomplete; installing via Homebrew...\n")
	if _, ok := probe(env, brew, "info", "rust"); !ok {
		p.Sink.Log("Rust formula not found in Homebrew\n")
		p.Sink.Notify("Rust Installation Failed",
			"Could not install Rust via Homebrew.\nInstall manually from https://rustup.rs and restart.", true)
		return false
	}

	install := fmt.Sprintf("%s install rust", shellQuote(brew))
	if err := p.Runner.Shell(ctx, install, "", env); err != nil {
		p.Sink.Logf("Failed to install Rust: %v\n", err)
		p.Sink.Notify("Installation Error",
			fmt.Sprintf("Failed to install Rust: %v\nInstall manually from https://rustup.rs", err), true)
		return false
	}

	// Give brew's post-install linking a moment before re-probing.
	p.Sink.Log("\nVerifying Rust installation...\n")
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return false
	}

	if p.probeTool(env, "rustc") && p.probeTool(env, "cargo") {
		return true
	}
	p.Sink.Log("Rust installed but its binaries are not in PATH; restart your shell or add ~/.cargo/bin to PATH\n")
	return false
}

func (p *Pipeline) probeTool(env Environment, tool string) bool {
	if v, ok := probe(env, tool, "--version"); ok {
		p.Sink.Logf("%s found: %s\n", tool, v)
		return true
	}
	p.Sink.Logf("%s not found in PATH\n", tool)
	return false
}

func installPrompt(missing []string) string {
	count := len(missing)
	preview := missing
	extra := ""
	if count > 5 {
		preview = missing[:5]
		extra = fmt.Sprintf(", and %d more", count-5)
	}
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return fmt.Sprintf("Found %d missing package%s:\n\n%s%s\n\nInstall all missing packages now?",
		count, plural, strings.Join(preview, ", "), extra)
}
