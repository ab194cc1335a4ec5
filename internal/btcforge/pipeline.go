package btcforge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Project identifies a build target.
type Project string

const (
	ProjectBitcoin Project = "bitcoin"
	ProjectElectrs Project = "electrs"
)

const (
	bitcoinRepo = "https://github.com/bitcoin/bitcoin.git"
	electrsRepo = "https://github.com/romanz/electrs.git"
)

// Pipeline sequences one or two project builds: sync, configure, build,
// collect. Each run owns its environment copies and working directories;
// nothing mutable is shared with concurrent runs.
type Pipeline struct {
	Runner    *Runner
	Sink      Sink
	Confirm   *Confirmer
	BuildRoot string
	Cores     int
}

// BuildRequest describes one pipeline invocation.
type BuildRequest struct {
	Target     string // "bitcoin", "electrs" or "both"
	BitcoinTag string
	ElectrsTag string

	// ContinueOnError keeps a "both" run going after the first project
	// fails. Off by default: a broken toolchain usually fails both.
	ContinueOnError bool

	// Archive produces a .tar.xz next to each collected binaries directory.
	Archive bool
}

// Run executes the request, reporting every outcome through the sink and
// returning the first build failure. TaskFinished is emitted exactly once,
// success or failure.
func (p *Pipeline) Run(ctx context.Context, req BuildRequest, base Environment, brewPrefix string) error {
	defer p.Sink.Finished()

	p.Sink.Progress(0.05)

	var outputDirs []string
	var firstErr error

	if req.Target == "bitcoin" || req.Target == "both" {
		dir, err := p.BuildBitcoin(ctx, req.BitcoinTag, base, brewPrefix)
		if err != nil {
			p.reportFailure(err)
			firstErr = err
		} else {
			outputDirs = append(outputDirs, dir)
		}
	}

	if req.Target == "electrs" || req.Target == "both" {
		if firstErr != nil && !req.ContinueOnError {
			p.Sink.Log("\nSkipping Electrs build after earlier failure.\n")
		} else {
			dir, err := p.BuildElectrs(ctx, req.ElectrsTag, base, brewPrefix)
			if err != nil {
				p.reportFailure(err)
				if firstErr == nil {
					firstErr = err
				}
			} else {
				outputDirs = append(outputDirs, dir)
			}
		}
	}

	if req.Archive {
		for _, dir := range outputDirs {
			archive, err := archiveArtifacts(dir)
			if err != nil {
				p.Sink.Logf("Archiving %s failed: %v\n", dir, err)
				continue
			}
			p.Sink.Logf("Archived binaries: %s\n", archive)
		}
	}

	if firstErr == nil && len(outputDirs) > 0 {
		p.Sink.Progress(1.0)
		var list strings.Builder
		for _, dir := range outputDirs {
			fmt.Fprintf(&list, "  %s\n", dir)
		}
		p.Sink.Notify("Compilation Complete",
			fmt.Sprintf("Binaries saved to:\n%s", list.String()), false)
	}
	return firstErr
}

// reportFailure logs the error and surfaces it as an error alert; every
// failure reaching the pipeline boundary does both.
func (p *Pipeline) reportFailure(err error) {
	p.Sink.Logf("\nCompilation failed: %v\n", err)
	p.Sink.Notify("Compilation Failed", err.Error(), true)
}

// BuildBitcoin compiles Bitcoin Core at the given tag and returns the
// directory holding the collected binaries.
func (p *Pipeline) BuildBitcoin(ctx context.Context, tag string, base Environment, brewPrefix string) (string, error) {
	sep := strings.Repeat("=", 60)
	p.Sink.Logf("\n%s\nCOMPILING BITCOIN CORE %s\n%s\n", sep, tag, sep)

	env := ConfigureEnvironment(base, brewPrefix)

	versionClean := strings.TrimPrefix(tag, "v")
	srcDir := filepath.Join(p.BuildRoot, "bitcoin-"+versionClean)

	if err := os.MkdirAll(p.BuildRoot, 0o755); err != nil {
		return "", &FilesystemError{Op: "create", Path: p.BuildRoot, Err: err}
	}
	if err := p.syncSource(ctx, srcDir, tag, bitcoinRepo, env); err != nil {
		return "", err
	}
	p.Sink.Progress(0.3)

	p.Sink.Logf("\nEnvironment: PATH=%s...\nBuilding node-only (wallet support disabled)\n",
		pathPreview(env["PATH"]))

	system := bitcoinBuildSystem(tag)
	p.Sink.Logf("\nBuilding with %s...\n", system)

	var artifacts []string
	var err error
	switch system {
	case buildCMake:
		artifacts, err = p.buildBitcoinCMake(ctx, srcDir, env)
	default:
		artifacts, err = p.buildBitcoinAutotools(ctx, srcDir, env)
	}
	if err != nil {
		return "", err
	}
	p.Sink.Progress(0.9)

	outputDir := filepath.Join(p.BuildRoot, "binaries", "bitcoin-"+versionClean)
	copied, err := p.copyArtifacts(outputDir, artifacts)
	if err != nil {
		return "", err
	}
	if len(copied) == 0 {
		return "", &NoArtifactsError{Dir: outputDir}
	}
	if err := writeChecksumManifest(outputDir, copied); err != nil {
		p.Sink.Logf("Checksum manifest failed: %v\n", err)
	}
	p.Sink.Progress(1.0)

	p.Sink.Logf("\n%s\nBITCOIN CORE %s COMPILED SUCCESSFULLY\n%s\nBinaries: %s (%d files)\n\n",
		sep, tag, sep, outputDir, len(copied))
	return outputDir, nil
}

func (p *Pipeline) buildBitcoinCMake(ctx context.Context, srcDir string, env Environment) ([]string, error) {
	p.Sink.Log("\nConfiguring (wallet support disabled for node-only build)...\n")
	if err := p.Runner.Shell(ctx,
		"cmake -B build -DENABLE_WALLET=OFF -DENABLE_IPC=OFF", srcDir, env); err != nil {
		return nil, fmt.Errorf("cmake configure failed: %w", err)
	}
	p.Sink.Progress(0.5)

	p.Sink.Logf("\nCompiling with %d cores...\n", p.Cores)
	if err := p.Runner.Shell(ctx,
		fmt.Sprintf("cmake --build build -j%d", p.Cores), srcDir, env); err != nil {
		return nil, fmt.Errorf("cmake build failed: %w", err)
	}

	// The set of tools under build/bin changed across releases
	// (bitcoin-util appeared in v22, others come and go), so discover
	// whatever executables the build actually produced.
	return scanExecutables(filepath.Join(srcDir, "build", "bin"))
}

func (p *Pipeline) buildBitcoinAutotools(ctx context.Context, srcDir string, env Environment) ([]string, error) {
	p.Sink.Log("\nRunning autogen.sh...\n")
	if err := p.Runner.Shell(ctx, "./autogen.sh", srcDir, env); err != nil {
		return nil, fmt.Errorf("autogen.sh failed: %w", err)
	}

	p.Sink.Log("\nConfiguring (wallet support disabled for node-only build)...\n")
	if err := p.Runner.Shell(ctx,
		"./configure --disable-wallet --disable-gui", srcDir, env); err != nil {
		return nil, fmt.Errorf("./configure failed: %w", err)
	}
	p.Sink.Progress(0.5)

	p.Sink.Logf("\nCompiling with %d cores...\n", p.Cores)
	if err := p.Runner.Shell(ctx,
		fmt.Sprintf("make -j%d", p.Cores), srcDir, env); err != nil {
		return nil, fmt.Errorf("make failed: %w", err)
	}

	binDir := filepath.Join(srcDir, "bin")
	return []string{
		filepath.Join(binDir, "bitcoind"),
		filepath.Join(binDir, "bitcoin-cli"),
		filepath.Join(binDir, "bitcoin-tx"),
		filepath.Join(binDir, "bitcoin-wallet"),
	}, nil
}

// BuildElectrs compiles Electrs at the given tag and returns the directory
// holding the collected binary.
func (p *Pipeline) BuildElectrs(ctx context.Context, tag string, base Environment, brewPrefix string) (string, error) {
	sep := strings.Repeat("=", 60)
	p.Sink.Logf("\n%s\nCOMPILING ELECTRS %s\n%s\n", sep, tag, sep)

	env := CargoEnvironment(base, brewPrefix)

	p.Sink.Log("\nVerifying Rust installation...\n")
	if v, ok := probe(env, "cargo", "--version"); ok {
		p.Sink.Logf("cargo found: %s\n", v)
	} else {
		msg := "Cargo not found in PATH.\n\nElectrs requires Rust/Cargo to compile.\nRun 'btcforge deps' to install the toolchain, then retry."
		p.Sink.Log(msg + "\n")
		p.Sink.Notify("Rust Not Found", msg, true)
		return "", &MissingToolchainError{Tool: "cargo", Hint: "run 'btcforge deps'"}
	}
	if v, ok := probe(env, "rustc", "--version"); ok {
		p.Sink.Logf("rustc found: %s\n", v)
	} else {
		p.Sink.Log("Warning: rustc check failed, but cargo found. Proceeding...\n")
	}

	versionClean := strings.TrimPrefix(tag, "v")
	srcDir := filepath.Join(p.BuildRoot, "electrs-"+versionClean)

	if err := os.MkdirAll(p.BuildRoot, 0o755); err != nil {
		return "", &FilesystemError{Op: "create", Path: p.BuildRoot, Err: err}
	}
	if err := p.syncSource(ctx, srcDir, tag, electrsRepo, env); err != nil {
		return "", err
	}
	p.Sink.Progress(0.3)

	p.Sink.Logf("\nBuilding with %s (%d jobs)...\n", buildCargo, p.Cores)
	p.Sink.Logf("Environment: PATH=%s...\n", pathPreview(env["PATH"]))
	if lcp := env["LIBCLANG_PATH"]; lcp != "" {
		p.Sink.Logf("LIBCLANG_PATH=%s\n", lcp)
	}

	if err := p.Runner.Shell(ctx,
		fmt.Sprintf("cargo build --release --jobs %d", p.Cores), srcDir, env); err != nil {
		return "", fmt.Errorf("cargo build --release failed: %w", err)
	}
	p.Sink.Progress(0.85)

	p.Sink.Log("\nCollecting binaries...\n")
	outputDir := filepath.Join(p.BuildRoot, "binaries", "electrs-"+versionClean)
	copied, err := p.copyArtifacts(outputDir, []string{
		filepath.Join(srcDir, "target", "release", "electrs"),
	})
	if err != nil {
		return "", err
	}
	if len(copied) == 0 {
		return "", &NoArtifactsError{Dir: outputDir}
	}
	if err := writeChecksumManifest(outputDir, copied); err != nil {
		p.Sink.Logf("Checksum manifest failed: %v\n", err)
	}
	p.Sink.Progress(1.0)

	p.Sink.Logf("\n%s\nELECTRS %s COMPILED SUCCESSFULLY\n%s\nBinary: %s/electrs\n\n",
		sep, tag, sep, outputDir)
	return outputDir, nil
}

// pathPreview truncates a PATH value for log narration.
func pathPreview(path string) string {
	const max = 150
	if len(path) <= max {
		return path
	}
	return path[:max]
}
