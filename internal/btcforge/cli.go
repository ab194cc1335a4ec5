package btcforge

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// isCriticalAtomic is 1 while artifacts are being collected, 0 otherwise.
var isCriticalAtomic atomic.Int32

func printHelp() {
	colNote.Println("btcforge - bitcoin core and electrs build orchestrator")
	fmt.Println()
	fmt.Println("Usage: btcforge <command> [args...]")
	fmt.Println()
	fmt.Println("Commands:")
	commands := [][2]string{
		{"build, b", "fetch sources and build (see build flags below)"},
		{"versions, v", "list the newest stable release tags"},
		{"deps, d", "check and optionally install Homebrew build dependencies"},
		{"upload, u [files...]", "push artifact archives to the configured mirror"},
		{"version", "print version information"},
		{"help", "show this help"},
	}
	for _, c := range commands {
		colArrow.Print("  ")
		colSuccess.Printf("%-22s", c[0])
		fmt.Println(c[1])
	}
	fmt.Println()
	fmt.Println("Build flags:")
	fmt.Println("  -target bitcoin|electrs|both   what to build (default bitcoin)")
	fmt.Println("  -tag <tag>                     bitcoin release tag (default: newest stable)")
	fmt.Println("  -electrs-tag <tag>             electrs release tag (default: newest stable)")
	fmt.Println("  -cores <n>                     parallel build jobs")
	fmt.Println("  -dir <path>                    build root directory")
	fmt.Println("  -tui                           full-screen build monitor")
	fmt.Println("  -archive                       pack artifacts into a .tar.xz")
	fmt.Println("  -keep-going                    continue to electrs after a bitcoin failure")
}

// newestStableTag fetches releases and returns the first stable tag.
func newestStableTag(ctx context.Context, project Project) (string, error) {
	tags, err := FetchVersions(ctx, project)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("no stable releases found for %s", project)
	}
	return tags[0], nil
}

// printSystemBanner logs host details the way a build log should start.
func printSystemBanner(env Environment, brew string) {
	if out, ok := probe(env, "sw_vers", "-productVersion"); ok {
		colArrow.Print("-> ")
		colInfo.Printf("macOS %s\n", out)
	}
	if brew != "" {
		colArrow.Print("-> ")
		colInfo.Printf("Homebrew at %s\n", brew)
	} else {
		colWarn.Println("Homebrew not found; builds may miss dependencies")
	}
	colArrow.Print("-> ")
	colInfo.Printf("Build root %s, %d cores\n", buildRoot, buildCores)
}

func runVersions(ctx context.Context) error {
	events := make(chan Event, 64)
	confirm := NewConfirmer()

	done := make(chan error, 1)
	go func() {
		defer close(events)
		sink := Sink(events)
		var firstErr error
		for _, project := range []Project{ProjectBitcoin, ProjectElectrs} {
			tags, err := FetchVersions(ctx, project)
			if err != nil {
				sink.Notify("Fetch Failed",
					fmt.Sprintf("Could not fetch %s releases:\n%v", project, err), true)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			events <- VersionsLoaded{Project: project, Tags: tags}
		}
		sink.Finished()
		done <- firstErr
	}()

	runConsoleUI(events, confirm.Requests())
	return <-done
}

func runDeps(ctx context.Context) error {
	env := CurrentEnvironment()
	brew := FindBrew()
	if brew == "" {
		return &MissingToolchainError{Tool: "brew", Hint: "install Homebrew from https://brew.sh"}
	}
	prefix := BrewPrefix(brew)
	buildEnv := BuildEnvironment(env, prefix)

	events := make(chan Event, 256)
	confirm := NewConfirmer()
	runner := &Runner{Sink: Sink(events)}
	pipeline := &Pipeline{
		Runner:    runner,
		Sink:      Sink(events),
		Confirm:   confirm,
		BuildRoot: buildRoot,
		Cores:     buildCores,
	}

	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- pipeline.CheckDependencies(ctx, brew, buildEnv)
	}()
	runConsoleUI(events, confirm.Requests())
	return <-done
}

type buildFlags struct {
	target     string
	tag        string
	electrsTag string
	cores      int
	dir        string
	tui        bool
	archive    bool
	keepGoing  bool
}

func parseBuildFlags(args []string) (*buildFlags, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	bf := &buildFlags{}
	fs.StringVar(&bf.target, "target", "bitcoin", "bitcoin, electrs or both")
	fs.StringVar(&bf.tag, "tag", "", "bitcoin release tag")
	fs.StringVar(&bf.electrsTag, "electrs-tag", "", "electrs release tag")
	fs.IntVar(&bf.cores, "cores", 0, "parallel build jobs")
	fs.StringVar(&bf.dir, "dir", "", "build root directory")
	fs.BoolVar(&bf.tui, "tui", false, "full-screen build monitor")
	fs.BoolVar(&bf.archive, "archive", false, "pack artifacts into a .tar.xz")
	fs.BoolVar(&bf.keepGoing, "keep-going", false, "continue past a bitcoin failure")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch bf.target {
	case "bitcoin", "electrs", "both":
	default:
		return nil, fmt.Errorf("invalid target %q (want bitcoin, electrs or both)", bf.target)
	}
	return bf, nil
}

func runBuild(ctx context.Context, cancel context.CancelFunc, args []string) error {
	bf, err := parseBuildFlags(args)
	if err != nil {
		return err
	}
	if bf.dir != "" {
		buildRoot = bf.dir
	}
	if bf.cores > 0 {
		buildCores = bf.cores
	}
	if bf.keepGoing {
		continueOnError = true
	}
	if bf.archive {
		archiveOutput = true
	}

	// Resolve tags up front so the build log starts with fixed versions.
	bitcoinTag := bf.tag
	electrsTag := bf.electrsTag
	if (bf.target == "bitcoin" || bf.target == "both") && bitcoinTag == "" {
		bitcoinTag, err = newestStableTag(ctx, ProjectBitcoin)
		if err != nil {
			return err
		}
		colArrow.Print("-> ")
		colInfo.Printf("Latest stable bitcoin release: %s\n", bitcoinTag)
	}
	if (bf.target == "electrs" || bf.target == "both") && electrsTag == "" {
		electrsTag, err = newestStableTag(ctx, ProjectElectrs)
		if err != nil {
			return err
		}
		colArrow.Print("-> ")
		colInfo.Printf("Latest stable electrs release: %s\n", electrsTag)
	}

	env := CurrentEnvironment()
	brew := FindBrew()
	prefix := ""
	if brew != "" {
		prefix = BrewPrefix(brew)
	}
	printSystemBanner(env, brew)
	debugf("brew prefix: %q\n", prefix)

	release, err := acquireBuildLock(buildRoot)
	if err != nil {
		return err
	}
	defer release()

	events := make(chan Event, 256)
	confirm := NewConfirmer()
	runner := &Runner{Sink: Sink(events)}
	pipeline := &Pipeline{
		Runner:    runner,
		Sink:      Sink(events),
		Confirm:   confirm,
		BuildRoot: buildRoot,
		Cores:     buildCores,
	}
	req := BuildRequest{
		Target:          bf.target,
		BitcoinTag:      bitcoinTag,
		ElectrsTag:      electrsTag,
		ContinueOnError: continueOnError,
		Archive:         archiveOutput,
	}

	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- pipeline.Run(ctx, req, env, prefix)
	}()

	if bf.tui {
		if err := runBuildTUI(events, confirm.Requests()); err != nil {
			colWarn.Printf("Monitor error: %v\n", err)
		}
		// The monitor may return while the pipeline is still running:
		// cancel it and keep draining so no task blocks on a send.
		cancel()
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return <-done
				}
			case req := <-confirm.Requests():
				close(req.Reply)
			}
		}
	}

	runConsoleUI(events, confirm.Requests())
	return <-done
}

// Main is the btcforge entry point.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					fmt.Printf("\n[WARNING] Artifact collection in progress. Press Ctrl+C AGAIN to force exit NOW.\n")
					select {
					case <-sigs:
						fmt.Println("\n[FATAL] Forced immediate exit.")
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					fmt.Printf("\n[INFO] Received %v. Cancelling build gracefully...\n", sig)
					cancel()
					time.Sleep(100 * time.Millisecond)
					select {
					case <-sigs:
						fmt.Println("\n[FATAL] Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(500 * time.Millisecond):
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	ConfigFile = defaultConfigPath()
	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		colWarn.Printf("Warning: could not read config: %v\n", err)
	}
	initConfig(cfg)
	debugf("config file: %s\n", ConfigFile)

	var cmdErr error
	switch os.Args[1] {
	case "build", "b":
		cmdErr = runBuild(ctx, cancel, os.Args[2:])
	case "versions", "v":
		cmdErr = runVersions(ctx)
	case "deps", "d":
		cmdErr = runDeps(ctx)
	case "upload", "u":
		args := os.Args[2:]
		listOnly := len(args) > 0 && args[0] == "-list"
		if listOnly {
			args = args[1:]
		}
		cmdErr = runUpload(ctx, cfg, args, listOnly)
	case "version":
		fmt.Printf("btcforge %s (built %s)\n", version, buildDate)
	case "help", "-h", "--help":
		printHelp()
	default:
		colError.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}

	if cmdErr != nil {
		if errors.Is(cmdErr, context.Canceled) {
			colWarn.Println("Aborted.")
			os.Exit(130)
		}
		colError.Printf("Error: %v\n", cmdErr)
		os.Exit(1)
	}
}
