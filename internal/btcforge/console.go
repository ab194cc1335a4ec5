package btcforge

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// interactiveMu ensures only one interactive prompt reads stdin at a time.
var interactiveMu sync.Mutex

// askForConfirmation prompts on stdin for a yes/no answer, defaulting to yes
// on empty input and no on read errors (Ctrl+D).
func askForConfirmation(p colorPrinter, format string, a ...any) bool {
	interactiveMu.Lock()
	defer interactiveMu.Unlock()

	reader := bufio.NewReader(os.Stdin)
	fullPrompt := fmt.Sprintf("%s [Y/n]: ", fmt.Sprintf(format, a...))

	for {
		cPrintf(p, "%s", fullPrompt)
		response, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response == "y" || response == "yes" || response == "" {
			return true
		}
		if response == "n" || response == "no" {
			return false
		}
		cPrintln(colWarn, "Invalid input.")
	}
}

// consoleUI renders pipeline events on a plain terminal: raw log lines to
// stdout, a progress bar on stderr, stdin prompts for confirmations. It is
// the single consumer of the event channel.
type consoleUI struct {
	bar   *progressbar.ProgressBar
	isTTY bool
}

// runConsoleUI drains events until the channel is closed, answering
// confirmation requests as they arrive. Exactly one goroutine (the caller)
// runs this loop.
func runConsoleUI(events <-chan Event, confirms <-chan ConfirmRequest) {
	ui := &consoleUI{isTTY: term.IsTerminal(int(os.Stderr.Fd()))}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				ui.clearBar()
				return
			}
			ui.handle(ev)
		case req := <-confirms:
			ui.clearBar()
			answer := askForConfirmation(colNote, "%s\n%s", req.Title, req.Message)
			req.Reply <- answer
		}
	}
}

func (ui *consoleUI) handle(ev Event) {
	switch e := ev.(type) {
	case LogLine:
		ui.clearBar()
		fmt.Print(e.Text)
	case ProgressUpdate:
		ui.setProgress(e.Fraction)
	case VersionsLoaded:
		ui.clearBar()
		colArrow.Print("-> ")
		colSuccess.Printf("Loaded %d %s versions: %s\n",
			len(e.Tags), e.Project, strings.Join(e.Tags, ", "))
	case Notify:
		ui.clearBar()
		if e.IsError {
			colError.Printf("\n[%s]\n%s\n", e.Title, e.Message)
		} else {
			colSuccess.Printf("\n[%s]\n%s\n", e.Title, e.Message)
		}
	case TaskFinished:
		ui.finishBar()
	}
}

// setProgress clamps the fraction and updates the bar. Resets (a retried
// step reporting a smaller fraction) are accepted as-is.
func (ui *consoleUI) setProgress(fraction float64) {
	if !ui.isTTY {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if ui.bar == nil {
		ui.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("building"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	ui.bar.Set(int(fraction * 100))
}

func (ui *consoleUI) clearBar() {
	if ui.bar != nil {
		ui.bar.Clear()
	}
}

func (ui *consoleUI) finishBar() {
	if ui.bar != nil {
		ui.bar.Finish()
		ui.bar = nil
	}
}
