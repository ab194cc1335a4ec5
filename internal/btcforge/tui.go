package btcforge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// buildTUI is a full-screen build monitor: a header with a progress gauge,
// the scrolling build log, and modal overlays for alerts and yes/no
// confirmations. It is the single consumer of the event channel; one modal
// is shown at a time, queued in arrival order.
type buildTUI struct {
	app     *tview.Application
	header  *tview.TextView
	logView *tview.TextView
	footer  *tview.TextView
	pages   *tview.Pages

	// Modal state, touched only on the UI goroutine.
	modalShowing bool
	modalQueue   []func()

	// Outstanding confirm slots, closed (answer = No) if the user quits
	// mid-question so no pipeline task is ever left hanging.
	mu          sync.Mutex
	outstanding []ConfirmRequest

	quitOnce sync.Once
	quit     chan struct{}
}

// runBuildTUI drains events into a tview application until the user quits.
// Closing of the events channel marks the task as finished; the screen stays
// up for inspection until 'q'.
func runBuildTUI(events <-chan Event, confirms <-chan ConfirmRequest) error {
	t := &buildTUI{
		app:  tview.NewApplication(),
		quit: make(chan struct{}),
	}

	t.header = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	t.header.SetBorder(true)
	t.header.SetTitle("btcforge build monitor")

	t.logView = tview.NewTextView().
		SetWrap(false).
		SetScrollable(true).
		SetChangedFunc(func() {
			t.logView.ScrollToEnd()
		})
	t.logView.SetBorder(true)
	t.logView.SetTitle("Build Log")

	t.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	t.footer.SetBorder(true)
	t.footer.SetText("[yellow]q[-] quit   [yellow]arrows[-] scroll log")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.header, 3, 0, false).
		AddItem(t.logView, 0, 1, true).
		AddItem(t.footer, 3, 0, false)

	t.pages = tview.NewPages().AddPage("main", flex, true, true)

	t.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q' && !t.modalShowing) {
			t.shutdown()
			return nil
		}
		return ev
	})

	go t.drain(events, confirms)

	return t.app.SetRoot(t.pages, true).Run()
}

// shutdown stops the application and abandons any outstanding confirm slot.
func (t *buildTUI) shutdown() {
	t.quitOnce.Do(func() {
		t.mu.Lock()
		for _, req := range t.outstanding {
			close(req.Reply)
		}
		t.outstanding = nil
		t.mu.Unlock()
		close(t.quit)
		t.app.Stop()
	})
}

// drain pumps channel traffic onto the UI goroutine. It exits when the event
// channel closes or the user quits.
func (t *buildTUI) drain(events <-chan Event, confirms <-chan ConfirmRequest) {
	for {
		select {
		case <-t.quit:
			return
		case ev, ok := <-events:
			if !ok {
				t.app.QueueUpdateDraw(func() {
					t.footer.SetText("[green]Task finished[-] - press [yellow]q[-] to quit")
				})
				return
			}
			t.app.QueueUpdateDraw(func() {
				t.apply(ev)
			})
		case req := <-confirms:
			t.mu.Lock()
			t.outstanding = append(t.outstanding, req)
			t.mu.Unlock()
			t.app.QueueUpdateDraw(func() {
				t.enqueueModal(func() { t.showConfirm(req) })
			})
		}
	}
}

func (t *buildTUI) apply(ev Event) {
	switch e := ev.(type) {
	case LogLine:
		fmt.Fprint(t.logView, e.Text)
	case ProgressUpdate:
		t.setGauge(e.Fraction)
	case VersionsLoaded:
		fmt.Fprintf(t.logView, "Loaded %d %s versions\n", len(e.Tags), e.Project)
	case Notify:
		t.enqueueModal(func() { t.showAlert(e) })
	case TaskFinished:
		t.footer.SetText("[green]Task finished[-] - press [yellow]q[-] to quit")
	}
}

// setGauge renders a textual progress bar into the header.
func (t *buildTUI) setGauge(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	const width = 40
	filled := int(fraction * width)
	t.header.SetText(fmt.Sprintf("[green]%s[-]%s %3.0f%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		fraction*100))
}

// enqueueModal shows the modal immediately when none is up, otherwise queues
// it so alerts and confirmations never stack.
func (t *buildTUI) enqueueModal(show func()) {
	if t.modalShowing {
		t.modalQueue = append(t.modalQueue, show)
		return
	}
	t.modalShowing = true
	show()
}

// dismissModal removes the current overlay and shows the next queued one.
func (t *buildTUI) dismissModal() {
	t.pages.RemovePage("modal")
	if len(t.modalQueue) > 0 {
		next := t.modalQueue[0]
		t.modalQueue = t.modalQueue[1:]
		next()
		return
	}
	t.modalShowing = false
}

func (t *buildTUI) showAlert(n Notify) {
	label := "Info"
	if n.IsError {
		label = "Error"
	}
	modal := tview.NewModal().
		SetText(fmt.Sprintf("%s: %s\n\n%s", label, n.Title, n.Message)).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			t.dismissModal()
		})
	t.pages.AddPage("modal", modal, true, true)
}

func (t *buildTUI) showConfirm(req ConfirmRequest) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("%s\n\n%s", req.Title, req.Message)).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(_ int, label string) {
			t.mu.Lock()
			for i, r := range t.outstanding {
				if r.Reply == req.Reply {
					t.outstanding = append(t.outstanding[:i], t.outstanding[i+1:]...)
					break
				}
			}
			t.mu.Unlock()
			req.Reply <- label == "Yes"
			t.dismissModal()
		})
	t.pages.AddPage("modal", modal, true, true)
}
