package btcforge

import "fmt"

// Events flow from background build tasks to the single UI actor (console
// renderer or tview monitor) over one buffered channel. Any number of
// goroutines may send; only the UI actor receives.

// Event is a message from a pipeline task to the UI actor.
type Event interface {
	event()
}

// LogLine appends raw text to the build log.
type LogLine struct {
	Text string
}

// ProgressUpdate sets the progress display, Fraction in [0.0, 1.0].
// Consumers clamp out-of-range values; retries may reset it backwards.
type ProgressUpdate struct {
	Fraction float64
}

// VersionsLoaded delivers the fetched stable release tags for a project,
// newest first.
type VersionsLoaded struct {
	Project Project
	Tags    []string
}

// Notify surfaces an alert to the user, no reply expected.
type Notify struct {
	Title   string
	Message string
	IsError bool
}

// TaskFinished is sent exactly once per task invocation, success or failure,
// so the UI actor can reliably re-enable controls.
type TaskFinished struct{}

func (LogLine) event()        {}
func (ProgressUpdate) event() {}
func (VersionsLoaded) event() {}
func (Notify) event()         {}
func (TaskFinished) event()   {}

// Sink is the sending half of the event channel.
type Sink chan<- Event

func (s Sink) Log(text string) {
	s <- LogLine{Text: text}
}

func (s Sink) Logf(format string, a ...any) {
	s <- LogLine{Text: fmt.Sprintf(format, a...)}
}

func (s Sink) Progress(fraction float64) {
	s <- ProgressUpdate{Fraction: fraction}
}

func (s Sink) Notify(title, message string, isError bool) {
	s <- Notify{Title: title, Message: message, IsError: isError}
}

func (s Sink) Finished() {
	s <- TaskFinished{}
}

// ConfirmRequest asks the UI actor a yes/no question. Reply carries exactly
// one answer; a slot closed without an answer counts as No.
type ConfirmRequest struct {
	Title   string
	Message string
	Reply   chan bool
}

// Confirmer is the pipeline side of the confirmation protocol. Requests are
// delivered on a dedicated channel so the UI actor can gate them behind any
// alert it is already showing.
type Confirmer struct {
	requests chan ConfirmRequest
}

func NewConfirmer() *Confirmer {
	return &Confirmer{requests: make(chan ConfirmRequest, 1)}
}

// Requests returns the receiving half for the UI actor.
func (c *Confirmer) Requests() <-chan ConfirmRequest {
	return c.requests
}

// Ask blocks the calling goroutine, and only it, until the UI actor answers
// or abandons the reply slot. Reply latency is governed by a human and may be
// arbitrarily long.
func (c *Confirmer) Ask(title, message string) bool {
	req := ConfirmRequest{
		Title:   title,
		Message: message,
		Reply:   make(chan bool, 1),
	}
	c.requests <- req
	answer, ok := <-req.Reply
	return ok && answer
}
