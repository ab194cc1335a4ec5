package btcforge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmerDeliversAnswer(t *testing.T) {
	c := NewConfirmer()

	go func() {
		req := <-c.Requests()
		assert.Equal(t, "Install?", req.Title)
		req.Reply <- true
	}()
	assert.True(t, c.Ask("Install?", "some tools are missing"))

	go func() {
		req := <-c.Requests()
		req.Reply <- false
	}()
	assert.False(t, c.Ask("Install?", "some tools are missing"))
}

func TestConfirmerAbandonedReplyMeansNo(t *testing.T) {
	c := NewConfirmer()

	go func() {
		req := <-c.Requests()
		close(req.Reply)
	}()

	done := make(chan bool, 1)
	go func() {
		done <- c.Ask("Quit?", "pending question")
	}()

	select {
	case answer := <-done:
		assert.False(t, answer)
	case <-time.After(5 * time.Second):
		t.Fatal("Ask did not return after its reply slot was closed")
	}
}

func TestSinkHelpers(t *testing.T) {
	ch := make(chan Event, 8)
	s := Sink(ch)

	s.Log("raw")
	s.Logf("n=%d", 7)
	s.Progress(0.5)
	s.Notify("Title", "Body", true)
	s.Finished()
	close(ch)

	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.Len(t, events, 5)
	assert.Equal(t, LogLine{Text: "raw"}, events[0])
	assert.Equal(t, LogLine{Text: "n=7"}, events[1])
	assert.Equal(t, ProgressUpdate{Fraction: 0.5}, events[2])
	assert.Equal(t, Notify{Title: "Title", Message: "Body", IsError: true}, events[3])
	assert.Equal(t, TaskFinished{}, events[4])
}
