package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/eunoia-wellness/companion/internal/history"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/optimistic"
)

const (
	userPrompt      = "you> "
	assistantPrompt = "companion> "
)

// printer writes the assistant reply as it streams, from transcript
// snapshots.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	id      string
	printed string
	closed  bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) observe(msgs []model.Message) {
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Sender != model.SenderAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if last.ID != p.id {
		p.id, p.printed, p.closed = last.ID, "", false
		fmt.Fprint(p.out, assistantPrompt)
	}
	if p.closed {
		return
	}

	// a failed reply replaces the partial text instead of extending it
	if strings.HasPrefix(last.Text, p.printed) {
		fmt.Fprint(p.out, last.Text[len(p.printed):])
	} else {
		fmt.Fprint(p.out, "\n"+assistantPrompt+last.Text)
	}
	p.printed = last.Text

	if last.Final() {
		fmt.Fprintln(p.out)
		p.closed = true
	}
}

func printTranscript(out io.Writer, msgs []model.Message) {
	for _, m := range msgs {
		prompt := userPrompt
		if m.Sender == model.SenderAssistant {
			prompt = assistantPrompt
		}
		fmt.Fprintln(out, prompt+m.Text)
	}
}

func printHistory(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no conversations yet")
		return
	}
	for i, e := range entries {
		marker := ""
		if e.Status == optimistic.Pending {
			marker = " (saving)"
		}
		fmt.Fprintf(out, "%3d. %s%s\n", i+1, e.Title, marker)
	}
}
