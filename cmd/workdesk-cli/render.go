package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Renderer prints streamed turns. With markdown enabled the reply is shown
// once, rendered, when the turn ends; otherwise deltas are echoed as they
// arrive.
type Renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
	printed  int
}

// NewRenderer creates a renderer. plain disables markdown rendering.
func NewRenderer(out io.Writer, plain bool, width int) (*Renderer, error) {
	r := &Renderer{out: out}
	if plain {
		return r, nil
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	r.markdown = md
	return r, nil
}

// Entry prints a complete transcript entry.
func (r *Renderer) Entry(e domain.Entry, personaTitle string) {
	if e.Speaker == domain.SpeakerUser {
		return
	}
	fmt.Fprintf(r.out, "%s\n%s\n", bold(personaTitle), r.text(e.Text))
}

// Update prints one streamed update of the current turn.
func (r *Renderer) Update(u domain.Update, personaTitle string) {
	switch u.Type {
	case domain.UpdateEntry:
		if u.Entry == nil || u.Entry.Speaker == domain.SpeakerUser {
			return
		}
		if u.Entry.Text == "" {
			// The reply slot opened.
			r.printed = 0
			fmt.Fprintln(r.out, bold(personaTitle))
		}

	case domain.UpdateDelta:
		if u.Entry == nil {
			return
		}
		if r.markdown == nil {
			if len(u.Entry.Text) > r.printed {
				fmt.Fprint(r.out, u.Entry.Text[r.printed:])
				r.printed = len(u.Entry.Text)
			}
			return
		}
		fmt.Fprintf(r.out, "\r%s", gray(fmt.Sprintf("... %d characters", len(u.Entry.Text))))

	case domain.UpdateTool:
		if u.Tool == nil {
			return
		}
		r.clearStatus()
		line := fmt.Sprintf("[tool] %s %s", u.Tool.Name, u.Tool.Status)
		if u.Tool.Result != "" {
			line += ": " + u.Tool.Result
		}
		fmt.Fprintln(r.out, yellow(line))

	case domain.UpdateDone:
		r.finish(u.Entry)

	case domain.UpdateCancelled:
		r.finish(u.Entry)
		fmt.Fprintln(r.out, gray("(cancelled)"))

	case domain.UpdateError:
		r.finish(u.Entry)
		fmt.Fprintln(r.out, red(u.Message))

	case domain.UpdateSuggestions:
		r.Suggestions(u.Suggestions)
	}
}

// Suggestions prints a numbered suggestion list.
func (r *Renderer) Suggestions(items []string) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, gray("no suggestions"))
		return
	}
	for i, s := range items {
		fmt.Fprintf(r.out, "%s %s\n", cyan(fmt.Sprintf("[%d]", i+1)), s)
	}
}

// Info prints a status line.
func (r *Renderer) Info(format string, args ...interface{}) {
	fmt.Fprintln(r.out, green(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.out, red("error: "+err.Error()))
}

func (r *Renderer) finish(e *domain.Entry) {
	if e == nil {
		return
	}
	if r.markdown == nil {
		fmt.Fprintln(r.out)
		return
	}
	r.clearStatus()
	fmt.Fprint(r.out, r.text(e.Text))
}

func (r *Renderer) clearStatus() {
	if r.markdown != nil {
		fmt.Fprint(r.out, "\r\033[K")
	}
}

func (r *Renderer) text(s string) string {
	if r.markdown == nil || strings.TrimSpace(s) == "" {
		return s
	}
	rendered, err := r.markdown.Render(s)
	if err != nil {
		return s
	}
	return rendered
}
