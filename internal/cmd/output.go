package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/activity"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
)

// Colors for status output
var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981") // Green
	redColor     = lipgloss.Color("#F87171") // Red
	amberColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
)

// printer writes human-readable command output. Styling is applied only when
// the destination is a terminal.
type printer struct {
	w      io.Writer
	styled bool

	title   lipgloss.Style
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		styled:  isTerminal(w),
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		ok:      r.NewStyle().Foreground(greenColor),
		fail:    r.NewStyle().Foreground(redColor),
		warn:    r.NewStyle().Foreground(amberColor),
		muted:   r.NewStyle().Foreground(mutedColor),
		heading: r.NewStyle().Bold(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Title prints a bold title line.
func (p *printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.title, fmt.Sprintf(format, args...)))
}

// Heading prints a section heading.
func (p *printer) Heading(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.heading, fmt.Sprintf(format, args...)))
}

// Line prints unstyled text.
func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Muted prints secondary information.
func (p *printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.muted, fmt.Sprintf(format, args...)))
}

// Status prints a line prefixed with a coloured marker for ok.
func (p *printer) Status(ok bool, format string, args ...any) {
	marker, style := "✓", p.ok
	if !ok {
		marker, style = "✗", p.fail
	}
	fmt.Fprintf(p.w, "%s %s\n", p.render(style, marker), fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.warn, "! "+fmt.Sprintf(format, args...)))
}

// Error prints err after a short description of what failed. The marker
// and colour follow the error's severity.
func (p *printer) Error(what string, err error) {
	marker, style := "✗", p.fail
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug, errors.SeverityInfo:
		marker, style = "-", p.muted
	case errors.SeverityWarning:
		marker, style = "!", p.warn
	}
	fmt.Fprintln(p.w, p.render(style, fmt.Sprintf("%s %s: %v", marker, what, err)))
}

// Raw writes s unchanged.
func (p *printer) Raw(s string) {
	fmt.Fprint(p.w, s)
}

// recentTools is how many completed tool calls the activity summary lists.
const recentTools = 5

// printActivity summarises the tool calls the agents made. Nothing is
// printed when no call completed.
func printActivity(out *printer, t *activity.Tracker) {
	s := t.Stats()
	if s.Completed() == 0 {
		return
	}

	out.Line("")
	out.Heading("Tools")
	out.Line("%d tool calls (%d ok, %d failed), average %s",
		s.Completed(), s.Succeeded, s.Failed, s.AverageDuration.Round(time.Millisecond))

	var top []string
	for _, tc := range t.TopTools(3) {
		top = append(top, fmt.Sprintf("%s x%d", tc.Tool, tc.Count))
	}
	out.Muted("most used: %s", strings.Join(top, ", "))

	for _, inv := range t.Recent(recentTools) {
		out.Status(inv.Status == activity.StatusSuccess, "%s (%s)", inv.Tool, inv.Duration.Round(time.Millisecond))
	}
}
