package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/kbukum/lexstream/dictionary"
	"github.com/kbukum/lexstream/stream"
)

var (
	wordStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	posStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	exampleStyle = lipgloss.NewStyle().Italic(true).Faint(true).PaddingLeft(4)
	barFill      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// renderEntry formats an entry for the terminal, wrapped to width.
func renderEntry(e dictionary.Entry, width int) string {
	wrap := lipgloss.NewStyle().Width(width)
	indent := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	var b strings.Builder
	b.WriteString(wordStyle.Render(e.Word))
	if e.Pronunciation != "" {
		b.WriteString("  " + mutedStyle.Render(e.Pronunciation))
	}
	b.WriteString("\n")

	for i, d := range e.Definitions {
		line := fmt.Sprintf("%d. %s %s", i+1, posStyle.Render(d.PartOfSpeech), d.Meaning)
		b.WriteString("\n" + indent.Render(line) + "\n")
		for _, ex := range d.Examples {
			b.WriteString(exampleStyle.Width(width).Render("\""+ex+"\"") + "\n")
		}
	}
	if len(e.Synonyms) > 0 {
		b.WriteString("\n" + wrap.Render(labelStyle.Render("Synonyms: ")+strings.Join(e.Synonyms, ", ")) + "\n")
	}
	if e.Etymology != "" {
		b.WriteString("\n" + wrap.Render(labelStyle.Render("Origin: ")+e.Etymology) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// progressBar redraws one status line on w as progress arrives.
type progressBar struct {
	mu     sync.Mutex
	w      io.Writer
	width  int
	last   stream.Progress
	chunks int
	total  int
	drawn  bool
}

func newProgressBar(w io.Writer, width int) *progressBar {
	return &progressBar{w: w, width: width}
}

func (p *progressBar) Progress(pr stream.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = pr
	p.draw()
}

func (p *progressBar) Partial(pt stream.Partial) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks, p.total = pt.Received, pt.Total
	p.draw()
}

func (p *progressBar) Warn(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
	fmt.Fprintln(p.w, warnStyle.Render("warning: "+msg))
	p.draw()
}

// Done clears the status line.
func (p *progressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
}

func (p *progressBar) draw() {
	cells := max(10, min(30, p.width/3))
	filled := int(p.last.Value*float64(cells) + 0.5)
	bar := barFill.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", cells-filled))

	status := fmt.Sprintf(" %3.0f%% %s", p.last.Value*100, p.last.Stage)
	if p.last.Message != "" {
		status += ": " + p.last.Message
	}
	if p.chunks > 0 {
		status += fmt.Sprintf(" [%d/%d chunks]", p.chunks, p.total)
	}
	if room := p.width - cells - 1; room > 0 {
		if rs := []rune(status); len(rs) > room {
			status = string(rs[:room])
		}
	}
	fmt.Fprint(p.w, "\r"+bar+status+"\x1b[K")
	p.drawn = true
}

func (p *progressBar) clear() {
	if p.drawn {
		fmt.Fprint(p.w, "\r\x1b[K")
		p.drawn = false
	}
}
