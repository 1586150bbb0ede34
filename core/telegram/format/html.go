package format

import (
	"html"
	"strings"
)

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// Field renders one "<b>label</b>: <code>value</code>" line.
func Field(label, value string) string {
	return "<b>" + EscapeHTML(label) + "</b>: <code>" + EscapeHTML(value) + "</code>"
}

// Flag renders a boolean field as a check mark or a cross.
func Flag(label string, on bool) string {
	mark := "❌"
	if on {
		mark = "✅"
	}
	return "<b>" + EscapeHTML(label) + "</b>: " + mark
}

// Lines builds a multi-line message with paragraph breaks.
type Lines struct {
	b      strings.Builder
	broken bool
}

// Add appends a line.
func (l *Lines) Add(line string) {
	if l.b.Len() > 0 {
		l.b.WriteByte('\n')
	}
	l.b.WriteString(line)
	l.broken = false
}

// Break starts a new paragraph unless one was just started.
func (l *Lines) Break() {
	if l.b.Len() == 0 || l.broken {
		return
	}
	l.b.WriteByte('\n')
	l.broken = true
}

func (l *Lines) String() string {
	return strings.TrimRight(l.b.String(), "\n")
}
