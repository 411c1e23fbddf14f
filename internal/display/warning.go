package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Render formats the warning. Title and suggestion are colored when
// useColor is set.
func (w Warning) Render(useColor bool) string {
	var b strings.Builder

	title := "⚠️  Warning: " + w.Title
	if useColor {
		title = color.New(color.FgYellow, color.Bold).Sprint(title)
	}
	b.WriteString(title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		b.WriteString("    ")
		if len(w.Files) == 1 {
			b.WriteString("Affected file:\n")
		} else {
			b.WriteString("Affected files:\n")
		}
		for i, file := range w.Files {
			b.WriteString(fmt.Sprintf("      %d. %s\n", i+1, file))
		}
	}

	if w.Suggestion != "" {
		suggestion := w.Suggestion
		if useColor {
			suggestion = color.CyanString(suggestion)
		}
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(suggestion)
		b.WriteString("\n")
	}

	return b.String()
}

// Display writes the warning to out.
func (w Warning) Display(out io.Writer, useColor bool) {
	fmt.Fprint(out, w.Render(useColor))
}

// Summary is the warning as a single log line.
func (w Warning) Summary() string {
	if w.Message == "" {
		return w.Title
	}
	return w.Title + ": " + w.Message
}
