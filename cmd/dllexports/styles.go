package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/dllexports/request"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))
)

// printReport writes "dllexports (<name>) -> <path>" for each target.
func printReport(w io.Writer, targets []request.Target, styled bool) {
	title := "dllexports"
	if styled {
		title = titleStyle.Render(title)
	}

	fmt.Fprintln(w)
	for _, t := range targets {
		n, p := t.Name, t.Path
		if styled {
			n, p = nameStyle.Render(n), pathStyle.Render(p)
		}
		fmt.Fprintf(w, "%s (%s) -> %s\n", title, n, p)
	}
}
