package netinfo

import (
	"fmt"
	"io"
)

const bannerWidth = 72

// PrintBanner writes a boxed summary of a started service to w.
func PrintBanner(w io.Writer, serviceName string, a Addresses, details map[string]string, order []string) {
	border := func(left, fill, right string) {
		fmt.Fprint(w, left)
		for range bannerWidth + 2 {
			fmt.Fprint(w, fill)
		}
		fmt.Fprintln(w, right)
	}
	line := func(s string) {
		fmt.Fprintf(w, "║ %-*s ║\n", bannerWidth, s)
	}

	border("╔", "═", "╗")
	line(serviceName)
	border("╟", "─", "╢")
	line("Debug:  " + a.Local)
	if a.LAN != "" {
		line("LAN:    " + a.LAN)
	}
	for _, key := range order {
		if v, ok := details[key]; ok && v != "" {
			line(fmt.Sprintf("%-7s %s", key+":", v))
		}
	}
	for _, note := range a.Notes {
		for _, wrapped := range wrapText(note, bannerWidth-6) {
			line("Note: " + wrapped)
		}
	}
	border("╚", "═", "╝")
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	for len(text) > width {
		lines = append(lines, text[:width])
		text = text[width:]
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
