// Package console prints the startup banner and status lines.
package console

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

const lineWidth = 46

// Out is where startup output goes.
var Out io.Writer = os.Stdout

// DisplayWidth counts terminal columns: East Asian wide and fullwidth runes
// take two.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func Banner(title, subtitle string) {
	inner := lineWidth - 3
	fmt.Fprintln(Out)
	fmt.Fprintf(Out, "\033[36;1m  ┌%s┐\033[0m\n", strings.Repeat("─", inner))
	fmt.Fprintf(Out, "\033[36;1m  │\033[0m%s\033[36;1m│\033[0m\n", center(title, inner))
	fmt.Fprintf(Out, "\033[36;1m  │\033[0m%s\033[36;1m│\033[0m\n", center(subtitle, inner))
	fmt.Fprintf(Out, "\033[36;1m  └%s┘\033[0m\n", strings.Repeat("─", inner))
	fmt.Fprintln(Out)
}

func center(s string, w int) string {
	pad := w - DisplayWidth(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func Section(title string) {
	n := lineWidth - DisplayWidth(title) - 1
	if n < 3 {
		n = 3
	}
	fmt.Fprintf(Out, "  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", n))
}

func Stat(label string, value any) {
	var s string
	switch v := value.(type) {
	case int:
		s = strconv.Itoa(v)
	default:
		s = fmt.Sprint(v)
	}
	dots := lineWidth - 4 - DisplayWidth(label) - DisplayWidth(s)
	if dots < 3 {
		dots = 3
	}
	fmt.Fprintf(Out, "  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dots), s)
}

func OK(msg string) {
	fmt.Fprintf(Out, "  \033[32m✓\033[0m %s\n", msg)
}

func Warn(msg string) {
	fmt.Fprintf(Out, "  \033[33m!\033[0m %s\n", msg)
}

func Ready(msg string) {
	fmt.Fprintf(Out, "  \033[32m▶\033[0m %s\n", msg)
}
