// Package debug renders nested dump structures as indented text. It backs
// the --dump flag output and the cssdump tool.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates an indented text rendering of a tree, two spaces
// per depth level. Free-form values are quoted so control characters and
// odd whitespace survive inspection.
type TreeWriter struct {
	sb strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

// String returns everything written so far.
func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

// Line writes one formatted line at the given depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// TextBlock writes a labeled quoted value at the given depth. An empty value
// renders as nothing after the label instead of a pair of quotes.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.sb.WriteString(label)
	tw.sb.WriteString(": ")
	tw.sb.WriteString(encodeText(value))
	tw.sb.WriteByte('\n')
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.sb.WriteString("  ")
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
