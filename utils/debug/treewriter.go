// Package debug has helpers producing human readable dumps for debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter builds indented outline, two spaces per level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{w: &strings.Builder{}}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

// Line writes formatted line at depth.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Attr writes "label: value" line at depth, strings are quoted so that empty
// and multi-line values stay readable.
func (tw TreeWriter) Attr(depth int, label string, value any) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	switch v := value.(type) {
	case string:
		if v != "" {
			v = strconv.Quote(v)
		}
		tw.w.WriteString(v)
	case fmt.Stringer:
		tw.w.WriteString(v.String())
	default:
		fmt.Fprint(tw.w, v)
	}
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}
