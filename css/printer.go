package css

import (
	"bytes"
	"io"
	"strings"
)

// DefaultIndent is used when printer indentation is not specified.
const DefaultIndent = "\t"

// Printer serializes stylesheet AST back to text. Output layout is fixed:
// one declaration per line, selectors of a group on separate lines, blank
// line between top level items.
type Printer struct {
	Indent string
}

// Fprint writes sheet to w, implementing the same contract as io.WriterTo.
func (p Printer) Fprint(w io.Writer, sheet *Stylesheet) (int64, error) {
	var buf bytes.Buffer
	p.writeNodes(&buf, sheet.Nodes, 0)
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

// Format returns text of the sheet.
func (p Printer) Format(sheet *Stylesheet) []byte {
	var buf bytes.Buffer
	p.Fprint(&buf, sheet) //nolint:errcheck
	return buf.Bytes()
}

// WriteTo writes the stylesheet to w using default indentation.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	return Printer{Indent: DefaultIndent}.Fprint(w, s)
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	return string(Printer{Indent: DefaultIndent}.Format(s))
}

func (p Printer) indent(level int) string {
	if p.Indent == "" {
		return strings.Repeat(DefaultIndent, level)
	}
	return strings.Repeat(p.Indent, level)
}

func (p Printer) writeNodes(buf *bytes.Buffer, nodes []Node, level int) {
	for i, n := range nodes {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		p.writeNode(buf, n, level)
	}
}

func (p Printer) writeNode(buf *bytes.Buffer, n Node, level int) {
	pad := p.indent(level)
	switch v := n.(type) {
	case *Comment:
		buf.WriteString(pad)
		buf.WriteString(v.Text)

	case *Declaration:
		p.writeDeclaration(buf, v, level)

	case *Rule:
		for i, sel := range v.Selectors {
			if i > 0 {
				buf.WriteString(",\n")
			}
			buf.WriteString(pad)
			buf.WriteString(sel)
		}
		buf.WriteString(" {\n")
		for _, d := range v.Declarations {
			p.writeDeclaration(buf, d, level+1)
			buf.WriteByte('\n')
		}
		p.writeComments(buf, v.Trailing, level+1)
		buf.WriteString(pad)
		buf.WriteByte('}')

	case *AtRule:
		buf.WriteString(pad)
		buf.WriteString(v.Name)
		if v.Prelude != "" {
			buf.WriteByte(' ')
			buf.WriteString(v.Prelude)
		}
		if !v.HasBlock {
			buf.WriteByte(';')
			return
		}
		if v.Body != "" {
			buf.WriteString(" {")
			buf.WriteString(v.Body)
			buf.WriteByte('}')
			return
		}
		buf.WriteString(" {\n")
		for _, d := range v.Declarations {
			p.writeDeclaration(buf, d, level+1)
			buf.WriteByte('\n')
		}
		if len(v.Nodes) > 0 {
			if len(v.Declarations) > 0 {
				buf.WriteByte('\n')
			}
			p.writeNodes(buf, v.Nodes, level+1)
			buf.WriteByte('\n')
		}
		p.writeComments(buf, v.Trailing, level+1)
		buf.WriteString(pad)
		buf.WriteByte('}')
	}
}

func (p Printer) writeComments(buf *bytes.Buffer, comments []string, level int) {
	for _, c := range comments {
		buf.WriteString(p.indent(level))
		buf.WriteString(c)
		buf.WriteByte('\n')
	}
}

func (p Printer) writeDeclaration(buf *bytes.Buffer, d *Declaration, level int) {
	p.writeComments(buf, d.Comments, level)
	buf.WriteString(p.indent(level))
	buf.WriteString(d.Property)
	buf.WriteString(": ")
	buf.WriteString(d.Value)
	buf.WriteByte(';')
}
