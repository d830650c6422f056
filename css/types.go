package css

import "strings"

// Node is a single item of a stylesheet or of an at-rule block: *Rule,
// *AtRule, *Comment or *Declaration.
type Node interface {
	node()
}

// Declaration is a single "property: value" pair. Property and Value are
// kept exactly as written so untouched declarations print unchanged.
type Declaration struct {
	Property string
	Value    string
	Custom   bool     // custom property (--name), value is opaque
	Comments []string // comments preceding the declaration in its block
}

// Name returns property name in lower case.
func (d *Declaration) Name() string {
	return strings.ToLower(d.Property)
}

// DeclarationList is the ordered content of a declaration block. It is
// addressed by pointer so declarations can be inserted in place.
type DeclarationList []*Declaration

// Index returns position of d in the list or -1.
func (l DeclarationList) Index(d *Declaration) int {
	for i, v := range l {
		if v == d {
			return i
		}
	}
	return -1
}

// After returns declaration following anchor or nil.
func (l DeclarationList) After(anchor *Declaration) *Declaration {
	if i := l.Index(anchor); i >= 0 && i+1 < len(l) {
		return l[i+1]
	}
	return nil
}

// InsertAfter puts d right after anchor. When anchor is not in the list d is
// appended.
func (l *DeclarationList) InsertAfter(anchor, d *Declaration) {
	i := l.Index(anchor)
	if i < 0 {
		*l = append(*l, d)
		return
	}
	*l = append(*l, nil)
	copy((*l)[i+2:], (*l)[i+1:])
	(*l)[i+1] = d
}

// Rule is a qualified rule: selectors and a declaration block.
type Rule struct {
	Selectors    []string
	Declarations DeclarationList
	Trailing     []string // comments before closing brace
}

// AtRule is either a statement (@import, @charset) or a block at-rule. Block
// at-rules keep their declarations (@font-face, @page) and nested nodes
// (@media, @supports) separately. Bodies of at-rules the parser does not
// understand are kept in Body verbatim.
type AtRule struct {
	Name         string // including "@"
	Prelude      string
	HasBlock     bool
	Declarations DeclarationList
	Nodes        []Node
	Body         string
	Trailing     []string // comments before closing brace
}

// Comment is a comment outside of declaration lists, including delimiters.
type Comment struct {
	Text string
}

func (*Rule) node()        {}
func (*AtRule) node()      {}
func (*Comment) node()     {}
func (*Declaration) node() {}

// Stylesheet is a parsed CSS document in source order.
type Stylesheet struct {
	Nodes []Node
}

// DeclarationRef points to a declaration together with the list that owns it.
type DeclarationRef struct {
	Owner *DeclarationList
	Decl  *Declaration
}

// Declarations returns every declaration of the stylesheet, depth first, in
// source order.
func (s *Stylesheet) Declarations() []DeclarationRef {
	var refs []DeclarationRef
	collectDeclarations(s.Nodes, &refs)
	return refs
}

func collectDeclarations(nodes []Node, refs *[]DeclarationRef) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *Rule:
			for _, d := range v.Declarations {
				*refs = append(*refs, DeclarationRef{Owner: &v.Declarations, Decl: d})
			}
		case *AtRule:
			for _, d := range v.Declarations {
				*refs = append(*refs, DeclarationRef{Owner: &v.Declarations, Decl: d})
			}
			collectDeclarations(v.Nodes, refs)
		}
	}
}
