package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// maxErrors limits how many grammar errors are tolerated before parsing of a
// broken document is abandoned.
const maxErrors = 100

// Parser parses CSS stylesheets into order preserving AST.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// block is an open declaration block or at-rule body.
type block struct {
	rule  *Rule
	at    *AtRule
	start int  // offset right after opening brace
	raw   bool // body is not modelled, keep it verbatim
}

// Parse parses CSS text into a Stylesheet. The optional source parameter
// identifies what's being parsed (for logging). Parsing recovers from grammar
// errors: the returned stylesheet contains everything that could be parsed and
// the error, if not nil, describes the first problem encountered.
//
// Grammar produced by tdewolff normalizes whitespace, so selectors, preludes
// and declaration values are taken from the source text between grammar
// offsets instead. Comments inside blocks are kept with the item they precede.
func (p *Parser) Parse(data []byte, source ...string) (*Stylesheet, error) {
	var src string
	if len(source) > 0 {
		src = source[0]
	}
	p.log.Debug("Parsing CSS", zap.String("source", src), zap.Int("bytes", len(data)))

	in := parse.NewInputBytes(data)
	defer in.Restore()

	var (
		sheet    = &Stylesheet{}
		parser   = css.NewParser(in, false)
		blocks   []*block
		firstErr error
		errCount int
		mark     int // offset where previous grammar item ended
	)

	top := func() *block {
		if len(blocks) > 0 {
			return blocks[len(blocks)-1]
		}
		return nil
	}
	appendNode := func(n Node) {
		for i := len(blocks) - 1; i >= 0; i-- {
			if at := blocks[i].at; at != nil {
				at.Nodes = append(at.Nodes, n)
				return
			}
		}
		sheet.Nodes = append(sheet.Nodes, n)
	}
	appendComments := func(comments []string) {
		for _, c := range comments {
			appendNode(&Comment{Text: c})
		}
	}

	for {
		gt, _, gdata := parser.Next()
		end := min(parser.Offset(), len(data))
		raw := data[mark:end]

		switch gt {
		case css.ErrorGrammar:
			err := parser.Err()
			if err == nil || errors.Is(err, io.EOF) {
				return sheet, firstErr
			}
			errCount++
			p.log.Debug("CSS parse error", zap.String("source", src), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			if errCount >= maxErrors {
				return sheet, fmt.Errorf("too many errors, giving up: %w", firstErr)
			}

		case css.CommentGrammar:
			appendNode(&Comment{Text: string(gdata)})

		case css.TokenGrammar:
			if b := top(); b != nil && b.at != nil {
				b.raw = true
			}

		case css.AtRuleGrammar, css.BeginAtRuleGrammar:
			comments, rest := leadingComments(raw)
			appendComments(comments)
			name, prelude := splitAtRule(trimTerminator(rest))
			if name == "" {
				name, prelude = string(gdata), joinTokens(parser.Values())
			}
			ar := &AtRule{Name: name, Prelude: prelude, HasBlock: gt == css.BeginAtRuleGrammar}
			appendNode(ar)
			if ar.HasBlock {
				blocks = append(blocks, &block{at: ar, start: end})
			}

		case css.EndAtRuleGrammar:
			if b := top(); b != nil && b.at != nil {
				if b.raw {
					b.at.Body = string(trimTerminator(data[b.start:end]))
				} else {
					comments, _ := leadingComments(raw)
					b.at.Trailing = append(b.at.Trailing, comments...)
				}
				blocks = blocks[:len(blocks)-1]
			}

		case css.QualifiedRuleGrammar:
			// selector text is picked up with the rule which opens the block
			continue

		case css.BeginRulesetGrammar:
			comments, rest := leadingComments(raw)
			appendComments(comments)
			r := &Rule{Selectors: splitSelectors(strings.TrimSpace(string(trimTerminator(rest))))}
			if len(r.Selectors) == 0 {
				r.Selectors = splitSelectors(selectorText(gdata, parser.Values()))
			}
			appendNode(r)
			blocks = append(blocks, &block{rule: r, start: end})

		case css.EndRulesetGrammar:
			if b := top(); b != nil && b.rule != nil {
				comments, _ := leadingComments(raw)
				b.rule.Trailing = append(b.rule.Trailing, comments...)
				blocks = blocks[:len(blocks)-1]
			}

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			comments, rest := leadingComments(raw)
			d := &Declaration{Comments: comments, Custom: gt == css.CustomPropertyGrammar}
			var ok bool
			if d.Property, d.Value, ok = splitDeclaration(trimTerminator(rest)); !ok {
				d.Property, d.Value = string(gdata), joinTokens(parser.Values())
			}
			switch b := top(); {
			case b != nil && b.rule != nil:
				b.rule.Declarations = append(b.rule.Declarations, d)
			case b != nil && b.at != nil:
				b.at.Declarations = append(b.at.Declarations, d)
			default:
				p.log.Debug("Ignoring declaration outside of a block", zap.String("source", src), zap.String("property", d.Property))
			}
		}
		mark = end
	}
}

// span is a lexed token located in the text it was lexed from.
type span struct {
	tt         css.TokenType
	start, end int
}

// lex splits text into tokens. Token data returned by tdewolff lexer covers
// the input without gaps, so offsets are running sums of token lengths.
func lex(text []byte) []span {
	l := css.NewLexer(parse.NewInputString(string(text)))
	var (
		spans []span
		off   int
	)
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			return spans
		}
		spans = append(spans, span{tt: tt, start: off, end: off + len(data)})
		off += len(data)
	}
}

// leadingComments separates comments preceding the first significant token
// (stray semicolons and whitespace are skipped) from the rest of the text.
func leadingComments(text []byte) ([]string, []byte) {
	var comments []string
	for _, s := range lex(text) {
		switch s.tt {
		case css.WhitespaceToken, css.SemicolonToken:
		case css.CommentToken:
			comments = append(comments, string(text[s.start:s.end]))
		default:
			return comments, text[s.start:]
		}
	}
	return comments, nil
}

// trimTerminator drops the token which ended grammar item: ";", "{" or "}".
func trimTerminator(text []byte) []byte {
	text = bytes.TrimRight(text, " \t\r\n\f")
	if n := len(text); n > 0 && (text[n-1] == ';' || text[n-1] == '{' || text[n-1] == '}') {
		text = text[:n-1]
	}
	return text
}

// splitDeclaration returns property name and verbatim value of declaration
// text.
func splitDeclaration(text []byte) (string, string, bool) {
	var prop strings.Builder
	for _, s := range lex(text) {
		switch s.tt {
		case css.ColonToken:
			if prop.Len() == 0 {
				return "", "", false
			}
			return prop.String(), string(bytes.TrimSpace(text[s.end:])), true
		case css.WhitespaceToken, css.CommentToken:
		default:
			prop.Write(text[s.start:s.end])
		}
	}
	return "", "", false
}

// splitAtRule returns at-keyword and verbatim prelude of at-rule text.
func splitAtRule(text []byte) (string, string) {
	spans := lex(text)
	if len(spans) == 0 || spans[0].tt != css.AtKeywordToken {
		return "", ""
	}
	kw := spans[0]
	return strings.ToLower(string(text[kw.start:kw.end])), string(bytes.TrimSpace(text[kw.end:]))
}

// joinTokens restores text of a token sequence collapsing whitespace runs into
// a single space.
func joinTokens(tokens []css.Token) string {
	var sb strings.Builder
	space := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.Write(t.Data)
	}
	return sb.String()
}

// selectorText builds selector string from grammar data and values.
func selectorText(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	sb.WriteString(joinTokens(values))
	return strings.TrimSpace(sb.String())
}

// splitSelectors splits a selector group on commas which are not nested in
// parentheses or brackets (":is(a, b)" stays intact).
func splitSelectors(group string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(group); i++ {
		switch group[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				if s := strings.TrimSpace(group[start:i]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(group[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
