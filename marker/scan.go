package marker

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// scan tokenizes value with CSS lexer and calls emit for every url() token
// carrying a marker. Token data covers the input without gaps, so offsets of
// a token are running sums of lengths of the tokens preceding it.
func scan(value string, emit func(Match)) {
	l := css.NewLexer(parse.NewInputString(value))
	for off := 0; ; {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			return
		}
		start := off
		off += len(data)
		if tt != css.URLToken {
			continue
		}
		url, quote, ok := unwrapURL(string(data))
		if !ok {
			continue
		}
		if m, marked := Parse(url); marked {
			m.Start, m.End, m.Quote = start, off, quote
			emit(m)
		}
	}
}

// unwrapURL extracts URL text and its quote from url() token. Lexer accepts
// url() cut short by the end of input, such token is rejected.
func unwrapURL(token string) (string, byte, bool) {
	open := strings.IndexByte(token, '(')
	if open < 0 || !strings.HasSuffix(token, ")") {
		return "", 0, false
	}
	s := strings.Trim(token[open+1:len(token)-1], " \t\r\n\f")
	if s == "" {
		return "", 0, false
	}
	if q := s[0]; q == '"' || q == '\'' {
		if len(s) < 2 || s[len(s)-1] != q {
			return "", 0, false
		}
		return s[1 : len(s)-1], q, true
	}
	return s, 0, true
}
