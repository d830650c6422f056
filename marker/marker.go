// Package marker recognizes sprite markers in CSS declaration values.
//
// A marker is an image URL of the form
//
//	url(<path>.png?sprite=<name>)
//
// (also .jpg and .gif, any letter case, quoted or not). The marker opts the
// image into sprite consolidation and names the sprite group it belongs to.
// Values are tokenized with the CSS lexer, so text which merely resembles a
// marker inside a string or another function is never picked up.
package marker

import (
	"path"
	"strings"
)

// Query parameter which names sprite group.
const Param = "sprite"

var imageExts = map[string]bool{
	"png": true,
	"jpg": true,
	"gif": true,
}

// Match is a single marked url() occurrence inside a declaration value.
type Match struct {
	Start, End int    // byte span of the whole url(...) token
	Quote      byte   // quote used inside url(), 0 when unquoted
	URL        string // URL text as written
	Path       string // URL without marker query
	Group      string // sprite group name
	Ext        string // image extension, lower case, without dot
	Remote     bool   // absolute or inline URL, never packed
}

// Key returns sprite group key: group name and image extension.
func (m Match) Key() string {
	return m.Group + "." + m.Ext
}

// Find returns every marked URL of value, left to right.
func Find(value string) []Match {
	var matches []Match
	scan(value, func(m Match) {
		matches = append(matches, m)
	})
	return matches
}

// Contains reports whether value has at least one marker.
func Contains(value string) bool {
	found := false
	scan(value, func(Match) { found = true })
	return found
}

// Replace calls fn for every marked URL of value and substitutes the URL with
// the returned text when ok is true, keeping the original quoting. Everything
// outside of replaced url() tokens is kept byte for byte.
func Replace(value string, fn func(m Match) (url string, ok bool)) string {
	var (
		sb   strings.Builder
		last int
	)
	scan(value, func(m Match) {
		url, ok := fn(m)
		if !ok {
			return
		}
		sb.WriteString(value[last:m.Start])
		sb.WriteString("url(")
		if m.Quote != 0 {
			sb.WriteByte(m.Quote)
			sb.WriteString(url)
			sb.WriteByte(m.Quote)
		} else {
			sb.WriteString(url)
		}
		sb.WriteByte(')')
		last = m.End
	})
	if last == 0 {
		return value
	}
	sb.WriteString(value[last:])
	return sb.String()
}

// Parse splits URL text into path and sprite group. ok is false when url does
// not carry a marker.
func Parse(url string) (m Match, ok bool) {
	q := strings.IndexByte(url, '?')
	if q <= 0 {
		return m, false
	}
	p, query := url[:q], url[q+1:]

	name, found := strings.CutPrefix(query, Param+"=")
	if !found || !validName(name) {
		return m, false
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if !imageExts[ext] || len(p) == len(ext)+1 {
		return m, false
	}

	return Match{
		URL:    url,
		Path:   p,
		Group:  name,
		Ext:    ext,
		Remote: isRemote(p),
	}, true
}

// Strip returns url without sprite marker, url is returned unchanged when it
// has no marker.
func Strip(url string) string {
	if m, ok := Parse(url); ok {
		return m.Path
	}
	return url
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, "/\\?&#=\"' \t\n\r\f")
}

func isRemote(p string) bool {
	lp := strings.ToLower(p)
	for _, prefix := range [...]string{"http:", "https:", "//", "data:"} {
		if strings.HasPrefix(lp, prefix) {
			return true
		}
	}
	return false
}
