package spriter

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"spriter/config"
	"spriter/css"
	"spriter/marker"
)

// extract returns declarations of sheet which may carry sprite markers, in
// document order.
func extract(sheet *css.Stylesheet, mode config.IncludeMode) []css.DeclarationRef {
	var refs []css.DeclarationRef
	for _, ref := range sheet.Declarations() {
		if considered(ref.Decl, mode) {
			refs = append(refs, ref)
		}
	}
	return refs
}

func considered(d *css.Declaration, mode config.IncludeMode) bool {
	switch mode {
	case config.IncludeModeExplicit:
		return marker.Contains(d.Value)
	default:
		switch d.Name() {
		case "background", "background-image":
			return true
		}
		return false
	}
}

// candidates resolves every local marked URL of doc declarations.
func (b *Batch) candidates(doc string, decls []css.DeclarationRef) []candidate {
	var found []candidate
	for _, ref := range decls {
		for _, m := range marker.Find(ref.Decl.Value) {
			if m.Remote {
				b.log.Debug("Ignoring remote sprite reference",
					zap.String("stylesheet", doc),
					zap.String("url", m.URL))
				continue
			}
			found = append(found, candidate{
				path:  b.resolve(doc, m.Path),
				key:   m.Key(),
				group: m.Group,
				ext:   m.Ext,
			})
		}
	}
	return found
}

// resolve turns URL path of an image into absolute file path. Query string
// and fragment are dropped.
func (b *Batch) resolve(doc, url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	p := filepath.FromSlash(url)
	if strings.HasPrefix(url, "/") && b.opts.WebRoot != "" {
		return filepath.Join(b.opts.WebRoot, p)
	}
	return filepath.Join(filepath.Dir(doc), p)
}
