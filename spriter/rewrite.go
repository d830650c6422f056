package spriter

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"spriter/config"
	"spriter/css"
	"spriter/marker"
)

const positionProperty = "background-position"

// rewrite applies packed coordinates to every stylesheet of the batch.
// Stylesheets without changes keep their original text.
func (b *Batch) rewrite(context.Context) error {
	printer := css.Printer{Indent: b.opts.OutputIndent}
	for _, doc := range b.docs {
		changed := 0
		for _, ref := range doc.decls {
			if b.rewriteDeclaration(doc.Path, ref) {
				changed++
			}
		}
		if changed == 0 {
			doc.Output = doc.Source
			continue
		}
		doc.Output = printer.Format(doc.Sheet)
		b.log.Debug("Stylesheet rewritten", zap.String("stylesheet", doc.Path), zap.Int("declarations", changed))
	}
	return nil
}

// rewriteDeclaration replaces every marked URL of the declaration. URLs of
// packed images point to their sheet and get position recorded, the rest
// lose the marker. Positions are inserted as a background-position
// declaration right after the rewritten one, in the order images appear in
// the value. Returns true when declaration was modified.
func (b *Batch) rewriteDeclaration(doc string, ref css.DeclarationRef) bool {
	var positions []string
	value := marker.Replace(ref.Decl.Value, func(m marker.Match) (string, bool) {
		if m.Remote {
			return "", false
		}
		path := b.resolve(doc, m.Path)
		img, ok := b.refs[path]
		if !ok {
			return m.Path, true
		}
		grp, ok := b.groups[img.Key]
		if !ok || grp.Status != GroupPacked {
			return m.Path, true
		}
		rect, ok := grp.Coordinates[path]
		if !ok {
			return m.Path, true
		}
		positions = append(positions, fmt.Sprintf("-%dpx -%dpx", rect.X, rect.Y))
		return b.sheetURL(grp), true
	})
	if value == ref.Decl.Value {
		return false
	}
	ref.Decl.Value = value

	if len(positions) == 0 {
		return true
	}
	pos := &css.Declaration{Property: positionProperty, Value: strings.Join(positions, ", ")}
	if next := ref.Owner.After(ref.Decl); next != nil && next.Name() == positionProperty && next.Value == pos.Value {
		return true
	}
	ref.Owner.InsertAfter(ref.Decl, pos)
	return true
}

// sheetName returns file name of the group sheet.
func (b *Batch) sheetName(grp *Group) string {
	name := grp.Name
	if b.opts.TransliterateNames {
		name = slug.Make(name)
	}
	return config.CleanFileName(name) + "." + grp.Ext
}

// sheetURL returns URL of the group sheet as written into stylesheets.
func (b *Batch) sheetURL(grp *Group) string {
	name := b.sheetName(grp)
	if b.opts.SpriteSheetCSSPrefix == "" {
		return name
	}
	return strings.TrimSuffix(b.opts.SpriteSheetCSSPrefix, "/") + "/" + name
}
