package spriter

import (
	"context"
	"sort"

	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// group partitions present images by sprite key. Every image lands in exactly
// one group since reference table has one entry per path.
func (b *Batch) group(context.Context) error {
	for _, p := range b.sortedRefs() {
		ref := b.refs[p]
		if ref.Status == StatusAbsent {
			continue
		}
		g, ok := b.groups[ref.Key]
		if !ok {
			g = &Group{Key: ref.Key, Name: ref.Group, Ext: ref.Ext}
			b.groups[ref.Key] = g
		}
		g.Members = append(g.Members, ref.Path)
	}

	for _, g := range b.groups {
		sort.Sort(natural.StringSlice(g.Members))
		b.log.Debug("Sprite group", zap.String("group", g.Key), zap.Int("members", len(g.Members)))
	}
	return nil
}
