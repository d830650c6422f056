package spriter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errEmptyResult = errors.New("packer returned no image")

// pack builds every sprite group. A failing group is recorded and never
// prevents other groups from being built.
func (b *Batch) pack(ctx context.Context) error {
	groups := b.sortedGroups()
	log := b.log.Named("pack")

	var g errgroup.Group
	g.SetLimit(b.opts.workers())
	for _, grp := range groups {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := b.build(ctx, grp); err != nil {
				grp.Status, grp.Err = GroupFailed, &PackingError{Key: grp.Key, Err: err}
				return nil
			}
			grp.Status = GroupPacked
			return nil
		})
	}
	_ = g.Wait()

	if err := cancelled(ctx); err != nil {
		return err
	}

	for _, grp := range groups {
		if grp.Status != GroupFailed {
			continue
		}
		log.Warn("Sprite sheet was not built, its images are left as is", zap.String("group", grp.Key), zap.Error(grp.Err))
		b.diags = append(b.diags, grp.Err)
	}
	return nil
}

// build runs packer for a single group and checks that every member got its
// place on the sheet.
func (b *Batch) build(ctx context.Context, grp *Group) error {
	res, err := b.packer.Build(ctx, grp.Members, b.opts.PackingOptions)
	if err != nil {
		return err
	}
	if res == nil || len(res.Image) == 0 {
		return errEmptyResult
	}
	for _, m := range grp.Members {
		if _, ok := res.Coordinates[m]; !ok {
			return fmt.Errorf("packer returned no coordinates for %s", m)
		}
	}
	grp.Image, grp.Width, grp.Height, grp.Coordinates = res.Image, res.Width, res.Height, res.Coordinates
	return nil
}
