package spriter

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// verify checks existence of every referenced image. All checks settle before
// verify returns, a failing check never prevents others from running.
func (b *Batch) verify(ctx context.Context) error {
	paths := b.sortedRefs()

	if !b.opts.VerifyImagesExist {
		b.mu.Lock()
		for _, p := range paths {
			b.refs[p].Status = StatusPresent
		}
		b.mu.Unlock()
		return nil
	}

	log := b.log.Named("verify")

	var g errgroup.Group
	g.SetLimit(b.opts.workers())
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		ref := b.refs[p]
		g.Go(func() error {
			ok, err := b.fs.Exists(ref.Path)
			status := StatusAbsent
			if err == nil && ok {
				status = StatusPresent
			}
			// References may be read while batch is running
			b.mu.Lock()
			ref.Status, ref.err = status, err
			b.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := cancelled(ctx); err != nil {
		return err
	}

	var failures []error
	for _, p := range paths {
		ref := b.refs[p]
		if ref.Status != StatusAbsent {
			continue
		}
		log.Warn("Image referenced by stylesheet is missing",
			zap.String("path", ref.Path),
			zap.String("group", ref.Key),
			zap.NamedError("reason", ref.err))
		failures = append(failures, &VerificationFailure{Path: ref.Path, Key: ref.Key, Err: ref.err})
	}

	if len(failures) == 0 {
		return nil
	}
	if !b.opts.Silent {
		return multierr.Combine(failures...)
	}
	b.diags = append(b.diags, failures...)
	return nil
}
