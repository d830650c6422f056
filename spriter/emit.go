package spriter

import (
	"bytes"
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// output is a single file to be written.
type output struct {
	source string
	dst    string
	data   []byte
}

// emit assembles batch result and writes sheets and stylesheets. Destination
// collisions are detected before anything is written. Writes run
// concurrently, failures are diagnostics and do not stop other writes.
func (b *Batch) emit(ctx context.Context) (*Result, error) {
	log := b.log.Named("emit")

	res := &Result{ID: b.id}
	var outputs, urls []output

	for _, grp := range b.sortedGroups() {
		if grp.Status != GroupPacked {
			continue
		}
		sr := SheetResult{
			Key:         grp.Key,
			File:        b.sheetName(grp),
			URL:         b.sheetURL(grp),
			Image:       grp.Image,
			Width:       grp.Width,
			Height:      grp.Height,
			Members:     grp.Members,
			Coordinates: grp.Coordinates,
		}
		urls = append(urls, output{source: grp.Key, dst: sr.URL})
		if b.opts.SpriteSheetDir != "" {
			sr.Destination = filepath.Join(b.opts.SpriteSheetDir, sr.File)
			outputs = append(outputs, output{source: grp.Key, dst: sr.Destination, data: grp.Image})
		}
		res.Sheets = append(res.Sheets, sr)
	}

	for _, doc := range b.docs {
		rr := RewriteResult{
			Source:  doc.Path,
			Text:    doc.Output,
			Changed: !bytes.Equal(doc.Output, doc.Source),
		}
		if b.opts.CSSOutputDir != "" {
			rr.Destination = b.destination(doc.Path)
			outputs = append(outputs, output{source: doc.Path, dst: rr.Destination, data: doc.Output})
		}
		res.Stylesheets = append(res.Stylesheets, rr)
	}

	// sheet URLs must be unique even when sheets are not written
	if err := checkDestinations(urls, path.Clean); err != nil {
		return nil, err
	}
	if err := checkDestinations(outputs, filepath.Clean); err != nil {
		return nil, err
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []error
	)
	g.SetLimit(b.opts.workers())
	for _, out := range outputs {
		g.Go(func() error {
			if err := b.fs.Write(out.dst, out.data); err != nil {
				log.Warn("Unable to write output", zap.String("path", out.dst), zap.Error(err))
				mu.Lock()
				failed = append(failed, &WriteError{Path: out.dst, Err: err})
				mu.Unlock()
				return nil
			}
			log.Debug("Output written", zap.String("path", out.dst), zap.Int("bytes", len(out.data)))
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(failed, func(x, y error) int {
		return strings.Compare(x.(*WriteError).Path, y.(*WriteError).Path)
	})
	res.Diagnostics = append(slices.Clone(b.diags), failed...)
	return res, nil
}

// destination returns path of rewritten stylesheet. Stylesheets under
// CSSRoot keep their relative location, everything else is flattened to its
// base name.
func (b *Batch) destination(src string) string {
	if b.opts.CSSRoot != "" {
		rel, err := filepath.Rel(b.opts.CSSRoot, src)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.Join(b.opts.CSSOutputDir, rel)
		}
		b.log.Debug("Stylesheet is outside of css root", zap.String("stylesheet", src), zap.String("root", b.opts.CSSRoot))
	}
	return filepath.Join(b.opts.CSSOutputDir, filepath.Base(src))
}

// checkDestinations fails when several outputs share destination, clean
// normalizes destinations before comparison.
func checkDestinations(outputs []output, clean func(string) string) error {
	seen := make(map[string][]string, len(outputs))
	var order []string
	for _, out := range outputs {
		key := clean(out.dst)
		if _, ok := seen[key]; !ok {
			order = append(order, key)
		}
		seen[key] = append(seen[key], out.source)
	}
	for _, dst := range order {
		if sources := seen[dst]; len(sources) > 1 {
			return &DestinationConflictError{Destination: dst, Sources: sources}
		}
	}
	return nil
}
