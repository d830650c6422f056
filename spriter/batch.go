// Package spriter consolidates sprite marked background images of a batch of
// stylesheets into composed sprite sheets and rewrites the stylesheets to use
// them.
//
// A Batch accumulates stylesheets first (Add) and then resolves everything at
// once (Run), going through phases
//
//	INGESTING -> VERIFYING -> GROUPING -> PACKING -> REWRITING -> EMITTING -> DONE
//
// Verification and packing tasks run concurrently and each of these phases
// completes only after all its tasks settled.
package spriter

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spriter/css"
	"spriter/packer"
)

// Phase of the batch.
type Phase int

const (
	PhaseIngesting Phase = iota
	PhaseVerifying
	PhaseGrouping
	PhasePacking
	PhaseRewriting
	PhaseEmitting
	PhaseDone
)

var phaseNames = [...]string{"INGESTING", "VERIFYING", "GROUPING", "PACKING", "REWRITING", "EMITTING", "DONE"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Batch is the state of a single run. It is created per run and discarded
// afterwards, independent batches do not share anything.
type Batch struct {
	id   string
	opts Options
	log  *zap.Logger

	parser Parser
	packer packer.Packer
	fs     FS

	mu     sync.Mutex
	phase  Phase
	fatal  error
	docs   []*Document
	byPath map[string]int
	refs   map[string]*Reference
	groups map[string]*Group
	diags  []error
}

// NewBatch creates a batch ready for ingestion.
func NewBatch(opts Options, c Collaborators, log *zap.Logger) *Batch {
	if log == nil {
		log = zap.NewNop()
	}

	id := uuid.New()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7
	}

	b := &Batch{
		id:     id.String(),
		opts:   opts,
		parser: c.Parser,
		packer: c.Packer,
		fs:     c.FS,
		byPath: make(map[string]int),
		refs:   make(map[string]*Reference),
		groups: make(map[string]*Group),
	}
	b.log = log.Named("spriter").With(zap.String("run", b.id))

	if b.parser == nil {
		b.parser = css.NewParser(log)
	}
	if b.packer == nil {
		b.packer = packer.New(log)
	}
	if b.fs == nil {
		b.fs = OSFS{}
	}
	if b.opts.OutputIndent == "" {
		b.opts.OutputIndent = css.DefaultIndent
	}
	for _, dir := range []*string{&b.opts.CSSRoot, &b.opts.WebRoot} {
		if *dir == "" {
			continue
		}
		if abs, err := filepath.Abs(*dir); err == nil {
			*dir = abs
		}
	}
	return b
}

// ID returns random identifier of the run, it is attached to every log record
// of the batch.
func (b *Batch) ID() string {
	return b.id
}

// Phase returns current phase.
func (b *Batch) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Add ingests a stylesheet. A path added again replaces previous content.
// Malformed stylesheets are tolerated in silent mode, image claimed by two
// sprite groups never is. Any error returned by Add makes subsequent Run fail
// with the same error.
func (b *Batch) Add(path string, content []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to resolve stylesheet path %s: %w", path, err)
	}

	// parsing does not touch batch state
	sheet, perr := b.parser.Parse(content, abs)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != PhaseIngesting {
		return ErrBatchClosed
	}

	if perr != nil {
		err := &ParseError{Path: abs, Err: perr}
		if !b.opts.Silent || sheet == nil {
			return b.fail(err)
		}
		b.log.Warn("Stylesheet is malformed, processing what could be parsed", zap.String("stylesheet", abs), zap.Error(perr))
		b.diags = append(b.diags, err)
	}

	doc := &Document{
		Path:   abs,
		Source: content,
		Sheet:  sheet,
		decls:  extract(sheet, b.opts.IncludeMode),
		cites:  make(map[string]int),
	}
	found := b.candidates(abs, doc.decls)

	var prev *Document
	if i, ok := b.byPath[abs]; ok {
		prev = b.docs[i]
	}
	if err := b.checkConflicts(found, prev); err != nil {
		return b.fail(err)
	}

	if prev != nil {
		b.forget(prev)
		b.docs[b.byPath[abs]] = doc
	} else {
		b.byPath[abs] = len(b.docs)
		b.docs = append(b.docs, doc)
	}
	for _, c := range found {
		b.record(doc, c)
	}

	b.log.Debug("Stylesheet added",
		zap.String("stylesheet", abs),
		zap.Int("declarations", len(doc.decls)),
		zap.Int("references", len(found)))
	return nil
}

func (b *Batch) fail(err error) error {
	if b.fatal == nil {
		b.fatal = err
	}
	return err
}

// checkConflicts makes sure that none of found images is claimed by another
// group, either by already ingested stylesheets or within found itself.
// Citations of prev, which is about to be replaced, do not count.
func (b *Batch) checkConflicts(found []candidate, prev *Document) error {
	local := make(map[string]string, len(found))
	for _, c := range found {
		if key, ok := local[c.path]; ok && key != c.key {
			return &ReferenceConflictError{Path: c.path, Existing: key, Conflicting: c.key}
		}
		local[c.path] = c.key

		ref, ok := b.refs[c.path]
		if !ok || ref.Key == c.key {
			continue
		}
		if prev != nil && ref.Citations == prev.cites[c.path] {
			continue
		}
		return &ReferenceConflictError{Path: c.path, Existing: ref.Key, Conflicting: c.key}
	}
	return nil
}

// record adds citation of an image to the reference table.
func (b *Batch) record(doc *Document, c candidate) {
	ref, ok := b.refs[c.path]
	if !ok {
		ref = &Reference{Path: c.path, Key: c.key, Group: c.group, Ext: c.ext}
		b.refs[c.path] = ref
	}
	ref.Citations++
	doc.cites[c.path]++
}

// forget removes citations of doc from the reference table.
func (b *Batch) forget(doc *Document) {
	for path, n := range doc.cites {
		ref, ok := b.refs[path]
		if !ok {
			continue
		}
		if ref.Citations -= n; ref.Citations <= 0 {
			delete(b.refs, path)
		}
	}
}

// References returns a snapshot of the reference table ordered by path.
func (b *Batch) References() []Reference {
	b.mu.Lock()
	defer b.mu.Unlock()

	refs := make([]Reference, 0, len(b.refs))
	for _, path := range b.sortedRefs() {
		refs = append(refs, *b.refs[path])
	}
	return refs
}

func (b *Batch) sortedRefs() []string {
	paths := make([]string, 0, len(b.refs))
	for p := range b.refs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (b *Batch) sortedGroups() []*Group {
	keys := make([]string, 0, len(b.groups))
	for k := range b.groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	groups := make([]*Group, len(keys))
	for i, k := range keys {
		groups[i] = b.groups[k]
	}
	return groups
}

// Run resolves the batch: verifies images, groups and packs them, rewrites
// stylesheets and writes outputs. Run may be called once.
func (b *Batch) Run(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	if b.phase != PhaseIngesting {
		b.mu.Unlock()
		return nil, ErrBatchClosed
	}
	if err := b.fatal; err != nil {
		b.phase = PhaseDone
		b.mu.Unlock()
		return nil, err
	}
	// from now on only Run changes batch state, reference status is
	// published under lock
	b.phase = PhaseVerifying
	b.mu.Unlock()

	b.log.Info("Sprite batch starting", zap.Int("stylesheets", len(b.docs)), zap.Int("images", len(b.refs)))

	steps := []struct {
		phase Phase
		run   func(context.Context) error
	}{
		{PhaseVerifying, b.verify},
		{PhaseGrouping, b.group},
		{PhasePacking, b.pack},
		{PhaseRewriting, b.rewrite},
	}
	for _, step := range steps {
		if err := b.advance(ctx, step.phase); err != nil {
			return nil, err
		}
		if err := step.run(ctx); err != nil {
			b.setPhase(PhaseDone)
			return nil, err
		}
	}

	if err := b.advance(ctx, PhaseEmitting); err != nil {
		return nil, err
	}
	res, err := b.emit(ctx)
	b.setPhase(PhaseDone)
	if err != nil {
		return nil, err
	}

	b.log.Info("Sprite batch completed",
		zap.Int("stylesheets", len(res.Stylesheets)),
		zap.Int("sheets", len(res.Sheets)),
		zap.Int("diagnostics", len(res.Diagnostics)))

	if b.opts.OnComplete != nil {
		b.opts.OnComplete()
	}
	return res, nil
}

// advance moves batch to the next phase unless run has been cancelled.
func (b *Batch) advance(ctx context.Context, next Phase) error {
	if err := cancelled(ctx); err != nil {
		b.log.Warn("Sprite batch cancelled", zap.Stringer("phase", b.Phase()))
		b.setPhase(PhaseDone)
		return err
	}
	b.log.Debug("Entering phase", zap.Stringer("phase", next))
	b.setPhase(next)
	return nil
}

func (b *Batch) setPhase(p Phase) {
	b.mu.Lock()
	b.phase = p
	b.mu.Unlock()
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}
