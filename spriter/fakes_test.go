package spriter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"spriter/packer"
)

// memFS is in-memory FS. Every path in files exists, writes are recorded.
type memFS struct {
	mu       sync.Mutex
	files    map[string]bool
	statErr  map[string]error
	writeErr map[string]error
	written  map[string][]byte
	checked  []string
}

func newMemFS(files ...string) *memFS {
	fs := &memFS{
		files:    make(map[string]bool),
		statErr:  make(map[string]error),
		writeErr: make(map[string]error),
		written:  make(map[string][]byte),
	}
	for _, f := range files {
		fs.files[filepath.Clean(f)] = true
	}
	return fs
}

func (fs *memFS) Exists(path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.checked = append(fs.checked, path)
	if err := fs.statErr[path]; err != nil {
		return false, err
	}
	return fs.files[path], nil
}

func (fs *memFS) Write(path string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writeErr[path]; err != nil {
		return err
	}
	fs.written[path] = data
	return nil
}

var errBrokenImage = errors.New("broken image")

// stackPacker places every input in a 10x10 cell, one below another, in the
// order inputs were given. Groups with an input named "broken*" fail.
type stackPacker struct {
	mu    sync.Mutex
	calls map[string][]string // sheet name -> inputs
	opts  []map[string]any    // option bags in call order
	hook  func()
}

func (p *stackPacker) Build(ctx context.Context, paths []string, opts map[string]any) (*packer.Result, error) {
	if p.hook != nil {
		p.hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.calls == nil {
		p.calls = make(map[string][]string)
	}
	p.calls[strings.Join(paths, "|")] = paths
	p.opts = append(p.opts, opts)
	p.mu.Unlock()

	res := &packer.Result{
		Image:       []byte("sheet:" + strings.Join(paths, "|")),
		Width:       10,
		Height:      10 * len(paths),
		Coordinates: make(map[string]packer.Rect, len(paths)),
	}
	for i, path := range paths {
		if strings.HasPrefix(filepath.Base(path), "broken") {
			return nil, errBrokenImage
		}
		res.Coordinates[path] = packer.Rect{X: 0, Y: 10 * i, Width: 10, Height: 10}
	}
	return res, nil
}
