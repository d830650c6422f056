package packer

import (
	"cmp"
	"slices"
)

// size of a single input, idx is its position in the input list.
type size struct {
	idx  int
	w, h int
}

// layout places every item and returns rectangles in input order together
// with dimensions of the bounding canvas.
func layout(alg Algorithm, items []size, opts Options) ([]Rect, int, int) {
	var rects []Rect
	switch alg {
	case AlgorithmTopDown:
		rects = stack(items, opts.Padding, true)
	case AlgorithmLeftRight:
		rects = stack(items, opts.Padding, false)
	case AlgorithmShelf:
		rects = shelves(items, opts.Padding, opts.MaxWidth)
	default:
		rects = binaryTree(items, opts.Padding)
	}

	var w, h int
	for _, r := range rects {
		w = max(w, r.X+r.Width)
		h = max(h, r.Y+r.Height)
	}
	return rects, w, h
}

func stack(items []size, padding int, vertical bool) []Rect {
	rects := make([]Rect, len(items))
	pos := 0
	for _, it := range items {
		r := Rect{Width: it.w, Height: it.h}
		if vertical {
			r.Y = pos
			pos += it.h + padding
		} else {
			r.X = pos
			pos += it.w + padding
		}
		rects[it.idx] = r
	}
	return rects
}

// shelves fills horizontal strips left to right, a new strip is started below
// when the current one runs out of width. The strip height is that of its
// tallest item. Items wider than maxWidth get a strip of their own.
func shelves(items []size, padding, maxWidth int) []Rect {
	type shelf struct {
		y, height, x int
	}

	rects := make([]Rect, len(items))
	var strips []shelf
	for _, it := range items {
		pw := it.w + padding

		placed := false
		for i := range strips {
			s := &strips[i]
			if s.x > 0 && s.x+it.w > maxWidth {
				continue
			}
			if it.h > s.height {
				// only the last strip may grow taller
				if i != len(strips)-1 {
					continue
				}
				s.height = it.h
			}
			rects[it.idx] = Rect{X: s.x, Y: s.y, Width: it.w, Height: it.h}
			s.x += pw
			placed = true
			break
		}
		if placed {
			continue
		}

		y := 0
		if n := len(strips); n > 0 {
			y = strips[n-1].y + strips[n-1].height + padding
		}
		strips = append(strips, shelf{y: y, height: it.h, x: pw})
		rects[it.idx] = Rect{X: 0, Y: y, Width: it.w, Height: it.h}
	}
	return rects
}

// node of the growing binary tree packer.
type node struct {
	x, y, w, h  int
	used        bool
	right, down *node
}

func (n *node) find(w, h int) *node {
	if n == nil {
		return nil
	}
	if n.used {
		if r := n.right.find(w, h); r != nil {
			return r
		}
		return n.down.find(w, h)
	}
	if w <= n.w && h <= n.h {
		return n
	}
	return nil
}

func (n *node) split(w, h int) *node {
	n.used = true
	n.down = &node{x: n.x, y: n.y + h, w: n.w, h: n.h - h}
	n.right = &node{x: n.x + w, y: n.y, w: n.w - w, h: h}
	return n
}

// binaryTree packs items into a tree which grows right or down, keeping the
// canvas roughly square. Larger items go first.
func binaryTree(items []size, padding int) []Rect {
	rects := make([]Rect, len(items))
	if len(items) == 0 {
		return rects
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b size) int {
		if c := cmp.Compare(max(b.w, b.h), max(a.w, a.h)); c != 0 {
			return c
		}
		return cmp.Compare(b.h, a.h)
	})

	root := &node{w: sorted[0].w + padding, h: sorted[0].h + padding}
	for _, it := range sorted {
		w, h := it.w+padding, it.h+padding

		n := root.find(w, h)
		if n == nil {
			root, n = grow(root, w, h)
		}
		n.split(w, h)
		rects[it.idx] = Rect{X: n.x, Y: n.y, Width: it.w, Height: it.h}
	}
	return rects
}

// grow extends root to make room for w x h and returns the new root and the
// free node to place the item into.
func grow(root *node, w, h int) (*node, *node) {
	canDown := w <= root.w
	canRight := h <= root.h

	right := canRight && root.h >= root.w+w
	down := canDown && root.w >= root.h+h
	switch {
	case right:
	case down:
	case canRight:
		right = true
	case canDown:
		down = true
	default:
		// cannot happen with items sorted by their larger side, grow both ways
		root, _ = growDown(root, w, h)
		return growRight(root, w, h)
	}

	if right {
		return growRight(root, w, h)
	}
	return growDown(root, w, h)
}

func growRight(root *node, w, h int) (*node, *node) {
	nr := &node{
		used:  true,
		w:     root.w + w,
		h:     max(root.h, h),
		down:  root,
		right: &node{x: root.w, w: w, h: max(root.h, h)},
	}
	return nr, nr.find(w, h)
}

func growDown(root *node, w, h int) (*node, *node) {
	nr := &node{
		used:  true,
		w:     max(root.w, w),
		h:     root.h + h,
		down:  &node{y: root.h, w: max(root.w, w), h: h},
		right: root,
	}
	return nr, nr.find(w, h)
}
