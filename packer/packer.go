// Package packer composes many small images into a single sprite sheet.
//
// A Packer receives plain filesystem paths and an opaque option bag and
// returns encoded sheet together with the rectangle every input occupies in
// it. The default implementation decodes inputs with imaging, lays them out
// with one of the supported algorithms and encodes the sheet in the format
// implied by the inputs extension.
package packer

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Rect is the location of a single input inside composed sheet.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Min returns top left corner of r.
func (r Rect) Min() image.Point {
	return image.Pt(r.X, r.Y)
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Result is the outcome of a single build.
type Result struct {
	Image       []byte
	Width       int
	Height      int
	Coordinates map[string]Rect // keyed by input path as given to Build
}

// Packer builds sprite sheets.
type Packer interface {
	Build(ctx context.Context, paths []string, opts map[string]any) (*Result, error)
}

// Algorithm selects how rectangles are laid out.
type Algorithm int

const (
	AlgorithmBinaryTree Algorithm = iota
	AlgorithmTopDown
	AlgorithmLeftRight
	AlgorithmShelf
)

var algorithmNames = map[Algorithm]string{
	AlgorithmBinaryTree: "binary-tree",
	AlgorithmTopDown:    "top-down",
	AlgorithmLeftRight:  "left-right",
	AlgorithmShelf:      "shelf",
}

func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return "Algorithm(" + strconv.Itoa(int(a)) + ")"
}

// ParseAlgorithm converts algorithm name to its value, names are case
// insensitive.
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, s := range algorithmNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown packing algorithm %q", name)
}

// PNGCompression mirrors png encoder compression levels.
type PNGCompression int

const (
	PNGCompressionDefault PNGCompression = iota
	PNGCompressionSpeed
	PNGCompressionBest
	PNGCompressionNone
)

var compressionNames = map[PNGCompression]string{
	PNGCompressionDefault: "default",
	PNGCompressionSpeed:   "speed",
	PNGCompressionBest:    "best",
	PNGCompressionNone:    "none",
}

// Options are the recognized entries of the option bag.
type Options struct {
	Algorithm      Algorithm
	Padding        int
	MaxWidth       int
	JPEGQuality    int
	PNGCompression PNGCompression
}

const (
	defaultMaxWidth    = 1024
	defaultJPEGQuality = 90
)

// DefaultOptions returns options used for keys missing from the bag.
func DefaultOptions() Options {
	return Options{
		Algorithm:   AlgorithmBinaryTree,
		MaxWidth:    defaultMaxWidth,
		JPEGQuality: defaultJPEGQuality,
	}
}

// ParseOptions reads recognized keys of the bag. Unknown keys are ignored so
// the bag may carry settings for other packers.
func ParseOptions(bag map[string]any) (Options, error) {
	opts := DefaultOptions()

	for key, val := range bag {
		switch strings.ToLower(key) {
		case "algorithm":
			s, err := stringValue(key, val)
			if err != nil {
				return opts, err
			}
			if opts.Algorithm, err = ParseAlgorithm(s); err != nil {
				return opts, err
			}
		case "padding":
			n, err := intValue(key, val)
			if err != nil {
				return opts, err
			}
			if n < 0 {
				return opts, fmt.Errorf("option %q must not be negative: %d", key, n)
			}
			opts.Padding = n
		case "max_width":
			n, err := intValue(key, val)
			if err != nil {
				return opts, err
			}
			if n <= 0 {
				return opts, fmt.Errorf("option %q must be positive: %d", key, n)
			}
			opts.MaxWidth = n
		case "jpeg_quality":
			n, err := intValue(key, val)
			if err != nil {
				return opts, err
			}
			if n < 1 || n > 100 {
				return opts, fmt.Errorf("option %q must be within [1, 100]: %d", key, n)
			}
			opts.JPEGQuality = n
		case "png_compression":
			s, err := stringValue(key, val)
			if err != nil {
				return opts, err
			}
			found := false
			for c, name := range compressionNames {
				if strings.EqualFold(name, s) {
					opts.PNGCompression, found = c, true
					break
				}
			}
			if !found {
				return opts, fmt.Errorf("unknown png compression %q", s)
			}
		}
	}
	return opts, nil
}

func stringValue(key string, val any) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("option %q must be a string, got %T", key, val)
	}
	return s, nil
}

func intValue(key string, val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("option %q must be an integer: %v", key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("option %q must be an integer: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("option %q must be an integer, got %T", key, val)
	}
}
