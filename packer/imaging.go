package packer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// ErrNoInputs is returned when Build is called with an empty path list.
var ErrNoInputs = errors.New("nothing to pack")

// Imaging is the default Packer. It composes sheets with
// github.com/disintegration/imaging.
type Imaging struct {
	log *zap.Logger
}

// New creates default packer.
func New(log *zap.Logger) *Imaging {
	if log == nil {
		log = zap.NewNop()
	}
	return &Imaging{log: log.Named("packer")}
}

// Build decodes every input, lays inputs out and encodes resulting sheet.
// Format of the sheet is taken from the extension of the first input, all
// inputs of a sprite group share it.
func (p *Imaging) Build(ctx context.Context, paths []string, bag map[string]any) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	opts, err := ParseOptions(bag)
	if err != nil {
		return nil, fmt.Errorf("bad packing options: %w", err)
	}

	format, err := imaging.FormatFromFilename(paths[0])
	if err != nil {
		return nil, fmt.Errorf("unable to select sheet format for %s: %w", paths[0], err)
	}

	images := make([]image.Image, len(paths))
	items := make([]size, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := decode(path)
		if err != nil {
			return nil, err
		}
		images[i] = img
		items[i] = size{idx: i, w: img.Bounds().Dx(), h: img.Bounds().Dy()}
	}

	rects, width, height := layout(opts.Algorithm, items, opts)
	p.log.Debug("Layout ready",
		zap.Stringer("algorithm", opts.Algorithm),
		zap.Int("inputs", len(paths)),
		zap.Int("width", width),
		zap.Int("height", height))

	sheet := imaging.New(width, height, color.NRGBA{})
	for i, img := range images {
		sheet = imaging.Paste(sheet, img, rects[i].Min())
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, sheet, format, encodeOptions(opts)...); err != nil {
		return nil, fmt.Errorf("unable to encode %s sheet: %w", format, err)
	}

	res := &Result{
		Image:       buf.Bytes(),
		Width:       width,
		Height:      height,
		Coordinates: make(map[string]Rect, len(paths)),
	}
	for i, path := range paths {
		res.Coordinates[path] = rects[i]
	}
	return res, nil
}

// decode reads a single input refusing anything which does not look like an
// image.
func decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read image: %w", err)
	}
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("%s is not an image (detected %q)", path, kind.MIME.Value)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image %s: %w", path, err)
	}
	return img, nil
}

func encodeOptions(opts Options) []imaging.EncodeOption {
	level := png.DefaultCompression
	switch opts.PNGCompression {
	case PNGCompressionSpeed:
		level = png.BestSpeed
	case PNGCompressionBest:
		level = png.BestCompression
	case PNGCompressionNone:
		level = png.NoCompression
	}
	return []imaging.EncodeOption{
		imaging.JPEGQuality(opts.JPEGQuality),
		imaging.PNGCompressionLevel(level),
	}
}
