package spriter

import (
	"runtime"

	"spriter/config"
	"spriter/css"
	"spriter/packer"
)

// Options control a single batch.
type Options struct {
	IncludeMode config.IncludeMode

	// Where composed sheets are written, empty disables writing.
	SpriteSheetDir string
	// URL prefix of composed sheets in rewritten stylesheets.
	SpriteSheetCSSPrefix string
	// Where rewritten stylesheets are written, empty disables writing.
	CSSOutputDir string
	// When set, stylesheets keep their path relative to this directory under
	// CSSOutputDir instead of being flattened to base names.
	CSSRoot string
	// Directory used to resolve root relative ("/img/a.png") URLs. When empty
	// such URLs are resolved against stylesheet directory.
	WebRoot string

	VerifyImagesExist bool
	Silent            bool

	// Passed to the packer verbatim.
	PackingOptions map[string]any
	OutputIndent   string

	// Transliterate sprite group names when naming sheet files.
	TransliterateNames bool
	// Parallelism of verification, packing and writing, 0 means number of CPUs.
	Workers int

	// Called once after all writes of a successful run settled.
	OnComplete func()
}

// DefaultOptions returns options with the same defaults as configuration
// template.
func DefaultOptions() Options {
	return Options{
		IncludeMode:       config.IncludeModeImplicit,
		VerifyImagesExist: true,
		Silent:            true,
		OutputIndent:      css.DefaultIndent,
	}
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Parser turns stylesheet text into AST.
type Parser interface {
	Parse(data []byte, source ...string) (*css.Stylesheet, error)
}

// Collaborators are external capabilities the batch relies on. Nil members
// are replaced with defaults.
type Collaborators struct {
	Parser Parser
	Packer packer.Packer
	FS     FS
}
