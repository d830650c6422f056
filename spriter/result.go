package spriter

import (
	"go.uber.org/multierr"

	"spriter/packer"
)

// SheetResult describes a composed sprite sheet.
type SheetResult struct {
	Key         string
	File        string // file name
	URL         string // as referenced from stylesheets
	Destination string // empty when sheets are not written
	Image       []byte
	Width       int
	Height      int
	Members     []string
	Coordinates map[string]packer.Rect
}

// RewriteResult is the final text of a single stylesheet.
type RewriteResult struct {
	Source      string
	Destination string // empty when stylesheets are not written
	Text        []byte
	Changed     bool
}

// Result is everything a batch produced. Diagnostics are problems which did
// not abort the run.
type Result struct {
	ID          string
	Stylesheets []RewriteResult
	Sheets      []SheetResult
	Diagnostics []error
}

// Err combines all diagnostics into a single error, nil when run was clean.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	return multierr.Combine(r.Diagnostics...)
}
