package spriter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled is returned by Batch.Run when its context is done before
	// the batch completes. Nothing is emitted in this case.
	ErrCancelled = errors.New("sprite batch cancelled")

	// ErrBatchClosed is returned when documents are added to or a run is
	// requested from a batch which already started running.
	ErrBatchClosed = errors.New("sprite batch is not accepting documents")
)

// ParseError reports malformed stylesheet.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse stylesheet %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReferenceConflictError reports a physical image claimed by two sprite
// groups.
type ReferenceConflictError struct {
	Path        string
	Existing    string
	Conflicting string
}

func (e *ReferenceConflictError) Error() string {
	return fmt.Sprintf("image %s is claimed by two sprite groups: %q and %q", e.Path, e.Existing, e.Conflicting)
}

// VerificationFailure reports image which could not be found.
type VerificationFailure struct {
	Path string
	Key  string
	Err  error // nil when image simply does not exist
}

func (e *VerificationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to verify image %s (sprite %q): %v", e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("image %s (sprite %q) does not exist", e.Path, e.Key)
}

func (e *VerificationFailure) Unwrap() error { return e.Err }

// PackingError reports failed sprite group build.
type PackingError struct {
	Key string
	Err error
}

func (e *PackingError) Error() string {
	return fmt.Sprintf("unable to build sprite sheet %q: %v", e.Key, e.Err)
}

func (e *PackingError) Unwrap() error { return e.Err }

// WriteError reports failed output write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DestinationConflictError reports several outputs mapped to the same
// destination file.
type DestinationConflictError struct {
	Destination string
	Sources     []string
}

func (e *DestinationConflictError) Error() string {
	return fmt.Sprintf("several outputs would be written to %s: %s", e.Destination, strings.Join(e.Sources, ", "))
}
