package spriter

import (
	"spriter/css"
	"spriter/packer"
)

// Document is a single stylesheet of the batch.
type Document struct {
	Path   string // absolute
	Source []byte
	Sheet  *css.Stylesheet
	Output []byte // filled by rewriting

	decls []css.DeclarationRef
	cites map[string]int // image path -> number of citing markers
}

// Status is the existence status of an image.
type Status int

const (
	StatusUnchecked Status = iota
	StatusPresent
	StatusAbsent
)

func (s Status) String() string {
	switch s {
	case StatusPresent:
		return "present"
	case StatusAbsent:
		return "absent"
	default:
		return "unchecked"
	}
}

// Reference is a single physical image cited by stylesheets of the batch.
// There is at most one Reference per path.
type Reference struct {
	Path      string
	Key       string
	Group     string
	Ext       string
	Status    Status
	Citations int

	err error // verification problem other than absence
}

// GroupStatus is the packing status of a sprite group.
type GroupStatus int

const (
	GroupPending GroupStatus = iota
	GroupPacked
	GroupFailed
)

func (s GroupStatus) String() string {
	switch s {
	case GroupPacked:
		return "packed"
	case GroupFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Group is a set of images composed into one sprite sheet.
type Group struct {
	Key     string // name + "." + ext
	Name    string
	Ext     string
	Members []string // natural order

	Status      GroupStatus
	Image       []byte
	Width       int
	Height      int
	Coordinates map[string]packer.Rect
	Err         error
}

// candidate is a marked URL found during ingestion and resolved to a file.
type candidate struct {
	path  string
	key   string
	group string
	ext   string
}
