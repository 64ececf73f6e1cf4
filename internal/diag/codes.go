package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// type pipeline
	VerifyFailed     Code = 1001
	ResolutionFailed Code = 1002
	PrepareFailed    Code = 1003
	DuplicateClass   Code = 1004
	ClassNotFound    Code = 1005

	// layout and graph
	LayoutFailed        Code = 2001
	UnmappedArrayField  Code = 2002
	GraphFailed         Code = 2003
	GraphTypeMismatch   Code = 2004
	ForeignDeclarations Code = 2005

	// inputs
	FeatureLoadFailed Code = 3001
	ManifestInvalid   Code = 3002
	ConfigInvalid     Code = 3003
	EntryPointMissing Code = 3004
	FeatureProcessed  Code = 3005

	// driver
	InternalError    Code = 9001
	TooManyErrors    Code = 9002
	ArtifactWriteErr Code = 9003
)

var codeNames = map[Code]string{
	UnknownCode:         "unknown",
	VerifyFailed:        "verify-failed",
	ResolutionFailed:    "resolution-failed",
	PrepareFailed:       "prepare-failed",
	DuplicateClass:      "duplicate-class",
	ClassNotFound:       "class-not-found",
	LayoutFailed:        "layout-failed",
	UnmappedArrayField:  "unmapped-array-field",
	GraphFailed:         "graph-failed",
	GraphTypeMismatch:   "graph-type-mismatch",
	ForeignDeclarations: "foreign-declaration",
	FeatureLoadFailed:   "feature-load-failed",
	ManifestInvalid:     "manifest-invalid",
	ConfigInvalid:       "config-invalid",
	EntryPointMissing:   "entry-point-missing",
	FeatureProcessed:    "feature-processed",
	InternalError:       "internal-error",
	TooManyErrors:       "too-many-errors",
	ArtifactWriteErr:    "artifact-write",
}

// ID returns the short form, e.g. "E1002".
func (c Code) ID() string {
	return fmt.Sprintf("E%04d", uint16(c))
}

// String returns the kebab-case name, or the ID for unregistered codes.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return c.ID()
}
