// Package diag defines the diagnostic model shared by every compiler phase.
//
// Phases never print. They hand leveled findings to a Reporter, which is
// usually a BagReporter feeding a Bag owned by the driver. The driver sorts,
// deduplicates and renders the bag once the run ends (see Render and
// FormatShort).
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Level: Debug, Info, Note, Warning or Error.
//   - Code: stable numeric identifier with a string form (codes.go).
//   - Message: short, actionable text.
//   - Location: the type, element and optional line/bytecode index the
//     finding refers to. Locations are symbolic since the compiler works on
//     class definitions, not source text.
//   - Notes: secondary locations with extra context.
//
// # Emitting
//
// Use ReportError / ReportWarning / ReportNote to get a ReportBuilder, chain
// WithNote and call Emit. Reporter.Report may be called directly when no notes
// are needed. Bag is safe for concurrent use because scheduler workers report
// from many goroutines at once.
package diag
