// Package definition promotes raw class definitions through the type
// pipeline: Defined -> Verified -> Resolved -> Prepared.
//
// Each stage is an immutable snapshot reachable only from the previous one,
// so a Prepared type always has a Resolved type behind it, which always has
// a Verified one. Every transition is computed once per type and the outcome
// (value or error) is published for all later callers; failures are not
// retried.
//
// Resolution and preparation request the supertype stages first, outside the
// lock of the type being promoted, so promotion of unrelated types never
// contends and ancestors are settled before their descendants.
package definition
