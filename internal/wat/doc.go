// Package wat is the snapshot codec: it renders a program to its text form
// and builds a program back from a parsed text document.
//
// The printer emits every reachable heap type once, one (field ...) per
// struct field, and refers to types and fields by name wherever a name
// exists, falling back to indices otherwise. Output is deterministic for a
// given program.
//
// The text form does not carry feature flags; Build takes them explicitly.
package wat
