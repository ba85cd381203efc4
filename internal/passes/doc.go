// Package passes holds the program transformations and the machinery to run
// them.
//
// The main pass is type-dce, a speculative fixpoint that removes struct
// fields nothing needs. Each trial prints the program, deletes one field
// declaration from the printed document, rebuilds a candidate program from
// the edited document and asks an Oracle whether the candidate is still
// well-typed. Accepted candidates replace the program wholesale; rejected
// ones are discarded and the Cursor moves on.
//
// Candidates are ordered by type name, then field index. The Cursor only
// moves forward, so a rejected field is never tried again. After a commit
// the Cursor stays put because the next field has shifted into the pruned
// slot.
//
// When the field index is past the end of the chosen struct, Search falls
// through to the next struct by name within the same call and starts that
// struct at field 0.
package passes
