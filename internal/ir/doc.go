// Package ir provides the program representation operated on by typedce.
//
// This package contains data structures only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Heap types live in a per-program arena and are addressed by HeapType
//     handles, so recursive and mutually recursive types need no pointer cycles
//   - Identity, not structure, is what name tables and the catalog key on
//   - Field accesses are stored by index; the text printer always renders them
//     by field name so a removed field can never silently re-target an access
//   - Feature flags do not survive the text form and must be carried explicitly
package ir
