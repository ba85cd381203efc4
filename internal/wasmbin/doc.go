// Package wasmbin is the binary form of a program.
//
// The encoding is a tree of protobuf wire-format records (tag, wire type,
// payload) built with protowire. Only heap types reachable from globals and
// functions are written, renumbered in arena order, so a decode of an
// encode is the normalized program. Features are not encoded.
package wasmbin
