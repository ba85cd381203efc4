package ir

// Version constants for the text snapshot and tool.
const (
	// FormatVersion is the binary encoding version written by wasmbin.
	FormatVersion = 1

	// ToolVersion is the typedce version.
	ToolVersion = "0.1.0"
)
