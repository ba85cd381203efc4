package ir

import "golang.org/x/text/unicode/norm"

// TypeNames is the name record for one heap type: its own name and, for
// structs, a mapping from field index to field name.
type TypeNames struct {
	Name       string
	FieldNames map[int]string
}

// Clone returns a deep copy of n.
func (n *TypeNames) Clone() *TypeNames {
	c := &TypeNames{Name: n.Name, FieldNames: make(map[int]string, len(n.FieldNames))}
	for i, name := range n.FieldNames {
		c.FieldNames[i] = name
	}
	return c
}

// NormalizeName returns the NFC form of an identifier. Every name that
// enters a program from outside goes through here so that equal-looking
// identifiers compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
