package passes

import "fmt"

// Cursor is the lower bound for the next candidate: a type name and a field
// index within that type. The zero Cursor comes before every candidate.
type Cursor struct {
	Type  string
	Field int
}

// IsZero reports whether c has not been positioned yet.
func (c Cursor) IsZero() bool { return c.Type == "" && c.Field == 0 }

// Less reports whether c orders strictly before other.
func (c Cursor) Less(other Cursor) bool {
	if c.Type != other.Type {
		return c.Type < other.Type
	}
	return c.Field < other.Field
}

// Advance returns the position of the next field of the same type.
func (c Cursor) Advance() Cursor {
	return Cursor{Type: c.Type, Field: c.Field + 1}
}

func (c Cursor) String() string {
	if c.IsZero() {
		return "start"
	}
	return fmt.Sprintf("$%s[%d]", c.Type, c.Field)
}
