package passes

import (
	"strconv"

	"github.com/roach88/typedce/internal/ir"
)

// Prefixes for synthesized names.
const (
	TypeNamePrefix  = "type"
	FieldNamePrefix = "field"
)

// EnsureNames gives every type in types, and every field of every struct
// among them, a name if it lacks one. Type names are unique across the
// program; field names are unique within their struct. Existing names are
// never changed, so a second call with no structural change in between is a
// no-op.
func EnsureNames(p *ir.Program, types []ir.HeapType) {
	used := make(map[string]bool)
	for h, n := range p.TypeNames {
		if n.Name != "" && p.Type(h) != nil {
			used[n.Name] = true
		}
	}

	for _, h := range types {
		def := p.Type(h)
		if def == nil {
			continue
		}
		names := p.Names(h)
		if names.Name == "" {
			names.Name = freshName(TypeNamePrefix, used)
		}
		if !def.IsStruct() {
			continue
		}

		fieldsUsed := make(map[string]bool)
		for i := range def.Fields {
			if name := names.FieldNames[i]; name != "" {
				fieldsUsed[name] = true
			}
		}
		for i := range def.Fields {
			if names.FieldNames[i] == "" {
				names.FieldNames[i] = freshName(FieldNamePrefix, fieldsUsed)
			}
		}
	}
}

// freshName returns prefix, or prefix_N for the smallest N, that is not in
// used, and claims it.
func freshName(prefix string, used map[string]bool) string {
	name := prefix
	for i := 0; used[name]; i++ {
		name = prefix + "_" + strconv.Itoa(i)
	}
	used[name] = true
	return name
}
