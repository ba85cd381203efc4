// Package validator decides whether a program is well-typed.
//
// Validate returns every error it finds (it does not fail fast). Valid is the
// boolean verdict consumed by passes; a rejection is an ordinary outcome and
// never an error of the validator itself.
package validator

import (
	"fmt"

	"github.com/roach88/typedce/internal/ir"
)

// Validation error codes (V100-V199)
const (
	// Declaration errors (V100-V109)
	ErrDuplicateTypeName  = "V100" // two heap types share a name
	ErrDuplicateFieldName = "V101" // two fields of one struct share a name
	ErrInvalidTypeRef     = "V102" // reference to a missing type or a type of the wrong kind
	ErrInvalidSupertype   = "V103" // supertype is not a struct or fields are not a prefix
	ErrFeatureDisabled    = "V104" // construct needs a feature that is not enabled
	ErrSupertypeCycle     = "V105" // declared supertypes form a cycle

	// Module field errors (V110-V119)
	ErrDuplicateName   = "V110" // duplicate function or global name
	ErrUnknownName     = "V111" // unknown function, global or local
	ErrSignatureClash  = "V112" // function does not match its declared signature
	ErrMultipleResults = "V113" // more than one result is not supported

	// Expression errors (V120-V139)
	ErrTypeMismatch    = "V120" // operand or result has the wrong type
	ErrUnknownField    = "V121" // field name or index does not exist
	ErrImmutableField  = "V122" // write to an immutable field or array
	ErrNotDefaultable  = "V123" // default allocation of a type with non-defaultable fields
	ErrOperandCount    = "V124" // wrong number of operands
	ErrNonConstantInit = "V125" // global initializer is not a constant expression
	ErrImmutableGlobal = "V126" // write to an immutable global
	ErrMissingValue    = "V127" // expression must produce a value and does not
	ErrUnusedValue     = "V128" // value produced where none is expected
)

// ValidationError is one well-typedness violation.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Oracle is the default validator. The zero value is ready to use.
type Oracle struct{}

// Valid reports whether p is well-typed.
func (Oracle) Valid(p *ir.Program) bool {
	return len(Validate(p)) == 0
}

// Valid reports whether p is well-typed.
func Valid(p *ir.Program) bool {
	return len(Validate(p)) == 0
}

// Validate type-checks p and returns all errors found.
func Validate(p *ir.Program) []ValidationError {
	v := &validator{p: p}
	v.types()
	v.moduleFields()
	return v.errs
}

type validator struct {
	p    *ir.Program
	errs []ValidationError
}

func (v *validator) errorf(path, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) typeLabel(h ir.HeapType) string {
	if name := v.p.TypeName(h); name != "" {
		return "$" + name
	}
	return fmt.Sprintf("type[%d]", int(h))
}

// types checks the heap type declarations.
func (v *validator) types() {
	names := make(map[string]ir.HeapType)
	for i, def := range v.p.Types {
		h := ir.HeapType(i)
		path := fmt.Sprintf("types[%d]", i)

		if name := v.p.TypeName(h); name != "" {
			if prev, dup := names[name]; dup {
				v.errorf(path, ErrDuplicateTypeName, "type name $%s already used by types[%d]", name, int(prev))
			} else {
				names[name] = h
			}
		}

		switch def.Kind {
		case ir.KindStruct:
			v.requireFeature(path, ir.FeatureGC, "struct types")
			fieldNames := make(map[string]bool)
			for fi := range def.Fields {
				name := v.p.FieldName(h, fi)
				if name == "" {
					continue
				}
				if fieldNames[name] {
					v.errorf(fmt.Sprintf("%s.fields[%d]", path, fi), ErrDuplicateFieldName,
						"duplicate field name $%s in %s", name, v.typeLabel(h))
				}
				fieldNames[name] = true
			}
			for fi, f := range def.Fields {
				v.valueType(fmt.Sprintf("%s.fields[%d]", path, fi), f.Type)
			}
			v.supertype(path, h, def)
		case ir.KindArray:
			v.requireFeature(path, ir.FeatureGC, "array types")
			v.valueType(path+".elem", def.Elem.Type)
		case ir.KindFunc:
			for pi, t := range def.Params {
				v.valueType(fmt.Sprintf("%s.params[%d]", path, pi), t)
			}
			for ri, t := range def.Results {
				v.valueType(fmt.Sprintf("%s.results[%d]", path, ri), t)
			}
			if len(def.Results) > 1 {
				v.errorf(path, ErrMultipleResults, "%s has %d results", v.typeLabel(h), len(def.Results))
			}
		default:
			v.errorf(path, ErrInvalidTypeRef, "unknown kind %s", def.Kind)
		}
		if def.Kind != ir.KindStruct && def.Super != ir.NoType {
			v.errorf(path, ErrInvalidSupertype, "only struct types may declare a supertype")
		}
	}
}

func (v *validator) supertype(path string, h ir.HeapType, def *ir.TypeDef) {
	if def.Super == ir.NoType {
		return
	}
	super := v.p.Type(def.Super)
	if !super.IsStruct() {
		v.errorf(path, ErrInvalidSupertype, "supertype of %s is not a struct", v.typeLabel(h))
		return
	}
	// Walk up the chain to reject cycles.
	seen := map[ir.HeapType]bool{h: true}
	for cur := def.Super; cur != ir.NoType; {
		if seen[cur] {
			v.errorf(path, ErrSupertypeCycle, "supertype chain of %s is cyclic", v.typeLabel(h))
			return
		}
		seen[cur] = true
		next := v.p.Type(cur)
		if next == nil {
			break
		}
		cur = next.Super
	}
	if len(super.Fields) > len(def.Fields) {
		v.errorf(path, ErrInvalidSupertype, "%s has %d fields, fewer than supertype %s (%d)",
			v.typeLabel(h), len(def.Fields), v.typeLabel(def.Super), len(super.Fields))
		return
	}
	for i, sf := range super.Fields {
		f := def.Fields[i]
		if f.Mutable != sf.Mutable || !sameType(f.Type, sf.Type) {
			v.errorf(fmt.Sprintf("%s.fields[%d]", path, i), ErrInvalidSupertype,
				"field %d of %s does not match supertype %s", i, v.typeLabel(h), v.typeLabel(def.Super))
		}
	}
}

func (v *validator) requireFeature(path string, feature ir.FeatureSet, what string) {
	if !v.p.Features.Has(feature) {
		v.errorf(path, ErrFeatureDisabled, "%s require feature %s", what, feature)
	}
}

// valueType checks that a value type refers to an existing heap type.
func (v *validator) valueType(path string, t ir.ValueType) {
	if t.Kind != ir.Ref {
		return
	}
	v.requireFeature(path, ir.FeatureReferenceTypes, "reference types")
	if v.p.Type(t.Heap) == nil {
		v.errorf(path, ErrInvalidTypeRef, "reference to unknown heap type %d", int(t.Heap))
	}
}

func sameType(a, b ir.ValueType) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ir.Ref {
		return a.Heap == b.Heap && a.Nullable == b.Nullable
	}
	return true
}

// isSubtype reports whether a value of type a may be used where b is expected.
func (v *validator) isSubtype(a, b ir.ValueType) bool {
	if a.Kind == ir.Unknown || b.Kind == ir.Unknown {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != ir.Ref {
		return true
	}
	if a.Nullable && !b.Nullable {
		return false
	}
	return v.isHeapSubtype(a.Heap, b.Heap)
}

func (v *validator) isHeapSubtype(a, b ir.HeapType) bool {
	seen := make(map[ir.HeapType]bool)
	for cur := a; cur != ir.NoType && !seen[cur]; {
		if cur == b {
			return true
		}
		seen[cur] = true
		def := v.p.Type(cur)
		if def == nil {
			return false
		}
		cur = def.Super
	}
	return false
}

func (v *validator) describe(t ir.ValueType) string {
	switch t.Kind {
	case ir.Unknown:
		return "unknown"
	case ir.Ref:
		if t.Nullable {
			return "(ref null " + v.typeLabel(t.Heap) + ")"
		}
		return "(ref " + v.typeLabel(t.Heap) + ")"
	default:
		return t.Kind.NumericName()
	}
}
