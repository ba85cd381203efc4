// Package testutil holds helpers shared by package tests: fixture parsing
// and oracles that record what they were asked.
package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/sexpr"
	"github.com/roach88/typedce/internal/wat"
)

// MustParse builds a program from text with every feature enabled.
func MustParse(t testing.TB, src string) *ir.Program {
	t.Helper()
	return MustParseWith(t, src, ir.FeaturesAll)
}

// MustParseWith builds a program from text with the given features.
func MustParseWith(t testing.TB, src string, features ir.FeatureSet) *ir.Program {
	t.Helper()
	p, err := wat.Parse(src, features)
	require.NoError(t, err, "fixture does not parse:\n%s", src)
	return p
}

// MustDocument parses text into its (module ...) document.
func MustDocument(t testing.TB, src string) *sexpr.Element {
	t.Helper()
	doc, err := wat.ParseDocument(src)
	require.NoError(t, err, "fixture does not parse:\n%s", src)
	return doc
}

// Module wraps declarations, one per line, in a (module ...) form in the
// printer's layout.
func Module(decls ...string) string {
	var b strings.Builder
	b.WriteString("(module\n")
	for _, d := range decls {
		b.WriteString(" ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	b.WriteString(")\n")
	return b.String()
}
