package ir

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureSet is a bit set of enabled language features.
// Features are not part of the text form; whoever rebuilds a program from
// text must copy them over from the original.
type FeatureSet uint32

const (
	FeatureMutableGlobals FeatureSet = 1 << iota
	FeatureReferenceTypes
	FeatureGC
)

const (
	// FeaturesMVP is the baseline feature set.
	FeaturesMVP = FeatureMutableGlobals

	// FeaturesAll enables every known feature.
	FeaturesAll = FeatureMutableGlobals | FeatureReferenceTypes | FeatureGC
)

var featureNames = map[string]FeatureSet{
	"mutable-globals": FeatureMutableGlobals,
	"reference-types": FeatureReferenceTypes,
	"gc":              FeatureGC,
}

// Has reports whether every feature in other is enabled in f.
func (f FeatureSet) Has(other FeatureSet) bool { return f&other == other }

// With returns f with other enabled.
func (f FeatureSet) With(other FeatureSet) FeatureSet { return f | other }

// Names returns the sorted names of the enabled features.
func (f FeatureSet) Names() []string {
	var out []string
	for name, bit := range featureNames {
		if f.Has(bit) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (f FeatureSet) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), ",")
}

// ParseFeatures converts feature names into a set. "all" and "mvp" are
// accepted as shorthands.
func ParseFeatures(names []string) (FeatureSet, error) {
	var set FeatureSet
	for _, name := range names {
		switch name {
		case "all":
			set |= FeaturesAll
			continue
		case "mvp":
			set |= FeaturesMVP
			continue
		}
		bit, ok := featureNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown feature %q", name)
		}
		set |= bit
	}
	return set, nil
}
