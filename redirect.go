// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// RedirectFlags is a bit set describing what kind of thing a Rule redirects
// and how it is matched. Bit values are fixed by the established redirect
// config format, so ini files using the numeric form (rare, but legal)
// parse identically.
type RedirectFlags uint32

// Type bits: the kind of thing being redirected. A query only matches rules
// sharing at least one Type bit.
const (
	TypeObject   RedirectFlags = 0x00000001
	TypeClass    RedirectFlags = 0x00000002
	TypeStruct   RedirectFlags = 0x00000004
	TypeEnum     RedirectFlags = 0x00000008
	TypeFunction RedirectFlags = 0x00000010
	TypeProperty RedirectFlags = 0x00000020
	TypePackage  RedirectFlags = 0x00000040
	TypeAsset    RedirectFlags = 0x00000080
	TypeAllMask  RedirectFlags = 0x0000FFFF
)

// Category bits: a query only matches a rule that has the same value for
// every category bit (not just any overlap, unlike Type).
const (
	CategoryInstanceOnly RedirectFlags = 0x00010000
	CategoryRemoved      RedirectFlags = 0x00020000
	CategoryAllMask      RedirectFlags = 0x00FF0000
)

// Option bits: custom matching behavior, not a bit-overlap test.
const (
	OptionMatchPrefix    RedirectFlags = 0x01000000
	OptionMatchSuffix    RedirectFlags = 0x02000000
	OptionMatchSubstring RedirectFlags = OptionMatchPrefix | OptionMatchSuffix
	OptionMatchWildcard  RedirectFlags = OptionMatchSubstring
	OptionMissingLoad    RedirectFlags = 0x04000000
	OptionAllMask        RedirectFlags = 0xFF000000
)

// Has reports whether every bit in mask is set in f.
func (f RedirectFlags) Has(mask RedirectFlags) bool {
	return f&mask == mask
}

// HasAny reports whether any bit in mask is set in f.
func (f RedirectFlags) HasAny(mask RedirectFlags) bool {
	return f&mask != 0
}

// IsWildcard reports whether f requests a prefix, suffix or substring match
// rather than exact equality.
func (f RedirectFlags) IsWildcard() bool {
	return f.HasAny(OptionMatchWildcard)
}

// Types returns the Type_* bits set in f.
func (f RedirectFlags) Types() RedirectFlags { return f & TypeAllMask }

// Categories returns the Category_* bits set in f.
func (f RedirectFlags) Categories() RedirectFlags { return f & CategoryAllMask }

// Options returns the Option_* bits set in f.
func (f RedirectFlags) Options() RedirectFlags { return f & OptionAllMask }

// Rule is a single redirect: every object whose qualified name matches
// OldName (under Flags) is renamed to NewName. A zero-value NewName with
// CategoryRemoved set marks OldName as deliberately deleted rather than
// renamed.
type Rule struct {
	OldName Name
	NewName Name
	Flags   RedirectFlags

	// ValueChanges holds literal string substitutions applied to properties
	// of instances affected by this rule (the ini grammar's ValueChanges
	// tuple list), e.g. renaming an enum value referenced by a default.
	ValueChanges map[string]string
}

// IsRemoved reports whether the rule marks OldName as removed rather than
// renamed to a live NewName.
func (r Rule) IsRemoved() bool {
	return r.Flags.Has(CategoryRemoved)
}

// Validate reports whether the rule is well-formed: OldName must always be
// a valid, non-empty name; NewName must be valid and non-empty unless the
// rule is a removal, in which case NewName must be empty.
func (r Rule) Validate() bool {
	if r.OldName.IsEmpty() || !r.OldName.HasValidCharacters(r.Flags) {
		return false
	}
	if r.IsRemoved() {
		return r.NewName.IsEmpty()
	}
	return !r.NewName.IsEmpty() && r.NewName.HasValidCharacters(r.Flags)
}

// Matches reports whether query matches this rule's OldName under the
// rule's own Flags (Type overlap, Category equality, Option-driven field
// comparison).
func (r Rule) Matches(query Name, queryFlags RedirectFlags) bool {
	if r.Flags.Types()&queryFlags.Types() == 0 {
		return false
	}
	if r.Flags.Categories() != queryFlags.Categories() {
		return false
	}
	return query.Matches(r.OldName, r.Flags)
}

// Apply rewrites query into its redirected name, field by field, using
// ReplaceField for whichever fields OldName constrains. An unconstrained
// field is carried through unchanged, except that a non-wildcard rule whose
// NewName sets that field replaces it. It is only meaningful to call when
// Matches(query, ...) is true and the rule is not a removal.
func (r Rule) Apply(query Name) Name {
	return Name{
		Package: applyField(query.Package, r.OldName.Package, r.NewName.Package, r.Flags),
		Outer:   applyField(query.Outer, r.OldName.Outer, r.NewName.Outer, r.Flags),
		Object:  applyField(query.Object, r.OldName.Object, r.NewName.Object, r.Flags),
	}
}

func applyField(value, oldPattern, newPattern string, flags RedirectFlags) string {
	if oldPattern == "" {
		// Unconstrained field: pass through, unless the rule supplies a
		// literal replacement for a field it otherwise leaves as wildcard.
		if newPattern != "" && !flags.IsWildcard() {
			return newPattern
		}
		return value
	}
	if !flags.IsWildcard() {
		if value != oldPattern {
			return value
		}
		return newPattern
	}
	return ReplaceField(value, oldPattern, newPattern, flags)
}
