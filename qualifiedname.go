// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "strings"

// Name is a three-field qualified object name: Package/Outer/Object. It is
// a value type cheap enough to pass and compare by field, with a canonical
// string form that round-trips through ParseName.
//
// A package-only name has an empty Outer and Object. A top-level object has
// an empty Outer. A subobject has a non-empty, dot-delimited Outer chain.
type Name struct {
	Package string
	Outer   string
	Object  string
}

// IsPackageOnly reports whether n names a package and nothing else.
func (n Name) IsPackageOnly() bool {
	return n.Outer == "" && n.Object == ""
}

// IsTopLevel reports whether n names a top-level object directly owned by
// its package (no outer chain).
func (n Name) IsTopLevel() bool {
	return n.Outer == "" && n.Object != ""
}

// IsEmpty reports whether n carries no information at all.
func (n Name) IsEmpty() bool {
	return n.Package == "" && n.Outer == "" && n.Object == ""
}

// ParseName splits s into a Name. It returns ok=false for strings with a
// trailing or doubled delimiter, or a '.'/':' delimiter in a string that
// does not start with '/'.
//
// Grammar: (/path.)?(outerchain.)?(name), where the first separator after
// the package may be written as '.' or ':' on input (both are accepted;
// only '.' is ever emitted by String), and the last separator is always
// the subobject delimiter.
func ParseName(s string) (Name, bool) {
	if s == "" {
		return Name{}, true
	}

	firstPeriod := strings.IndexByte(s, '.')
	firstColon := strings.IndexByte(s, ':')
	firstDelim := firstPeriod
	if firstColon != -1 && (firstDelim == -1 || firstColon < firstDelim) {
		firstDelim = firstColon
	}

	if firstDelim == -1 {
		if s[0] == '/' {
			return Name{Package: s}, true
		}
		if strings.ContainsAny(s, "/") {
			// a stray '/' past position 0 is not a valid package marker
			return Name{}, false
		}
		return Name{Object: s}, true
	}

	if s[0] != '/' {
		return Name{}, false
	}

	// Reject a trailing delimiter and any run of two adjacent delimiters.
	if s[len(s)-1] == '.' || s[len(s)-1] == ':' {
		return Name{}, false
	}
	for i := 0; i+1 < len(s); i++ {
		if isDelim(s[i]) && isDelim(s[i+1]) {
			return Name{}, false
		}
	}

	lastPeriod := strings.LastIndexByte(s, '.')
	lastColon := strings.LastIndexByte(s, ':')
	lastDelim := lastPeriod
	if lastColon != -1 && (lastDelim == -1 || lastColon > lastDelim) {
		lastDelim = lastColon
	}

	n := Name{Package: s[:firstDelim]}
	if firstDelim != lastDelim {
		n.Outer = s[firstDelim+1 : lastDelim]
	}
	n.Object = s[lastDelim+1:]
	return n, true
}

func isDelim(b byte) bool {
	return b == '.' || b == ':'
}

// String renders the canonical form: Package.Object, Package.Outer.Object,
// or Package.Outer:Object. The final delimiter is written as ':' when Outer
// itself already contains a '.' or ':' (to keep the string unambiguously
// re-splittable on the *last* delimiter), and as '.' otherwise.
func (n Name) String() string {
	if n.Outer == "" {
		switch {
		case n.Package == "" && n.Object == "":
			return ""
		case n.Package == "":
			return n.Object
		case n.Object == "":
			return n.Package
		default:
			return n.Package + "." + n.Object
		}
	}

	sep := "."
	if strings.ContainsAny(n.Outer, ".:") {
		sep = ":"
	}
	if n.Package == "" {
		return n.Outer + sep + n.Object
	}
	return n.Package + "." + n.Outer + sep + n.Object
}

// Parent strips the innermost component. A package's parent is empty; a
// top-level object's parent is its package; a subobject's parent splits
// Outer on its last '.'.
func (n Name) Parent() Name {
	switch {
	case n.IsPackageOnly():
		return Name{}
	case n.Outer == "":
		return Name{Package: n.Package}
	default:
		if idx := strings.LastIndexByte(n.Outer, '.'); idx != -1 {
			return Name{Package: n.Package, Outer: n.Outer[:idx], Object: n.Outer[idx+1:]}
		}
		return Name{Package: n.Package, Object: n.Outer}
	}
}

// Append is the dual of Parent: it returns the name of an object nested one
// level below n, named child. n's own Object (if any) becomes the new
// name's innermost Outer component.
func (n Name) Append(child string) Name {
	outer := n.Outer
	if n.Object != "" {
		if outer != "" {
			outer = outer + "." + n.Object
		} else {
			outer = n.Object
		}
	}
	return Name{Package: n.Package, Outer: outer, Object: child}
}

// Equal reports exact, field-wise equality.
func (n Name) Equal(other Name) bool {
	return n.Package == other.Package && n.Outer == other.Outer && n.Object == other.Object
}

// Matches reports whether pattern matches n under flags' Option bits.
// Non-empty pattern fields are compared using whichever of exact/prefix/
// suffix/substring the Option bits request; an empty pattern field
// wildcard-matches any value of the corresponding field in n.
func (n Name) Matches(pattern Name, flags RedirectFlags) bool {
	prefix := flags.Has(OptionMatchPrefix)
	suffix := flags.Has(OptionMatchSuffix)
	return fieldMatches(pattern.Package, n.Package, prefix, suffix) &&
		fieldMatches(pattern.Outer, n.Outer, prefix, suffix) &&
		fieldMatches(pattern.Object, n.Object, prefix, suffix)
}

func fieldMatches(pattern, value string, prefix, suffix bool) bool {
	if pattern == "" {
		return true
	}
	switch {
	case prefix && suffix: // substring comparisons are case-insensitive
		return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
	case prefix:
		return strings.HasPrefix(value, pattern)
	case suffix:
		return strings.HasSuffix(value, pattern)
	default:
		return value == pattern
	}
}

// MatchScore returns 0 if pattern does not match n, else a weight that
// prefers exact matches over wildcard matches and matches on more specific
// fields (Object > Outer > Package) over matches on fewer fields. Used to
// rank multiple matching redirect rules before applying them in order.
func (n Name) MatchScore(pattern Name, flags RedirectFlags) int {
	if !n.Matches(pattern, flags) {
		return 0
	}
	score := 2
	if pattern.Object != "" {
		score += 16
	}
	if pattern.Outer != "" {
		score += 8
	}
	if pattern.Package != "" {
		score += 4
	}
	if flags.IsWildcard() {
		score--
	}
	return score
}

// ReplaceField applies a wildcard rewrite to a single field value: the
// portion of value matched by pattern (per the Option bits in flags) is
// replaced by replacement. For substring rules only the first (case
// insensitive) occurrence is replaced.
func ReplaceField(value, pattern, replacement string, flags RedirectFlags) string {
	if pattern == "" {
		return value
	}
	prefix, suffix := flags.Has(OptionMatchPrefix), flags.Has(OptionMatchSuffix)
	switch {
	case prefix && suffix:
		lowerValue, lowerPattern := strings.ToLower(value), strings.ToLower(pattern)
		idx := strings.Index(lowerValue, lowerPattern)
		if idx == -1 {
			return value
		}
		return value[:idx] + replacement + value[idx+len(pattern):]
	case prefix:
		if !strings.HasPrefix(value, pattern) {
			return value
		}
		return replacement + value[len(pattern):]
	case suffix:
		if !strings.HasSuffix(value, pattern) {
			return value
		}
		return value[:len(value)-len(pattern)] + replacement
	default:
		if value != pattern {
			return value
		}
		return replacement
	}
}

// verseMountPrefix is the well-known root under which Verse-scheme packages
// live; their validity rules are more permissive.
const verseMountPrefix = "/Verse/"

func isVerseMountPackage(pkg string) bool {
	return strings.HasPrefix(pkg, verseMountPrefix)
}

// HasValidCharacters reports whether every non-empty field of n is made up
// of characters acceptable for a redirect rule of the given type. Object,
// Property and Function names are permissive (anything but the delimiter
// and raw control characters); every other type forbids the delimiter
// characters outright so a redirect rule can never encode a name that
// would not round-trip through String/ParseName. Verse-mount packages are
// permissive like object names but still forbid '.' itself.
func (n Name) HasValidCharacters(flags RedirectFlags) bool {
	relaxed := flags.HasAny(TypeObject | TypeProperty | TypeFunction)
	verse := isVerseMountPackage(n.Package)

	valid := func(s string) bool {
		for _, r := range s {
			switch r {
			case '\n', '\r', '\t':
				return false
			case '.':
				return false
			case ':':
				if relaxed || verse {
					continue
				}
				return false
			}
		}
		return true
	}
	return valid(n.Package) && valid(n.Outer) && valid(n.Object)
}
