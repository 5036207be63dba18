// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// SearchableNamesEntry maps one object (an import/export link) to the
// names registered as searchable under it. The section is size-preserving:
// both the object link and every name are fixed-width.
type SearchableNamesEntry struct {
	Object PackageIndex `json:"object"`
	Names  []NameValue  `json:"names"`
}

func parseSearchableNames(ar *archive, nt *NameTable) ([]SearchableNamesEntry, error) {
	count := ar.i32()
	if ar.Err() != nil {
		return nil, ar.Err()
	}
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	entries := make([]SearchableNamesEntry, 0, count)
	for i := int32(0); i < count; i++ {
		var e SearchableNamesEntry
		e.Object = PackageIndex(ar.i32())
		nameCount := ar.i32()
		if ar.Err() != nil {
			break
		}
		if nameCount < 0 {
			return nil, ErrOutsideBoundary
		}
		for j := int32(0); j < nameCount; j++ {
			e.Names = append(e.Names, ar.name(nt))
		}
		entries = append(entries, e)
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func serializeSearchableNames(nw *nameWriter, entries []SearchableNamesEntry) error {
	nw.w.i32(int32(len(entries)))
	for _, e := range entries {
		nw.w.i32(int32(e.Object))
		nw.w.i32(int32(len(e.Names)))
		for _, n := range e.Names {
			if err := nw.name(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// patchSearchableNames redirects each inner name value through the generic
// package-level path: with no owning context available, a searchable name
// only matches package-shaped rules.
func (ps *patchState) patchSearchableNames() {
	for i := range ps.f.SearchableNames {
		e := &ps.f.SearchableNames[i]
		for j := range e.Names {
			n := &e.Names[j]
			old := Name{Package: n.Text}
			redirected := ps.db.GetRedirectedName(ps.tok, TypePackage, old)
			if redirected.Package != old.Package {
				ps.names.remap(n.Text, redirected.Package)
				n.Text = redirected.Package
			} else {
				ps.names.keep(n.Text)
			}
		}
	}
}
