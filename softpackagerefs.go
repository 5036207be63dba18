// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// The soft-package-references section is a bare array of interned package
// names. It is size-preserving under patch: each entry is a fixed-width
// name reference, so rewrites only ever swap which table entry an index
// points at.

func parseSoftPackageRefs(ar *archive, nt *NameTable, count int32) ([]NameValue, error) {
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	refs := make([]NameValue, 0, count)
	for i := int32(0); i < count; i++ {
		refs = append(refs, ar.name(nt))
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func serializeSoftPackageRefs(nw *nameWriter, refs []NameValue) error {
	for _, ref := range refs {
		if err := nw.name(ref); err != nil {
			return err
		}
	}
	return nil
}

// patchSoftPackageRefs redirects each referenced package name and remaps
// its table entry.
func (ps *patchState) patchSoftPackageRefs() {
	for i := range ps.f.SoftPackageReferences {
		ref := &ps.f.SoftPackageReferences[i]
		old := Name{Package: ref.Text}
		redirected := ps.db.GetRedirectedName(ps.tok, TypePackage, old)
		if redirected.Package != old.Package {
			ps.names.remap(ref.Text, redirected.Package)
			ref.Text = redirected.Package
		} else {
			ps.names.keep(ref.Text)
		}
	}
}
