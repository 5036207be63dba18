// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// SoftObjectPath is a deferred, string-like reference to an asset: a
// top-level asset path (package name + asset name, both interned) plus an
// optional sub-path below the asset. The table is read with raw name
// references so that no implicit redirection happens at parse time; the
// patch pass is the only place these values change.
type SoftObjectPath struct {
	PackageName NameValue `json:"package_name"`
	AssetName   NameValue `json:"asset_name"`
	SubPath     string    `json:"sub_path"`
}

func parseSoftObjectPaths(ar *archive, nt *NameTable, count int32) ([]SoftObjectPath, error) {
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	paths := make([]SoftObjectPath, 0, count)
	for i := int32(0); i < count; i++ {
		var p SoftObjectPath
		p.PackageName = ar.name(nt)
		p.AssetName = ar.name(nt)
		p.SubPath = ar.fstring()
		paths = append(paths, p)
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func serializeSoftObjectPaths(nw *nameWriter, paths []SoftObjectPath) error {
	for _, p := range paths {
		if err := nw.name(p.PackageName); err != nil {
			return err
		}
		if err := nw.name(p.AssetName); err != nil {
			return err
		}
		if err := nw.w.fstring(p.SubPath); err != nil {
			return err
		}
	}
	return nil
}

// patchSoftObjectPaths redirects each entry's top-level asset path under
// the full type mask and remaps both interned name fields.
func (ps *patchState) patchSoftObjectPaths() {
	for i := range ps.f.SoftObjectPaths {
		p := &ps.f.SoftObjectPaths[i]
		old := Name{Package: p.PackageName.Text, Object: p.AssetName.Text}
		redirected := ps.db.GetRedirectedName(ps.tok, TypeAllMask, old)
		if redirected.Equal(old) {
			ps.names.keep(p.PackageName.Text)
			ps.names.keep(p.AssetName.Text)
			continue
		}
		if redirected.Package != old.Package {
			ps.names.remap(p.PackageName.Text, redirected.Package)
			p.PackageName.Text = redirected.Package
		} else {
			ps.names.keep(p.PackageName.Text)
		}
		if redirected.Object != old.Object {
			ps.names.remap(p.AssetName.Text, redirected.Object)
			p.AssetName.Text = redirected.Object
		} else {
			ps.names.keep(p.AssetName.Text)
		}
	}
}
