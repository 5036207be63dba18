// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "sort"

// AssetRegistryDependencyData records which imports and soft package
// references are used in game (as opposed to editor-only), plus an extra
// map of package dependencies that never appear in the import table.
type AssetRegistryDependencyData struct {
	ImportUsedInGame      []bool                   `json:"import_used_in_game"`
	SoftPackageUsedInGame []bool                   `json:"soft_package_used_in_game"`
	ExtraDependencies     []ExtraPackageDependency `json:"extra_dependencies"`
}

// ExtraPackageDependency is one entry of the extra-dependencies map.
type ExtraPackageDependency struct {
	PackageName NameValue `json:"package_name"`
	Flags       uint32    `json:"flags"`
}

func parseDependencyData(ar *archive, nt *NameTable) (AssetRegistryDependencyData, error) {
	var data AssetRegistryDependencyData
	var err error
	if data.ImportUsedInGame, err = parseBitset(ar); err != nil {
		return data, err
	}
	if data.SoftPackageUsedInGame, err = parseBitset(ar); err != nil {
		return data, err
	}
	count := ar.i32()
	if ar.Err() != nil {
		return data, ar.Err()
	}
	if count < 0 {
		return data, ErrOutsideBoundary
	}
	for i := int32(0); i < count; i++ {
		var dep ExtraPackageDependency
		dep.PackageName = ar.name(nt)
		dep.Flags = ar.u32()
		data.ExtraDependencies = append(data.ExtraDependencies, dep)
	}
	if err := ar.Err(); err != nil {
		return data, err
	}
	return data, nil
}

func serializeDependencyData(nw *nameWriter, data AssetRegistryDependencyData) error {
	serializeBitset(nw.w, data.ImportUsedInGame)
	serializeBitset(nw.w, data.SoftPackageUsedInGame)
	nw.w.i32(int32(len(data.ExtraDependencies)))
	for _, dep := range data.ExtraDependencies {
		if err := nw.name(dep.PackageName); err != nil {
			return err
		}
		nw.w.u32(dep.Flags)
	}
	return nil
}

// Bitsets are stored as a bit count followed by packed 32-bit words.

func parseBitset(ar *archive) ([]bool, error) {
	count := ar.i32()
	if ar.Err() != nil {
		return nil, ar.Err()
	}
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	bits := make([]bool, count)
	words := (count + 31) / 32
	for w := int32(0); w < words; w++ {
		word := ar.u32()
		for b := int32(0); b < 32; b++ {
			idx := w*32 + b
			if idx < count {
				bits[idx] = word&(1<<uint(b)) != 0
			}
		}
	}
	return bits, ar.Err()
}

func serializeBitset(w *writer, bits []bool) {
	w.i32(int32(len(bits)))
	words := (len(bits) + 31) / 32
	for wi := 0; wi < words; wi++ {
		var word uint32
		for b := 0; b < 32; b++ {
			idx := wi*32 + b
			if idx < len(bits) && bits[idx] {
				word |= 1 << uint(b)
			}
		}
		w.u32(word)
	}
}

// patchDependencyData reconciles the used-in-game bits with the patched
// import and soft-reference tables (imports synthesized by the rewrite
// inherit their child's bit, already carried on the Import entries), then
// redirects the keys of the extra-dependencies map, unioning flags on
// collisions, and resorts it by package name.
func (ps *patchState) patchDependencyData() {
	if !ps.f.hasDependencyData {
		return
	}
	dep := &ps.f.DependencyData

	bits := make([]bool, len(ps.f.Imports))
	for i := range ps.f.Imports {
		if i < len(dep.ImportUsedInGame) {
			bits[i] = dep.ImportUsedInGame[i]
		} else {
			bits[i] = ps.f.Imports[i].UsedInGame
		}
	}
	dep.ImportUsedInGame = bits

	softBits := make([]bool, len(ps.f.SoftPackageReferences))
	copy(softBits, dep.SoftPackageUsedInGame)
	dep.SoftPackageUsedInGame = softBits

	merged := map[string]ExtraPackageDependency{}
	for _, d := range dep.ExtraDependencies {
		old := Name{Package: d.PackageName.Text}
		redirected := ps.db.GetRedirectedName(ps.tok, TypePackage, old)
		if redirected.Package != old.Package {
			ps.names.remap(d.PackageName.Text, redirected.Package)
			d.PackageName.Text = redirected.Package
		} else {
			ps.names.keep(d.PackageName.Text)
		}
		if existing, ok := merged[d.PackageName.Text]; ok {
			existing.Flags |= d.Flags
			merged[d.PackageName.Text] = existing
		} else {
			merged[d.PackageName.Text] = d
		}
	}
	dep.ExtraDependencies = dep.ExtraDependencies[:0]
	for _, d := range merged {
		dep.ExtraDependencies = append(dep.ExtraDependencies, d)
	}
	sort.Slice(dep.ExtraDependencies, func(i, j int) bool {
		return dep.ExtraDependencies[i].PackageName.Text < dep.ExtraDependencies[j].PackageName.Text
	})
}
