// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "strings"

// ThumbnailEntry indexes one object's cached thumbnail: the object's short
// class name, its path with the package stripped, and the absolute file
// offset of the image data. FileOffset is shifted by the running header
// delta when the table is rewritten.
type ThumbnailEntry struct {
	ObjectClassName              string `json:"object_class_name"`
	ObjectPathWithoutPackageName string `json:"object_path_without_package_name"`
	FileOffset                   int32  `json:"file_offset"`
}

func parseThumbnails(ar *archive) ([]ThumbnailEntry, error) {
	count := ar.i32()
	if ar.Err() != nil {
		return nil, ar.Err()
	}
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	entries := make([]ThumbnailEntry, 0, count)
	for i := int32(0); i < count; i++ {
		var e ThumbnailEntry
		e.ObjectClassName = ar.fstring()
		e.ObjectPathWithoutPackageName = ar.fstring()
		e.FileOffset = ar.i32()
		entries = append(entries, e)
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func serializeThumbnails(w *writer, entries []ThumbnailEntry, offsetDelta int64) error {
	w.i32(int32(len(entries)))
	for _, e := range entries {
		if err := w.fstring(e.ObjectClassName); err != nil {
			return err
		}
		if err := w.fstring(e.ObjectPathWithoutPackageName); err != nil {
			return err
		}
		w.i32(e.FileOffset + int32(offsetDelta))
	}
	return nil
}

// patchThumbnails combines each entry's package-stripped object path with
// the implicit thumbnail package (the map package for external-actor
// packages, the package itself otherwise) to form a full name, redirects
// it as an object and its short class name as a class, and rewrites both
// string fields when either changed.
func (ps *patchState) patchThumbnails() {
	pkg := ps.thumbnailPackage()
	for i := range ps.f.Thumbnails {
		e := &ps.f.Thumbnails[i]

		old, ok := ParseName(pkg + "." + e.ObjectPathWithoutPackageName)
		if !ok {
			continue
		}
		redirectedObj := ps.db.GetRedirectedName(ps.tok, TypeObject, old)

		oldClass := Name{Object: e.ObjectClassName}
		redirectedClass := ps.db.GetRedirectedName(ps.tok, TypeClass, oldClass)

		if redirectedObj.Equal(old) && redirectedClass.Equal(oldClass) {
			continue
		}
		e.ObjectPathWithoutPackageName = stripPackage(redirectedObj)
		e.ObjectClassName = redirectedClass.Object
	}
}

// thumbnailPackage is the package thumbnail object paths are implicitly
// rooted at.
func (ps *patchState) thumbnailPackage() string {
	if mapPkg, ok := externalPackageMapName(ps.originalPackageName); ok {
		return mapPkg
	}
	return ps.originalPackageName
}

// stripPackage renders n without its package component, the form thumbnail
// entries store.
func stripPackage(n Name) string {
	full := n.String()
	if n.Package == "" {
		return full
	}
	return strings.TrimPrefix(full, n.Package+".")
}
