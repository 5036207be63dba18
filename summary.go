// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"path"
	"strings"
)

// Summary is the fixed-layout prologue of a serialized package: version
// identifiers, package flags, the package name, and the counts and file
// offsets of every subsequent header section. All offsets are absolute
// byte positions in the file; an absent optional section stores offset 0.
type Summary struct {
	Magic            uint32 `json:"magic"`
	FileVersion      int32  `json:"file_version"`
	PackageFlags     uint32 `json:"package_flags"`
	TotalHeaderSize  int64  `json:"total_header_size"`
	PackageName      string `json:"package_name"`
	CookedDataOffset int64  `json:"cooked_data_offset"`
	VCellCount       int32  `json:"vcell_count"`

	NameCount                   int32 `json:"name_count"`
	NameOffset                  int64 `json:"name_offset"`
	SoftObjectPathsCount        int32 `json:"soft_object_paths_count"`
	SoftObjectPathsOffset       int64 `json:"soft_object_paths_offset"`
	GatherableTextDataCount     int32 `json:"gatherable_text_data_count"`
	GatherableTextDataOffset    int64 `json:"gatherable_text_data_offset"`
	ImportCount                 int32 `json:"import_count"`
	ImportOffset                int64 `json:"import_offset"`
	ExportCount                 int32 `json:"export_count"`
	ExportOffset                int64 `json:"export_offset"`
	SoftPackageReferencesCount  int32 `json:"soft_package_references_count"`
	SoftPackageReferencesOffset int64 `json:"soft_package_references_offset"`
	SearchableNamesOffset       int64 `json:"searchable_names_offset"`
	ThumbnailTableOffset        int64 `json:"thumbnail_table_offset"`
	AssetRegistryDataOffset     int64 `json:"asset_registry_data_offset"`
}

// minimalSummarySize is the byte size of a summary with an empty package
// name: every fixed field plus the 4-byte empty-string prefix.
const minimalSummarySize = 4 + 4 + 4 + 8 + 4 + 8 + 4 +
	(4+8)*6 + 8 + 8 + 8

// parseSummary decodes the summary at offset 0, establishing the file's
// byte order from the magic, and gates on the minimum supported version
// and on cooked-only artifacts.
func (f *File) parseSummary() error {
	if len(f.data) < minimalSummarySize {
		return ErrInvalidFileSize
	}

	// The magic is written in the producing machine's byte order; a
	// swapped read means the whole file is the other endianness.
	switch binary.LittleEndian.Uint32(f.data) {
	case PackageFileMagic:
		f.order = binary.LittleEndian
	case PackageFileMagicSwapped:
		f.order = binary.BigEndian
	default:
		return ErrInvalidFileSize
	}

	ar := newArchive(f.data, f.order)
	s := &f.Summary
	s.Magic = ar.u32()
	s.FileVersion = ar.i32()
	s.PackageFlags = ar.u32()
	s.TotalHeaderSize = ar.i64()
	s.PackageName = ar.fstring()
	s.CookedDataOffset = ar.i64()
	s.VCellCount = ar.i32()
	s.NameCount = ar.i32()
	s.NameOffset = ar.i64()
	s.SoftObjectPathsCount = ar.i32()
	s.SoftObjectPathsOffset = ar.i64()
	s.GatherableTextDataCount = ar.i32()
	s.GatherableTextDataOffset = ar.i64()
	s.ImportCount = ar.i32()
	s.ImportOffset = ar.i64()
	s.ExportCount = ar.i32()
	s.ExportOffset = ar.i64()
	s.SoftPackageReferencesCount = ar.i32()
	s.SoftPackageReferencesOffset = ar.i64()
	s.SearchableNamesOffset = ar.i64()
	s.ThumbnailTableOffset = ar.i64()
	s.AssetRegistryDataOffset = ar.i64()
	if err := ar.Err(); err != nil {
		return err
	}
	f.summaryEnd = ar.tell()

	if s.FileVersion < MinimumSupportedFileVersion {
		return ErrUnsupportedFileVersion
	}
	if s.CookedDataOffset != 0 || s.VCellCount != 0 {
		return ErrCookedPackage
	}
	if s.TotalHeaderSize < f.summaryEnd || s.TotalHeaderSize > int64(len(f.data)) {
		return ErrOutsideBoundary
	}
	return s.checkSectionOrder(f.summaryEnd)
}

// serialize writes the summary back out. Its size varies only with the
// package-name length.
func (s *Summary) serialize(w *writer) error {
	w.u32(s.Magic)
	w.i32(s.FileVersion)
	w.u32(s.PackageFlags)
	w.i64(s.TotalHeaderSize)
	if err := w.fstring(s.PackageName); err != nil {
		return err
	}
	w.i64(s.CookedDataOffset)
	w.i32(s.VCellCount)
	w.i32(s.NameCount)
	w.i64(s.NameOffset)
	w.i32(s.SoftObjectPathsCount)
	w.i64(s.SoftObjectPathsOffset)
	w.i32(s.GatherableTextDataCount)
	w.i64(s.GatherableTextDataOffset)
	w.i32(s.ImportCount)
	w.i64(s.ImportOffset)
	w.i32(s.ExportCount)
	w.i64(s.ExportOffset)
	w.i32(s.SoftPackageReferencesCount)
	w.i64(s.SoftPackageReferencesOffset)
	w.i64(s.SearchableNamesOffset)
	w.i64(s.ThumbnailTableOffset)
	w.i64(s.AssetRegistryDataOffset)
	return nil
}

// sectionTable lists the summary-indexed sections in required order, with
// offset 0 meaning absent. The summary itself and the dependency data
// (located via an offset inline in the asset-registry section) are not
// summary-indexed and so not listed.
func (s *Summary) sectionTable() []struct {
	kind   SectionKind
	offset int64
} {
	return []struct {
		kind   SectionKind
		offset int64
	}{
		{SectionNameTable, s.NameOffset},
		{SectionSoftObjectPaths, s.SoftObjectPathsOffset},
		{SectionGatherableTextData, s.GatherableTextDataOffset},
		{SectionImports, s.ImportOffset},
		{SectionExports, s.ExportOffset},
		{SectionSoftPackageReferences, s.SoftPackageReferencesOffset},
		{SectionSearchableNames, s.SearchableNamesOffset},
		{SectionThumbnails, s.ThumbnailTableOffset},
		{SectionAssetRegistryData, s.AssetRegistryDataOffset},
	}
}

// checkSectionOrder enforces that every present section's offset is past
// the summary, strictly increasing in the required order, and inside the
// header region.
func (s *Summary) checkSectionOrder(summaryEnd int64) error {
	prev := summaryEnd
	for _, sec := range s.sectionTable() {
		if sec.offset == 0 {
			continue
		}
		if sec.offset < summaryEnd || sec.offset >= s.TotalHeaderSize {
			return ErrOutsideBoundary
		}
		if sec.offset < prev {
			return ErrUnexpectedSectionOrder
		}
		prev = sec.offset
	}
	if s.NameOffset == 0 || s.ImportOffset == 0 || s.ExportOffset == 0 ||
		s.AssetRegistryDataOffset == 0 {
		return ErrEmptyRequiredSection
	}
	return nil
}

// derivePackageNameFromPath recovers a package path from the source file
// path when the summary's own package name is empty: the mount name is the
// last path segment before "/Content/", and the asset path is the
// relative-to-Content remainder without its extension.
func derivePackageNameFromPath(filePath string) (string, bool) {
	norm := strings.ReplaceAll(filePath, "\\", "/")
	idx := strings.LastIndex(norm, contentDirMarker)
	if idx == -1 {
		return "", false
	}
	mountPath := norm[:idx]
	mount := mountPath
	if slash := strings.LastIndexByte(mountPath, '/'); slash != -1 {
		mount = mountPath[slash+1:]
	}
	rel := norm[idx+len(contentDirMarker):]
	if mount == "" || rel == "" {
		return "", false
	}
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return "/" + mount + "/" + rel, true
}

// externalPackageMapName derives the implicit thumbnail package for a
// package living under __ExternalActors__/__ExternalObjects__: the mount
// name doubled, "/<Mount>/<Mount>", where the mount is the first path
// segment after the marker.
func externalPackageMapName(pkg string) (string, bool) {
	marker := externalActorsMarker
	idx := strings.Index(pkg, marker)
	if idx == -1 {
		marker = externalObjectsMarker
		idx = strings.Index(pkg, marker)
	}
	if idx == -1 {
		return "", false
	}
	rest := pkg[idx+len(marker):]
	if slash := strings.IndexByte(rest, '/'); slash != -1 {
		rest = rest[:slash]
	}
	if rest == "" {
		return "", false
	}
	return "/" + rest + "/" + rest, true
}
