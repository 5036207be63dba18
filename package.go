// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package assetpatch rewrites references inside the header section of
// serialized asset package files according to a redirect database, copying
// the body payload through verbatim. The package has three layers: a
// qualified-name model and redirect Database (qualifiedname.go,
// redirectdb.go), a per-file header parser and rewriter (patcherfile.go and
// the per-table files), and a concurrent batch driver reached through
// Patcher (batch.go).
package assetpatch

// PackageFileMagic identifies a serialized package file. A file whose magic
// reads back byte-swapped was written on a machine of the opposite
// endianness; the parser follows the source file's byte order.
const (
	PackageFileMagic        = 0x9E2A83C1
	PackageFileMagicSwapped = 0xC1832A9E
)

// MinimumSupportedFileVersion is the floor serialized-format version. Files
// below it predate the soft-object-path list section and cannot be safely
// rewritten; the patcher rejects them outright rather than guessing at
// their table layout.
const MinimumSupportedFileVersion = 1008

// Package flags carried in the summary. Only a subset matters to the
// patcher; the rest are copied through untouched.
const (
	// PkgContainsMap marks a package holding a map (level) asset.
	PkgContainsMap = 0x20000000

	// PkgFilterEditorOnly marks a package saved without editor-only data.
	PkgFilterEditorOnly = 0x80000000
)

// SectionKind identifies one of the offset-indexed header sections, in the
// fixed on-disk order the summary indexes them.
type SectionKind int

const (
	SectionSummary SectionKind = iota
	SectionNameTable
	SectionSoftObjectPaths
	SectionGatherableTextData
	SectionImports
	SectionExports
	SectionSoftPackageReferences
	SectionSearchableNames
	SectionThumbnails
	SectionAssetRegistryData
	SectionAssetRegistryDependencyData
)

// String stringify the header section kind.
func (s SectionKind) String() string {
	sectionMap := map[SectionKind]string{
		SectionSummary:                     "Summary",
		SectionNameTable:                   "NameTable",
		SectionSoftObjectPaths:             "SoftObjectPaths",
		SectionGatherableTextData:          "GatherableTextData",
		SectionImports:                     "Imports",
		SectionExports:                     "Exports",
		SectionSoftPackageReferences:       "SoftPackageReferences",
		SectionSearchableNames:             "SearchableNames",
		SectionThumbnails:                  "Thumbnails",
		SectionAssetRegistryData:           "AssetRegistryData",
		SectionAssetRegistryDependencyData: "AssetRegistryDependencyData",
	}

	return sectionMap[s]
}

// IsSizePreserving reports whether a patch is forbidden from changing the
// serialized size of this section. Exports, soft-package references and
// searchable names store only fixed-width fields and name-table indices;
// the patcher rewrites them strictly in place and a non-zero size delta in
// any of them is a programmer error, not a recoverable condition.
func (s SectionKind) IsSizePreserving() bool {
	switch s {
	case SectionExports, SectionSoftPackageReferences, SectionSearchableNames:
		return true
	default:
		return false
	}
}

// Well-known names used when the import planner synthesizes a new outer
// import entry, and the fixed markers the patcher keys special cases on.
const (
	coreUObjectPackage  = "/Script/CoreUObject"
	classNamePackage    = "Package"
	classNameObject     = "Object"
	gameFeatureDataName = "GameFeatureData"
	primaryAssetNameKey = "PrimaryAssetName"
	contentDirMarker    = "/Content/"

	// noneName is the null name: fields with no value (an import's absent
	// package override, say) reference this entry instead of an empty
	// string.
	noneName = "None"
)
