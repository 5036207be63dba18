// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/saferwall/assetpatch/internal/log"
)

// A File represents an open serialized package file: the deserialized
// header tables plus the raw backing buffer the body payload is copied
// through from.
type File struct {
	Summary               Summary                     `json:"summary"`
	Names                 *NameTable                  `json:"names,omitempty"`
	SoftObjectPaths       []SoftObjectPath            `json:"soft_object_paths,omitempty"`
	GatherableTextData    []GatherableTextData        `json:"gatherable_text_data,omitempty"`
	Imports               []Import                    `json:"imports,omitempty"`
	Exports               []Export                    `json:"exports,omitempty"`
	SoftPackageReferences []NameValue                 `json:"soft_package_references,omitempty"`
	SearchableNames       []SearchableNamesEntry      `json:"searchable_names,omitempty"`
	Thumbnails            []ThumbnailEntry            `json:"thumbnails,omitempty"`
	AssetRegistry         AssetRegistryData           `json:"asset_registry"`
	DependencyData        AssetRegistryDependencyData `json:"dependency_data,omitempty"`
	Diagnostics           []string                    `json:"diagnostics,omitempty"`

	hasDependencyData bool
	data              mmap.MMap
	size              uint32
	order             binary.ByteOrder
	path              string
	summaryEnd        int64
	sectionEnd        map[SectionKind]int64
	f                 *os.File
	opts              *Options
	logger            *log.Helper
}

// Options for parsing and patching.
type Options struct {

	// Tag keys whose values are never rewritten (very large pre-computed
	// indices and similar opaque blobs). Nil selects DefaultIgnoredTagKeys.
	IgnoredTagKeys map[string]bool

	// Structured decoder for world-partition actor-metadata tag blobs,
	// by default none (such tags fall through to string substitution).
	TagVisitor TagVisitor

	// When set, every patched file is dumped in "before" and "after"
	// textual JSON form under this directory, by default off.
	DebugDumpDir string

	// A custom logger.
	Logger log.Logger
}

// DefaultIgnoredTagKeys is the stock set of tag keys treated as opaque.
// The set is data, not policy: callers extend it through
// Options.IgnoredTagKeys without recompiling anything.
var DefaultIgnoredTagKeys = map[string]bool{
	"FiBData":            true,
	"AssetSearchIndex":   true,
	"CookedPlatformData": true,
}

// New instantiates a file instance with options given a file name.
func New(name string, opts *Options) (*File, error) {

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	// Memory map the file instead of using read/write.
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := newFile(opts)
	file.data = data
	file.size = uint32(len(file.data))
	file.path = name
	file.f = f
	return file, nil
}

// NewBytes instantiates a file instance with options given a memory buffer.
func NewBytes(data []byte, opts *Options) (*File, error) {
	file := newFile(opts)
	file.data = data
	file.size = uint32(len(file.data))
	return file, nil
}

func newFile(opts *Options) *File {
	file := File{sectionEnd: map[SectionKind]int64{}}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}

	if file.opts.IgnoredTagKeys == nil {
		file.opts.IgnoredTagKeys = DefaultIgnoredTagKeys
	}

	if file.opts.Logger == nil {
		logger := log.NewStdLogger(os.Stdout)
		file.logger = log.NewHelper(log.NewFilter(logger,
			log.FilterLevel(log.LevelError)))
	} else {
		file.logger = log.NewHelper(file.opts.Logger)
	}
	return &file
}

// Close closes the File.
func (f *File) Close() error {
	if f.f != nil {
		_ = f.data.Unmap()
		f.data = nil
		return f.f.Close()
	}
	return nil
}

// Parse deserializes the whole header: the summary first, then every
// present table in summary order. Soft object paths are read with raw name
// references (no redirection happens at parse time); the patch pass is the
// only consumer that interprets them.
func (f *File) Parse() error {
	if err := f.parseSummary(); err != nil {
		return err
	}

	s := &f.Summary
	ar := newArchive(f.data[:s.TotalHeaderSize], f.order)

	parsers := []struct {
		kind   SectionKind
		offset int64
		parse  func(ar *archive) error
	}{
		{SectionNameTable, s.NameOffset, f.parseNameSection},
		{SectionSoftObjectPaths, s.SoftObjectPathsOffset, f.parseSoftObjectPathSection},
		{SectionGatherableTextData, s.GatherableTextDataOffset, f.parseGatherableTextSection},
		{SectionImports, s.ImportOffset, f.parseImportSection},
		{SectionExports, s.ExportOffset, f.parseExportSection},
		{SectionSoftPackageReferences, s.SoftPackageReferencesOffset, f.parseSoftPackageRefSection},
		{SectionSearchableNames, s.SearchableNamesOffset, f.parseSearchableNameSection},
		{SectionThumbnails, s.ThumbnailTableOffset, f.parseThumbnailSection},
		{SectionAssetRegistryData, s.AssetRegistryDataOffset, f.parseAssetRegistrySection},
	}

	for _, p := range parsers {
		if p.offset == 0 {
			continue
		}
		ar.seek(p.offset)
		if err := ar.Err(); err != nil {
			return err
		}
		if err := p.parse(ar); err != nil {
			f.logger.Errorf("failed to parse header section %s: %v", p.kind.String(), err)
			return err
		}
		f.sectionEnd[p.kind] = ar.tell()
	}

	if f.AssetRegistry.DependencyDataOffset != 0 {
		depOff := f.AssetRegistry.DependencyDataOffset
		if depOff < f.sectionEnd[SectionAssetRegistryData] || depOff >= s.TotalHeaderSize {
			return ErrUnexpectedSectionOrder
		}
		ar.seek(depOff)
		dep, err := parseDependencyData(ar, f.Names)
		if err != nil {
			return err
		}
		f.DependencyData = dep
		f.hasDependencyData = true
		f.sectionEnd[SectionAssetRegistryDependencyData] = ar.tell()
	}

	return nil
}

func (f *File) parseNameSection(ar *archive) error {
	nt, err := parseNameTable(ar, f.Summary.NameCount)
	if err != nil {
		return err
	}
	f.Names = nt
	return nil
}

func (f *File) parseSoftObjectPathSection(ar *archive) error {
	paths, err := parseSoftObjectPaths(ar, f.Names, f.Summary.SoftObjectPathsCount)
	if err != nil {
		return err
	}
	f.SoftObjectPaths = paths
	return nil
}

func (f *File) parseGatherableTextSection(ar *archive) error {
	data, err := parseGatherableTextData(ar, f.Summary.GatherableTextDataCount)
	if err != nil {
		return err
	}
	f.GatherableTextData = data
	return nil
}

func (f *File) parseImportSection(ar *archive) error {
	imports, err := parseImports(ar, f.Names, f.Summary.ImportCount)
	if err != nil {
		return err
	}
	f.Imports = imports
	return nil
}

func (f *File) parseExportSection(ar *archive) error {
	exports, err := parseExports(ar, f.Names, f.Summary.ExportCount)
	if err != nil {
		return err
	}
	f.Exports = exports
	return nil
}

func (f *File) parseSoftPackageRefSection(ar *archive) error {
	refs, err := parseSoftPackageRefs(ar, f.Names, f.Summary.SoftPackageReferencesCount)
	if err != nil {
		return err
	}
	f.SoftPackageReferences = refs
	return nil
}

func (f *File) parseSearchableNameSection(ar *archive) error {
	entries, err := parseSearchableNames(ar, f.Names)
	if err != nil {
		return err
	}
	f.SearchableNames = entries
	return nil
}

func (f *File) parseThumbnailSection(ar *archive) error {
	entries, err := parseThumbnails(ar)
	if err != nil {
		return err
	}
	f.Thumbnails = entries
	return nil
}

func (f *File) parseAssetRegistrySection(ar *archive) error {
	data, err := parseAssetRegistry(ar)
	if err != nil {
		return err
	}
	f.AssetRegistry = data
	return nil
}

// packageName returns the package path patching should treat as this
// file's identity: the summary's own name, or, when that is empty, a path
// recovered from the file location on disk.
func (f *File) packageName() (string, error) {
	if f.Summary.PackageName != "" {
		return f.Summary.PackageName, nil
	}
	derived, ok := derivePackageNameFromPath(f.path)
	if !ok {
		return "", ErrEmptyRequiredSection
	}
	f.addDiagnostic(DiagEmptyPackageName)
	return derived, nil
}
