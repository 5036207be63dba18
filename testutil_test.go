// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/saferwall/assetpatch/internal/log"
	"github.com/saferwall/assetpatch/internal/rwrecur"
)

// pkgBuilder assembles a synthetic package file in memory, using the
// production serializers so fixtures and writer stay in lockstep. Leave a
// table nil/empty to omit its section; imports, exports, the name table
// and the asset registry are always emitted (they are required sections).
type pkgBuilder struct {
	packageName string
	fileVersion int32
	extraNames  []string

	softPaths  []SoftObjectPath
	gather     []GatherableTextData
	imports    []Import
	exports    []Export
	softRefs   []NameValue
	searchable []SearchableNamesEntry
	thumbs     []ThumbnailEntry
	registry   AssetRegistryData
	dep        *AssetRegistryDependencyData

	body []byte
}

// collectNames gathers every name-table entry the builder's tables will
// reference at write time.
func (b *pkgBuilder) collectNames() []string {
	seen := map[string]bool{}
	var out []string
	add := func(texts ...string) {
		for _, s := range texts {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	add(b.packageName)
	add(b.extraNames...)
	for _, p := range b.softPaths {
		add(p.PackageName.Text, p.AssetName.Text)
	}
	for _, imp := range b.imports {
		add(imp.ClassPackage.Text, imp.ClassName.Text, imp.ObjectName.Text, imp.PackageName.Text)
	}
	for _, exp := range b.exports {
		add(exp.ObjectName.Text)
	}
	for _, ref := range b.softRefs {
		add(ref.Text)
	}
	for _, e := range b.searchable {
		for _, n := range e.Names {
			add(n.Text)
		}
	}
	if b.dep != nil {
		for _, d := range b.dep.ExtraDependencies {
			add(d.PackageName.Text)
		}
	}
	return out
}

// build serializes the fixture to a complete file image.
func (b *pkgBuilder) build(t *testing.T) []byte {
	t.Helper()
	order := binary.ByteOrder(binary.LittleEndian)
	nt := NewNameTable(b.collectNames())

	section := func(fn func(nw *nameWriter) error) []byte {
		w := newWriter(order)
		nw := &nameWriter{w: w, nt: nt}
		if err := fn(nw); err != nil {
			t.Fatalf("serializing fixture section: %v", err)
		}
		return w.Bytes()
	}

	nameBytes := section(func(nw *nameWriter) error { return nt.serialize(nw.w) })
	softBytes := section(func(nw *nameWriter) error { return serializeSoftObjectPaths(nw, b.softPaths) })
	gatherBytes := section(func(nw *nameWriter) error { return serializeGatherableTextData(nw.w, b.gather) })
	importBytes := section(func(nw *nameWriter) error { return serializeImports(nw, b.imports) })
	exportBytes := section(func(nw *nameWriter) error { return serializeExports(nw, b.exports) })
	refBytes := section(func(nw *nameWriter) error { return serializeSoftPackageRefs(nw, b.softRefs) })
	var searchBytes, thumbBytes []byte
	if len(b.searchable) > 0 {
		searchBytes = section(func(nw *nameWriter) error { return serializeSearchableNames(nw, b.searchable) })
	}
	if len(b.thumbs) > 0 {
		thumbBytes = section(func(nw *nameWriter) error { return serializeThumbnails(nw.w, b.thumbs, 0) })
	}
	regBytes := section(func(nw *nameWriter) error { return serializeAssetRegistry(nw.w, b.registry) })
	var depBytes []byte
	if b.dep != nil {
		depBytes = section(func(nw *nameWriter) error { return serializeDependencyData(nw, *b.dep) })
	}

	s := Summary{
		Magic:        PackageFileMagic,
		FileVersion:  b.fileVersion,
		PackageName:  b.packageName,
		NameCount:    int32(nt.Len()),
		ImportCount:  int32(len(b.imports)),
		ExportCount:  int32(len(b.exports)),
	}
	if s.FileVersion == 0 {
		s.FileVersion = MinimumSupportedFileVersion
	}
	s.SoftObjectPathsCount = int32(len(b.softPaths))
	s.GatherableTextDataCount = int32(len(b.gather))
	s.SoftPackageReferencesCount = int32(len(b.softRefs))

	// Measure the summary to place the first section, then lay the rest
	// out back to back.
	measure := newWriter(order)
	if err := s.serialize(measure); err != nil {
		t.Fatalf("measuring fixture summary: %v", err)
	}
	off := measure.Len()
	place := func(blob []byte, required bool) int64 {
		if len(blob) == 0 && !required {
			return 0
		}
		o := off
		off += int64(len(blob))
		return o
	}
	s.NameOffset = place(nameBytes, true)
	s.SoftObjectPathsOffset = place(softBytes, false)
	s.GatherableTextDataOffset = place(gatherBytes, false)
	s.ImportOffset = place(importBytes, true)
	s.ExportOffset = place(exportBytes, true)
	s.SoftPackageReferencesOffset = place(refBytes, false)
	s.SearchableNamesOffset = place(searchBytes, false)
	s.ThumbnailTableOffset = place(thumbBytes, false)
	s.AssetRegistryDataOffset = place(regBytes, true)
	depOffset := place(depBytes, false)
	s.TotalHeaderSize = off

	out := newWriter(order)
	if err := s.serialize(out); err != nil {
		t.Fatalf("serializing fixture summary: %v", err)
	}
	out.raw(nameBytes)
	out.raw(softBytes)
	out.raw(gatherBytes)
	out.raw(importBytes)
	out.raw(exportBytes)
	out.raw(refBytes)
	out.raw(searchBytes)
	out.raw(thumbBytes)
	out.raw(regBytes)
	out.raw(depBytes)
	buf := append(out.Bytes(), b.body...)

	if depOffset != 0 {
		order.PutUint64(buf[s.AssetRegistryDataOffset:], uint64(depOffset))
	}
	return buf
}

// parseFixture builds and parses the fixture in one step.
func (b *pkgBuilder) parse(t *testing.T) *File {
	t.Helper()
	f, err := NewBytes(b.build(t), &Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

// testDB builds a Database preloaded with rules.
func newTestDB(t *testing.T, rules ...Rule) (*Database, rwrecur.Token) {
	t.Helper()
	tok := rwrecur.NewToken()
	db := NewDatabase(testLogger())
	if len(rules) > 0 {
		db.AddRedirectList(tok, rules)
	}
	return db, tok
}

// mustParseName parses s or fails the test.
func mustParseName(t *testing.T, s string) Name {
	t.Helper()
	n, ok := ParseName(s)
	if !ok {
		t.Fatalf("ParseName(%q) failed", s)
	}
	return n
}
