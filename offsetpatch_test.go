// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"bytes"
	"testing"
)

// With no applicable redirects the patched file must be byte-identical to
// the source.
func TestSerializeIdentity(t *testing.T) {
	src := richBuilder().build(t)
	f, err := NewBytes(src, &Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	db, tok := newTestDB(t)
	out, err := f.patch(nil, db, tok)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatal("identity patch changed bytes")
	}
}

// A package rename changes the summary, the name table and the gatherable
// text section; every downstream offset must move by the accumulated
// delta and the output must re-parse cleanly with consistent tables.
func TestSerializeOffsetConsistencyAfterGrowth(t *testing.T) {
	src := richBuilder().build(t)
	f, err := NewBytes(src, &Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	oldTotal := f.Summary.TotalHeaderSize
	oldSerialOffset := f.Exports[0].SerialOffset

	db, tok := newTestDB(t, Rule{
		OldName: Name{Package: "/Game/Maps/L1"},
		NewName: Name{Package: "/Game/Maps/MuchLongerLevelName"},
		Flags:   TypePackage,
	})
	out, err := f.patch(nil, db, tok)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if bytes.Equal(out, src) {
		t.Fatal("patch was a no-op")
	}

	// Name closure and offset consistency: the output re-parses with the
	// patched values in place.
	g, err := NewBytes(out, &Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewBytes(out): %v", err)
	}
	if err := g.Parse(); err != nil {
		t.Fatalf("patched file does not re-parse: %v", err)
	}
	if g.Summary.PackageName != "/Game/Maps/MuchLongerLevelName" {
		t.Errorf("summary package name = %q", g.Summary.PackageName)
	}
	if !g.Names.Contains("/Game/Maps/MuchLongerLevelName") {
		t.Error("name table entry was not renamed")
	}
	if g.Names.Contains("/Game/Maps/L1") {
		t.Error("old package name still present in name table")
	}
	if got := g.GatherableTextData[0].SourceSiteContexts[0].SiteDescription; got != "/Game/Maps/MuchLongerLevelName.L1" {
		t.Errorf("site description = %q", got)
	}

	delta := g.Summary.TotalHeaderSize - oldTotal
	if delta == 0 {
		t.Fatal("expected the header to grow")
	}
	if got := g.Exports[0].SerialOffset; got != oldSerialOffset+delta {
		t.Errorf("serial offset = %d, want %d", got, oldSerialOffset+delta)
	}
	if got := g.Thumbnails[0].FileOffset; got != 4096+int32(delta) {
		t.Errorf("thumbnail file offset = %d, want %d", got, 4096+int32(delta))
	}

	// The body payload is copied through verbatim.
	if !bytes.Equal(g.Body(), bytes.Repeat([]byte{0xAB}, 64)) {
		t.Error("body payload changed")
	}
}

// Size-preserving sections must panic on any delta; drive it by handing
// the serializer an export table that grew behind the plan's back.
func TestSerializePanicsOnSizePreservingDelta(t *testing.T) {
	f := richBuilder().parse(t)
	db, tok := newTestDB(t)
	f.Exports = append(f.Exports, f.Exports[0])

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a grown size-preserving section")
		}
	}()
	_, _ = f.patch(nil, db, tok)
}

func TestOffsetAdjusterShift(t *testing.T) {
	s := &Summary{
		TotalHeaderSize:         1000,
		NameOffset:              100,
		ImportOffset:            300,
		ExportOffset:            500,
		AssetRegistryDataOffset: 700,
	}
	a := newOffsetAdjuster(s)
	a.shift(200, 16) // a section starting at 200 grew by 16
	if s.NameOffset != 100 {
		t.Errorf("offset before the section moved: %d", s.NameOffset)
	}
	if s.ImportOffset != 316 || s.ExportOffset != 516 || s.AssetRegistryDataOffset != 716 {
		t.Errorf("offsets after the section did not move: %+v", s)
	}
	if s.TotalHeaderSize != 1016 {
		t.Errorf("total header size = %d", s.TotalHeaderSize)
	}
	if a.runningDelta() != 16 {
		t.Errorf("running delta = %d", a.runningDelta())
	}

	// A second shift compares against ORIGINAL offsets, not adjusted ones.
	a.shift(400, -4)
	if s.ImportOffset != 316 {
		t.Errorf("import offset moved by a later section's delta: %d", s.ImportOffset)
	}
	if s.ExportOffset != 512 || s.TotalHeaderSize != 1012 {
		t.Errorf("late offsets wrong: export=%d total=%d", s.ExportOffset, s.TotalHeaderSize)
	}
}
