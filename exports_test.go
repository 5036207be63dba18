// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "testing"

func TestPatchExportsRenamesInPlace(t *testing.T) {
	b := minimalBuilder()
	b.packageName = "/Game/BP"
	b.exports = []Export{
		{ObjectName: NameValue{Text: "BP"}, OuterIndex: NullPackageIndex},
		{ObjectName: NameValue{Text: "Node"}, OuterIndex: FromExport(0)},
	}
	f := b.parse(t)

	db, tok := newTestDB(t,
		Rule{OldName: mustParseName(t, "/Game/BP.BP"), NewName: mustParseName(t, "/Game/BP.BP2"), Flags: TypeObject},
		Rule{OldName: Name{Package: "/Game/BP", Outer: "BP", Object: "Node"},
			NewName: Name{Package: "/Game/BP", Outer: "BP2", Object: "Node2"}, Flags: TypeObject},
	)
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}

	if got := f.Exports[0].ObjectName.Text; got != "BP2" {
		t.Errorf("export 0 = %q", got)
	}
	// The child was queried under its ORIGINAL outer chain, so its own
	// rule (keyed to outer "BP", not "BP2") still matched.
	if got := f.Exports[1].ObjectName.Text; got != "Node2" {
		t.Errorf("export 1 = %q", got)
	}
	if got := f.Exports[1].OuterIndex; got != FromExport(0) {
		t.Errorf("outer index changed to %d", got)
	}
}

func TestExportFullName(t *testing.T) {
	b := minimalBuilder()
	b.packageName = "/Game/M"
	b.exports = []Export{
		{ObjectName: NameValue{Text: "M"}, OuterIndex: NullPackageIndex},
		{ObjectName: NameValue{Text: "PersistentLevel"}, OuterIndex: FromExport(0)},
		{ObjectName: NameValue{Text: "Actor1"}, OuterIndex: FromExport(1)},
	}
	f := b.parse(t)
	ps := &patchState{f: f, originalPackageName: "/Game/M"}

	got := ps.exportFullName(2)
	want := Name{Package: "/Game/M", Outer: "M.PersistentLevel", Object: "Actor1"}
	if !got.Equal(want) {
		t.Errorf("full name = %+v, want %+v", got, want)
	}
}

func TestExportsSerializeSizePreserving(t *testing.T) {
	b := minimalBuilder()
	f := b.parse(t)
	nt := f.Names
	w := newWriter(f.order)
	nw := &nameWriter{w: w, nt: nt}
	if err := serializeExports(nw, f.Exports); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got := w.Len(); got != int64(len(f.Exports)*exportSerializedSize) {
		t.Errorf("serialized size = %d, want %d", got, len(f.Exports)*exportSerializedSize)
	}
}
