// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestThumbnailsRoundTrip(t *testing.T) {
	entries := []ThumbnailEntry{
		{ObjectClassName: "SkeletalMesh", ObjectPathWithoutPackageName: "Pawn", FileOffset: 2048},
		{ObjectClassName: "Texture2D", ObjectPathWithoutPackageName: "Icon.Inner", FileOffset: 4096},
	}
	w := newWriter(binary.LittleEndian)
	if err := serializeThumbnails(w, entries, 0); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := parseThumbnails(newArchive(w.Bytes(), binary.LittleEndian))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSerializeThumbnailsAppliesDelta(t *testing.T) {
	entries := []ThumbnailEntry{{ObjectClassName: "C", ObjectPathWithoutPackageName: "P", FileOffset: 100}}
	w := newWriter(binary.LittleEndian)
	if err := serializeThumbnails(w, entries, 24); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := parseThumbnails(newArchive(w.Bytes(), binary.LittleEndian))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got[0].FileOffset != 124 {
		t.Errorf("file offset = %d, want 124", got[0].FileOffset)
	}
}

// A thumbnail in an external-actors package resolves against the implicit
// map package rather than the file's own package.
func TestPatchThumbnailsExternalActorsMapPackage(t *testing.T) {
	b := minimalBuilder()
	b.packageName = "/Game/__ExternalActors__/Map/A/B/Guid"
	b.thumbs = []ThumbnailEntry{
		{ObjectClassName: "SkeletalMesh", ObjectPathWithoutPackageName: "Pawn", FileOffset: 2048},
	}
	f := b.parse(t)

	db, tok := newTestDB(t,
		Rule{OldName: mustParseName(t, "/Map/Map.Pawn"), NewName: mustParseName(t, "/Map/Map.Soldier"), Flags: TypeObject},
		Rule{OldName: Name{Object: "SkeletalMesh"}, NewName: Name{Object: "SkinnedMesh"}, Flags: TypeClass},
	)
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}

	got := f.Thumbnails[0]
	if got.ObjectPathWithoutPackageName != "Soldier" {
		t.Errorf("object path = %q", got.ObjectPathWithoutPackageName)
	}
	if got.ObjectClassName != "SkinnedMesh" {
		t.Errorf("class name = %q", got.ObjectClassName)
	}
}

func TestPatchThumbnailsRegularPackage(t *testing.T) {
	b := minimalBuilder()
	b.thumbs = []ThumbnailEntry{
		{ObjectClassName: "Blueprint", ObjectPathWithoutPackageName: "Asset", FileOffset: 512},
	}
	f := b.parse(t)

	db, tok := newTestDB(t, Rule{
		OldName: mustParseName(t, "/Game/Asset.Asset"),
		NewName: mustParseName(t, "/Game/Asset.Renamed"),
		Flags:   TypeObject,
	})
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got := f.Thumbnails[0].ObjectPathWithoutPackageName; got != "Renamed" {
		t.Errorf("object path = %q", got)
	}
}

func TestStripPackage(t *testing.T) {
	tests := []struct {
		n    Name
		want string
	}{
		{Name{Package: "/Map/Map", Object: "Pawn"}, "Pawn"},
		{Name{Package: "/Map/Map", Outer: "Pawn", Object: "Mesh"}, "Pawn.Mesh"},
		{Name{Object: "Bare"}, "Bare"},
	}
	for _, tt := range tests {
		if got := stripPackage(tt.n); got != tt.want {
			t.Errorf("stripPackage(%+v) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
