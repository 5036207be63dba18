// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"testing"
)

func TestNameTableRoundTrip(t *testing.T) {
	nt := NewNameTable([]string{"/Game/Old", "Pawn", "None"})
	w := newWriter(binary.LittleEndian)
	if err := nt.serialize(w); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	parsed, err := parseNameTable(newArchive(w.Bytes(), binary.LittleEndian), 3)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i, want := range nt.Entries {
		got, err := parsed.Get(int32(i))
		if err != nil || got != want {
			t.Errorf("entry %d = %q (%v), want %q", i, got, err, want)
		}
	}
	if idx, ok := parsed.Index("Pawn"); !ok || idx != 1 {
		t.Errorf("Index(Pawn) = %d, %v", idx, ok)
	}
}

func TestParseNameTableEmpty(t *testing.T) {
	_, err := parseNameTable(newArchive(nil, binary.LittleEndian), 0)
	if err != ErrEmptyRequiredSection {
		t.Fatalf("want ErrEmptyRequiredSection, got %v", err)
	}
}

func TestNamePlanRenameInPlace(t *testing.T) {
	nt := NewNameTable([]string{"/Game/Old", "Pawn"})
	p := newNamePlan(nt)
	p.remap("/Game/Old", "/Game/New")
	p.finalize()
	if nt.Entries[0] != "/Game/New" {
		t.Errorf("entry 0 = %q", nt.Entries[0])
	}
	if nt.Len() != 2 {
		t.Errorf("table grew to %d entries", nt.Len())
	}
}

func TestNamePlanKeepForcesAppend(t *testing.T) {
	nt := NewNameTable([]string{"Shared"})
	p := newNamePlan(nt)
	p.keep("Shared")
	p.remap("Shared", "Renamed")
	p.finalize()
	if nt.Entries[0] != "Shared" {
		t.Errorf("kept entry was renamed to %q", nt.Entries[0])
	}
	if !nt.Contains("Renamed") {
		t.Error("divergent destination was not appended")
	}
}

func TestNamePlanDivergentRemapsAppend(t *testing.T) {
	nt := NewNameTable([]string{"Shared"})
	p := newNamePlan(nt)
	p.remap("Shared", "First")
	p.remap("Shared", "Second")
	p.finalize()
	if nt.Entries[0] != "First" {
		t.Errorf("entry 0 = %q, want First", nt.Entries[0])
	}
	if !nt.Contains("Second") {
		t.Error("second destination was not appended")
	}
}

func TestNamePlanRemapToExistingEntryIsNoop(t *testing.T) {
	nt := NewNameTable([]string{"Old", "New"})
	p := newNamePlan(nt)
	p.remap("Old", "New")
	p.finalize()
	if nt.Entries[0] != "Old" || nt.Len() != 2 {
		t.Errorf("table mutated: %v", nt.Entries)
	}
}

func TestNamePlanAppendSkippedWhenRenameProducesIt(t *testing.T) {
	nt := NewNameTable([]string{"Old"})
	p := newNamePlan(nt)
	p.remap("Old", "New")
	p.add("New")
	p.finalize()
	if nt.Len() != 1 || nt.Entries[0] != "New" {
		t.Errorf("table = %v, want single entry New", nt.Entries)
	}
}

func TestNamePlanAddMissingSource(t *testing.T) {
	nt := NewNameTable([]string{"Existing"})
	p := newNamePlan(nt)
	p.remap("NotInTable", "Fresh")
	p.finalize()
	if !nt.Contains("Fresh") {
		t.Error("destination of unknown source was not appended")
	}
}
