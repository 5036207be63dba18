// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestArchiveScalarsRoundTrip(t *testing.T) {
	w := newWriter(binary.LittleEndian)
	w.u8(7)
	w.u32(0xdeadbeef)
	w.i32(-5)
	w.u64(1 << 40)
	w.i64(-(1 << 40))

	ar := newArchive(w.Bytes(), binary.LittleEndian)
	if got := ar.u8(); got != 7 {
		t.Errorf("u8 = %d", got)
	}
	if got := ar.u32(); got != 0xdeadbeef {
		t.Errorf("u32 = %#x", got)
	}
	if got := ar.i32(); got != -5 {
		t.Errorf("i32 = %d", got)
	}
	if got := ar.u64(); got != 1<<40 {
		t.Errorf("u64 = %d", got)
	}
	if got := ar.i64(); got != -(1 << 40) {
		t.Errorf("i64 = %d", got)
	}
	if err := ar.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestArchiveBigEndian(t *testing.T) {
	w := newWriter(binary.BigEndian)
	w.u32(0x01020304)
	b := w.Bytes()
	if b[0] != 1 || b[3] != 4 {
		t.Fatalf("unexpected byte order: % x", b)
	}
	ar := newArchive(b, binary.BigEndian)
	if got := ar.u32(); got != 0x01020304 {
		t.Errorf("u32 = %#x", got)
	}
}

func TestArchiveStickyError(t *testing.T) {
	ar := newArchive([]byte{1, 2}, binary.LittleEndian)
	if got := ar.u32(); got != 0 {
		t.Errorf("short read returned %d", got)
	}
	if !errors.Is(ar.Err(), ErrOutsideBoundary) {
		t.Fatalf("want ErrOutsideBoundary, got %v", ar.Err())
	}
	// Subsequent reads stay no-ops.
	if got := ar.u8(); got != 0 {
		t.Errorf("read after error returned %d", got)
	}
}

func TestFStringRoundTrip(t *testing.T) {
	tests := []string{"", "Pawn", "/Game/Maps/L1", "Café", "日本語"}
	for _, tt := range tests {
		w := newWriter(binary.LittleEndian)
		if err := w.fstring(tt); err != nil {
			t.Fatalf("fstring(%q): %v", tt, err)
		}
		ar := newArchive(w.Bytes(), binary.LittleEndian)
		if got := ar.fstring(); got != tt {
			t.Errorf("round trip of %q gave %q", tt, got)
		}
		if err := ar.Err(); err != nil {
			t.Fatalf("fstring(%q) read error: %v", tt, err)
		}
	}
}

func TestNameWriterUnknownName(t *testing.T) {
	nt := NewNameTable([]string{"Pawn"})
	nw := &nameWriter{w: newWriter(binary.LittleEndian), nt: nt}
	if err := nw.name(NameValue{Text: "Pawn"}); err != nil {
		t.Fatalf("known name: %v", err)
	}
	err := nw.name(NameValue{Text: "Missing"})
	if !errors.Is(err, ErrNameNotInTable) {
		t.Fatalf("want ErrNameNotInTable, got %v", err)
	}
}

func TestArchiveNameResolution(t *testing.T) {
	nt := NewNameTable([]string{"A", "B"})
	w := newWriter(binary.LittleEndian)
	w.i32(1)
	w.i32(3)
	ar := newArchive(w.Bytes(), binary.LittleEndian)
	got := ar.name(nt)
	if got.Text != "B" || got.Number != 3 {
		t.Errorf("got %+v", got)
	}

	w2 := newWriter(binary.LittleEndian)
	w2.i32(9)
	w2.i32(0)
	ar2 := newArchive(w2.Bytes(), binary.LittleEndian)
	ar2.name(nt)
	if !errors.Is(ar2.Err(), ErrOutsideBoundary) {
		t.Fatalf("want out-of-range error, got %v", ar2.Err())
	}
}
