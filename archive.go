// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// archive is a cursor-based reader over a header byte range. It carries the
// source file's byte order and a sticky error: once any read fails, every
// later read is a no-op returning zero values, so table parsers can decode
// a whole record and check Err once at the end.
type archive struct {
	order binary.ByteOrder
	data  []byte
	off   int
	err   error
}

func newArchive(data []byte, order binary.ByteOrder) *archive {
	return &archive{order: order, data: data}
}

func (ar *archive) fail(err error) {
	if ar.err == nil {
		ar.err = err
	}
}

// Err returns the first error encountered by any read.
func (ar *archive) Err() error { return ar.err }

func (ar *archive) tell() int64 { return int64(ar.off) }

func (ar *archive) seek(off int64) {
	if off < 0 || off > int64(len(ar.data)) {
		ar.fail(ErrOutsideBoundary)
		return
	}
	ar.off = int(off)
}

func (ar *archive) bytes(n int) []byte {
	if ar.err != nil {
		return nil
	}
	if n < 0 || ar.off+n > len(ar.data) {
		ar.fail(ErrOutsideBoundary)
		return nil
	}
	b := ar.data[ar.off : ar.off+n]
	ar.off += n
	return b
}

func (ar *archive) u8() uint8 {
	b := ar.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (ar *archive) u32() uint32 {
	b := ar.bytes(4)
	if b == nil {
		return 0
	}
	return ar.order.Uint32(b)
}

func (ar *archive) i32() int32 { return int32(ar.u32()) }

func (ar *archive) u64() uint64 {
	b := ar.bytes(8)
	if b == nil {
		return 0
	}
	return ar.order.Uint64(b)
}

func (ar *archive) i64() int64 { return int64(ar.u64()) }

// fstring decodes a length-prefixed string: a positive length is that many
// UTF-8 bytes including a NUL terminator, a negative length is that many
// UTF-16LE code units including the terminator, zero is the empty string.
func (ar *archive) fstring() string {
	n := ar.i32()
	switch {
	case ar.err != nil || n == 0:
		return ""
	case n > 0:
		b := ar.bytes(int(n))
		if b == nil {
			return ""
		}
		if b[n-1] != 0 {
			ar.fail(fmt.Errorf("assetpatch: string missing NUL terminator: %w", ErrOutsideBoundary))
			return ""
		}
		return string(b[:n-1])
	default:
		units := int(-n)
		b := ar.bytes(units * 2)
		if b == nil {
			return ""
		}
		s, err := DecodeUTF16String(b)
		if err != nil {
			ar.fail(err)
			return ""
		}
		return s
	}
}

// name decodes a serialized Name reference, an (index, number) pair into
// the name table, and resolves it to its text immediately. Resolution at
// parse time is what lets every rewrite pass work on plain strings.
func (ar *archive) name(nt *NameTable) NameValue {
	idx := ar.i32()
	num := ar.i32()
	if ar.err != nil {
		return NameValue{}
	}
	text, err := nt.Get(idx)
	if err != nil {
		ar.fail(err)
		return NameValue{}
	}
	return NameValue{Text: text, Number: num}
}

// writer is the serializing dual of archive: an append-only buffer in the
// source file's byte order. Name writes go through nameWriter instead, so
// that the final name table is the only authority on name indices.
type writer struct {
	order binary.ByteOrder
	buf   bytes.Buffer
}

func newWriter(order binary.ByteOrder) *writer {
	return &writer{order: order}
}

func (w *writer) Len() int64    { return int64(w.buf.Len()) }
func (w *writer) Bytes() []byte { return w.buf.Bytes() }

func (w *writer) raw(b []byte) { w.buf.Write(b) }

func (w *writer) u8(v uint8) { w.buf.WriteByte(v) }

func (w *writer) u32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) u64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

// fstring encodes a string in the same prefixed form fstring decodes:
// ASCII-clean strings as UTF-8, anything else as UTF-16LE with a negative
// length prefix.
func (w *writer) fstring(s string) error {
	if s == "" {
		w.i32(0)
		return nil
	}
	if isASCII(s) {
		w.i32(int32(len(s) + 1))
		w.buf.WriteString(s)
		w.buf.WriteByte(0)
		return nil
	}
	b, err := EncodeUTF16String(s)
	if err != nil {
		return err
	}
	w.i32(int32(-(len(b) / 2)))
	w.buf.Write(b)
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// nameWriter resolves NameValues against the finalized name table while
// writing. A text that does not resolve means the plan promised an entry
// that finalization never produced; the file is aborted rather than
// written with a dangling reference.
type nameWriter struct {
	w  *writer
	nt *NameTable
}

func (nw *nameWriter) name(v NameValue) error {
	idx, ok := nw.nt.Index(v.Text)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNameNotInTable, v.Text)
	}
	nw.w.i32(idx)
	nw.w.i32(v.Number)
	return nil
}
