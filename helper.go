// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"golang.org/x/text/encoding/unicode"
)

// DecodeUTF16String decodes a NUL-terminated UTF-16LE string from b, used
// by wide (non-ASCII) length-prefixed strings in the header.
func DecodeUTF16String(b []byte) (string, error) {
	// The terminator is a whole 0x0000 code unit, so only even offsets are
	// candidates.
	n := len(b)
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			n = i
			break
		}
	}
	if n == 0 {
		return "", nil
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	s, err := decoder.Bytes(b[:n])
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// EncodeUTF16String encodes s as NUL-terminated UTF-16LE, the dual of
// DecodeUTF16String.
func EncodeUTF16String(s string) ([]byte, error) {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	b, err := encoder.Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return append(b, 0, 0), nil
}
