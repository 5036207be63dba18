// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "testing"

func TestUTF16RoundTrip(t *testing.T) {
	tests := []string{
		"PersistentLevel",
		"/Game/Maps/Café",
		"日本語のアセット",
	}
	for _, tt := range tests {
		b, err := EncodeUTF16String(tt)
		if err != nil {
			t.Fatalf("encode %q: %v", tt, err)
		}
		got, err := DecodeUTF16String(b)
		if err != nil {
			t.Fatalf("decode %q: %v", tt, err)
		}
		if got != tt {
			t.Errorf("round trip of %q gave %q", tt, got)
		}
	}
}

func TestDecodeUTF16StringEmpty(t *testing.T) {
	got, err := DecodeUTF16String([]byte{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
