// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestGatherableTextRoundTrip(t *testing.T) {
	data := []GatherableTextData{
		{
			NamespaceName: "UI",
			Key:           "Title",
			SourceString:  "Welcome",
			SourceSiteContexts: []TextSourceSiteContext{
				{KeyName: "Title", SiteDescription: "/Game/UI/Menu.Menu", IsEditorOnly: true, IsOptional: false},
				{KeyName: "Alt", SiteDescription: "/Game/UI/Menu.Menu:Canvas", IsOptional: true},
			},
		},
		{NamespaceName: "Empty"},
	}
	w := newWriter(binary.LittleEndian)
	if err := serializeGatherableTextData(w, data); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := parseGatherableTextData(newArchive(w.Bytes(), binary.LittleEndian), int32(len(data)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, data) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, data)
	}
}

func TestPatchGatherableTextSiteDescription(t *testing.T) {
	b := minimalBuilder()
	b.gather = []GatherableTextData{
		{
			NamespaceName: "UI",
			SourceSiteContexts: []TextSourceSiteContext{
				{SiteDescription: "/Game/UI/Menu.Menu"},
				{SiteDescription: "not a path"},
			},
		},
	}
	f := b.parse(t)

	db, tok := newTestDB(t, Rule{
		OldName: Name{Package: "/Game/UI/Menu"},
		NewName: Name{Package: "/Game/Interface/Menu"},
		Flags:   TypePackage,
	})
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}

	ctxs := f.GatherableTextData[0].SourceSiteContexts
	if got := ctxs[0].SiteDescription; got != "/Game/Interface/Menu.Menu" {
		t.Errorf("site description = %q", got)
	}
	if got := ctxs[1].SiteDescription; got != "not a path" {
		t.Errorf("non-path description changed to %q", got)
	}
}
