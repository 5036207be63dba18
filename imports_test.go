// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "testing"

func objectImport(name string, outer PackageIndex) Import {
	return Import{
		ClassPackage: NameValue{Text: "/Script/Engine"},
		ClassName:    NameValue{Text: "StaticMesh"},
		ObjectName:   NameValue{Text: name},
		OuterIndex:   outer,
		PackageName:  NameValue{Text: noneName},
	}
}

func packageImport(pkg string) Import {
	return Import{
		ClassPackage: NameValue{Text: coreUObjectPackage},
		ClassName:    NameValue{Text: classNamePackage},
		ObjectName:   NameValue{Text: pkg},
		PackageName:  NameValue{Text: noneName},
	}
}

// The chained-outer scenario: redirecting a nested object family moves
// every member under a new package import that has to be synthesized.
func TestPatchImportsChainedOuter(t *testing.T) {
	b := minimalBuilder()
	b.imports = []Import{
		packageImport("/S"),
		objectImport("TypeA", FromImport(0)),
		objectImport("PropA", FromImport(1)),
		objectImport("Inner", FromImport(2)),
	}
	f := b.parse(t)

	db, tok := newTestDB(t,
		Rule{OldName: mustParseName(t, "/S.TypeA"), NewName: mustParseName(t, "/D.TypeA2"), Flags: TypeObject},
		Rule{OldName: mustParseName(t, "/S.TypeA.PropA"), NewName: mustParseName(t, "/D.TypeA2.PropA2"), Flags: TypeObject},
		Rule{OldName: Name{Package: "/S", Outer: "TypeA.PropA", Object: "Inner"},
			NewName: Name{Package: "/D", Outer: "TypeA2.PropA2", Object: "Inner"}, Flags: TypeObject},
	)
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}

	if len(f.Imports) != 5 {
		t.Fatalf("import count = %d, want 5 (one synthesized)", len(f.Imports))
	}
	synth := f.Imports[4]
	if synth.ObjectName.Text != "/D" || synth.ClassName.Text != classNamePackage {
		t.Errorf("synthesized import = %+v", synth)
	}
	if got := f.Imports[1]; got.ObjectName.Text != "TypeA2" || got.OuterIndex != FromImport(4) {
		t.Errorf("TypeA import = %+v", got)
	}
	if got := f.Imports[2]; got.ObjectName.Text != "PropA2" || got.OuterIndex != FromImport(1) {
		t.Errorf("PropA import = %+v", got)
	}
	if got := f.Imports[3]; got.ObjectName.Text != "Inner" || got.OuterIndex != FromImport(2) {
		t.Errorf("Inner import = %+v", got)
	}
	// The original package import is untouched.
	if got := f.Imports[0]; got.ObjectName.Text != "/S" {
		t.Errorf("package import renamed to %q", got.ObjectName.Text)
	}
}

// An import without a specific redirect inherits its outer's move.
func TestPatchImportsOuterWalkInheritance(t *testing.T) {
	b := minimalBuilder()
	b.imports = []Import{
		packageImport("/S"),
		objectImport("Mesh", FromImport(0)),
	}
	f := b.parse(t)

	db, tok := newTestDB(t, Rule{
		OldName: Name{Package: "/S"},
		NewName: Name{Package: "/D"},
		Flags:   TypePackage,
	})
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}

	if got := f.Imports[0].ObjectName.Text; got != "/D" {
		t.Errorf("package import = %q, want /D", got)
	}
	// Mesh keeps its name and still points at the (renamed) package.
	if got := f.Imports[1]; got.ObjectName.Text != "Mesh" || got.OuterIndex != FromImport(0) {
		t.Errorf("child import = %+v", got)
	}
	if len(f.Imports) != 2 {
		t.Errorf("no synthesis expected, got %d imports", len(f.Imports))
	}
}

func TestFlagsForClass(t *testing.T) {
	tests := []struct {
		pkg, class string
		want       RedirectFlags
	}{
		{coreUObjectPackage, classNamePackage, TypePackage},
		{coreUObjectPackage, "Class", TypeClass},
		{"/Script/Engine", "BlueprintGeneratedClass", TypeClass},
		{coreUObjectPackage, "Enum", TypeEnum},
		{coreUObjectPackage, "ScriptStruct", TypeStruct},
		{coreUObjectPackage, "Function", TypeFunction},
		{"/Script/Engine", "StaticMesh", TypeObject},
		{"/Game/Blueprints", "Whatever", TypeObject},
	}
	for _, tt := range tests {
		if got := flagsForClass(tt.pkg, tt.class); got != tt.want {
			t.Errorf("flagsForClass(%q, %q) = %#x, want %#x", tt.pkg, tt.class, got, tt.want)
		}
	}
}

func TestPackageIndexEncoding(t *testing.T) {
	if !FromImport(0).IsImport() || FromImport(0).ImportIndex() != 0 {
		t.Error("import 0 encoding")
	}
	if !FromExport(2).IsExport() || FromExport(2).ExportIndex() != 2 {
		t.Error("export 2 encoding")
	}
	if !NullPackageIndex.IsNull() {
		t.Error("null encoding")
	}
}

// Class identity redirects apply even when the import path itself has no
// rule.
func TestPatchImportsClassRedirect(t *testing.T) {
	b := minimalBuilder()
	b.imports = []Import{
		packageImport("/S"),
		{
			ClassPackage: NameValue{Text: "/Script/OldModule"},
			ClassName:    NameValue{Text: "OldWidget"},
			ObjectName:   NameValue{Text: "Thing"},
			OuterIndex:   FromImport(0),
			PackageName:  NameValue{Text: noneName},
		},
	}
	f := b.parse(t)

	db, tok := newTestDB(t, Rule{
		OldName: Name{Package: "/Script/OldModule", Object: "OldWidget"},
		NewName: Name{Package: "/Script/NewModule", Object: "NewWidget"},
		Flags:   TypeClass,
	})
	if _, err := f.patch(nil, db, tok); err != nil {
		t.Fatalf("patch: %v", err)
	}
	got := f.Imports[1]
	if got.ClassPackage.Text != "/Script/NewModule" || got.ClassName.Text != "NewWidget" {
		t.Errorf("class identity = %q.%q", got.ClassPackage.Text, got.ClassName.Text)
	}
	if got.ObjectName.Text != "Thing" {
		t.Errorf("object name changed to %q", got.ObjectName.Text)
	}
}
