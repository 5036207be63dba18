// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// PackageIndex is a tagged index into the import and export tables: zero
// is null, a positive value i refers to export i-1, a negative value -i
// refers to import i-1. Outer/class/super/template links in both tables
// use this encoding.
type PackageIndex int32

// NullPackageIndex is the "no object" link value.
const NullPackageIndex PackageIndex = 0

// IsNull reports whether the index refers to no object.
func (i PackageIndex) IsNull() bool { return i == 0 }

// IsImport reports whether the index refers into the import table.
func (i PackageIndex) IsImport() bool { return i < 0 }

// IsExport reports whether the index refers into the export table.
func (i PackageIndex) IsExport() bool { return i > 0 }

// ImportIndex returns the zero-based import-table index.
func (i PackageIndex) ImportIndex() int { return int(-i) - 1 }

// ExportIndex returns the zero-based export-table index.
func (i PackageIndex) ExportIndex() int { return int(i) - 1 }

// FromImport builds the tagged index for import-table entry idx.
func FromImport(idx int) PackageIndex { return PackageIndex(-(idx + 1)) }

// FromExport builds the tagged index for export-table entry idx.
func FromExport(idx int) PackageIndex { return PackageIndex(idx + 1) }

// Import is one entry of the import table: a reference to an object living
// outside this package. PackageName is the editor-only optional package
// override carried by some import kinds; UsedInGame mirrors the
// dependency-data bit reconstructed in the asset-registry pass.
type Import struct {
	ClassPackage NameValue    `json:"class_package"`
	ClassName    NameValue    `json:"class_name"`
	OuterIndex   PackageIndex `json:"outer_index"`
	ObjectName   NameValue    `json:"object_name"`
	PackageName  NameValue    `json:"package_name"`
	UsedInGame   bool         `json:"used_in_game"`
}

// importSerializedSize is the fixed on-disk size of one import entry.
const importSerializedSize = 8 + 8 + 4 + 8 + 8 + 4

func parseImports(ar *archive, nt *NameTable, count int32) ([]Import, error) {
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	imports := make([]Import, 0, count)
	for i := int32(0); i < count; i++ {
		var imp Import
		imp.ClassPackage = ar.name(nt)
		imp.ClassName = ar.name(nt)
		imp.OuterIndex = PackageIndex(ar.i32())
		imp.ObjectName = ar.name(nt)
		imp.PackageName = ar.name(nt)
		imp.UsedInGame = ar.u32() != 0
		imports = append(imports, imp)
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return imports, nil
}

func serializeImports(nw *nameWriter, imports []Import) error {
	for _, imp := range imports {
		if err := nw.name(imp.ClassPackage); err != nil {
			return err
		}
		if err := nw.name(imp.ClassName); err != nil {
			return err
		}
		nw.w.i32(int32(imp.OuterIndex))
		if err := nw.name(imp.ObjectName); err != nil {
			return err
		}
		if err := nw.name(imp.PackageName); err != nil {
			return err
		}
		var used uint32
		if imp.UsedInGame {
			used = 1
		}
		nw.w.u32(used)
	}
	return nil
}

// flagsForClass maps an import's class identity to the redirect type used
// when querying its full path: package imports redirect as packages,
// class-like imports as classes, and so on; anything unrecognized is an
// object query. All queries additionally see Package and Asset rules via
// the database's implicit search.
func flagsForClass(classPackage, className string) RedirectFlags {
	if classPackage != coreUObjectPackage && classPackage != "/Script/Engine" {
		return TypeObject
	}
	switch className {
	case classNamePackage:
		return TypePackage
	case "Class", "BlueprintGeneratedClass":
		return TypeClass
	case "ScriptStruct", "UserDefinedStruct":
		return TypeStruct
	case "Enum", "UserDefinedEnum":
		return TypeEnum
	case "Function":
		return TypeFunction
	default:
		return TypeObject
	}
}

// importFullName walks the outer chain of import idx up to its package and
// returns the full qualified name. ok is false when the chain passes
// through an export (an export owning an import): those imports keep their
// outer untouched, an accepted approximation for map-level external-actor
// references.
func (ps *patchState) importFullName(idx int) (Name, bool) {
	var parts []string
	cur := FromImport(idx)
	for !cur.IsNull() {
		if cur.IsExport() {
			return Name{}, false
		}
		// A chain longer than the table is a cycle in a corrupt file.
		if len(parts) > len(ps.f.Imports) {
			return Name{}, false
		}
		imp := ps.f.Imports[cur.ImportIndex()]
		parts = append(parts, imp.ObjectName.Text)
		cur = imp.OuterIndex
	}
	// parts is leaf-first; the root is the package import.
	n := Name{Package: parts[len(parts)-1]}
	for i := len(parts) - 2; i >= 0; i-- {
		n = n.Append(parts[i])
	}
	return n, true
}

// patchImports plans and applies the import-table rewrite in the two
// passes the format requires, then synthesizes any outer imports the
// rewrites demand.
func (ps *patchState) patchImports() {
	f := ps.f
	n := len(f.Imports)

	dest := make([]Name, n)
	hasDest := make([]bool, n)
	noInherit := make([]bool, n)
	original := make([]Name, n)
	pathable := make([]bool, n)

	for i := range f.Imports {
		original[i], pathable[i] = ps.importFullName(i)
		if !pathable[i] {
			f.addDiagnostic(DiagImportOuterIsExport)
		}
	}

	// Pass 1: per-entry lookup. Class identity and the optional package
	// override redirect independently of the import's own path.
	for i := range f.Imports {
		imp := &f.Imports[i]

		oldClass := Name{Package: imp.ClassPackage.Text, Object: imp.ClassName.Text}
		newClass := ps.db.GetRedirectedName(ps.tok, TypeClass, oldClass)
		if override, ok := ps.classOverride(oldClass); ok {
			newClass.Object = override
		}
		if !newClass.Equal(oldClass) {
			ps.names.remap(imp.ClassPackage.Text, newClass.Package)
			ps.names.remap(imp.ClassName.Text, newClass.Object)
			imp.ClassPackage.Text = newClass.Package
			imp.ClassName.Text = newClass.Object
		} else {
			ps.names.keep(imp.ClassPackage.Text)
			ps.names.keep(imp.ClassName.Text)
		}

		if imp.PackageName.Text != "" && imp.PackageName.Text != noneName {
			oldPkg := Name{Package: imp.PackageName.Text}
			newPkg := ps.db.GetRedirectedName(ps.tok, TypePackage, oldPkg)
			if newPkg.Package != oldPkg.Package {
				ps.names.remap(imp.PackageName.Text, newPkg.Package)
				imp.PackageName.Text = newPkg.Package
			} else {
				ps.names.keep(imp.PackageName.Text)
			}
		}

		if !pathable[i] {
			continue
		}
		flags := flagsForClass(imp.ClassPackage.Text, imp.ClassName.Text)
		redirected := ps.db.GetRedirectedName(ps.tok, flags, original[i])
		if !redirected.Equal(original[i]) {
			dest[i] = redirected
			hasDest[i] = true
			if !redirected.Parent().Equal(original[i].Parent()) {
				// The redirect moved this import to a new outer; the
				// outer-walk pass must not override that decision.
				noInherit[i] = true
			}
		}
	}

	// Pass 2: outer walk. Imports without a specific redirect inherit a
	// moved outer's destination, keeping their own object name.
	walking := make([]bool, n)
	var walk func(i int) Name
	walk = func(i int) Name {
		if hasDest[i] || walking[i] {
			if hasDest[i] {
				return dest[i]
			}
			return original[i]
		}
		walking[i] = true
		defer func() { walking[i] = false }()
		imp := f.Imports[i]
		if !pathable[i] || imp.OuterIndex.IsNull() || !imp.OuterIndex.IsImport() {
			return original[i]
		}
		outerDest := walk(imp.OuterIndex.ImportIndex())
		outerOrig := original[imp.OuterIndex.ImportIndex()]
		if outerDest.Equal(outerOrig) {
			return original[i]
		}
		dest[i] = outerDest.Append(imp.ObjectName.Text)
		hasDest[i] = true
		return dest[i]
	}
	for i := 0; i < n; i++ {
		if !noInherit[i] {
			walk(i)
		}
	}

	// Final full path per import, and the reverse lookup map from it back
	// to the entry index. Synthesis below consults this map to find (or
	// create) each rewritten import's outer.
	final := make([]Name, n)
	for i := 0; i < n; i++ {
		if hasDest[i] {
			final[i] = dest[i]
		} else {
			final[i] = original[i]
		}
	}
	reverse := map[string]int{}
	for i := 0; i < n; i++ {
		if pathable[i] {
			reverse[final[i].String()] = i
		}
	}

	// resolveOuter returns the import-table index whose final path is
	// target, appending a synthesized entry (and, recursively, its own
	// outers) when none exists. usedInGame is inherited from the child
	// that needed the new outer.
	var resolveOuter func(target Name, usedInGame bool) PackageIndex
	resolveOuter = func(target Name, usedInGame bool) PackageIndex {
		if target.IsEmpty() {
			return NullPackageIndex
		}
		if idx, ok := reverse[target.String()]; ok {
			return FromImport(idx)
		}
		className := classNameObject
		if target.IsPackageOnly() {
			className = classNamePackage
		}
		leaf := target.Object
		if target.IsPackageOnly() {
			leaf = target.Package
		}
		synth := Import{
			ClassPackage: NameValue{Text: coreUObjectPackage},
			ClassName:    NameValue{Text: className},
			ObjectName:   NameValue{Text: leaf},
			PackageName:  NameValue{Text: noneName},
			UsedInGame:   usedInGame,
		}
		f.Imports = append(f.Imports, synth)
		idx := len(f.Imports) - 1
		reverse[target.String()] = idx
		ps.names.add(coreUObjectPackage)
		ps.names.add(className)
		ps.names.add(leaf)
		ps.names.add(noneName)
		if !target.IsPackageOnly() {
			// The recursive call may grow f.Imports; index it only afterwards.
			outer := resolveOuter(target.Parent(), usedInGame)
			f.Imports[idx].OuterIndex = outer
		}
		return FromImport(idx)
	}

	for i := 0; i < n; i++ {
		if !hasDest[i] {
			ps.names.keep(f.Imports[i].ObjectName.Text)
			continue
		}
		imp := &f.Imports[i]
		newLeaf := final[i].Object
		if final[i].IsPackageOnly() {
			newLeaf = final[i].Package
		}
		if newLeaf != imp.ObjectName.Text {
			ps.names.remap(imp.ObjectName.Text, newLeaf)
			imp.ObjectName.Text = newLeaf
		} else {
			ps.names.keep(imp.ObjectName.Text)
		}
		if !final[i].IsPackageOnly() {
			// resolveOuter may append and reallocate f.Imports, leaving imp
			// pointing at the old backing array.
			outer := resolveOuter(final[i].Parent(), imp.UsedInGame)
			f.Imports[i].OuterIndex = outer
		}
	}

	// New entries are appended, never inserted, so existing import links
	// held by exports (class/super/template/outer) stay valid as-is.
}

// classOverride returns the OverrideClassName a winning redirect rule
// carries for the class identity, if any.
func (ps *patchState) classOverride(class Name) (string, bool) {
	changes := ps.db.GetValueRedirects(ps.tok, TypeClass, class)
	if changes == nil {
		return "", false
	}
	override, ok := changes[overrideClassNameKey]
	return override, ok
}

// overrideClassNameKey is the ValueChanges sentinel the ini reader stores
// OverrideClassName under.
const overrideClassNameKey = "__OverrideClassName"
