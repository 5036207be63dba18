// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// Diagnostics recorded while patching a file. None of them is fatal; they
// flag inputs the patcher handled with an approximation or a fallback
// that a caller inspecting the output may want to know about.
var (
	// DiagImportOuterIsExport is reported when an import's outer chain
	// passes through an export. Such imports keep their outer index
	// unchanged rather than deriving a new path from the rewritten
	// export.
	DiagImportOuterIsExport = "import outer chain passes through an export; outer left unchanged"

	// DiagInterSectionPadding is reported when the source file carries
	// padding bytes between header sections, which are copied through
	// verbatim.
	DiagInterSectionPadding = "header contains padding between sections"

	// DiagBareObjectPath is reported when an asset-registry ObjectPath is
	// a bare asset name and was resolved against the package implicitly.
	DiagBareObjectPath = "asset registry ObjectPath resolved implicitly against the package"

	// DiagEmptyPackageName is reported when the summary's package name was
	// empty and had to be recovered from the file path.
	DiagEmptyPackageName = "package name recovered from file path"
)

// addDiagnostic records d once per file.
func (f *File) addDiagnostic(d string) {
	for _, existing := range f.Diagnostics {
		if existing == d {
			return
		}
	}
	f.Diagnostics = append(f.Diagnostics, d)
}
