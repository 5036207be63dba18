// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"path"
	"strings"

	"github.com/saferwall/assetpatch/internal/log"
	"github.com/saferwall/assetpatch/internal/rwrecur"
)

// DependencyOracle answers "what packages does this package depend on",
// used to transitively gather every package affected by a seed rename.
// A nil oracle means "no further dependents": only
// the seed packages themselves are patched.
type DependencyOracle interface {
	Dependents(pkg string) []string
}

// ExistenceOracle answers "does this package exist on disk, and under what
// file name", used to derive the file-path rename map from the package-path
// rename map.
type ExistenceOracle interface {
	// Resolve returns the on-disk path (including extension) for pkg, and
	// false if pkg does not exist on disk.
	Resolve(pkg string) (file string, ok bool)
}

const externalActorsMarker = "/__ExternalActors__/"
const externalObjectsMarker = "/__ExternalObjects__/"

// Context is the pre-baked collection of rename maps, derived redirects,
// and string substitutions that drives one patching batch.
// It is read-only once built; many Header Patcher invocations share one
// Context concurrently.
type Context struct {
	log *log.Helper

	// PackageRenames maps a source package path to its destination path.
	PackageRenames map[string]string

	// FileRenames maps a source file path to its destination file path.
	FileRenames map[string]string

	// DerivedRedirects is appended to the shared Database before patching
	// begins.
	DerivedRedirects []Rule

	// StringReplacements holds whole-string or quoted-path substitutions
	// applied by the best-effort string-substitution pass.
	StringReplacements map[string]string

	// StringMountReplacements holds "/OldRoot/" -> "/NewRoot/" prefix
	// substitutions, including verse-mount-prefixed variants.
	StringMountReplacements map[string]string
}

// NewContextFromPackageMap builds a Context from Mode A: a source package
// to destination package map. When gatherDependents is true and oracle is
// non-nil, every package transitively depended on by a seed package is
// added to the rename map preserving its relative path under the seed.
func NewContextFromPackageMap(logger log.Logger, seeds map[string]string, gatherDependents bool, oracle DependencyOracle) *Context {
	ctx := &Context{
		log:                     log.NewHelper(logger),
		PackageRenames:          map[string]string{},
		FileRenames:             map[string]string{},
		StringReplacements:      map[string]string{},
		StringMountReplacements: map[string]string{},
	}

	for sp, dp := range seeds {
		ctx.PackageRenames[sp] = dp
		if gatherDependents && oracle != nil {
			ctx.gatherDependents(sp, dp, oracle, map[string]bool{sp: true})
		}
		ctx.addDerivedRedirects(sp, dp)
		ctx.addStringSubstitutions(sp, dp)
	}
	return ctx
}

// NewContextFromFileMap builds a Context from Mode B: a source file to
// destination file map, plus the roots needed to recover package paths
// from file paths (and vice versa) under srcBaseDir/Content/....
func NewContextFromFileMap(logger log.Logger, srcRoot, dstRoot, srcBaseDir string, files map[string]string, mountReplacements map[string]string) *Context {
	ctx := &Context{
		log:                     log.NewHelper(logger),
		PackageRenames:          map[string]string{},
		FileRenames:             map[string]string{},
		StringReplacements:      map[string]string{},
		StringMountReplacements: map[string]string{},
	}
	for k, v := range mountReplacements {
		ctx.StringMountReplacements[k] = v
	}

	for srcFile, dstFile := range files {
		ctx.FileRenames[srcFile] = dstFile
		sp, ok1 := PackagePathFromFile(srcFile, srcBaseDir)
		dp, ok2 := PackagePathFromFile(dstFile, srcBaseDir)
		if !ok1 || !ok2 {
			ctx.log.Debugf("no package path recoverable for %s; file copied without derived redirects", srcFile)
			continue
		}
		ctx.PackageRenames[sp] = dp
		ctx.addDerivedRedirects(sp, dp)
		ctx.addStringSubstitutions(sp, dp)
	}

	if srcRoot != dstRoot && srcRoot != "" && dstRoot != "" {
		ctx.DerivedRedirects = append(ctx.DerivedRedirects, Rule{
			OldName: Name{Package: srcRoot},
			NewName: Name{Package: dstRoot},
			Flags:   TypePackage | OptionMatchPrefix,
		})
	}

	return ctx
}

// gatherDependents walks pkg's transitive dependents through oracle,
// adding each one to PackageRenames with a destination that preserves its
// path relative to pkg, mapped under dp. External actor/object paths keep
// their trailing two hash directories untouched.
func (c *Context) gatherDependents(pkg, dst string, oracle DependencyOracle, seen map[string]bool) {
	for _, dep := range oracle.Dependents(pkg) {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		if _, already := c.PackageRenames[dep]; already {
			continue
		}
		if remapped, ok := remapExternalActorPath(dep, pkg, dst); ok {
			c.PackageRenames[dep] = remapped
		} else if strings.HasPrefix(dep, pkg+"/") {
			c.PackageRenames[dep] = dst + strings.TrimPrefix(dep, pkg)
		} else {
			c.PackageRenames[dep] = dep
		}
		c.gatherDependents(dep, c.PackageRenames[dep], oracle, seen)
	}
}

// remapExternalActorPath handles paths of the form
// "<root>/__ExternalActors__/<path>/<hash2>/<hash1>/<name>" (and the
// Objects variant): <root> becomes seedDst when it equals seedSrc and is
// kept otherwise. The middle <path> segments are not remapped; they and
// the two trailing hash directories are preserved verbatim.
func remapExternalActorPath(dep, seedSrc, seedDst string) (string, bool) {
	marker := externalActorsMarker
	idx := strings.Index(dep, marker)
	if idx == -1 {
		marker = externalObjectsMarker
		idx = strings.Index(dep, marker)
	}
	if idx == -1 {
		return "", false
	}
	root := dep[:idx]
	rest := dep[idx+len(marker):]
	segments := strings.Split(rest, "/")
	if len(segments) < 3 {
		return "", false
	}
	// segments: <path...>, hash2, hash1, name — the last three are fixed.
	name := segments[len(segments)-1]
	hash1 := segments[len(segments)-2]
	hash2 := segments[len(segments)-3]
	middle := segments[:len(segments)-3]

	newRoot := root
	if root == seedSrc {
		newRoot = seedDst
	}
	newMiddle := strings.Join(middle, "/")
	out := newRoot + marker
	if newMiddle != "" {
		out += newMiddle + "/"
	}
	out += hash2 + "/" + hash1 + "/" + name
	return out, true
}

// addDerivedRedirects appends the fixed family of rules generated for a
// single seed mapping: the package rule, the per-object family seeded by
// the packages' own basenames (the asset a package is named after), and a
// root-prefix rule when the mount roots differ.
func (c *Context) addDerivedRedirects(sp, dp string) {
	spName := Name{Package: sp}
	dpName := Name{Package: dp}

	c.DerivedRedirects = append(c.DerivedRedirects,
		Rule{OldName: spName, NewName: dpName, Flags: TypePackage},
	)
	c.DerivedRedirects = append(c.DerivedRedirects,
		c.SeedObjectRedirects(sp, dp, path.Base(sp), path.Base(dp))...)

	if root(sp) != root(dp) {
		c.DerivedRedirects = append(c.DerivedRedirects, Rule{
			OldName: Name{Package: root(sp)},
			NewName: Name{Package: root(dp)},
			Flags:   TypePackage | OptionMatchPrefix,
		})
	}
}

func root(pkg string) string {
	if pkg == "" {
		return ""
	}
	trimmed := strings.TrimPrefix(pkg, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx != -1 {
		return "/" + trimmed[:idx]
	}
	return "/" + trimmed
}

// SeedObjectRedirects emits the per-object derived-redirect family for one
// (oldObject, newObject) pair nested under the (sp, dp) package rename:
// Package|Object, Object-prefix, PersistentLevel-prefix, and the three
// Class/Package "_C"/"Default__"/"EditorOnlyData" forms.
// addDerivedRedirects seeds it with the package basenames for every
// mapping; callers with additional per-object renames may append more.
func (c *Context) SeedObjectRedirects(sp, dp, oldObject, newObject string) []Rule {
	return []Rule{
		{
			OldName: Name{Package: sp, Object: oldObject},
			NewName: Name{Package: dp, Object: newObject},
			Flags:   TypePackage | TypeObject,
		},
		{
			OldName: Name{Package: sp, Object: oldObject},
			NewName: Name{Package: dp, Object: newObject},
			Flags:   TypeObject | OptionMatchPrefix,
		},
		{
			OldName: Name{Package: sp, Outer: oldObject, Object: "PersistentLevel"},
			NewName: Name{Package: dp, Outer: newObject, Object: "PersistentLevel"},
			Flags:   TypeObject | OptionMatchPrefix,
		},
		{
			OldName: Name{Package: sp, Object: oldObject + "_C"},
			NewName: Name{Package: dp, Object: newObject + "_C"},
			Flags:   TypeClass | TypePackage,
		},
		{
			OldName: Name{Package: sp, Object: "Default__" + oldObject + "_C"},
			NewName: Name{Package: dp, Object: "Default__" + newObject + "_C"},
			Flags:   TypeClass | TypePackage,
		},
		{
			OldName: Name{Package: sp, Object: oldObject + "EditorOnlyData"},
			NewName: Name{Package: dp, Object: newObject + "EditorOnlyData"},
			Flags:   TypeClass | TypePackage,
		},
	}
}

// addStringSubstitutions populates StringReplacements and
// StringMountReplacements for one seed mapping, including the
// verse-mount-prefixed variant.
func (c *Context) addStringSubstitutions(sp, dp string) {
	c.StringReplacements[sp] = dp
	c.StringMountReplacements[sp+"/"] = dp + "/"
	c.StringMountReplacements["/localhost"+sp+"/"] = "/localhost" + dp + "/"
}

// PackagePathFromFile recovers a package path from a file path by locating
// "/Content/" under baseDir and treating the mount name (the path segment
// immediately before "/Content/") as the package root, the same recovery the
// patcher performs for files whose summary carries no package name.
func PackagePathFromFile(filePath, baseDir string) (string, bool) {
	rel := filePath
	if baseDir != "" && strings.HasPrefix(filePath, baseDir) {
		rel = strings.TrimPrefix(filePath, baseDir)
	}
	rel = strings.TrimPrefix(rel, "/")

	const marker = "/Content/"
	idx := strings.Index(rel, marker)
	var mount, assetRel string
	if idx == -1 {
		if strings.HasPrefix(rel, "Content/") {
			return "", false // no mount name available
		}
		return "", false
	}
	mount = rel[:idx]
	if slash := strings.LastIndexByte(mount, '/'); slash != -1 {
		mount = mount[slash+1:]
	}
	assetRel = rel[idx+len(marker):]
	if mount == "" || assetRel == "" {
		return "", false
	}
	ext := path.Ext(assetRel)
	assetRel = strings.TrimSuffix(assetRel, ext)
	return "/" + mount + "/" + assetRel, true
}

// IsVerseMountPackage reports whether pkg is excluded from file-path
// patching because it lives under the Verse mount.
func IsVerseMountPackage(pkg string) bool {
	return isVerseMountPackage(pkg)
}

// BuildFileRenames derives the file-path rename map from PackageRenames
// using oracle to recover each source package's on-disk file (including
// extension); verse-mount packages are excluded.
func (c *Context) BuildFileRenames(oracle ExistenceOracle) {
	if oracle == nil {
		return
	}
	for sp, dp := range c.PackageRenames {
		if IsVerseMountPackage(sp) {
			continue
		}
		srcFile, ok := oracle.Resolve(sp)
		if !ok {
			continue
		}
		ext := path.Ext(srcFile)
		dstFile := strings.TrimSuffix(srcFile, ext)
		dstFile = strings.TrimSuffix(dstFile, strings.TrimPrefix(sp, "/"))
		dstFile += strings.TrimPrefix(dp, "/") + ext
		c.FileRenames[srcFile] = dstFile
	}
}

// LongPackagePathRemapping exposes the package-path rename map driving
// this batch. The map is shared, not copied; callers treat it as
// read-only once patching has started.
func (c *Context) LongPackagePathRemapping() map[string]string {
	return c.PackageRenames
}

// InstallInto adds every derived redirect to db under tok's write lock.
func (c *Context) InstallInto(db *Database, tok rwrecur.Token) {
	db.AddRedirectList(tok, c.DerivedRedirects)
}
