// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"path"
	"strings"
)

// AssetRegistryData is the per-package asset registry payload: one record
// per top-level asset, each with a class name, an object path and a bag of
// string tags. DependencyDataOffset is the absolute file offset of the
// dependency-data section, stored inline here rather than in the summary;
// zero means the section is absent.
type AssetRegistryData struct {
	DependencyDataOffset int64                 `json:"dependency_data_offset"`
	Objects              []AssetRegistryObject `json:"objects"`
}

// AssetRegistryObject is one asset record.
type AssetRegistryObject struct {
	ObjectPath      string             `json:"object_path"`
	ObjectClassName string             `json:"object_class_name"`
	Tags            []AssetRegistryTag `json:"tags"`
}

// AssetRegistryTag is one key/value tag.
type AssetRegistryTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TagVisitor decodes a structured tag blob (the world-partition actor
// metadata format) and presents every embedded string, name, soft path and
// top-level asset path to rewrite. Implementations return the re-encoded
// blob and true, or false when the blob is not theirs to decode. The
// visitor lives outside the core: the blob format is an editor concern the
// patcher only transports.
type TagVisitor interface {
	PatchTag(key, value string, rewrite func(string) string) (string, bool)
}

func parseAssetRegistry(ar *archive) (AssetRegistryData, error) {
	var data AssetRegistryData
	data.DependencyDataOffset = ar.i64()
	count := ar.i32()
	if ar.Err() != nil {
		return data, ar.Err()
	}
	if count < 0 {
		return data, ErrOutsideBoundary
	}
	data.Objects = make([]AssetRegistryObject, 0, count)
	for i := int32(0); i < count; i++ {
		var obj AssetRegistryObject
		obj.ObjectPath = ar.fstring()
		obj.ObjectClassName = ar.fstring()
		tagCount := ar.i32()
		if ar.Err() != nil {
			break
		}
		if tagCount < 0 {
			return data, ErrOutsideBoundary
		}
		for j := int32(0); j < tagCount; j++ {
			var tag AssetRegistryTag
			tag.Key = ar.fstring()
			tag.Value = ar.fstring()
			obj.Tags = append(obj.Tags, tag)
		}
		data.Objects = append(data.Objects, obj)
	}
	if err := ar.Err(); err != nil {
		return data, err
	}
	return data, nil
}

// serializeAssetRegistry writes the section. The dependency-data offset is
// written as a placeholder here; the layout pass patches it in the output
// buffer once the dependency section's final position is known.
func serializeAssetRegistry(w *writer, data AssetRegistryData) error {
	w.i64(data.DependencyDataOffset)
	w.i32(int32(len(data.Objects)))
	for _, obj := range data.Objects {
		if err := w.fstring(obj.ObjectPath); err != nil {
			return err
		}
		if err := w.fstring(obj.ObjectClassName); err != nil {
			return err
		}
		w.i32(int32(len(obj.Tags)))
		for _, tag := range obj.Tags {
			if err := w.fstring(tag.Key); err != nil {
				return err
			}
			if err := w.fstring(tag.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// patchAssetRegistry rewrites each object record and its tags.
func (ps *patchState) patchAssetRegistry() {
	reg := &ps.f.AssetRegistry
	for i := range reg.Objects {
		obj := &reg.Objects[i]
		obj.ObjectPath = ps.patchObjectPath(obj.ObjectPath)
		obj.ObjectClassName = ps.patchTopLevelAssetPath(obj.ObjectClassName)
		for j := range obj.Tags {
			ps.patchRegistryTag(&obj.Tags[j])
		}
	}
}

// patchObjectPath handles the two forms an ObjectPath is observed in: a
// full soft path ("/Pkg/Path.Asset") or a bare asset name implicitly
// rooted at the package. The rewritten value is emitted in whichever form
// the original used.
func (ps *patchState) patchObjectPath(objectPath string) string {
	if objectPath == "" {
		return objectPath
	}
	if strings.HasPrefix(objectPath, "/") {
		old, ok := ParseName(objectPath)
		if !ok {
			return objectPath
		}
		redirected := ps.db.GetRedirectedName(ps.tok, TypeAllMask, old)
		if redirected.Equal(old) {
			return objectPath
		}
		return redirected.String()
	}
	old, ok := ParseName(ps.originalPackageName + "." + objectPath)
	if !ok {
		return objectPath
	}
	ps.f.addDiagnostic(DiagBareObjectPath)
	redirected := ps.db.GetRedirectedName(ps.tok, TypeAllMask, old)
	if redirected.Equal(old) {
		return objectPath
	}
	return stripPackage(redirected)
}

// patchTopLevelAssetPath redirects a "/Pkg.Asset"-shaped class path.
func (ps *patchState) patchTopLevelAssetPath(assetPath string) string {
	old, ok := ParseName(assetPath)
	if !ok || old.Package == "" {
		return assetPath
	}
	redirected := ps.db.GetRedirectedName(ps.tok, TypeClass|TypeObject, old)
	if redirected.Equal(old) {
		return assetPath
	}
	return redirected.String()
}

// patchRegistryTag applies, in priority order: the configured ignore set,
// the structured visitor for actor-metadata blobs, the GameFeatureData
// PrimaryAssetName special case, and finally the best-effort string
// substitution maps.
func (ps *patchState) patchRegistryTag(tag *AssetRegistryTag) {
	if ps.opts.IgnoredTagKeys[tag.Key] {
		return
	}

	if ps.opts.TagVisitor != nil {
		if patched, ok := ps.opts.TagVisitor.PatchTag(tag.Key, tag.Value, ps.rewriteEmbeddedString); ok {
			tag.Value = patched
			return
		}
	}

	if tag.Key == primaryAssetNameKey &&
		path.Base(ps.originalPackageName) == gameFeatureDataName {
		oldMount := mountName(ps.originalPackageName)
		newMount := mountName(ps.newPackageName)
		if oldMount != "" && newMount != "" && oldMount != newMount {
			tag.Value = strings.ReplaceAll(tag.Value, oldMount, newMount)
		}
		return
	}

	tag.Value = ps.substituteString(tag.Value)
}

// rewriteEmbeddedString is the callback handed to the TagVisitor: each
// decoded string is redirected as a soft path when it parses as one, and
// otherwise run through the substitution maps.
func (ps *patchState) rewriteEmbeddedString(s string) string {
	if old, ok := ParseName(s); ok && old.Package != "" {
		redirected := ps.db.GetRedirectedName(ps.tok, TypeAllMask, old)
		if !redirected.Equal(old) {
			return redirected.String()
		}
	}
	return ps.substituteString(s)
}

func mountName(pkg string) string {
	trimmed := strings.TrimPrefix(pkg, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx != -1 {
		return trimmed[:idx]
	}
	return trimmed
}

// substituteString is the deliberately constrained best-effort rewrite for
// raw string blobs. It attempts, in order: whole-string equality against
// StringReplacements; paths embedded between matched single or double
// quotes; a dotted sub-object path left of a ':' delimiter; and mount
// prefixes from StringMountReplacements in the same delimited forms. No
// other substring rewrite is attempted.
func (ps *patchState) substituteString(s string) string {
	if s == "" || ps.ctx == nil {
		return s
	}

	if repl, ok := ps.ctx.StringReplacements[s]; ok {
		return repl
	}

	if out, changed := ps.substituteQuoted(s); changed {
		return out
	}

	if colon := strings.IndexByte(s, ':'); colon != -1 {
		left := s[:colon]
		if strings.HasPrefix(left, "/") && strings.Contains(left, ".") {
			if repl := ps.replaceWhole(left); repl != left {
				return repl + s[colon:]
			}
		}
	}

	for oldPrefix, newPrefix := range ps.ctx.StringMountReplacements {
		if strings.HasPrefix(s, oldPrefix) {
			return newPrefix + strings.TrimPrefix(s, oldPrefix)
		}
	}
	return s
}

// substituteQuoted rewrites path-like runs between matched single or
// double quotes.
func (ps *patchState) substituteQuoted(s string) (string, bool) {
	changed := false
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '"' && c != '\'' {
			b.WriteByte(c)
			i++
			continue
		}
		close := strings.IndexByte(s[i+1:], c)
		if close == -1 {
			b.WriteString(s[i:])
			break
		}
		inner := s[i+1 : i+1+close]
		repl := ps.replaceWhole(inner)
		if repl != inner {
			changed = true
		}
		b.WriteByte(c)
		b.WriteString(repl)
		b.WriteByte(c)
		i += close + 2
	}
	if !changed {
		return s, false
	}
	return b.String(), true
}

// replaceWhole applies the exact and mount-prefix substitution maps to one
// extracted path string.
func (ps *patchState) replaceWhole(s string) string {
	if repl, ok := ps.ctx.StringReplacements[s]; ok {
		return repl
	}
	for oldSub, newSub := range ps.ctx.StringReplacements {
		if strings.HasPrefix(s, oldSub+".") || strings.HasPrefix(s, oldSub+"/") {
			return newSub + strings.TrimPrefix(s, oldSub)
		}
	}
	for oldPrefix, newPrefix := range ps.ctx.StringMountReplacements {
		if strings.HasPrefix(s, oldPrefix) {
			return newPrefix + strings.TrimPrefix(s, oldPrefix)
		}
	}
	return s
}
