// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// GatherableTextData is one localization source site gathered from the
// package. Of all its fields only the per-context SiteDescription carries
// asset references; everything else is opaque text copied through.
type GatherableTextData struct {
	NamespaceName      string                  `json:"namespace_name"`
	Key                string                  `json:"key"`
	SourceString       string                  `json:"source_string"`
	SourceSiteContexts []TextSourceSiteContext `json:"source_site_contexts"`
}

// TextSourceSiteContext records where a piece of localized text was found.
// SiteDescription is a soft-object-path-shaped string naming the owning
// object.
type TextSourceSiteContext struct {
	KeyName         string `json:"key_name"`
	SiteDescription string `json:"site_description"`
	IsEditorOnly    bool   `json:"is_editor_only"`
	IsOptional      bool   `json:"is_optional"`
}

func parseGatherableTextData(ar *archive, count int32) ([]GatherableTextData, error) {
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	data := make([]GatherableTextData, 0, count)
	for i := int32(0); i < count; i++ {
		var g GatherableTextData
		g.NamespaceName = ar.fstring()
		g.Key = ar.fstring()
		g.SourceString = ar.fstring()
		ctxCount := ar.i32()
		if ar.Err() != nil {
			break
		}
		if ctxCount < 0 {
			return nil, ErrOutsideBoundary
		}
		for j := int32(0); j < ctxCount; j++ {
			var c TextSourceSiteContext
			c.KeyName = ar.fstring()
			c.SiteDescription = ar.fstring()
			c.IsEditorOnly = ar.u32() != 0
			c.IsOptional = ar.u32() != 0
			g.SourceSiteContexts = append(g.SourceSiteContexts, c)
		}
		data = append(data, g)
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return data, nil
}

func serializeGatherableTextData(w *writer, data []GatherableTextData) error {
	for _, g := range data {
		if err := w.fstring(g.NamespaceName); err != nil {
			return err
		}
		if err := w.fstring(g.Key); err != nil {
			return err
		}
		if err := w.fstring(g.SourceString); err != nil {
			return err
		}
		w.i32(int32(len(g.SourceSiteContexts)))
		for _, c := range g.SourceSiteContexts {
			if err := w.fstring(c.KeyName); err != nil {
				return err
			}
			if err := w.fstring(c.SiteDescription); err != nil {
				return err
			}
			w.u32(boolU32(c.IsEditorOnly))
			w.u32(boolU32(c.IsOptional))
		}
	}
	return nil
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// patchGatherableText parses each SiteDescription as a soft object path
// and redirects it under the full type mask. Descriptions that do not
// parse as a qualified name are left alone.
func (ps *patchState) patchGatherableText() {
	for i := range ps.f.GatherableTextData {
		g := &ps.f.GatherableTextData[i]
		for j := range g.SourceSiteContexts {
			c := &g.SourceSiteContexts[j]
			old, ok := ParseName(c.SiteDescription)
			if !ok || old.Package == "" {
				continue
			}
			redirected := ps.db.GetRedirectedName(ps.tok, TypeAllMask, old)
			if !redirected.Equal(old) {
				c.SiteDescription = redirected.String()
			}
		}
	}
}
