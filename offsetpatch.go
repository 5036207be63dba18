// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "fmt"

// offsetAdjuster patches summary offsets as sections change size during
// serialization. After each section is written, shift is called with the
// section's ORIGINAL start offset and its size delta: every summary offset
// whose original stored value exceeds that start moves by the delta. The
// comparison always runs against the offsets as they were in the source
// file, never the partially-adjusted values, so the order sections are
// shifted in cannot change the outcome.
type offsetAdjuster struct {
	fields     []offsetField
	cumulative int64
}

type offsetField struct {
	ptr  *int64
	orig int64
}

func newOffsetAdjuster(s *Summary) *offsetAdjuster {
	ptrs := []*int64{
		&s.TotalHeaderSize,
		&s.NameOffset,
		&s.SoftObjectPathsOffset,
		&s.GatherableTextDataOffset,
		&s.ImportOffset,
		&s.ExportOffset,
		&s.SoftPackageReferencesOffset,
		&s.SearchableNamesOffset,
		&s.ThumbnailTableOffset,
		&s.AssetRegistryDataOffset,
	}
	a := &offsetAdjuster{}
	for _, p := range ptrs {
		a.fields = append(a.fields, offsetField{ptr: p, orig: *p})
	}
	return a
}

// shift moves every offset originally past sectionOrigStart by delta.
// Absent sections (offset 0) never move.
func (a *offsetAdjuster) shift(sectionOrigStart, delta int64) {
	a.cumulative += delta
	if delta == 0 {
		return
	}
	for _, f := range a.fields {
		if f.orig != 0 && f.orig > sectionOrigStart {
			*f.ptr += delta
		}
	}
}

// runningDelta is the net header growth accumulated so far.
func (a *offsetAdjuster) runningDelta() int64 { return a.cumulative }

// serializeHeader is phase 3: it writes every table in the fixed order,
// adjusting summary offsets section by section, copies inter-section
// padding and the body payload through verbatim, then rewrites the summary
// and the export serial offsets with their final values. The returned
// buffer is the complete output file.
func (ps *patchState) serializeHeader() ([]byte, error) {
	f := ps.f
	s := &f.Summary
	origTotal := s.TotalHeaderSize
	adjuster := newOffsetAdjuster(s)
	out := newWriter(f.order)
	nw := &nameWriter{w: out, nt: f.Names}

	// Counts reflect the patched tables before anything is written.
	s.NameCount = int32(f.Names.Len())
	s.ImportCount = int32(len(f.Imports))

	// The summary is written with pre-adjustment offsets and rewritten in
	// place once every section has landed; only its SIZE matters on this
	// first pass, and that is already final (the package name is set).
	if err := s.serialize(out); err != nil {
		return nil, err
	}
	adjuster.shift(0, out.Len()-f.summaryEnd)

	type section struct {
		kind      SectionKind
		origStart int64
		write     func() error
	}
	sections := []section{
		{SectionNameTable, adjuster.origOf(&s.NameOffset), func() error {
			return f.Names.serialize(out)
		}},
		{SectionSoftObjectPaths, adjuster.origOf(&s.SoftObjectPathsOffset), func() error {
			return serializeSoftObjectPaths(nw, f.SoftObjectPaths)
		}},
		{SectionGatherableTextData, adjuster.origOf(&s.GatherableTextDataOffset), func() error {
			return serializeGatherableTextData(out, f.GatherableTextData)
		}},
		{SectionImports, adjuster.origOf(&s.ImportOffset), func() error {
			return serializeImports(nw, f.Imports)
		}},
		{SectionExports, adjuster.origOf(&s.ExportOffset), func() error {
			return serializeExports(nw, f.Exports)
		}},
		{SectionSoftPackageReferences, adjuster.origOf(&s.SoftPackageReferencesOffset), func() error {
			return serializeSoftPackageRefs(nw, f.SoftPackageReferences)
		}},
		{SectionSearchableNames, adjuster.origOf(&s.SearchableNamesOffset), func() error {
			return serializeSearchableNames(nw, f.SearchableNames)
		}},
		{SectionThumbnails, adjuster.origOf(&s.ThumbnailTableOffset), func() error {
			return serializeThumbnails(out, f.Thumbnails, adjuster.runningDelta())
		}},
		{SectionAssetRegistryData, adjuster.origOf(&s.AssetRegistryDataOffset), func() error {
			return serializeAssetRegistry(out, f.AssetRegistry)
		}},
	}

	prevOrigEnd := f.summaryEnd
	var registryNewStart int64
	for _, sec := range sections {
		if sec.origStart == 0 {
			continue
		}
		// Some older files carry padding between tables; preserve it.
		gap := sec.origStart - prevOrigEnd
		if gap < 0 {
			return nil, ErrUnexpectedSectionOrder
		}
		if gap > 0 {
			out.raw(f.data[prevOrigEnd:sec.origStart])
			f.addDiagnostic(DiagInterSectionPadding)
		}
		newStart := out.Len()
		if sec.kind == SectionAssetRegistryData {
			registryNewStart = newStart
		}
		if err := sec.write(); err != nil {
			return nil, err
		}
		origEnd := f.sectionEnd[sec.kind]
		delta := (out.Len() - newStart) - (origEnd - sec.origStart)
		if sec.kind.IsSizePreserving() && delta != 0 {
			panic(fmt.Sprintf("assetpatch: size-preserving section %s changed size by %d bytes",
				sec.kind.String(), delta))
		}
		adjuster.shift(sec.origStart, delta)
		prevOrigEnd = origEnd
	}

	// Dependency data is indexed from inside the asset-registry section
	// rather than the summary; its offset field is patched directly into
	// the output buffer once its final position is known.
	if f.hasDependencyData {
		origStart := f.AssetRegistry.DependencyDataOffset
		gap := origStart - prevOrigEnd
		if gap < 0 {
			return nil, ErrUnexpectedSectionOrder
		}
		if gap > 0 {
			out.raw(f.data[prevOrigEnd:origStart])
		}
		newStart := out.Len()
		if err := serializeDependencyData(nw, f.DependencyData); err != nil {
			return nil, err
		}
		origEnd := f.sectionEnd[SectionAssetRegistryDependencyData]
		adjuster.shift(origStart, (out.Len()-newStart)-(origEnd-origStart))
		prevOrigEnd = origEnd

		f.AssetRegistry.DependencyDataOffset = newStart
		f.order.PutUint64(out.Bytes()[registryNewStart:], uint64(newStart))
	}

	// Trailing padding up to the original end of the header.
	if gap := origTotal - prevOrigEnd; gap > 0 {
		out.raw(f.data[prevOrigEnd:origTotal])
	}

	if out.Len() != s.TotalHeaderSize {
		return nil, fmt.Errorf("assetpatch: header layout drifted: wrote %d bytes, summary says %d: %w",
			out.Len(), s.TotalHeaderSize, ErrOutsideBoundary)
	}

	// Body payload, copied through verbatim.
	out.raw(f.data[origTotal:])

	buf := out.Bytes()

	// Rewrite the summary with the adjusted offsets and sizes.
	sw := newWriter(f.order)
	if err := s.serialize(sw); err != nil {
		return nil, err
	}
	copy(buf, sw.Bytes())

	// Rewrite the export table with each serial offset shifted by however
	// much the header grew.
	headerDelta := s.TotalHeaderSize - origTotal
	for i := range f.Exports {
		f.Exports[i].SerialOffset += headerDelta
	}
	ew := newWriter(f.order)
	enw := &nameWriter{w: ew, nt: f.Names}
	if err := serializeExports(enw, f.Exports); err != nil {
		return nil, err
	}
	copy(buf[s.ExportOffset:], ew.Bytes())

	return buf, nil
}

// origOf returns the captured original value behind ptr.
func (a *offsetAdjuster) origOf(ptr *int64) int64 {
	for _, f := range a.fields {
		if f.ptr == ptr {
			return f.orig
		}
	}
	return 0
}

