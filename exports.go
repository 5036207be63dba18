// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

// Export is one entry of the export table: an object serialized inside
// this package's body payload. SerialOffset is an absolute file offset
// into the body; the final serialization pass shifts it by however much
// the header grew or shrank. The export table itself is size-preserving:
// entries are only ever edited in place, never added or removed.
type Export struct {
	ClassIndex    PackageIndex `json:"class_index"`
	SuperIndex    PackageIndex `json:"super_index"`
	TemplateIndex PackageIndex `json:"template_index"`
	OuterIndex    PackageIndex `json:"outer_index"`
	ObjectName    NameValue    `json:"object_name"`
	ObjectFlags   uint32       `json:"object_flags"`
	SerialSize    int64        `json:"serial_size"`
	SerialOffset  int64        `json:"serial_offset"`
}

// exportSerializedSize is the fixed on-disk size of one export entry.
const exportSerializedSize = 4*4 + 8 + 4 + 8 + 8

func parseExports(ar *archive, nt *NameTable, count int32) ([]Export, error) {
	if count < 0 {
		return nil, ErrOutsideBoundary
	}
	exports := make([]Export, 0, count)
	for i := int32(0); i < count; i++ {
		var exp Export
		exp.ClassIndex = PackageIndex(ar.i32())
		exp.SuperIndex = PackageIndex(ar.i32())
		exp.TemplateIndex = PackageIndex(ar.i32())
		exp.OuterIndex = PackageIndex(ar.i32())
		exp.ObjectName = ar.name(nt)
		exp.ObjectFlags = ar.u32()
		exp.SerialSize = ar.i64()
		exp.SerialOffset = ar.i64()
		exports = append(exports, exp)
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return exports, nil
}

func serializeExports(nw *nameWriter, exports []Export) error {
	for _, exp := range exports {
		nw.w.i32(int32(exp.ClassIndex))
		nw.w.i32(int32(exp.SuperIndex))
		nw.w.i32(int32(exp.TemplateIndex))
		nw.w.i32(int32(exp.OuterIndex))
		if err := nw.name(exp.ObjectName); err != nil {
			return err
		}
		nw.w.u32(exp.ObjectFlags)
		nw.w.i64(exp.SerialSize)
		nw.w.i64(exp.SerialOffset)
	}
	return nil
}

// exportFullName walks export idx's outer chain up to the package root and
// returns its full qualified name under the ORIGINAL package path. Outer
// links that leave the export table terminate the walk at the package
// (importFullName, by contrast, reports such a chain as not pathable).
func (ps *patchState) exportFullName(idx int) Name {
	var parts []string
	cur := FromExport(idx)
	for cur.IsExport() {
		// A chain longer than the table is a cycle in a corrupt file;
		// stop at the package.
		if len(parts) > len(ps.f.Exports) {
			break
		}
		exp := ps.f.Exports[cur.ExportIndex()]
		parts = append(parts, exp.ObjectName.Text)
		cur = exp.OuterIndex
	}
	n := Name{Package: ps.originalPackageName}
	for i := len(parts) - 1; i >= 0; i-- {
		n = n.Append(parts[i])
	}
	return n
}

// patchExports queries each export's full qualified name under the full
// type mask and queues an in-place object-name patch when it changed.
// Outer/super/class/template indices stay untouched: the patcher never
// removes exports, so every index remains valid.
func (ps *patchState) patchExports() {
	// Full names are computed for every export before any in-place edit:
	// a child's outer chain must see original names, not half-renamed
	// ones.
	fulls := make([]Name, len(ps.f.Exports))
	for i := range ps.f.Exports {
		fulls[i] = ps.exportFullName(i)
	}
	for i := range ps.f.Exports {
		exp := &ps.f.Exports[i]
		full := fulls[i]
		redirected := ps.db.GetRedirectedName(ps.tok, TypeAllMask, full)
		if redirected.Object != full.Object && redirected.Object != "" {
			ps.names.remap(exp.ObjectName.Text, redirected.Object)
			exp.ObjectName.Text = redirected.Object
		} else {
			// Unchanged export names may also be referenced from payload
			// data; pin the slot so a divergent rename appends instead.
			ps.names.keep(exp.ObjectName.Text)
		}
	}
}
