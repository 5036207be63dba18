// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import "fmt"

// NameValue is a resolved name reference: the interned text plus the
// instance number the (index, number) pair carried on disk. The index
// itself is never held in memory; it is recomputed against the final name
// table at write time.
type NameValue struct {
	Text   string `json:"text"`
	Number int32  `json:"number"`
}

// NameTable is the per-file intern pool. Every Name field elsewhere in the
// header is serialized as an (index, number) pair into this table.
type NameTable struct {
	Entries []string `json:"entries"`
	lookup  map[string]int32
}

// NewNameTable builds a table over entries and indexes it for lookup.
func NewNameTable(entries []string) *NameTable {
	nt := &NameTable{Entries: entries}
	nt.reindex()
	return nt
}

func (nt *NameTable) reindex() {
	nt.lookup = make(map[string]int32, len(nt.Entries))
	for i, e := range nt.Entries {
		if _, dup := nt.lookup[e]; !dup {
			nt.lookup[e] = int32(i)
		}
	}
}

// Get returns the text of entry idx.
func (nt *NameTable) Get(idx int32) (string, error) {
	if idx < 0 || int(idx) >= len(nt.Entries) {
		return "", fmt.Errorf("assetpatch: name index %d out of range (table holds %d): %w",
			idx, len(nt.Entries), ErrOutsideBoundary)
	}
	return nt.Entries[idx], nil
}

// Index returns the entry index of text, if present.
func (nt *NameTable) Index(text string) (int32, bool) {
	idx, ok := nt.lookup[text]
	return idx, ok
}

// Contains reports whether text is an entry.
func (nt *NameTable) Contains(text string) bool {
	_, ok := nt.lookup[text]
	return ok
}

// Len returns the number of entries.
func (nt *NameTable) Len() int { return len(nt.Entries) }

// parseNameTable reads count length-prefixed strings at the archive cursor.
func parseNameTable(ar *archive, count int32) (*NameTable, error) {
	if count <= 0 {
		return nil, ErrEmptyRequiredSection
	}
	entries := make([]string, 0, count)
	for i := int32(0); i < count; i++ {
		entries = append(entries, ar.fstring())
	}
	if err := ar.Err(); err != nil {
		return nil, err
	}
	return NewNameTable(entries), nil
}

// serialize writes every entry back out in table order.
func (nt *NameTable) serialize(w *writer) error {
	for _, e := range nt.Entries {
		if err := w.fstring(e); err != nil {
			return err
		}
	}
	return nil
}

// namePlan is the three-set mutation algebra over name-table entries:
// renameInPlace, appendNew and keepUnchanged are disjoint. Every rewrite
// pass funnels each name use it visits through keep or remap; the algebra
// resolves the case where two header contexts share a table slot but
// diverge under rewrite (the second destination appends instead of
// clobbering the first's in-place rename).
type namePlan struct {
	table *NameTable

	renameInPlace map[int32]string
	keepUnchanged map[int32]bool
	appendNew     map[string]bool
	appendOrder   []string
}

func newNamePlan(nt *NameTable) *namePlan {
	return &namePlan{
		table:         nt,
		renameInPlace: map[int32]string{},
		keepUnchanged: map[int32]bool{},
		appendNew:     map[string]bool{},
	}
}

// keep pins old's table slot as unchanged. Any later remap of the same slot
// to a different destination appends instead of renaming in place.
func (p *namePlan) keep(old string) {
	idx, ok := p.table.Index(old)
	if !ok {
		return
	}
	if _, renamed := p.renameInPlace[idx]; renamed {
		return
	}
	p.keepUnchanged[idx] = true
}

// remap records that a use of old must read back as new after patching.
func (p *namePlan) remap(old, new string) {
	if old == new {
		return
	}
	if p.table.Contains(new) {
		// The destination already exists; the writer resolves to it.
		return
	}
	idx, ok := p.table.Index(old)
	if !ok {
		p.add(new)
		return
	}
	if p.keepUnchanged[idx] {
		p.add(new)
		return
	}
	if pending, renamed := p.renameInPlace[idx]; renamed {
		if pending != new {
			p.add(new)
		}
		return
	}
	p.renameInPlace[idx] = new
}

// add records a name that must exist in the final table without renaming
// any existing slot (a rewrite that introduces a name with no source).
func (p *namePlan) add(new string) {
	if new == "" || p.table.Contains(new) || p.appendNew[new] {
		return
	}
	p.appendNew[new] = true
	p.appendOrder = append(p.appendOrder, new)
}

// finalize applies in-place renames and appends pending names, skipping any
// append a rename already produced, then rebuilds the lookup index. After
// finalize the table is the single authority the nameWriter resolves
// against.
func (p *namePlan) finalize() {
	for idx, new := range p.renameInPlace {
		p.table.Entries[idx] = new
	}
	p.table.reindex()
	for _, new := range p.appendOrder {
		if p.table.Contains(new) {
			continue
		}
		p.table.Entries = append(p.table.Entries, new)
		p.table.lookup[new] = int32(len(p.table.Entries) - 1)
	}
}
