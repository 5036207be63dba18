// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"sort"
	"strings"
	"sync"

	"github.com/saferwall/assetpatch/internal/log"
	"github.com/saferwall/assetpatch/internal/rwrecur"
)

// MissingChannel distinguishes why a name is recorded as known-missing, so
// that a removal request on the wrong channel is a no-op.
type MissingChannel int

const (
	// ChannelConfigured marks a known-missing entry added through explicit
	// configuration (ini files, AddKnownMissing called directly by a caller).
	ChannelConfigured MissingChannel = iota
	// ChannelMissingLoad marks a known-missing entry auto-created in
	// response to a failed load at runtime.
	ChannelMissingLoad
)

type missingKey struct {
	types RedirectFlags
	name  string
}

// Database stores redirect rules keyed by type flags and supports exact and
// wildcard queries, chained resolution, reverse lookup, and known-missing
// tracking, all under a recursive reader-writer lock (internal/rwrecur).
// Each public method takes the lock once; chained resolution and bulk
// updates run through the *Locked helpers without re-acquiring it.
type Database struct {
	mu  *rwrecur.Mutex
	log *log.Helper

	rules     []*Rule
	exact     map[string][]*Rule // keyed by searchKey(rule.OldName, rule.Flags)
	wildcards []*Rule
	bigrams   map[string]map[*Rule]bool // substring-rule prefilter

	missing map[missingKey]map[MissingChannel]bool

	assetRedirects map[string]Name // source "package.object" -> target Name
}

// NewDatabase returns an empty Database, ready for concurrent use once
// callers have obtained their own rwrecur.Token.
func NewDatabase(logger log.Logger) *Database {
	h := log.NewHelper(logger)
	return &Database{
		mu:             rwrecur.New(),
		log:            h,
		exact:          map[string][]*Rule{},
		bigrams:        map[string]map[*Rule]bool{},
		missing:        map[missingKey]map[MissingChannel]bool{},
		assetRedirects: map[string]Name{},
	}
}

func searchKey(name Name, flags RedirectFlags) string {
	if flags.HasAny(TypePackage | TypeAsset) {
		return name.Package
	}
	return name.Object
}

// --- per-thread current-context registry -----------------------------------

var (
	currentMu      sync.Mutex
	currentByToken = map[rwrecur.Token]*Database{}
)

// SetCurrent installs db as the database the given token's worker should
// consult, a thread-scoped "current redirect context" swap. Callers must
// call SetCurrent(tok, previous) on every exit path to restore it.
func SetCurrent(tok rwrecur.Token, db *Database) (previous *Database) {
	currentMu.Lock()
	defer currentMu.Unlock()
	previous = currentByToken[tok]
	if db == nil {
		delete(currentByToken, tok)
	} else {
		currentByToken[tok] = db
	}
	return previous
}

// Current returns the database currently installed for tok, or nil.
func Current(tok rwrecur.Token) *Database {
	currentMu.Lock()
	defer currentMu.Unlock()
	return currentByToken[tok]
}

// --- add / remove -----------------------------------------------------------

// AddRedirectList adds rules in bulk under the write lock. Two rules with
// the same OldName+Flags and the same NewName are merged: their empty
// fields are unioned and their ValueChanges maps are combined. Two rules
// with the same OldName+Flags but different NewName conflict; the first one
// added is kept and the conflict is logged.
func (db *Database) AddRedirectList(tok rwrecur.Token, rules []Rule) {
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	for _, r := range rules {
		db.addRuleLocked(r)
	}
	db.rebuildPrefilterLocked()
}

func (db *Database) addRuleLocked(r Rule) {
	for _, existing := range db.rules {
		if existing.Flags == r.Flags && existing.OldName.Equal(r.OldName) {
			if existing.NewName.Equal(r.NewName) {
				existing.NewName = unionName(existing.NewName, r.NewName)
				mergeValueChanges(existing, r)
				return
			}
			db.log.Warnf("conflicting redirect for %s: keeping %s, dropping %s",
				r.OldName.String(), existing.NewName.String(), r.NewName.String())
			return
		}
	}
	stored := r
	db.rules = append(db.rules, &stored)
	key := searchKey(stored.OldName, stored.Flags)
	db.exact[key] = append(db.exact[key], &stored)
	if stored.Flags.IsWildcard() {
		db.wildcards = append(db.wildcards, &stored)
	}
}

func unionName(a, b Name) Name {
	out := a
	if out.Package == "" {
		out.Package = b.Package
	}
	if out.Outer == "" {
		out.Outer = b.Outer
	}
	if out.Object == "" {
		out.Object = b.Object
	}
	return out
}

func mergeValueChanges(existing *Rule, incoming Rule) {
	if len(incoming.ValueChanges) == 0 {
		return
	}
	if existing.ValueChanges == nil {
		existing.ValueChanges = map[string]string{}
	}
	for k, v := range incoming.ValueChanges {
		existing.ValueChanges[k] = v
	}
}

// RemoveRedirectList removes rules matching the given OldName+Flags exactly
// (NewName is ignored for matching purposes).
func (db *Database) RemoveRedirectList(tok rwrecur.Token, rules []Rule) {
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	for _, r := range rules {
		db.removeRuleLocked(r)
	}
	db.rebuildPrefilterLocked()
}

func (db *Database) removeRuleLocked(r Rule) {
	filtered := db.rules[:0]
	for _, existing := range db.rules {
		if existing.Flags == r.Flags && existing.OldName.Equal(r.OldName) {
			continue
		}
		filtered = append(filtered, existing)
	}
	db.rules = filtered
	key := searchKey(r.OldName, r.Flags)
	db.exact[key] = filterRules(db.exact[key], r)
	db.wildcards = filterRules(db.wildcards, r)
}

func filterRules(list []*Rule, r Rule) []*Rule {
	out := list[:0]
	for _, existing := range list {
		if existing.Flags == r.Flags && existing.OldName.Equal(r.OldName) {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// rebuildPrefilterLocked regenerates the substring-match bigram index.
// The prefilter cannot forget a removed rule incrementally; we
// simply rebuild on every mutation since the rule set in a single patching
// run is small relative to file counts.
func (db *Database) rebuildPrefilterLocked() {
	db.bigrams = map[string]map[*Rule]bool{}
	for _, r := range db.wildcards {
		if !r.Flags.Has(OptionMatchSubstring) {
			continue
		}
		for _, field := range []string{r.OldName.Package, r.OldName.Outer, r.OldName.Object} {
			for _, bg := range bigrams(field) {
				if db.bigrams[bg] == nil {
					db.bigrams[bg] = map[*Rule]bool{}
				}
				db.bigrams[bg][r] = true
			}
		}
	}
}

func bigrams(s string) []string {
	s = strings.ToLower(s)
	if len(s) < 2 {
		return nil
	}
	out := make([]string, 0, len(s)-1)
	for i := 0; i+2 <= len(s); i++ {
		out = append(out, s[i:i+2])
	}
	return out
}

// mayMatchSubstring reports whether rule could possibly match query by
// substring, using the bigram prefilter. It never produces a false
// negative: any field too short to have a bigram, or a rule outside the
// index, falls through to "maybe".
func (db *Database) mayMatchSubstring(r *Rule, query Name) bool {
	if !r.Flags.Has(OptionMatchSubstring) {
		return true
	}
	fields := []struct{ pattern, value string }{
		{r.OldName.Package, query.Package},
		{r.OldName.Outer, query.Outer},
		{r.OldName.Object, query.Object},
	}
	for _, f := range fields {
		if len(f.pattern) < 2 {
			continue // empty or too short to be indexed; can't rule it out
		}
		qb := bigrams(f.value)
		if qb == nil {
			return true // too short to extract a bigram; can't rule it out
		}
		found := false
		for _, bg := range qb {
			if db.bigrams[bg] != nil && db.bigrams[bg][r] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// --- queries ------------------------------------------------------------

// MatchingRedirects returns every rule compatible with typeFlags whose
// OldName matches query, sorted by descending match score.
func (db *Database) MatchingRedirects(tok rwrecur.Token, typeFlags RedirectFlags, query Name) []*Rule {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	return db.matchingRulesLocked(typeFlags, query)
}

func (db *Database) matchingRulesLocked(typeFlags RedirectFlags, query Name) []*Rule {
	seen := map[*Rule]bool{}
	var candidates []*Rule

	// typeMatch widens the query's own Type bits with Package and Asset
	// for non-Package, non-Removed queries: renaming a package implicitly
	// renames the objects under it.
	effectiveTypes := typeFlags.Types()
	if !typeFlags.Has(TypePackage) && !typeFlags.Has(CategoryRemoved) {
		effectiveTypes |= TypePackage | TypeAsset
	}

	consider := func(r *Rule) {
		if seen[r] {
			return
		}
		if r.Flags.Types()&effectiveTypes == 0 {
			return
		}
		if r.Flags.Categories() != typeFlags.Categories() {
			return
		}
		if r.Flags.IsWildcard() {
			if !db.mayMatchSubstring(r, query) {
				return
			}
		}
		if !query.Matches(r.OldName, r.Flags) {
			return
		}
		seen[r] = true
		candidates = append(candidates, r)
	}

	for _, r := range db.exact[query.Object] {
		consider(r)
	}
	for _, r := range db.exact[query.Package] {
		consider(r)
	}
	for _, r := range db.wildcards {
		consider(r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return query.MatchScore(candidates[i].OldName, candidates[i].Flags) >
			query.MatchScore(candidates[j].OldName, candidates[j].Flags)
	})
	return candidates
}

// GetRedirectedName resolves query to its final redirected name: the
// matching rules (sorted by descending score) are applied in order to the
// evolving name, each one re-checked against the current value, until no
// further rule applies (a fixed point) or every rule has been consumed
// once. The second form bounds the loop against cyclic redirect graphs
// (redirect graphs are untrusted input): a cycle causes resolution to stop
// at the first name re-visited rather than spin.
func (db *Database) GetRedirectedName(tok rwrecur.Token, typeFlags RedirectFlags, query Name) Name {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	rules := db.matchingRulesLocked(typeFlags, query)

	current := query
	applied := map[*Rule]bool{}
	visited := map[Name]bool{current: true}
	for range rules {
		progressed := false
		for _, r := range rules {
			if applied[r] || r.IsRemoved() {
				continue
			}
			if !current.Matches(r.OldName, r.Flags) {
				continue
			}
			next := r.Apply(current)
			applied[r] = true
			if next.Equal(current) {
				// The rule is a self-mapping (or rewrote a field to its
				// existing value); consume it without declaring progress.
				continue
			}
			if visited[next] {
				db.log.Warnf("cyclic redirect detected resolving %s; stopping at %s", query.String(), next.String())
				return next
			}
			visited[next] = true
			current = next
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}
	return current
}

// GetValueRedirects returns the winning rule's ValueChanges map. If more
// than one rule of equal top score disagrees on value changes, the first
// one found is returned and a diagnostic is logged (non-fatal).
func (db *Database) GetValueRedirects(tok rwrecur.Token, typeFlags RedirectFlags, query Name) map[string]string {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	rules := db.matchingRulesLocked(typeFlags, query)
	if len(rules) == 0 {
		return nil
	}
	best := rules[0]
	topScore := query.MatchScore(best.OldName, best.Flags)
	for _, r := range rules[1:] {
		if query.MatchScore(r.OldName, r.Flags) != topScore {
			break
		}
		if !sameValueChanges(best.ValueChanges, r.ValueChanges) {
			db.log.Warnf("ambiguous value redirects for %s: multiple equally-ranked rules disagree", query.String())
			break
		}
	}
	return best.ValueChanges
}

func sameValueChanges(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// FindPreviousNames performs the reverse lookup: for every rule compatible
// with typeFlags, synthesize the inverse rule (swap OldName/NewName) and
// test whether newName matches the inverse's OldName (i.e. the original
// rule's NewName); collect every such rule's original OldName.
func (db *Database) FindPreviousNames(tok rwrecur.Token, typeFlags RedirectFlags, newName Name) []Name {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	var out []Name
	for _, r := range db.rules {
		if r.Flags.Types()&typeFlags.Types() == 0 {
			continue
		}
		if r.Flags.Categories() != typeFlags.Categories() {
			continue
		}
		if r.IsRemoved() {
			continue
		}
		if newName.Matches(r.NewName, r.Flags) {
			out = append(out, r.OldName)
		}
	}
	return out
}

// --- known missing --------------------------------------------------------

func (db *Database) missingKey(typeFlags RedirectFlags, name Name) missingKey {
	return missingKey{types: typeFlags.Types(), name: name.String()}
}

// IsKnownMissing reports whether name is recorded as removed under any
// channel for the given type flags.
func (db *Database) IsKnownMissing(tok rwrecur.Token, typeFlags RedirectFlags, name Name) bool {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	channels, ok := db.missing[db.missingKey(typeFlags, name)]
	return ok && len(channels) > 0
}

// AddKnownMissing records name as removed on the given channel, adding a
// backing CategoryRemoved rule the first time any channel records it.
func (db *Database) AddKnownMissing(tok rwrecur.Token, typeFlags RedirectFlags, name Name, channel MissingChannel) {
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	key := db.missingKey(typeFlags, name)
	if db.missing[key] == nil {
		db.missing[key] = map[MissingChannel]bool{}
	}
	wasEmpty := len(db.missing[key]) == 0
	db.missing[key][channel] = true
	if wasEmpty {
		flags := typeFlags.Types() | CategoryRemoved
		db.addRuleLocked(Rule{OldName: name, Flags: flags})
	}
}

// RemoveKnownMissing removes name's record on the given channel only; a
// call with the wrong channel is a no-op. The
// backing rule is removed once no channel remains.
func (db *Database) RemoveKnownMissing(tok rwrecur.Token, typeFlags RedirectFlags, name Name, channel MissingChannel) {
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	key := db.missingKey(typeFlags, name)
	channels := db.missing[key]
	if channels == nil || !channels[channel] {
		return
	}
	delete(channels, channel)
	if len(channels) == 0 {
		delete(db.missing, key)
		flags := typeFlags.Types() | CategoryRemoved
		db.removeRuleLocked(Rule{OldName: name, Flags: flags})
	}
}

// ClearKnownMissing drops every known-missing record and its backing rules.
func (db *Database) ClearKnownMissing(tok rwrecur.Token) {
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	for key := range db.missing {
		flags := key.types | CategoryRemoved
		if n, ok := ParseName(key.name); ok {
			db.removeRuleLocked(Rule{OldName: n, Flags: flags})
		}
	}
	db.missing = map[missingKey]map[MissingChannel]bool{}
}

// --- asset redirects -------------------------------------------------------

func assetKey(n Name) string {
	return n.Package + "." + n.Object
}

// AddAssetRedirects imports a batch of source->target mappings as
// Type_Asset rules. A source whose package or object is empty is rejected
// with ErrEmptyAssetRedirectSource without modifying the database.
func (db *Database) AddAssetRedirects(tok rwrecur.Token, mapping map[Name]Name) error {
	for src := range mapping {
		if src.Package == "" || src.Object == "" {
			return ErrEmptyAssetRedirectSource
		}
	}
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	for src, dst := range mapping {
		db.assetRedirects[assetKey(src)] = dst
		db.addRuleLocked(Rule{OldName: src, NewName: dst, Flags: TypeAsset})
	}
	return nil
}

// RemoveAllAssetRedirects drops every Type_Asset rule and redirect record.
func (db *Database) RemoveAllAssetRedirects(tok rwrecur.Token) {
	db.mu.Lock(tok)
	defer db.mu.Unlock(tok)
	filtered := db.rules[:0]
	for _, r := range db.rules {
		if r.Flags.Has(TypeAsset) {
			continue
		}
		filtered = append(filtered, r)
	}
	db.rules = filtered
	db.exact = map[string][]*Rule{}
	db.wildcards = nil
	for _, r := range db.rules {
		key := searchKey(r.OldName, r.Flags)
		db.exact[key] = append(db.exact[key], r)
		if r.Flags.IsWildcard() {
			db.wildcards = append(db.wildcards, r)
		}
	}
	db.rebuildPrefilterLocked()
	db.assetRedirects = map[string]Name{}
}

// ValidateAllRedirects reports whether every rule in the database is
// well-formed (Rule.Validate).
func (db *Database) ValidateAllRedirects(tok rwrecur.Token) bool {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	for _, r := range db.rules {
		if !r.Validate() {
			return false
		}
	}
	return true
}

// ValidateAssetRedirects reports whether the Type_Asset rule set is free of
// chains: true iff no asset rule's NewName also appears as another asset
// rule's OldName (a chain).
func (db *Database) ValidateAssetRedirects(tok rwrecur.Token) bool {
	db.mu.RLock(tok)
	defer db.mu.RUnlock(tok)
	sources := map[string]bool{}
	for _, r := range db.rules {
		if r.Flags.Has(TypeAsset) {
			sources[assetKey(r.OldName)] = true
		}
	}
	for _, r := range db.rules {
		if r.Flags.Has(TypeAsset) && sources[assetKey(r.NewName)] {
			return false
		}
	}
	return true
}
