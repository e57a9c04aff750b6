package dwarf

import (
	"github.com/derekparker/trie"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// trieIndex wraps a *trie.Trie keyed by symbol name, meta is the
// .debug_info offset of the DIE the name names (a *unit.DIE isn't stored
// directly since .debug_pubnames predates DWARF5's per-unit DIE-handle
// cost concerns and only ever records an offset).
type trieIndex struct {
	t *trie.Trie
}

// NameEntry is one accelerator-index hit: a symbol name and the
// .debug_info offset of the DIE it names.
type NameEntry struct {
	Name   string
	Offset uint64
}

// Names returns the session's accelerator index, built lazily from
// .debug_pubnames on first use. A session with no .debug_pubnames
// section returns a non-nil, empty index.
func (s *Session) Names() *trieIndex {
	if !s.namesBuilt {
		s.names = buildNameIndex(s.pubnames, s)
		s.namesBuilt = true
	}
	return s.names
}

// Lookup returns the .debug_info offset of the DIE named name, and
// whether it was found.
func (idx *trieIndex) Lookup(name string) (uint64, bool) {
	n, ok := idx.t.Find(name)
	if !ok {
		return 0, false
	}
	return n.Meta().(uint64), true
}

// WithPrefix returns every indexed name beginning with prefix, in
// trie.PrefixSearch's order.
func (idx *trieIndex) WithPrefix(prefix string) []string {
	return idx.t.PrefixSearch(prefix)
}

// Fuzzy returns every indexed name trie.FuzzySearch judges a fuzzy match
// for pattern (each character of pattern appears in the name, in order).
func (idx *trieIndex) Fuzzy(pattern string) []string {
	return idx.t.FuzzySearch(pattern)
}

// Len returns the number of distinct names indexed.
func (idx *trieIndex) Len() int { return len(idx.t.Keys()) }

// buildNameIndex decodes every classic .debug_pubnames header-block
// (DWARFv2 section 6.1.1: unit_length, version, debug_info_offset,
// debug_info_length, then (die_offset, name) pairs terminated by a zero
// die_offset) into a trie. Malformed trailing data records a harmless
// error and stops, rather than failing session construction: pubnames is
// an optional accelerator, not load-bearing for the DIE pipeline itself.
func buildNameIndex(data []byte, s *Session) *trieIndex {
	t := trie.New()
	if len(data) == 0 {
		return &trieIndex{t: t}
	}

	off := uint64(0)
	order := s.resources.Order
	for off < uint64(len(data)) {
		b := util.NewBuf("debug_pubnames", off, data[off:], order)
		length, dwarf64 := b.InitialLength()
		if b.Err != nil {
			if s != nil {
				s.recordHarmless(wrapError(ErrTruncated, "parsing .debug_pubnames header", b.Err))
			}
			break
		}
		blockEnd := b.Off + length

		b.Uint16()            // version
		b.Offset(dwarf64)     // debug_info_offset
		b.Offset(dwarf64)     // debug_info_length
		if b.Err != nil {
			if s != nil {
				s.recordHarmless(wrapError(ErrTruncated, "parsing .debug_pubnames header", b.Err))
			}
			break
		}

		for b.Off < blockEnd {
			dieOff := b.Offset(dwarf64)
			if b.Err != nil || dieOff == 0 {
				break
			}
			name := b.String()
			if b.Err != nil {
				break
			}
			t.Add(name, dieOff)
		}

		off = blockEnd
	}

	return &trieIndex{t: t}
}
