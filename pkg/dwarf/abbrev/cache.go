package abbrev

import (
	lru "github.com/hashicorp/golang-lru"
)

// defaultCacheSize bounds how many distinct per-offset abbreviation
// tables a Cache keeps decoded at once. A compile unit's abbreviation
// table is cheap to re-decode but nontrivial for a session iterating
// thousands of units (most compilers emit one shared table reused by
// every unit, but linkers that don't dedupe .debug_abbrev can produce
// one per unit), so bounding it keeps memory proportional to working
// set rather than to total unit count.
const defaultCacheSize = 64

// Cache decodes and caches abbreviation tables keyed by their offset
// within .debug_abbrev, backed by github.com/hashicorp/golang-lru so a
// session holding a handle to a large binary doesn't keep every table
// it has ever seen resident.
type Cache struct {
	section []byte
	lru     *lru.Cache
}

// NewCache builds a Cache over a whole .debug_abbrev section.
func NewCache(section []byte) *Cache {
	c, err := lru.New(defaultCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which
		// defaultCacheSize never is.
		panic(err)
	}
	return &Cache{section: section, lru: c}
}

// Get returns the abbreviation table starting at offset off, decoding
// and caching it on first use.
func (c *Cache) Get(off uint64) (Table, error) {
	if v, ok := c.lru.Get(off); ok {
		return v.(Table), nil
	}
	if off > uint64(len(c.section)) {
		return nil, errOffsetOutOfRange(off, len(c.section))
	}
	t, err := Parse(c.section[off:])
	if err != nil {
		return nil, err
	}
	c.lru.Add(off, t)
	return t, nil
}

func errOffsetOutOfRange(off uint64, size int) error {
	return &OffsetError{Offset: off, SectionSize: size}
}

// OffsetError reports a debug_abbrev_offset that points past the end of
// the .debug_abbrev section.
type OffsetError struct {
	Offset      uint64
	SectionSize int
}

func (e *OffsetError) Error() string {
	return "abbrev: offset out of range"
}
