package unit

// Reader walks one unit's DIE tree depth-first, in the
// Seek/Next/SkipChildren shape of a thin wrapper around
// debug/dwarf.Reader. Next surfaces terminator entries (Tag() == 0) to
// the caller exactly as debug/dwarf.Reader does, so callers track their
// own depth the same way helpers like FindEntryNamed/NextMemberVariable
// do against the standard library's reader.
type Reader struct {
	unit *Unit
	off  uint64
	last *DIE
}

// NewReader returns a Reader positioned at u's root DIE.
func NewReader(u *Unit) *Reader {
	return &Reader{unit: u, off: u.Header.HeaderEnd}
}

// Unit returns the unit this reader walks.
func (r *Reader) Unit() *Unit { return r.unit }

// Seek repositions the reader at an arbitrary section offset, which
// must be the start of a DIE within the same unit.
func (r *Reader) Seek(off uint64) {
	r.off = off
	r.last = nil
}

// Next decodes and returns the entry at the reader's current position,
// advancing past it. It returns nil, nil once the unit is exhausted.
func (r *Reader) Next() (*DIE, error) {
	if r.off >= r.unit.Header.End() {
		return nil, nil
	}
	atRoot := r.off == r.unit.Header.HeaderEnd
	die, next, err := r.unit.decodeDIEAt(r.off)
	if err != nil {
		return nil, err
	}
	if atRoot {
		r.unit.primeBases(die)
	}
	r.off = next
	r.last = die
	return die, nil
}

// SkipChildren advances the reader past the subtree of the entry most
// recently returned by Next, a no-op if that entry has no children.
// Uses DW_AT_sibling to jump directly when the DIE carries one.
func (r *Reader) SkipChildren() {
	if r.last == nil || !r.last.HasChildren() {
		return
	}
	if sib, ok := r.last.sibling(); ok {
		r.off = sib
		r.last = nil
		return
	}

	depth := 1
	for depth > 0 {
		die, next, err := r.unit.decodeDIEAt(r.off)
		if err != nil {
			r.last = nil
			return
		}
		r.off = next
		if die.Tag() == 0 {
			depth--
		} else if die.HasChildren() {
			depth++
		}
	}
	r.last = nil
}
