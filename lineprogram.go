package dwarf

import (
	"bytes"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/line"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/unit"
	"github.com/dwarfkit/dwarfkit/pkg/logflags"
)

// LineProgram returns the decoded line-number program for u, parsed from
// u's DW_AT_stmt_list offset into .debug_line and cached for the life of
// the session. A unit with no DW_AT_stmt_list (a declaration-only
// partial unit, say) returns nil, nil.
func (s *Session) LineProgram(u *unit.Unit) (*line.DebugLineInfo, error) {
	if cached, ok := s.lineCache.Get(u); ok {
		return cached.(*line.DebugLineInfo), nil
	}

	root, err := u.Root()
	if err != nil {
		return nil, wrapError(ErrTruncated, "decoding root DIE for line program", err)
	}

	v, ok, err := root.Val(atStmtList)
	if err != nil {
		return nil, wrapError(ErrMissingBase, "resolving DW_AT_stmt_list", err)
	}
	if !ok {
		s.lineCache.Add(u, (*line.DebugLineInfo)(nil))
		return nil, nil
	}
	off := v.U

	if off >= uint64(len(s.debugLine)) {
		derr := newSectionError(ErrSectionSizeOrOffsetLarge, ".debug_line", off, "DW_AT_stmt_list out of range")
		s.recordHarmless(derr)
		return nil, derr
	}

	buf := bytes.NewBuffer(s.debugLine[off:])
	info := line.Parse(s.compDirFor(root), buf, s.debugLineStr, s.logf(), 0, false, s.ptrSize, s.resources.Order)
	s.lineCache.Add(u, info)
	return info, nil
}

// compDirFor returns root's DW_AT_comp_dir, caching the lookup per unit
// since every other DIE in the unit shares the same line program.
func (s *Session) compDirFor(root *unit.DIE) string {
	if cd, ok := s.compDir[root.Unit]; ok {
		return cd
	}
	cd := ""
	if v, ok, err := root.Val(atCompDir); ok && err == nil {
		cd = v.Str
	}
	s.compDir[root.Unit] = cd
	return cd
}

// logf adapts Session's logrus.Entry to the printf-style callback
// pkg/dwarf/line expects, falling back to the package-level line logger
// (gated by logflags.LineDecodeErrors) when the caller didn't supply one.
func (s *Session) logf() func(string, ...interface{}) {
	if s.log != nil {
		return s.log.Debugf
	}
	if logflags.LineDecodeErrors() {
		lg := logflags.LineLogger()
		return lg.Debugf
	}
	return func(string, ...interface{}) {}
}
