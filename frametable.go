package dwarf

import (
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/frame"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/regnum"
	"github.com/dwarfkit/dwarfkit/pkg/logflags"
)

// Frame returns the call frame information decoded from .debug_frame,
// parsed once and cached for the life of the session.
func (s *Session) Frame() frame.FrameDescriptionEntries {
	if !s.frameBuilt {
		if len(s.frameSection) > 0 {
			s.frameIndex = frame.Parse(s.frameSection, s.resources.Order, 0, s.ptrSize)
		} else if logflags.FrameDecodeErrors() {
			logflags.FrameLogger().Debug("no .debug_frame section present")
		}
		s.frameBuilt = true
	}
	return s.frameIndex
}

// EHFrame returns the call frame information decoded from .eh_frame,
// parsed once and cached for the life of the session.
func (s *Session) EHFrame() frame.FrameDescriptionEntries {
	if !s.ehFrameBuilt {
		if len(s.ehFrameSection) > 0 {
			s.ehFrameIndex = frame.ParseEH(s.ehFrameSection, s.resources.Order, 0, s.ptrSize)
		} else if logflags.FrameDecodeErrors() {
			logflags.FrameLogger().Debug("no .eh_frame section present")
		}
		s.ehFrameBuilt = true
	}
	return s.ehFrameIndex
}

// FDEForPC returns the frame description entry covering pc, preferring
// .debug_frame and falling back to .eh_frame.
func (s *Session) FDEForPC(pc uint64) (*frame.FrameDescriptionEntry, error) {
	if fdes := s.Frame(); len(fdes) > 0 {
		if fde, err := fdes.FDEForPC(pc); err == nil {
			return fde, nil
		}
	}
	if fdes := s.EHFrame(); len(fdes) > 0 {
		return fdes.FDEForPC(pc)
	}
	if logflags.FrameDecodeErrors() {
		logflags.FrameLogger().WithField("pc", pc).Debug("no FDE covers pc")
	}
	return nil, &frame.ErrNoFDEForPC{PC: pc}
}

// RegisterName returns the name DWARF register num is known by under
// the architecture of the object this session opened (e.g. "rbp" for
// amd64 register 6). Returns a bare "r%d" label for a session opened
// through OpenMemory, which does not call the ObjectReader's
// MachineType, or for an architecture regnum has no table for.
func (s *Session) RegisterName(num uint64) string {
	return regnum.RegisterName(s.arch, num)
}

// RowRegisterNames maps every register row has a rule for to its
// architecture-specific name, the form a caller printing a row in
// human-readable form (dwarfdump-style "rbp: offset -16" rather than
// "r6: offset -16") wants.
func (s *Session) RowRegisterNames(row *frame.FrameContext) map[string]frame.DWRule {
	named := make(map[string]frame.DWRule, len(row.Regs))
	for num, rule := range row.Regs {
		named[s.RegisterName(num)] = rule
	}
	return named
}
