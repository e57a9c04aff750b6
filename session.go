// Package dwarf is the root session package: it opens an object file (or
// accepts a caller-supplied ObjectReader), discovers its DWARF sections,
// and drives the units → DIEs → attributes → line/frame/loclist pipeline
// implemented by the pkg/dwarf/* leaf packages as one handle: one
// long-lived object owning every subordinate resource, released by a
// single Close.
package dwarf

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/abbrev"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/debuglink"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/frame"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/object"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/regnum"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/unit"
)

// lineCacheSize bounds how many units' decoded line-number programs
// a Session keeps resident at once, the same working-set-not-total-size
// reasoning pkg/dwarf/abbrev.Cache applies to abbreviation tables.
const lineCacheSize = 64

// PathSource reports how a session's debug information was located:
// directly at the path given to OpenPath, via a GNU debuglink/build-id
// companion, or (future) a dSYM bundle.
type PathSource int

const (
	PathOriginal PathSource = iota
	PathDebuglink
	PathDSYM
)

func (p PathSource) String() string {
	switch p {
	case PathDebuglink:
		return "debuglink"
	case PathDSYM:
		return "dsym"
	default:
		return "original"
	}
}

// OpenOptions configures a Session open: which section group to expose,
// where to look for supplementary debug files, and where to send
// diagnostics.
type OpenOptions struct {
	// Group selects which section group to expose: object.GroupANY,
	// object.GroupBASE, object.GroupDWO, or a COMDAT group number.
	// Zero value is GroupANY.
	Group int

	// DebugPathConfig overrides the default supplementary debug-file
	// search paths debuglink.Resolver consults when the primary object
	// carries no .debug_info of its own. Nil uses
	// debuglink.DefaultDebugPathConfig().
	DebugPathConfig *debuglink.DebugPathConfig

	// Log receives Debug/Warn diagnostics for debug-link search attempts
	// and recoverable section anomalies. Nil disables logging.
	Log *logrus.Entry
}

func (o *OpenOptions) orDefaults() *OpenOptions {
	if o == nil {
		o = &OpenOptions{}
	}
	if o.DebugPathConfig == nil {
		cp := *o
		cp.DebugPathConfig = debuglink.DefaultDebugPathConfig()
		return &cp
	}
	return o
}

// Session is the root handle: it owns the section registry, abbreviation
// cache, per-unit resources, the optional tied session and the
// harmless-error ring. A Session and its derived handles (*unit.Unit,
// *unit.DIE, *unit.Reader) are not safe for concurrent use; independent
// Sessions may be used from different goroutines freely.
type Session struct {
	file  *object.File // nil for an OpenMemory(ObjectReader) session
	group int

	resources *unit.Resources
	ptrSize   int

	// arch is the GOARCH-style key (regnum.Normalize of the opened
	// object's machine type) RegisterName dispatches register numbers
	// to names with. "" for OpenMemory sessions, since OpenMemory does
	// not call the ObjectReader's MachineType.
	arch string

	infoIndex  *unit.Index
	typesIndex *unit.Index

	debugLine      []byte
	debugLineStr   []byte
	frameSection   []byte
	ehFrameSection []byte
	rangesSection  []byte
	locSection     []byte
	pubnames       []byte
	compDir        map[*unit.Unit]string

	names      *trieIndex
	namesBuilt bool

	lineCache *lru.Cache

	frameIndex   frame.FrameDescriptionEntries
	frameBuilt   bool
	ehFrameIndex frame.FrameDescriptionEntries
	ehFrameBuilt bool

	tied *Session

	log      *logrus.Entry
	harmless *harmlessErrors

	originalPath string
	PathSource   PathSource
}

// Close releases the underlying object file (if OpenPath opened one).
// Sessions opened with OpenMemory/Open(bytes) over caller-owned memory
// need not be closed, matching object.File.Close's contract.
func (s *Session) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// PointerSize returns the address size (4 or 8) of the opened object.
func (s *Session) PointerSize() int { return s.ptrSize }

// Group returns the section group this session was opened against.
func (s *Session) Group() int { return s.group }

// HarmlessErrors returns every recoverable anomaly recorded so far,
// oldest first. These never surface through a call's error return: they
// are queryable side information about sections or attributes this
// session chose to skip rather than fail on.
func (s *Session) HarmlessErrors() []*Error {
	return s.harmless.Slice()
}

func (s *Session) recordHarmless(err *Error) {
	s.harmless.record(err)
	if s.log != nil {
		s.log.WithFields(logrus.Fields{"section": err.Section, "offset": err.Offset}).Debugf("%s: %s", err.Code, err.Message)
	}
}

// Units returns every compile/partial/skeleton/split-compile unit parsed
// out of .debug_info.
func (s *Session) Units() []*unit.Unit {
	if s.infoIndex == nil {
		return nil
	}
	return s.infoIndex.Units
}

// TypeUnits returns every type unit parsed out of the legacy
// .debug_types section (DWARF 4 and earlier; DWARF 5 folds type units
// into .debug_info instead).
func (s *Session) TypeUnits() []*unit.Unit {
	if s.typesIndex == nil {
		return nil
	}
	return s.typesIndex.Units
}

// UnitContaining returns the unit whose span in .debug_info contains the
// given section offset, or nil.
func (s *Session) UnitContaining(off uint64) *unit.Unit {
	if s.infoIndex == nil {
		return nil
	}
	return s.infoIndex.UnitContaining(off)
}

// UnitBySignature returns the type unit with the given type signature,
// searching .debug_types first and the DWARF5 .debug_info type units
// second.
func (s *Session) UnitBySignature(sig uint64) *unit.Unit {
	if s.typesIndex != nil {
		if u := s.typesIndex.UnitBySignature(sig); u != nil {
			return u
		}
	}
	if s.infoIndex != nil {
		return s.infoIndex.UnitBySignature(sig)
	}
	return nil
}

// NewReader returns a Reader positioned at u's root DIE.
func (s *Session) NewReader(u *unit.Unit) *unit.Reader { return unit.NewReader(u) }

// AttachTied makes tied the split-DWARF companion of s: a skeleton
// session's .debug_addr/.debug_str/.debug_line_str live in tied (the
// executable), while s (the .dwo) holds .debug_info.dwo and friends.
// Resolving indexed forms (addrx/strx) against s's units thereafter
// consults tied's address table.
func (s *Session) AttachTied(tied *Session) {
	s.tied = tied
	if s.resources != nil && tied.resources != nil {
		if s.resources.DebugAddr == nil {
			s.resources.DebugAddr = tied.resources.DebugAddr
		}
		if len(s.resources.DebugStr) == 0 {
			s.resources.DebugStr = tied.resources.DebugStr
		}
		if len(s.resources.DebugLineStr) == 0 {
			s.resources.DebugLineStr = tied.resources.DebugLineStr
		}
	}
}

// Tied returns the split-DWARF companion session attached by
// AttachTied, or nil.
func (s *Session) Tied() *Session { return s.tied }

// OpenPath opens the object file at path. If its own .debug_info is
// absent or empty, debuglink.Resolver is consulted for a companion debug
// file before giving up; the returned actualPath differs from path when
// a debuglink/build-id/debuginfod companion was opened instead (dSYM
// bundles are not searched here).
func OpenPath(path string, opts *OpenOptions) (sess *Session, actualPath string, err error) {
	opts = opts.orDefaults()

	f, err := object.OpenPath(path)
	if err != nil {
		return nil, "", wrapError(ErrIoError, fmt.Sprintf("opening %s", path), err)
	}

	sess, err = newSession(f, opts, path)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	sess.PathSource = PathOriginal
	actualPath = path

	if len(pickSection(f, "info", opts.Group)) == 0 {
		if resolved, src, rerr := tryDebugLink(f, path, opts); rerr == nil && resolved != nil {
			sess.Close()
			sess = resolved
			actualPath = resolved.originalPath
			sess.PathSource = src
		}
	}

	return sess, actualPath, nil
}

// originalPath is stashed on a Session purely so OpenPath can report the
// resolved debug file's own path back as actualPath.
func (s *Session) setOriginalPath(p string) { s.originalPath = p }

// Open opens an in-memory byte buffer already shaped like a whole ELF,
// Mach-O or PE/COFF file. OpenMemory is the counterpart for containers
// this package's own format sniffing doesn't recognize.
func Open(data []byte, opts *OpenOptions) (*Session, error) {
	opts = opts.orDefaults()
	f, err := object.Open(data)
	if err != nil {
		return nil, wrapError(ErrBadMagic, "unrecognized container", err)
	}
	return newSession(f, opts, "")
}

func tryDebugLink(f *object.File, originalPath string, opts *OpenOptions) (*Session, PathSource, error) {
	req := debuglink.Request{OriginalPath: originalPath}
	if sec := f.Section("gnu_debuglink"); sec != nil {
		if name, crc, err := debuglink.ParseGNUDebuglink(sec.Data, f.ByteOrder); err == nil {
			req.LinkName, req.CRC32 = name, crc
		}
	}
	if sec := f.SectionByFullName(".note.gnu.build-id"); sec != nil {
		if id, err := debuglink.ParseGNUBuildID(sec.Data, f.ByteOrder); err == nil {
			req.BuildID = id
		}
	}
	if req.LinkName == "" && req.BuildID == "" {
		return nil, PathOriginal, fmt.Errorf("dwarf: no debuglink or build-id present")
	}

	resolver := debuglink.NewResolver(opts.DebugPathConfig.DebugInfoDirectories, opts.Log)
	resolvedPath, file, err := resolver.Resolve(req)
	if err != nil {
		return nil, PathOriginal, err
	}
	file.Close()

	resolved, _, err := OpenPath(resolvedPath, opts)
	if err != nil {
		return nil, PathOriginal, err
	}
	src := PathDebuglink
	resolved.setOriginalPath(resolvedPath)
	return resolved, src, nil
}

// newSession builds a Session over an already-opened object.File,
// selecting opts.Group's sections and parsing every unit header eagerly.
// DIE, line and frame decoding stay lazy, driven by the first query that
// needs them.
func newSession(f *object.File, opts *OpenOptions, originalPath string) (*Session, error) {
	group := opts.Group

	res := &unit.Resources{
		Order:           f.ByteOrder,
		DebugStr:        pickSection(f, "str", group),
		DebugLineStr:    pickSection(f, "line_str", group),
		DebugStrOffsets: pickSection(f, "str_offsets", group),
		DebugLoclists:   pickSection(f, "loclists", group),
		DebugRnglists:   pickSection(f, "rnglists", group),
	}
	if addrSec := pickSection(f, "addr", group); len(addrSec) > 0 {
		res.DebugAddr = addrtab.Parse(addrSec)
	}

	abbrevSec := pickSection(f, "abbrev", group)
	res.Abbrev = abbrev.NewCache(abbrevSec)

	lineCache, err := lru.New(lineCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which
		// lineCacheSize never is.
		panic(err)
	}

	s := &Session{
		file:         f,
		group:        group,
		resources:    res,
		ptrSize:      f.AddrSize,
		debugLine:    pickSection(f, "line", group),
		debugLineStr: res.DebugLineStr,
		frameSection: pickSection(f, "frame", group),
		rangesSection: pickSection(f, "ranges", group),
		locSection:    pickSection(f, "loc", group),
		pubnames:      pickSection(f, "pubnames", group),
		compDir:       make(map[*unit.Unit]string),
		lineCache:     lineCache,
		log:           opts.Log,
		harmless:      newHarmlessErrors(),
		originalPath:  originalPath,
		arch:          regnum.Normalize(f.Machine),
	}
	if sec := f.SectionByFullName(".eh_frame"); sec != nil {
		s.ehFrameSection = sec.Data
	}

	if infoSec := pickSection(f, "info", group); len(infoSec) > 0 {
		idx, err := unit.ParseIndex(infoSec, false, res)
		if err != nil {
			return nil, wrapError(ErrTruncated, "parsing .debug_info", err)
		}
		s.infoIndex = idx
	}
	if typesSec := pickSection(f, "types", group); len(typesSec) > 0 {
		idx, err := unit.ParseIndex(typesSec, true, res)
		if err != nil {
			s.recordHarmless(wrapError(ErrTruncated, "parsing .debug_types", err))
		} else {
			s.typesIndex = idx
		}
	}

	return s, nil
}

// pickSection returns the bytes of ".debug_"+canonical (or its ".dwo"
// split-DWARF variant) restricted to group, or nil if absent. group ==
// object.GroupANY disables the restriction.
func pickSection(f *object.File, canonical string, group int) []byte {
	want := ".debug_" + canonical
	wantDWO := want + ".dwo"
	for _, sec := range f.Sections() {
		if sec.Name != want && sec.Name != wantDWO {
			continue
		}
		if group != object.GroupANY && f.Groups().GroupOf(sec.FileIndex) != group {
			continue
		}
		return sec.Data
	}
	return nil
}
