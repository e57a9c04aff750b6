package object

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"
)

func fromMachO(mf *macho.File) (*File, error) {
	f := &File{
		Kind:     KindMachO,
		byName:   make(map[string]*Section),
		Machine:  mf.Cpu.String(),
		AddrSize: machoAddrSize(mf.Magic),
	}
	if mf.ByteOrder == binary.BigEndian {
		f.ByteOrder = binary.BigEndian
	} else {
		f.ByteOrder = binary.LittleEndian
	}

	for idx, s := range mf.Sections {
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("object: reading section %s: %w", s.Name, err)
		}

		name := s.Name
		if bytes.HasPrefix([]byte(name), []byte("__zdebug_")) {
			decompressed, err := decompressMaybe(data)
			if err != nil {
				return nil, fmt.Errorf("object: decompressing section %s: %w", s.Name, err)
			}
			data = decompressed
			name = "__debug_" + name[len("__zdebug_"):]
		}

		sec := &Section{Name: name, Data: data, Addr: s.Addr, FileIndex: idx}
		f.sections = append(f.sections, sec)

		if len(name) > 2 && name[:2] == "__" {
			f.byName[".debug_"+machoStripPrefix(name)] = sec
		} else {
			f.byName[name] = sec
		}
	}

	// dSYM companion bundles and resolution of the Mach-O load-command
	// UUID used to match them live in pkg/dwarf/debuglink, not here:
	// this package only normalizes whatever single Mach-O image it was
	// handed.

	return f, nil
}

// machoStripPrefix turns "__debug_info" into "info", matching the
// suffix File.Section expects after its own ".debug_" prefix.
func machoStripPrefix(name string) string {
	const prefix = "__debug_"
	if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

func machoAddrSize(magic uint32) int {
	if magic == macho.Magic64 {
		return 8
	}
	return 4
}
