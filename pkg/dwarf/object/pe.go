package object

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

func fromPE(pf *pe.File) (*File, error) {
	f := &File{
		Kind:      KindPE,
		byName:    make(map[string]*Section),
		ByteOrder: binary.LittleEndian, // PE/COFF is always little-endian
		Machine:   peMachineString(pf.Machine),
		AddrSize:  peAddrSize(pf.Machine),
	}

	for idx, s := range pf.Sections {
		data, err := peSectionData(s)
		if err != nil {
			return nil, fmt.Errorf("object: reading section %s: %w", s.Name, err)
		}

		name := s.Name
		if bytes.HasPrefix([]byte(name), []byte(".zdebug_")) {
			decompressed, err := decompressMaybe(data)
			if err != nil {
				return nil, fmt.Errorf("object: decompressing section %s: %w", s.Name, err)
			}
			data = decompressed
			name = ".debug_" + name[len(".zdebug_"):]
		}

		sec := &Section{Name: name, Data: data, Addr: uint64(s.VirtualAddress), FileIndex: idx}
		f.sections = append(f.sections, sec)
		f.byName[name] = sec
	}

	return f, nil
}

func peSectionData(sec *pe.Section) ([]byte, error) {
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	if 0 < sec.VirtualSize && sec.VirtualSize < sec.Size {
		b = b[:sec.VirtualSize]
	}
	return b, nil
}

func peMachineString(m uint16) string {
	switch m {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "amd64"
	case pe.IMAGE_FILE_MACHINE_I386:
		return "386"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

func peAddrSize(m uint16) int {
	if m == pe.IMAGE_FILE_MACHINE_AMD64 || m == pe.IMAGE_FILE_MACHINE_ARM64 {
		return 8
	}
	return 4
}
