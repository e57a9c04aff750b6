package object

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

func fromELF(ef *elf.File) (*File, error) {
	f := &File{
		Kind:     KindELF,
		byName:   make(map[string]*Section),
		Machine:  ef.Machine.String(),
		AddrSize: elfAddrSize(ef.Class),
	}
	if ef.Data == elf.ELFDATA2MSB {
		f.ByteOrder = binary.BigEndian
	} else {
		f.ByteOrder = binary.LittleEndian
	}

	for elfIdx, s := range ef.Sections {
		if s.Type == elf.SHT_NOBITS {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("object: reading section %s: %w", s.Name, err)
		}

		if s.Flags&elf.SHF_COMPRESSED != 0 {
			data, err = decompressELFSHFCompressed(data, ef.Class == elf.ELFCLASS64, f.ByteOrder)
			if err != nil {
				return nil, fmt.Errorf("object: decompressing section %s: %w", s.Name, err)
			}
		} else if bytes.HasPrefix([]byte(s.Name), []byte(".zdebug_")) {
			decompressed, err := decompressMaybe(data)
			if err != nil {
				return nil, fmt.Errorf("object: decompressing section %s: %w", s.Name, err)
			}
			data = decompressed
		}

		sec := &Section{
			Name:      s.Name,
			Data:      data,
			Addr:      s.Addr,
			FileIndex: elfIdx,
		}
		f.sections = append(f.sections, sec)

		name := s.Name
		if len(name) > 8 && name[:8] == ".zdebug_" {
			name = ".debug_" + name[8:]
		}
		f.byName[name] = sec
	}

	if err := applyELFRelocations(ef, f); err != nil {
		return nil, err
	}

	groups, err := buildELFGroups(ef, f)
	if err != nil {
		return nil, err
	}
	f.groups = groups

	return f, nil
}

func elfAddrSize(class elf.Class) int {
	if class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}
