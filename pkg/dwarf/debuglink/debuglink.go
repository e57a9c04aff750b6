// Package debuglink resolves supplementary debug-information files: the
// GNU .gnu_debuglink/.note.gnu.build-id convention and an external
// debuginfod server, tried in that order by Resolver.Resolve and
// governed by a configurable list of search directories. Mach-O dSYM
// bundles are found separately, by FindDSYM.
package debuglink

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Request describes what a caller is looking for: the companion file
// named by .gnu_debuglink (if any), its expected CRC32, and/or the
// build-id recorded in .note.gnu.build-id.
type Request struct {
	// LinkName is the filename from .gnu_debuglink, e.g. "libfoo.so.debug".
	LinkName string
	// CRC32 is the checksum of the target file .gnu_debuglink recorded,
	// 0 if unknown.
	CRC32 uint32
	// BuildID is the hex-encoded ELF build-id note, "" if unknown.
	BuildID string
	// OriginalPath is where the object being debugged was opened from,
	// used to search alongside it and to resolve relative search paths.
	OriginalPath string
}

// ParseGNUDebuglink decodes a .gnu_debuglink section: a NUL-terminated
// filename, padded to a 4-byte boundary, followed by a 4-byte CRC32 in
// the section's native byte order.
func ParseGNUDebuglink(data []byte, order binary.ByteOrder) (name string, crc uint32, err error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return "", 0, fmt.Errorf("debuglink: missing NUL terminator")
	}
	name = string(data[:i])

	// The name is padded with NULs to the next multiple of 4, then the
	// CRC32 follows.
	crcOff := (i + 1 + 3) &^ 3
	if crcOff+4 > len(data) {
		return "", 0, fmt.Errorf("debuglink: truncated, missing CRC32")
	}
	crc = order.Uint32(data[crcOff : crcOff+4])
	return name, crc, nil
}

// ParseGNUBuildID decodes a .note.gnu.build-id section (an ELF note:
// namesz, descsz, type, name, descriptor) and returns the descriptor
// (the build-id itself) as a hex string.
func ParseGNUBuildID(data []byte, order binary.ByteOrder) (string, error) {
	if len(data) < 12 {
		return "", fmt.Errorf("debuglink: truncated build-id note")
	}
	nameSz := order.Uint32(data[0:4])
	descSz := order.Uint32(data[4:8])
	// type at data[8:12] is ignored; GNU build-id notes always use
	// NT_GNU_BUILD_ID but nothing else is expected in this section.

	nameEnd := 12 + align4(int(nameSz))
	descEnd := nameEnd + align4(int(descSz))
	if descEnd > len(data) || nameEnd < 12 {
		return "", fmt.Errorf("debuglink: note extends past section")
	}
	desc := data[nameEnd : nameEnd+int(descSz)]
	return hex.EncodeToString(desc), nil
}

func align4(n int) int { return (n + 3) &^ 3 }

// CRC32Matches reports whether f's contents match the checksum recorded
// by a .gnu_debuglink section.
func CRC32Matches(f *os.File, want uint32) (bool, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return false, err
	}
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return h.Sum32() == want, nil
}

// BuildIDPath returns the conventional /usr/lib/debug/.build-id/xx/yyy...
// path for a build-id, the layout pkg/config.go's default
// debug-info-directories entry already pointed at.
func BuildIDPath(root, buildID string) string {
	if len(buildID) < 3 {
		return ""
	}
	return filepath.Join(root, ".build-id", buildID[:2], buildID[2:]+".debug")
}
