package regnum

import (
	"fmt"
	"strings"
)

// RegisterName returns the name DWARF register num is known by under
// arch, dispatching to the per-architecture *ToName table that matches.
// arch is expected already normalized to a Go-style GOARCH string (see
// Normalize); an unrecognized or empty arch falls back to a bare "r%d"
// label. A recognized arch with a number its table does not cover gets
// that *ToName function's own "unknown%d" or "Unknown%d" label.
func RegisterName(arch string, num uint64) string {
	switch arch {
	case "amd64":
		return AMD64ToName(num)
	case "arm64":
		return ARM64ToName(num)
	case "386":
		return I386ToName(int(num))
	case "loong64":
		return LOONG64ToName(num)
	case "ppc64", "ppc64le":
		return PPC64LEToName(num)
	case "riscv64":
		return RISCV64ToName(num)
	default:
		return fmt.Sprintf("r%d", num)
	}
}

// Normalize maps a raw machine identifier, as carried by
// object.File.Machine (debug/elf's EM_* constant name, debug/macho's
// Cpu* name, or PE's already-Go-style string), to the GOARCH-style key
// RegisterName dispatches on. Returns "" for a machine type none of the
// regnum tables cover.
func Normalize(machine string) string {
	switch {
	case containsAny(machine, "X86_64", "AMD64", "Amd64", "amd64"):
		return "amd64"
	case containsAny(machine, "AARCH64", "ARM64", "Arm64", "arm64"):
		return "arm64"
	case containsAny(machine, "386", "i386"):
		return "386"
	case containsAny(machine, "LOONGARCH", "loong64"):
		return "loong64"
	case containsAny(machine, "PPC64", "Ppc64", "ppc64"):
		return "ppc64le"
	case containsAny(machine, "RISCV", "riscv64"):
		return "riscv64"
	default:
		return ""
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
