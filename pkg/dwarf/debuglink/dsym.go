package debuglink

import (
	"os"
	"path/filepath"
	"strings"
)

// DSYMPath returns the conventional path of the dSYM bundle's DWARF
// object for a Mach-O binary at path, e.g. "a.out" ->
// "a.out.dSYM/Contents/Resources/DWARF/a.out". macOS toolchains place
// the dSYM bundle alongside the binary or, for app bundles, alongside
// the .app.
func DSYMPath(path string) string {
	base := filepath.Base(path)
	return filepath.Join(path+".dSYM", "Contents", "Resources", "DWARF", base)
}

// FindDSYM looks for a dSYM bundle next to path and returns the path to
// its DWARF object file if one exists and is readable.
func FindDSYM(path string) (string, bool) {
	candidate := DSYMPath(path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true
	}

	// Some build systems drop the dSYM bundle one directory up (next to
	// an .app bundle rather than the executable buried inside it).
	dir := filepath.Dir(path)
	parent := filepath.Dir(dir)
	if strings.HasSuffix(dir, ".app/Contents/MacOS") {
		appName := strings.TrimSuffix(filepath.Base(parent), ".app")
		candidate = filepath.Join(filepath.Dir(parent), appName+".dSYM", "Contents", "Resources", "DWARF", appName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}
