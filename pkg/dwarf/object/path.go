package object

import (
	"fmt"
	"os"
)

// OpenPath opens the object file at path, using mmap (via
// golang.org/x/sys on platforms that support it, see mmap_unix.go) so
// that large binaries don't need to be read into memory wholesale
// before the first section is even requested. OpenPath's return value
// owns the backing mapping or file descriptor; callers must call
// Close.
func OpenPath(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("object: opening %s: %w", path, err)
	}

	data, closer, err := mapFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("object: mapping %s: %w", path, err)
	}

	obj, err := Open(data)
	if err != nil {
		closer.Close()
		return nil, err
	}
	obj.closer = closer
	return obj, nil
}
