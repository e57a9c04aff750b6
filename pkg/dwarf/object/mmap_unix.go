//go:build unix

package object

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

type mmapCloser struct {
	data []byte
}

func (m *mmapCloser) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// mapFile maps f's contents read-only. Falls back to a plain read on
// any mmap failure (e.g. a zero-length file, or a filesystem that
// doesn't support mmap), since a DWARF reader should tolerate odd
// inputs rather than fail outright over an optimization.
func mapFile(f *os.File) ([]byte, io.Closer, error) {
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, nopCloser{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		b, rerr := io.ReadAll(f)
		if rerr != nil {
			return nil, nil, rerr
		}
		return b, nopCloser{}, nil
	}
	return data, &mmapCloser{data: data}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
