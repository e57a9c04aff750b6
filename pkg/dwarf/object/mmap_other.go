//go:build !unix

package object

import (
	"io"
	"os"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// mapFile reads f's entire contents into memory. Non-unix platforms
// (Windows) don't get the golang.org/x/sys/unix mmap path; a plain
// read is the portable fallback spec §6's ObjectReader contract allows.
func mapFile(f *os.File) ([]byte, io.Closer, error) {
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return b, nopCloser{}, nil
}
