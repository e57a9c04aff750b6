package debuglink

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Resolver searches a configured list of directories, plus the
// original binary's own directory, for a supplementary debug file.
type Resolver struct {
	SearchPaths []string
	Debuginfod  *DebuginfodClient

	log *logrus.Entry
}

// NewResolver builds a Resolver over the given search directories. log
// may be nil.
func NewResolver(searchPaths []string, log *logrus.Entry) *Resolver {
	return &Resolver{SearchPaths: searchPaths, log: log}
}

// Resolve attempts, in order, the GNU debuglink convention (checked
// against CRC32 if available), the build-id convention, and finally an
// external debuginfod server, returning the path to a companion debug
// file it located and was able to open.
func (r *Resolver) Resolve(req Request) (path string, file *os.File, err error) {
	if req.LinkName != "" {
		if path, file, ok := r.tryDebuglink(req); ok {
			return path, file, nil
		}
	}
	if req.BuildID != "" {
		if path, file, ok := r.tryBuildID(req); ok {
			return path, file, nil
		}
		if r.Debuginfod != nil {
			if path, err := r.Debuginfod.GetDebuginfo(req.BuildID); err == nil && path != "" {
				if f, openErr := os.Open(path); openErr == nil {
					return path, f, nil
				}
			}
		}
	}
	return "", nil, os.ErrNotExist
}

func (r *Resolver) tryDebuglink(req Request) (string, *os.File, bool) {
	candidates := r.candidateDirs(req.OriginalPath)
	for _, dir := range candidates {
		p := filepath.Join(dir, req.LinkName)
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		if req.CRC32 != 0 {
			ok, err := CRC32Matches(f, req.CRC32)
			if err != nil || !ok {
				f.Close()
				r.debugf("debuglink candidate %s failed CRC32 check", p)
				continue
			}
		}
		return p, f, true
	}
	return "", nil, false
}

func (r *Resolver) tryBuildID(req Request) (string, *os.File, bool) {
	for _, dir := range r.SearchPaths {
		p := BuildIDPath(dir, req.BuildID)
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		return p, f, true
	}
	return "", nil, false
}

// candidateDirs returns, in priority order: the directory the original
// object was opened from, that directory's ".debug" subdirectory, and
// every configured search path (matching the convention gdb and delve's
// own debug-info-directories option both follow).
func (r *Resolver) candidateDirs(originalPath string) []string {
	var dirs []string
	if originalPath != "" {
		dir := filepath.Dir(originalPath)
		dirs = append(dirs, dir, filepath.Join(dir, ".debug"))
	}
	dirs = append(dirs, r.SearchPaths...)
	return dirs
}

func (r *Resolver) debugf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Debugf(format, args...)
	}
}
