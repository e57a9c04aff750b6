package debuglink

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DebugPathConfig is the list of directories to search for
// supplementary debug-info files, loadable from a checked-in YAML file
// instead of being hard-coded by every caller.
type DebugPathConfig struct {
	// DebugInfoDirectories is the `debug-info-directories` config key;
	// each entry is searched in order by Resolver.tryBuildID.
	DebugInfoDirectories []string `yaml:"debug-info-directories"`
}

// DefaultDebugPathConfig returns the conventional single search
// directory most Linux distributions populate
// (/usr/lib/debug/.build-id).
func DefaultDebugPathConfig() *DebugPathConfig {
	return &DebugPathConfig{DebugInfoDirectories: []string{"/usr/lib/debug/.build-id"}}
}

// LoadDebugPathConfig reads and parses a YAML file at path into a
// DebugPathConfig. A missing file is not an error: it returns the
// default configuration, since most callers never check one in.
func LoadDebugPathConfig(path string) (*DebugPathConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDebugPathConfig(), nil
		}
		return nil, fmt.Errorf("debuglink: reading %s: %w", path, err)
	}

	var c DebugPathConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("debuglink: parsing %s: %w", path, err)
	}
	if len(c.DebugInfoDirectories) == 0 {
		c.DebugInfoDirectories = DefaultDebugPathConfig().DebugInfoDirectories
	}
	return &c, nil
}
