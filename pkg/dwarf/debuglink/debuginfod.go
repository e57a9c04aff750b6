package debuglink

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// DebuginfodClient shells out to the debuginfod-find client binary to
// fetch debug information by build-id from a debuginfod server. It's a
// last-resort fallback behind the local .gnu_debuglink/.build-id search
// paths rather than the primary path.
type DebuginfodClient struct {
	// Bin overrides the debuginfod-find binary name, for tests. Defaults
	// to "debuginfod-find" found on $PATH.
	Bin string
}

// NewDebuginfodClient returns a client that uses the debuginfod-find
// binary on $PATH, or nil if debuginfod-find isn't installed or the
// DEBUGINFOD_URLS environment variable isn't set (matching
// debuginfod-find's own opt-in behavior).
func NewDebuginfodClient() *DebuginfodClient {
	if os.Getenv("DEBUGINFOD_URLS") == "" {
		return nil
	}
	if _, err := exec.LookPath("debuginfod-find"); err != nil {
		return nil
	}
	return &DebuginfodClient{Bin: "debuginfod-find"}
}

// GetDebuginfo fetches the debug information file for buildID, returning
// the local cache path debuginfod-find reports.
func (c *DebuginfodClient) GetDebuginfo(buildID string) (string, error) {
	return c.execFind("debuginfo", buildID)
}

// GetSource fetches the source file named filename associated with
// buildID.
func (c *DebuginfodClient) GetSource(buildID, filename string) (string, error) {
	return c.execFind("source", buildID, filename)
}

func (c *DebuginfodClient) execFind(args ...string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("debuginfod: not configured")
	}

	ctxArgs := append([]string{}, args...)
	cmd := exec.Command(c.Bin, ctxArgs...)

	if maxTime := os.Getenv("DEBUGINFOD_MAXTIME"); maxTime != "" {
		if secs, err := strconv.Atoi(maxTime); err == nil {
			timer := time.AfterFunc(time.Duration(secs)*time.Second, func() {
				if cmd.Process != nil {
					cmd.Process.Kill()
				}
			})
			defer timer.Stop()
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("debuginfod-find %v: %w: %s", args, err, stderr.String())
	}

	path := bytes.TrimSpace(stdout.Bytes())
	return string(path), nil
}
