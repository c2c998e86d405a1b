package paths

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Lookup bundles the environment probes used by ResolveDataDir so the
// fallback chain can be exercised without touching the real filesystem.
type Lookup struct {
	UserDataDir func() (string, error)
	Executable  func() (string, error)
	Writable    func(dir string) bool
}

// DefaultLookup probes the real process environment.
func DefaultLookup() Lookup {
	return Lookup{
		UserDataDir: os.UserConfigDir,
		Executable:  os.Executable,
		Writable:    writable,
	}
}

// ResolveDataDir returns the first writable data directory for app:
// the platform user-data directory, then the directory beside the
// running executable. ok is false when neither is writable, in which
// case persistence must be disabled rather than aborting.
func ResolveDataDir(l Lookup, app string) (dir string, ok bool) {
	if base, err := l.UserDataDir(); err == nil && base != "" {
		candidate := filepath.Join(base, app)
		if l.Writable(candidate) {
			return candidate, true
		}
	}
	if exe, err := l.Executable(); err == nil && exe != "" {
		candidate := filepath.Join(filepath.Dir(exe), app+"-data")
		if l.Writable(candidate) {
			return candidate, true
		}
	}
	zap.L().Warn("no writable data directory, persistence disabled", zap.String("app", app))
	return "", false
}

// writable ensures dir exists and verifies a file can be created in it.
func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
