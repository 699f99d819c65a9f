package extraction

import (
	"os"
	"path/filepath"
	"strings"

	"notafiscal/pkg/config"
)

// ResolveInputPath keeps absolute paths. A relative path is tried against
// the working directory first and the repository root second.
func ResolveInputPath(raw string) string {
	path := expandHome(raw)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if root, ok := config.RepoRoot(); ok {
		return filepath.Join(root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// ResolvePath anchors a relative path at base.
func ResolvePath(raw, base string) string {
	path := expandHome(raw)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
