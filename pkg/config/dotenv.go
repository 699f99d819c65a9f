package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files from the repository root, the directory of the running
// binary and the working directory, in that order. Variables that are already set are
// never overridden, so the first file defining a key wins. It returns the files read.
func LoadDotEnv() []string {
	var dirs []string
	if root, ok := RepoRoot(); ok {
		dirs = append(dirs, root)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return loadDotEnvFrom(dirs...)
}

func loadDotEnvFrom(dirs ...string) []string {
	seen := make(map[string]struct{}, len(dirs))
	var loaded []string

	for _, dir := range dirs {
		file := filepath.Join(dir, ".env")
		if _, dup := seen[file]; dup {
			continue
		}
		seen[file] = struct{}{}

		info, err := os.Stat(file)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			continue
		}
		loaded = append(loaded, file)
	}
	return loaded
}

// RepoRoot walks up from the working directory to the nearest directory holding go.mod.
func RepoRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
