package gen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// generatorVersion is bumped when the generated code format changes, so
// stale cached artifacts are regenerated.
const generatorVersion = "v1"

// Cache manages generated binding artifacts under .pyrite/gen-cache/.
// The cache key is a hash of pyrite.yaml contents plus the target
// platform, so artifacts are reused while the declarations are unchanged.
type Cache struct {
	// projectDir is the root directory containing pyrite.yaml.
	projectDir string
}

// NewCache creates a cache scoped to the given project directory.
func NewCache(projectDir string) *Cache {
	return &Cache{projectDir: projectDir}
}

// CacheDir returns the path to the cache directory.
func (c *Cache) CacheDir() string {
	return filepath.Join(c.projectDir, ".pyrite", "gen-cache")
}

// Lookup returns the directory holding cached generated sources for the
// given config, or empty string on a miss.
func (c *Cache) Lookup(configData []byte, targetOS, targetArch string) string {
	dir := filepath.Join(c.CacheDir(), c.computeKey(configData, targetOS, targetArch))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		os.RemoveAll(dir)
		return ""
	}
	return dir
}

// Store writes generated files into the cache and returns the artifact
// directory.
func (c *Cache) Store(files []GeneratedFile, configData []byte, targetOS, targetArch string) (string, error) {
	dir := filepath.Join(c.CacheDir(), c.computeKey(configData, targetOS, targetArch))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.Filename), []byte(f.Content), 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", f.Filename, err)
		}
	}
	return dir, nil
}

// Clean removes every cached artifact.
func (c *Cache) Clean() error {
	return os.RemoveAll(c.CacheDir())
}

// computeKey generates a deterministic key from the config content and
// target platform.
func (c *Cache) computeKey(configData []byte, targetOS, targetArch string) string {
	if targetOS == "" {
		targetOS = runtime.GOOS
	}
	if targetArch == "" {
		targetArch = runtime.GOARCH
	}
	h := sha256.New()
	h.Write(configData)
	h.Write([]byte("\x00"))
	h.Write([]byte(targetOS))
	h.Write([]byte("\x00"))
	h.Write([]byte(targetArch))
	h.Write([]byte("\x00"))
	h.Write([]byte(generatorVersion))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ConfigFingerprint returns normalized config bytes for cache key
// computation: trailing whitespace stripped per line so formatting
// changes don't invalidate the cache.
func ConfigFingerprint(configPath string) ([]byte, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	var normalized strings.Builder
	for _, line := range lines {
		normalized.WriteString(strings.TrimRight(line, " \t\r"))
		normalized.WriteString("\n")
	}
	return []byte(strings.TrimRight(normalized.String(), "\n")), nil
}
