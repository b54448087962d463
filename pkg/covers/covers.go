package covers

import (
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Resolve finds a cover image for the book at path without opening any files.
// It probes, in order: a sibling image sharing the book's filename stem, a
// file literally named cover, and a file named after the parent directory.
// Returns the empty string when nothing matches.
func Resolve(path string) string {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	candidates := []string{stem, "cover", filepath.Base(dir)}
	for _, name := range candidates {
		for _, ext := range imageExtensions {
			candidate := filepath.Join(dir, name+ext)
			if candidate == path {
				continue
			}
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}
