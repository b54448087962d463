package metadata

import (
	"path/filepath"
	"strings"
)

// Derived is the metadata recoverable from a file's location alone, without
// opening the file. Libraries are expected to be laid out as
// <root>/<author>/<title>/<file>.
type Derived struct {
	AuthorName string
	Title      string
	FileFormat string
	ISBN       *string
}

var supportedFormats = map[string]bool{
	"epub": true,
	"pdf":  true,
	"mobi": true,
	"azw":  true,
	"azw3": true,
	"cbz":  true,
	"cbr":  true,
	"djvu": true,
}

// SupportedFormat reports whether the extension (with or without the leading
// dot, any case) is one the library indexes.
func SupportedFormat(ext string) bool {
	return supportedFormats[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Derive extracts author, title, format, and ISBN from an absolute file path
// under the given library root. When the file sits too shallow for the
// expected layout, the title falls back to the filename stem and the author to
// "Unknown Author".
func Derive(root, path string) Derived {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	d := Derived{
		Title:      stem,
		AuthorName: "Unknown Author",
		FileFormat: strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		ISBN:       ExtractISBN(stem),
	}

	parent := filepath.Dir(path)
	if parent == root || parent == filepath.Dir(parent) {
		return d
	}
	d.Title = filepath.Base(parent)

	grandparent := filepath.Dir(parent)
	if grandparent == root || grandparent == filepath.Dir(grandparent) {
		return d
	}
	d.AuthorName = filepath.Base(grandparent)

	return d
}

// ExtractISBN scans a filename stem for an embedded ISBN. Digit runs are
// collected left to right; the separators '-', '_', ' ', and '.' don't reset
// the run. A trailing X is kept only as the check digit of a 9-digit run. The
// first run of exactly 10 or 13 characters wins. Checksums are not validated
// here.
func ExtractISBN(stem string) *string {
	var run strings.Builder

	terminate := func() *string {
		s := run.String()
		run.Reset()
		if len(s) == 10 || len(s) == 13 {
			return &s
		}
		return nil
	}

	for _, r := range stem {
		switch {
		case r >= '0' && r <= '9':
			run.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			// separator, keep collecting
		case (r == 'X' || r == 'x') && run.Len() == 9:
			run.WriteRune('X')
		default:
			if isbn := terminate(); isbn != nil {
				return isbn
			}
		}
	}
	return terminate()
}
