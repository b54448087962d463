package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractISBN(t *testing.T) {
	tests := []struct {
		name     string
		stem     string
		expected string
	}{
		{"isbn13 with hyphens", "978-0-123456-78-9", "9780123456789"},
		{"isbn10 with hyphens", "0-306-40615-2", "0306406152"},
		{"isbn10 with X check digit", "012345678X", "012345678X"},
		{"isbn10 with lowercase x", "012345678x", "012345678X"},
		{"plain isbn13", "9780316769488", "9780316769488"},
		{"isbn embedded after title", "Some Title 9780316769488", "9780316769488"},
		{"underscore separators", "978_0_316_76948_8", "9780316769488"},
		{"words only", "foo_bar", ""},
		{"too short", "12345", ""},
		{"too long", "97803167694881234", ""},
		{"X mid-run ignored", "0123X45678", ""},
		{"letters terminate short run", "v2 12345 edition", ""},
		{"empty stem", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isbn := ExtractISBN(tt.stem)
			if tt.expected == "" {
				assert.Nil(t, isbn)
				return
			}
			require.NotNil(t, isbn)
			assert.Equal(t, tt.expected, *isbn)
		})
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name       string
		root       string
		path       string
		author     string
		title      string
		format     string
		expectISBN string
	}{
		{
			name:   "standard layout",
			root:   "/library",
			path:   "/library/Ursula K. Le Guin/The Dispossessed/The Dispossessed.epub",
			author: "Ursula K. Le Guin",
			title:  "The Dispossessed",
			format: "epub",
		},
		{
			name:       "isbn filename",
			root:       "/library",
			path:       "/library/Unknown/Misc/978-0-123456-78-9.pdf",
			author:     "Unknown",
			title:      "Misc",
			format:     "pdf",
			expectISBN: "9780123456789",
		},
		{
			name:   "file directly under root",
			root:   "/library",
			path:   "/library/standalone.cbz",
			author: "Unknown Author",
			title:  "standalone",
			format: "cbz",
		},
		{
			name:   "one level deep",
			root:   "/library",
			path:   "/library/Some Book/Some Book.mobi",
			author: "Unknown Author",
			title:  "Some Book",
			format: "mobi",
		},
		{
			name:   "uppercase extension",
			root:   "/library",
			path:   "/library/Author/Title/file.EPUB",
			author: "Author",
			title:  "Title",
			format: "epub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Derive(tt.root, tt.path)
			assert.Equal(t, tt.author, d.AuthorName)
			assert.Equal(t, tt.title, d.Title)
			assert.Equal(t, tt.format, d.FileFormat)
			if tt.expectISBN == "" {
				assert.Nil(t, d.ISBN)
			} else {
				require.NotNil(t, d.ISBN)
				assert.Equal(t, tt.expectISBN, *d.ISBN)
			}
		})
	}
}

func TestSupportedFormat(t *testing.T) {
	assert.True(t, SupportedFormat(".epub"))
	assert.True(t, SupportedFormat("EPUB"))
	assert.True(t, SupportedFormat(".CbR"))
	assert.False(t, SupportedFormat(".txt"))
	assert.False(t, SupportedFormat(""))
}
