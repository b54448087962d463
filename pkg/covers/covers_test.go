package covers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestResolve(t *testing.T) {
	t.Run("sibling stem match wins", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "The Hobbit")
		book := filepath.Join(dir, "The Hobbit.epub")
		touch(t, book)
		touch(t, filepath.Join(dir, "The Hobbit.jpg"))
		touch(t, filepath.Join(dir, "cover.png"))

		assert.Equal(t, filepath.Join(dir, "The Hobbit.jpg"), Resolve(book))
	})

	t.Run("cover file fallback", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Dune")
		book := filepath.Join(dir, "Dune.pdf")
		touch(t, book)
		touch(t, filepath.Join(dir, "cover.webp"))

		assert.Equal(t, filepath.Join(dir, "cover.webp"), Resolve(book))
	})

	t.Run("parent directory name fallback", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Neuromancer")
		book := filepath.Join(dir, "file.cbz")
		touch(t, book)
		touch(t, filepath.Join(dir, "Neuromancer.jpeg"))

		assert.Equal(t, filepath.Join(dir, "Neuromancer.jpeg"), Resolve(book))
	})

	t.Run("no match", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Empty")
		book := filepath.Join(dir, "Empty.epub")
		touch(t, book)

		assert.Equal(t, "", Resolve(book))
	})

	t.Run("never returns the book itself", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Art")
		book := filepath.Join(dir, "Art.png")
		touch(t, book)

		assert.Equal(t, "", Resolve(book))
	})

	t.Run("extension order within a candidate", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Order")
		book := filepath.Join(dir, "Order.epub")
		touch(t, book)
		touch(t, filepath.Join(dir, "Order.png"))
		touch(t, filepath.Join(dir, "Order.jpg"))

		assert.Equal(t, filepath.Join(dir, "Order.jpg"), Resolve(book))
	})
}
