package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleBooksByISBN(t *testing.T) {
	t.Run("hit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "isbn:9780316769488", r.URL.Query().Get("q"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			assert.Equal(t, "dust/test", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"totalItems": 1,
				"items": [{"volumeInfo": {
					"description": "A novel.",
					"pageCount": 277,
					"publisher": "Little, Brown",
					"publishedDate": "1951-07-16"
				}}]
			}`))
		}))
		defer srv.Close()

		g := NewGoogleBooks("test-key", "dust/test")
		g.baseURL = srv.URL

		v, err := g.ByISBN(context.Background(), "9780316769488")
		require.NoError(t, err)
		require.NotNil(t, v)
		require.NotNil(t, v.Description)
		assert.Equal(t, "A novel.", *v.Description)
		require.NotNil(t, v.PageCount)
		assert.Equal(t, 277, *v.PageCount)
		require.NotNil(t, v.Publisher)
		assert.Equal(t, "Little, Brown", *v.Publisher)
		require.NotNil(t, v.PublicationDate)
		assert.Equal(t, "1951-07-16", *v.PublicationDate)
	})

	t.Run("miss", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"totalItems": 0}`))
		}))
		defer srv.Close()

		g := NewGoogleBooks("", "")
		g.baseURL = srv.URL

		v, err := g.ByISBN(context.Background(), "0000000000")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		g := NewGoogleBooks("", "")
		g.baseURL = srv.URL

		v, err := g.ByISBN(context.Background(), "9780316769488")
		assert.Error(t, err)
		assert.Nil(t, v)
	})
}

func TestNullLookup(t *testing.T) {
	v, err := NullLookup{}.ByISBN(context.Background(), "9780316769488")
	assert.NoError(t, err)
	assert.Nil(t, v)
}
