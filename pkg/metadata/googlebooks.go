package metadata

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

const googleBooksBaseURL = "https://www.googleapis.com/books/v1/volumes"

// GoogleBooks looks up volumes by ISBN against the Google Books API.
type GoogleBooks struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	userAgent   string
}

// NewGoogleBooks returns a client for the public volumes endpoint. Requests
// are rate limited to one per second to stay well inside the API quota.
func NewGoogleBooks(apiKey, userAgent string) *GoogleBooks {
	return &GoogleBooks{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
		baseURL:     googleBooksBaseURL,
		apiKey:      apiKey,
		userAgent:   userAgent,
	}
}

type googleVolumeInfo struct {
	Description   string `json:"description"`
	PageCount     int    `json:"pageCount"`
	Publisher     string `json:"publisher"`
	PublishedDate string `json:"publishedDate"`
}

type googleVolumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

// ByISBN queries the volumes endpoint with an isbn: filter. A miss returns
// (nil, nil).
func (g *GoogleBooks) ByISBN(ctx context.Context, isbn string) (*Volume, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	params := url.Values{}
	params.Set("q", "isbn:"+isbn)
	params.Set("maxResults", "1")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("google books returned status %d", resp.StatusCode)
	}

	body := googleVolumesResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.WithStack(err)
	}
	if body.TotalItems == 0 || len(body.Items) == 0 {
		return nil, nil
	}

	info := body.Items[0].VolumeInfo
	v := &Volume{}
	if info.Description != "" {
		v.Description = &info.Description
	}
	if info.PageCount > 0 {
		v.PageCount = &info.PageCount
	}
	if info.Publisher != "" {
		v.Publisher = &info.Publisher
	}
	if info.PublishedDate != "" {
		v.PublicationDate = &info.PublishedDate
	}
	return v, nil
}
