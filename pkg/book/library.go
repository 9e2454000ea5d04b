package book

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Summary is the condensed book record returned by the library listing.
type Summary struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Author               string  `json:"author"`
	Description          string  `json:"description,omitempty"`
	CoverURL             string  `json:"cover_url,omitempty"`
	TotalChapters        int     `json:"total_chapters"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}

// Client fetches book metadata from the backend library API.
type Client struct {
	// BaseURL is the backend base URL, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// List returns all books in the library, sorted by title.
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	var books []Summary
	if err := c.get(ctx, "/api/books", &books); err != nil {
		return nil, err
	}
	return books, nil
}

// Get returns full metadata for one book, chapters and transcripts included.
func (c *Client) Get(ctx context.Context, bookID string) (*Book, error) {
	var b Book
	if err := c.get(ctx, "/api/books/"+bookID, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("book: %s: %w", path, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("book: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("book: %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("book: %s: decode: %w", path, err)
	}
	return nil
}
