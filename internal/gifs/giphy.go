// internal/gifs/giphy.go
//
// Thin GIPHY proxy for the chat GIF picker.
// Trending when the query is empty, search otherwise; always limit 20 and
// rating pg-13. Only the fields the client renders are returned.

package gifs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.giphy.com/v1"
	pageSize       = "20"
	rating         = "pg-13"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("GIPHY_API_KEY not configured")

// Gif is one picker entry.
type Gif struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PreviewURL string `json:"previewUrl"`
	URL        string `json:"url"`
}

// UpstreamError carries a non-2xx GIPHY response.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("giphy: status %d: %s", e.Status, e.Message)
}

// Client talks to the GIPHY REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a client. An empty baseURL selects the public API.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

type image struct {
	URL string `json:"url"`
}

type searchResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			FixedHeightSmall image `json:"fixed_height_small"`
			FixedHeight      image `json:"fixed_height"`
			Original         image `json:"original"`
		} `json:"images"`
	} `json:"data"`
	Message string `json:"message"`
	Meta    struct {
		Msg string `json:"msg"`
	} `json:"meta"`
}

// Search returns trending results for an empty query and search results otherwise.
// content is "stickers" or anything else for GIFs.
func (c *Client) Search(ctx context.Context, query, content string) ([]Gif, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	endpoint := "gifs"
	if content == "stickers" {
		endpoint = "stickers"
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("limit", pageSize)
	params.Set("rating", rating)
	mode := "trending"
	if q := strings.TrimSpace(query); q != "" {
		mode = "search"
		params.Set("q", q)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/%s?%s", c.baseURL, endpoint, mode, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("giphy request: %w", err)
	}
	defer resp.Body.Close()

	var body searchResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := body.Message
		if msg == "" {
			msg = body.Meta.Msg
		}
		if msg == "" {
			msg = "GIPHY API error"
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("giphy decode: %w", decodeErr)
	}

	out := make([]Gif, 0, len(body.Data))
	for _, item := range body.Data {
		preview := item.Images.FixedHeightSmall.URL
		if preview == "" {
			preview = item.Images.FixedHeight.URL
		}
		full := item.Images.FixedHeight.URL
		if full == "" {
			full = item.Images.Original.URL
		}
		out = append(out, Gif{ID: item.ID, Title: item.Title, PreviewURL: preview, URL: full})
	}
	return out, nil
}
