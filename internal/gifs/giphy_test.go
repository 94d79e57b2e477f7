package gifs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchModes(t *testing.T) {
	var gotPath, gotQuery, gotRating, gotLimit string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotRating = r.URL.Query().Get("rating")
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"1","title":"cat","images":{"fixed_height_small":{"url":"s1"},"fixed_height":{"url":"f1"},"original":{"url":"o1"}}},
			{"id":"2","title":"dog","images":{"fixed_height":{"url":"f2"},"original":{"url":"o2"}}},
			{"id":"3","title":"owl","images":{"original":{"url":"o3"}}}
		]}`))
	}))
	t.Cleanup(ts.Close)
	c := NewClient("key", ts.URL)

	cases := []struct {
		name, query, content, path string
	}{
		{"trending gifs", "", "", "/gifs/trending"},
		{"search gifs", "party", "gifs", "/gifs/search"},
		{"trending stickers", "  ", "stickers", "/stickers/trending"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := c.Search(context.Background(), tc.query, tc.content)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if gotPath != tc.path {
				t.Fatalf("path=%s want %s", gotPath, tc.path)
			}
			if gotRating != "pg-13" || gotLimit != "20" {
				t.Fatalf("rating=%s limit=%s", gotRating, gotLimit)
			}
			if tc.path == "/gifs/search" && gotQuery != "party" {
				t.Fatalf("query=%q", gotQuery)
			}
			if len(out) != 3 {
				t.Fatalf("expected 3 gifs, got %d", len(out))
			}
			if out[0].PreviewURL != "s1" || out[0].URL != "f1" {
				t.Fatalf("first: %+v", out[0])
			}
			if out[1].PreviewURL != "f2" || out[1].URL != "f2" {
				t.Fatalf("second: %+v", out[1])
			}
			if out[2].PreviewURL != "" || out[2].URL != "o3" {
				t.Fatalf("third: %+v", out[2])
			}
		})
	}
}

func TestSearchUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	t.Cleanup(ts.Close)

	_, err := NewClient("key", ts.URL).Search(context.Background(), "x", "")
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if up.Status != http.StatusTooManyRequests || up.Message != "API rate limit exceeded" {
		t.Fatalf("unexpected upstream error %+v", up)
	}
}

func TestSearchWithoutKey(t *testing.T) {
	if _, err := NewClient("", "").Search(context.Background(), "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
