package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBuildQuery_PrefixesDate(t *testing.T) {
	now := time.Date(2025, 4, 20, 23, 30, 0, 0, time.FixedZone("X", -3*3600))
	got := BuildQuery(now, "weather in Paris")
	want := "today is 2025-04-21 \r\n weather in Paris"
	if got != want {
		t.Fatalf("BuildQuery() = %q, want %q", got, want)
	}
}

func TestIconURL(t *testing.T) {
	cases := map[string]string{
		"https://x.com/p":                    "https://favicon.im/x.com",
		"https://sub.example.org:8443/a?b=c": "https://favicon.im/sub.example.org",
		"not a url":                          "",
		"":                                   "",
	}
	for in, want := range cases {
		if got := IconURL(in); got != want {
			t.Fatalf("IconURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTavilyClient_Search(t *testing.T) {
	var captured tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		results := make([]map[string]string, 0, 7)
		for i := 1; i <= 7; i++ {
			results = append(results, map[string]string{
				"title":   fmt.Sprintf(" result %d ", i),
				"url":     fmt.Sprintf("https://site%d.com/page", i),
				"content": "snippet",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	c := NewTavilyClient(srv.URL, "key", time.Second)
	c.now = func() time.Time { return time.Date(2025, 4, 21, 0, 0, 0, 0, time.UTC) }

	results, err := c.Search(context.Background(), "What's the weather in Paris?")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != MaxResults {
		t.Fatalf("expected %d results, got %d", MaxResults, len(results))
	}
	if results[0].Title != "result 1" || results[0].IconURL != "https://favicon.im/site1.com" {
		t.Fatalf("unexpected normalization: %+v", results[0])
	}
	if captured.MaxResults != MaxResults || captured.APIKey != "key" {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if !strings.HasPrefix(captured.Query, "today is 2025-04-21") || !strings.HasSuffix(captured.Query, "What's the weather in Paris?") {
		t.Fatalf("unexpected query %q", captured.Query)
	}
	if captured.ExcludeDomains == nil {
		t.Fatalf("expected exclude_domains to be an empty list")
	}
}

func TestTavilyClient_Failures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		c := NewTavilyClient("http://127.0.0.1:1", "", time.Second)
		if _, err := c.Search(context.Background(), "q"); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"results":[{"title":"x","url":"https://x.com"}]}`))
		}))
		defer srv.Close()
		c := NewTavilyClient(srv.URL, "key", time.Second)
		if _, err := c.Search(context.Background(), "q"); err == nil {
			t.Fatalf("expected error on 429")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()
		c := NewTavilyClient(srv.URL, "key", time.Second)
		if _, err := c.Search(context.Background(), "q"); err == nil {
			t.Fatalf("expected error on malformed body")
		}
	})

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()
		c := NewTavilyClient(url, "key", time.Second)
		if _, err := c.Search(context.Background(), "q"); err == nil {
			t.Fatalf("expected network error")
		}
	})
}

func TestNormalize_TruncatesSnippet(t *testing.T) {
	long := strings.Repeat("á", maxSnippetRunes+10)
	r := Normalize("t", "https://x.com/p", long)
	if got := len([]rune(r.Snippet)); got != maxSnippetRunes {
		t.Fatalf("expected %d runes, got %d", maxSnippetRunes, got)
	}
}
